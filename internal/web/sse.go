package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// sseBuffer is how many events a slow client may fall behind before events are dropped for it.
const sseBuffer = 64

func (a *App) progressUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, sub := a.opts.Events.Channel(sseBuffer)
	defer sub.Close()

	a.logger.Debug("progress client connected", "remote", r.RemoteAddr, "listeners", a.opts.Events.Len())

	ticker := time.NewTicker(a.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			a.logger.Debug("progress client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				a.logger.Error("failed to encode progress event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
