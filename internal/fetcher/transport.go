package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/samber/lo"
)

// Transport writes the media behind locator to path.
//
// Failures should be [*Error] values; other errors are treated as interrupted transfers.
type Transport interface {
	Download(ctx context.Context, locator, path string) error
}

// Opener opens a remote stream. size is -1 when unknown.
type Opener interface {
	Open(ctx context.Context, locator string) (rc io.ReadCloser, size int64, err error)
}

// StreamTransport copies an [Opener]'s stream into a file without buffering it in memory.
type StreamTransport struct {
	Opener Opener
	Logger *log.Logger
}

func (t *StreamTransport) Download(ctx context.Context, locator, path string) error {
	rc, size, err := t.Opener.Open(ctx, locator)
	if err != nil {
		return newError(SourceUnavailable, locator, path, err)
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return newError(SourceUnavailable, locator, path, err)
	}

	written, err := io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return newError(TransferInterrupted, locator, path, fmt.Errorf("after %d bytes: %w", written, err))
	}
	if size > 0 && written != size {
		return newError(TransferInterrupted, locator, path, fmt.Errorf("short transfer: %d of %d bytes", written, size))
	}

	if t.Logger != nil {
		t.Logger.Debug("transfer complete", "locator", locator, "bytes", written)
	}
	return nil
}

// HTTPOpener opens locators with a plain GET.
type HTTPOpener struct {
	Client *http.Client
}

func (o *HTTPOpener) Open(ctx context.Context, locator string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, 0, err
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

// YouTubeOpener resolves a watch URL and opens its highest-bitrate audio format.
type YouTubeOpener struct {
	Client *youtube.Client
}

func (o *YouTubeOpener) Open(ctx context.Context, locator string) (io.ReadCloser, int64, error) {
	client := o.Client
	if client == nil {
		client = &youtube.Client{}
	}

	video, err := client.GetVideoContext(ctx, locator)
	if err != nil {
		return nil, 0, err
	}

	format, err := BestAudio(video.Formats)
	if err != nil {
		return nil, 0, err
	}

	return client.GetStreamContext(ctx, video, format)
}

// BestAudio picks the audio-only format with the highest bitrate.
//
// WebM formats win over other containers when any exist, since raw downloads are saved as .webm.
func BestAudio(formats youtube.FormatList) (*youtube.Format, error) {
	audio := lo.Filter(formats, func(f youtube.Format, _ int) bool {
		return strings.HasPrefix(f.MimeType, "audio/")
	})
	if len(audio) == 0 {
		return nil, errors.New("no audio formats")
	}
	if webm := lo.Filter(audio, func(f youtube.Format, _ int) bool {
		return strings.HasPrefix(f.MimeType, "audio/webm")
	}); len(webm) > 0 {
		audio = webm
	}

	best := lo.MaxBy(audio, func(a, b youtube.Format) bool {
		return a.Bitrate > b.Bitrate
	})
	return &best, nil
}

// YtdlpTransport drives the yt-dlp binary, which writes the file itself.
type YtdlpTransport struct {
	Executable string
	Logger     *log.Logger
}

func (t *YtdlpTransport) Download(ctx context.Context, locator, path string) error {
	dl := ytdlp.New().
		Format("bestaudio[ext=webm]/bestaudio").
		NoPlaylist().
		ForceOverwrites().
		Output(path)
	if t.Executable != "" {
		dl.SetExecutable(t.Executable)
	}

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		if t.Logger == nil || update.TotalBytes == 0 {
			return
		}
		t.Logger.Debug("yt-dlp progress",
			"locator", locator,
			"percent", update.DownloadedBytes*100/update.TotalBytes,
			"elapsed", time.Since(update.Started).Round(time.Millisecond))
	})

	if _, err := dl.Run(ctx, locator); err != nil {
		if info, statErr := os.Stat(path); statErr == nil && info.Size() > 0 {
			return newError(TransferInterrupted, locator, path, err)
		}
		return newError(SourceUnavailable, locator, path, err)
	}
	return nil
}

// NewTransport returns the media transport for backend ("native" or "ytdlp").
func NewTransport(backend, ytdlpPath string, client *http.Client, logger *log.Logger) (Transport, error) {
	switch backend {
	case "", "native":
		return &StreamTransport{Opener: &YouTubeOpener{Client: &youtube.Client{HTTPClient: client}}, Logger: logger}, nil
	case "ytdlp":
		return &YtdlpTransport{Executable: ytdlpPath, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// IsYouTube reports whether locator points at a YouTube host.
func IsYouTube(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "youtube.com" || host == "m.youtube.com" || host == "music.youtube.com" || host == "youtu.be"
}
