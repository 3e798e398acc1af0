package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve starts the HTTP surface and blocks until interrupted.
//
// Background runs still in flight at shutdown are waited for so their journal entries are finished.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcode := cmd.Bool("transcode") || r.config.Pipeline.Transcode
	p, err := r.newPipeline(pipelineOpts{transcode: transcode, journal: true})
	if err != nil {
		return err
	}
	defer p.Close()

	opts := web.Options{
		Catalog:   r.store(),
		Runner:    p.engine,
		Events:    r.events,
		Layout:    r.layout(),
		Transcode: transcode,
		Logger:    r.logger,
	}
	if r.spotify != nil {
		opts.Auth = r.spotify
		opts.Fetch = r.fetchCatalog
	} else {
		r.logger.Warn("spotify credentials missing; /login and /playlists are disabled")
	}
	if p.journal != nil {
		opts.History = p.journal
	}

	app := web.New(opts)

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger), server.CORS(cmd.StringSlice("origin")...))
	app.Register(router)

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	r.writePlain("Serving on http://%s\n", addr)
	err = server.Run(ctx, addr, router, 10*time.Second, r.logger)

	r.logger.Info("waiting for running downloads", "playlists", p.engine.Running())
	p.engine.Wait()
	return err
}
