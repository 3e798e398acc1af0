// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the run journal and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles Spotify authorization.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize with Spotify using OAuth2 and store the token in the config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// catalogCommand handles the local playlist catalog.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"cat"},
		Usage:   "Fetch, inspect and export the playlist catalog",
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "Retrieve every Spotify playlist into the catalog file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "token",
						Usage: "Spotify access token (defaults to the token saved by `auth`)",
					},
				},
				Action: r.CatalogFetch,
			},
			{
				Name:  "show",
				Usage: "List playlists, or the tracks of one playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CatalogShow,
			},
			{
				Name:  "export",
				Usage: "Export a playlist to CSV, Markdown or text",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, markdown or txt",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (directory for markdown)",
					},
					&cli.BoolFlag{
						Name:  "cover",
						Usage: "Include cover art in markdown exports",
						Value: true,
					},
				},
				Action: r.CatalogExport,
			},
		},
	}
}

// downloadCommand runs the acquisition pipeline from the terminal.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download the media and cover art of a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "transcode",
				Usage: "Convert downloads to MP3 with ffmpeg",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Media backend: native or ytdlp (defaults to pipeline.backend)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Download every playlist in the catalog",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Playlists downloaded concurrently with --all (defaults to pipeline.workers)",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Write a JSON summary of an --all run to this path",
			},
		},
		Action: r.Download,
	}
}

// serveCommand starts the HTTP surface.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the login, download and progress endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
			&cli.BoolFlag{
				Name:  "transcode",
				Usage: "Convert downloads to MP3 with ffmpeg",
			},
			&cli.StringSliceFlag{
				Name:  "origin",
				Usage: "Allowed CORS origin (repeatable; any origin when unset)",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand reads the run journal.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect past download runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only runs of this playlist",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show the per-track report of a run (id or sequence number)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: txt, markdown, csv or json",
						Value:   "txt",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive downloads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Pick a playlist and watch it download",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Open the download prompt for this playlist directly",
			},
			&cli.BoolFlag{
				Name:  "transcode",
				Usage: "Convert downloads to MP3 with ffmpeg",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI is running",
				Value: "./tmp/tapedeck-tui.log",
			},
		},
		Action: r.TUI,
	}
}
