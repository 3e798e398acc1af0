package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for picking and downloading a playlist.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := r.fileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	p, err := r.newPipeline(pipelineOpts{transcode: cmd.Bool("transcode"), journal: true})
	if err != nil {
		return err
	}
	defer p.Close()

	model := ui.NewModel(ctx, r.store(), p.engine, r.events)
	p.processor.OnTransition = model.TransitionHook()

	if name := cmd.String("playlist"); name != "" {
		if err := model.Lookup(name); err != nil {
			return err
		}
	}

	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
