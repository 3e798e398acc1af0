package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recent runs from the journal, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	journal, closeFn, err := r.openJournal()
	if err != nil {
		return err
	}
	defer closeFn()

	runs, err := journal.Recent(cmd.String("playlist"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		reports := make([]any, 0, len(runs))
		for _, run := range runs {
			data, err := formatter.RenderReport(run, nil, formatter.FormatJSON)
			if err != nil {
				return err
			}
			reports = append(reports, rawJSON(data))
		}
		return r.writeJSON(reports, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}
	for _, run := range runs {
		r.writePlain("%s\n", formatter.RunSummary(run))
	}
	return nil
}

// HistoryShow prints the per-track report of one run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run id or sequence number", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	journal, closeFn, err := r.openJournal()
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := journal.Report(ref)
	if err != nil {
		return err
	}

	data, err := formatter.RenderReport(report.Run, report.Outcomes, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// rawJSON embeds already encoded JSON in a larger document.
type rawJSON []byte

func (j rawJSON) MarshalJSON() ([]byte, error) { return j, nil }
