package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/samber/lo"
)

// reportJSON is the wire shape of a run report.
type reportJSON struct {
	ID         string        `json:"id"`
	Sequence   int           `json:"sequence"`
	Playlist   string        `json:"playlist"`
	Status     string        `json:"status"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Tracks     []outcomeJSON `json:"tracks"`
}

type outcomeJSON struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	MediaPath string `json:"media_path,omitempty"`
	ArtPath   string `json:"art_path,omitempty"`
}

// RenderReport renders a run and its track outcomes in the given format.
func RenderReport(run *models.Run, outcomes []models.TrackOutcome, format Format) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("%w: nil run", shared.ErrInvalidInput)
	}

	switch format {
	case FormatCSV:
		return reportCSV(outcomes)
	case FormatMarkdown:
		return reportMarkdown(run, outcomes), nil
	case FormatJSON:
		return reportJSONBytes(run, outcomes)
	default:
		return reportText(run, outcomes), nil
	}
}

// RunSummary is a one-line description of a run for history listings.
func RunSummary(run *models.Run) string {
	finished := "-"
	if run.FinishedAt() != nil {
		finished = run.Duration().Round(time.Second).String()
	}
	return fmt.Sprintf("#%-4d %-10s %-30s %d/%d ok, %d failed  %s  %s",
		run.Sequence(), run.Status(), run.Playlist(),
		run.Succeeded(), run.Total(), run.Failed(),
		run.StartedAt().Local().Format(time.DateTime), finished)
}

func reportText(run *models.Run, outcomes []models.TrackOutcome) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Run %d (%s)\n", run.Sequence(), run.ID())
	fmt.Fprintf(&buf, "Playlist: %s\n", run.Playlist())
	fmt.Fprintf(&buf, "Status: %s\n", run.Status())
	fmt.Fprintf(&buf, "Tracks: %d succeeded, %d failed, %d total\n", run.Succeeded(), run.Failed(), run.Total())
	if run.ErrorText() != "" {
		fmt.Fprintf(&buf, "Error: %s\n", run.ErrorText())
	}
	buf.WriteString("\n")

	for _, o := range outcomes {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", o.Position+1, o.State, o.Track)
		if o.Error != "" {
			fmt.Fprintf(&buf, "   %s\n", o.Error)
		}
	}

	return buf.Bytes()
}

func reportMarkdown(run *models.Run, outcomes []models.TrackOutcome) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s: run %d\n\n", run.Playlist(), run.Sequence())
	fmt.Fprintf(&buf, "**Status**: %s\n", run.Status())
	fmt.Fprintf(&buf, "**Succeeded**: %d / %d\n\n", run.Succeeded(), run.Total())

	failures := lo.Filter(outcomes, func(o models.TrackOutcome, _ int) bool { return o.State.Failed() })
	if len(failures) > 0 {
		buf.WriteString("## Failures\n\n")
		for _, o := range failures {
			fmt.Fprintf(&buf, "- %s: `%s` %s\n", o.Track, o.State, o.Error)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Track | State | File |\n")
	buf.WriteString("| --- | --- | --- | --- |\n")
	for _, o := range outcomes {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s |\n", o.Position+1, o.Track, o.State, o.MediaPath)
	}

	return buf.Bytes()
}

func reportCSV(outcomes []models.TrackOutcome) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "Name", "Artist", "Album", "State", "Error", "MediaPath", "ArtPath"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, o := range outcomes {
		record := []string{
			strconv.Itoa(o.Position + 1),
			o.Track.Name,
			o.Track.Artist,
			o.Track.Album,
			o.State.String(),
			o.Error,
			o.MediaPath,
			o.ArtPath,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func reportJSONBytes(run *models.Run, outcomes []models.TrackOutcome) ([]byte, error) {
	report := reportJSON{
		ID:         run.ID(),
		Sequence:   run.Sequence(),
		Playlist:   run.Playlist(),
		Status:     string(run.Status()),
		Total:      run.Total(),
		Succeeded:  run.Succeeded(),
		Failed:     run.Failed(),
		Error:      run.ErrorText(),
		StartedAt:  run.StartedAt(),
		FinishedAt: run.FinishedAt(),
		Tracks: lo.Map(outcomes, func(o models.TrackOutcome, _ int) outcomeJSON {
			return outcomeJSON{
				Position:  o.Position,
				Name:      o.Track.Name,
				Artist:    o.Track.Artist,
				Album:     o.Track.Album,
				State:     o.State.String(),
				Error:     o.Error,
				MediaPath: o.MediaPath,
				ArtPath:   o.ArtPath,
			}
		}),
	}
	return shared.MarshalJSON(report, true)
}
