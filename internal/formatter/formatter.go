// package formatter renders playlists and run reports as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/samber/lo"
)

// Format names an output format accepted by the export and history commands.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts the format names and the common aliases md and text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Metadata is the playlist summary written next to a CSV export.
type Metadata struct {
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
	Albums     int    `json:"albums"`
	Artists    int    `json:"artists"`
}

// ExportToCSV converts a playlist to CSV with columns: Position, Name, Artist, Album, Key
func ExportToCSV(playlist models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Name", "Artist", "Album", "Key"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range playlist.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Name,
			track.Artist,
			track.Album,
			track.Key(),
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

// ExportToMarkdown converts a playlist to Markdown with an optional cover image
func ExportToMarkdown(playlist models.Playlist, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	meta := MetadataOf(playlist)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", meta.TrackCount)
	fmt.Fprintf(&buf, "**Artists**: %d\n\n", meta.Artists)

	buf.WriteString("## Tracks\n\n")
	for i, track := range playlist.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s `%s`\n", i+1, track.Artist, track.Name, albumPart, track.Key())
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist to plain text
func ExportToText(playlist models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", playlist.Name)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(playlist.Tracks))

	for i, track := range playlist.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, track)
	}

	return buf.Bytes(), nil
}

// MetadataOf summarizes a playlist.
func MetadataOf(playlist models.Playlist) Metadata {
	albums := lo.Uniq(lo.FilterMap(playlist.Tracks, func(t models.Track, _ int) (string, bool) {
		return t.Album, t.Album != ""
	}))
	artists := lo.Uniq(lo.FlatMap(playlist.Tracks, func(t models.Track, _ int) []string {
		return lo.Map(strings.Split(t.Artist, ", "), func(a string, _ int) string { return strings.TrimSpace(a) })
	}))
	artists = lo.Compact(artists)

	return Metadata{
		Name:       playlist.Name,
		TrackCount: len(playlist.Tracks),
		Albums:     len(albums),
		Artists:    len(artists),
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV with an accompanying metadata JSON file.
//
// Defaults to the playlist's normalized name as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(playlist models.Playlist, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = shared.NormalizeKey(playlist.Name)
	}

	csvData, err := ExportToCSV(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := shared.MarshalJSON(MetadataOf(playlist), true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	Warning    error // cover download failure; the export itself succeeded
}

// WriteMarkdownExport exports a playlist to Markdown in a dedicated directory.
//
// The directory defaults to the playlist's normalized name.
// imageURL is optional; a failed cover download is reported in Warning and does not fail the export.
// Creates {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(ctx context.Context, playlist models.Playlist, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = shared.NormalizeKey(playlist.Name)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		if imageData, err := DownloadImage(ctx, imageURL); err != nil {
			result.Warning = err
		} else {
			coverImagePath := filepath.Join(outputDir, "cover.jpg")
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				result.Warning = fmt.Errorf("failed to save cover image: %w", err)
			} else {
				coverImageFilename = "cover.jpg"
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(playlist, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a playlist to plain text.
//
// Defaults to {key}_tracks.txt as the filename.
func WriteTextExport(playlist models.Playlist, path string) (string, error) {
	if path == "" {
		path = shared.NormalizeKey(playlist.Name) + "_tracks.txt"
	}

	textData, err := ExportToText(playlist)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
