// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
)

// RoadTrip is a two-track playlist used across package tests.
func RoadTrip() models.Catalog {
	return models.Catalog{
		{Name: "Road Trip", Tracks: []models.Track{
			{Name: "Song A", Artist: "Artist X", Album: "Album 1"},
			{Name: "Song B", Artist: "Artist Y", Album: "Album 2"},
		}},
		{Name: "Empty", Tracks: []models.Track{}},
	}
}

// FakeResolver maps track names to sources. Tracks listed in Errs fail with that error.
type FakeResolver struct {
	Sources map[string]models.ResolvedSource
	Errs    map[string]error
}

func (f *FakeResolver) Resolve(ctx context.Context, track models.Track) (models.ResolvedSource, error) {
	if err, ok := f.Errs[track.Name]; ok {
		return f.Sources[track.Name], err
	}
	return f.Sources[track.Name], nil
}

// FakeTransport writes fixed content per locator. Locators in Fail return that error instead.
type FakeTransport struct {
	mu      sync.Mutex
	Content map[string]string
	Fail    map[string]error
	Calls   []string
}

func (f *FakeTransport) Download(ctx context.Context, locator, path string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, locator)
	err, failed := f.Fail[locator]
	content := f.Content[locator]
	f.mu.Unlock()

	if failed {
		return err
	}
	if content == "" {
		content = "data:" + locator
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// CallCount returns how many downloads were attempted.
func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// StubFFmpeg writes an executable script that stands in for ffmpeg.
//
// With exitCode 0 it copies its input (the argument after -i) to its last argument.
func StubFFmpeg(t *testing.T, exitCode int) string {
	t.Helper()

	script := `#!/bin/sh
in=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then in="$arg"; fi
  prev="$arg"
  last="$arg"
done
`
	if exitCode == 0 {
		script += "cp \"$in\" \"$last\"\n"
	} else {
		script += fmt.Sprintf("echo 'Invalid data found when processing input' >&2\nexit %d\n", exitCode)
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write ffmpeg stub: %v", err)
	}
	return path
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser yields Data and then fails, simulating a stream that drops mid-transfer.
type FCloser struct {
	Data []byte
	sent bool
}

func (f *FCloser) Read(p []byte) (n int, err error) {
	if !f.sent && len(f.Data) > 0 {
		f.sent = true
		return copy(p, f.Data), nil
	}
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
