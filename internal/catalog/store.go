// Package catalog reads and writes the playlist→track catalog file.
//
// The catalog is a JSON array of {"playlist": name, "tracks": [{"name","artist","album"}]} records.
// The pipeline only reads it; the catalog collaborator (Spotify retrieval) writes it.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

// Store is the file-backed catalog.
type Store struct {
	path string
}

// NewStore returns a Store for the catalog file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the catalog file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole catalog. A missing file is an empty catalog.
func (s *Store) Load() (models.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Catalog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog models.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: catalog %s: %v", shared.ErrInvalidInput, s.path, err)
	}
	return catalog, nil
}

// Save replaces the catalog file.
//
// The file is written beside the target and renamed into place so readers never see a partial catalog.
// Tracks are copied so only name, artist and album are persisted.
func (s *Store) Save(catalog models.Catalog) error {
	clean := lo.Map(catalog, func(p models.Playlist, _ int) models.Playlist {
		return models.Playlist{
			Name: p.Name,
			Tracks: lo.Map(p.Tracks, func(t models.Track, _ int) models.Track {
				return models.Track{Name: t.Name, Artist: t.Artist, Album: t.Album}
			}),
		}
	})

	data, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}

// Find returns the playlist whose name matches exactly (case-sensitive).
func (s *Store) Find(name string) (*models.Playlist, error) {
	catalog, err := s.Load()
	if err != nil {
		return nil, err
	}
	return Lookup(catalog, name)
}

// Names lists playlist names in catalog order.
func (s *Store) Names() ([]string, error) {
	catalog, err := s.Load()
	if err != nil {
		return nil, err
	}
	return lo.Map(catalog, func(p models.Playlist, _ int) string { return p.Name }), nil
}

// Lookup finds a playlist by exact name in an already loaded catalog.
//
// The returned playlist is a copy; callers may attach data to it without touching the catalog.
func Lookup(catalog models.Catalog, name string) (*models.Playlist, error) {
	p, ok := lo.Find(catalog, func(p models.Playlist) bool { return p.Name == name })
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
	}

	p.Tracks = append([]models.Track(nil), p.Tracks...)
	return &p, nil
}
