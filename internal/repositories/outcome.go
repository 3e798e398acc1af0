package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// OutcomeRepository stores the terminal state of each track in a run.
type OutcomeRepository struct {
	db *sql.DB
}

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create inserts an outcome. A second outcome for the same run position replaces the first.
func (r *OutcomeRepository) Create(o *models.TrackOutcome) error {
	if o.RunID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrInvalidInput)
	}
	if o.ID == "" {
		o.ID = shared.GenerateID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO track_outcomes (id, run_id, position, name, artist, album, state, error, media_path, art_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, position) DO UPDATE SET
			state = excluded.state,
			error = excluded.error,
			media_path = excluded.media_path,
			art_path = excluded.art_path
	`

	_, err := r.db.Exec(query,
		o.ID,
		o.RunID,
		o.Position,
		o.Track.Name,
		o.Track.Artist,
		o.Track.Album,
		o.State.String(),
		o.Error,
		o.MediaPath,
		o.ArtPath,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track outcome: %w", err)
	}
	return nil
}

// ListByRun returns a run's outcomes in playlist order
func (r *OutcomeRepository) ListByRun(runID string) ([]models.TrackOutcome, error) {
	query := `
		SELECT id, run_id, position, name, artist, album, state, error, media_path, art_path, created_at
		FROM track_outcomes
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []models.TrackOutcome{}
	for rows.Next() {
		var (
			o     models.TrackOutcome
			state string
		)
		err := rows.Scan(&o.ID, &o.RunID, &o.Position, &o.Track.Name, &o.Track.Artist, &o.Track.Album,
			&state, &o.Error, &o.MediaPath, &o.ArtPath, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track outcome: %w", err)
		}

		parsed, ok := models.ParseTrackState(state)
		if !ok {
			return nil, fmt.Errorf("%w: unknown track state %q", shared.ErrInvalidInput, state)
		}
		o.State = parsed
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return outcomes, nil
}
