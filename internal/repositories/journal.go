package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/tapedeck/internal/models"
)

// Journal records pipeline runs and their track outcomes.
type Journal struct {
	Runs     *RunRepository
	Outcomes *OutcomeRepository
}

// NewJournal creates a Journal over db. Migrations must already be applied.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{Runs: NewRunRepository(db), Outcomes: NewOutcomeRepository(db)}
}

// Begin stores a new run and assigns its ID.
func (j *Journal) Begin(_ context.Context, run *models.Run) error {
	return j.Runs.Create(run)
}

// Record stores one track outcome.
func (j *Journal) Record(_ context.Context, outcome models.TrackOutcome) error {
	return j.Outcomes.Create(&outcome)
}

// Finish stores the final counters and status.
func (j *Journal) Finish(_ context.Context, run *models.Run) error {
	return j.Runs.Update(run)
}

// RunReport is a run with its outcomes.
type RunReport struct {
	Run      *models.Run
	Outcomes []models.TrackOutcome
}

// Report loads a run and its outcomes by ID or by sequence number.
func (j *Journal) Report(ref string) (*RunReport, error) {
	run, err := j.Runs.Get(ref)
	if err != nil {
		var sequence int
		if _, scanErr := fmt.Sscanf(ref, "%d", &sequence); scanErr != nil {
			return nil, err
		}
		if run, err = j.Runs.GetBySequence(sequence); err != nil {
			return nil, err
		}
	}

	outcomes, err := j.Outcomes.ListByRun(run.ID())
	if err != nil {
		return nil, err
	}
	return &RunReport{Run: run, Outcomes: outcomes}, nil
}

// Recent lists the newest runs first, optionally only those for playlist. A limit of 0 means no limit.
func (j *Journal) Recent(playlist string, limit int) ([]*models.Run, error) {
	criteria := map[string]any{}
	if playlist != "" {
		criteria["playlist"] = playlist
	}
	if limit > 0 {
		criteria["limit"] = limit
	}
	return j.Runs.List(criteria)
}
