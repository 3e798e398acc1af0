package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun("Road Trip", 2)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create rejects invalid run", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewRunRepository(db).Create(models.NewRun("", 1)); err == nil {
			t.Error("expected validation error for empty playlist")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun("Road Trip", 2)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if got.Playlist() != "Road Trip" {
			t.Errorf("expected playlist 'Road Trip', got %s", got.Playlist())
		}
		if got.Status() != models.RunRunning {
			t.Errorf("expected status running, got %s", got.Status())
		}
		if got.FinishedAt() != nil {
			t.Error("expected unfinished run")
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewRunRepository(db).Get("nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun("Road Trip", 2)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Count(models.StateComplete)
		run.Count(models.StateDownloadFailed)
		run.Finish(nil)

		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.GetBySequence(run.Sequence())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunCompleted {
			t.Errorf("expected completed, got %s", got.Status())
		}
		if got.Succeeded() != 1 || got.Failed() != 1 {
			t.Errorf("expected 1/1, got %d/%d", got.Succeeded(), got.Failed())
		}
		if got.FinishedAt() == nil {
			t.Error("expected finished_at to be set")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun("Road Trip", 0)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("expected error getting deleted run")
		}

		if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		for _, name := range []string{"Road Trip", "Focus", "Road Trip"} {
			if err := repo.Create(models.NewRun(name, 1)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest run first, got sequence %d", all[0].Sequence())
		}

		filtered, err := repo.List(map[string]any{"playlist": "Road Trip"})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(filtered) != 2 {
			t.Errorf("expected 2 Road Trip runs, got %d", len(filtered))
		}

		limited, err := repo.List(map[string]any{"limit": 1})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected 1 run, got %d", len(limited))
		}
	})
}

func TestOutcomeRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	runs := NewRunRepository(db)
	run := models.NewRun("Road Trip", 2)
	if err := runs.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	repo := NewOutcomeRepository(db)

	t.Run("Create & ListByRun", func(t *testing.T) {
		outcomes := []models.TrackOutcome{
			{RunID: run.ID(), Position: 1, Track: models.Track{Name: "Song B", Artist: "Artist Y"}, State: models.StateResolutionFailed, Error: "no media"},
			{RunID: run.ID(), Position: 0, Track: models.Track{Name: "Song A", Artist: "Artist X", Album: "Album 1"}, State: models.StateComplete, MediaPath: "songs/song_a.webm"},
		}
		for i := range outcomes {
			if err := repo.Create(&outcomes[i]); err != nil {
				t.Fatalf("failed to create outcome: %v", err)
			}
		}

		got, err := repo.ListByRun(run.ID())
		if err != nil {
			t.Fatalf("failed to list outcomes: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(got))
		}
		if got[0].Track.Name != "Song A" || got[0].State != models.StateComplete {
			t.Errorf("unexpected first outcome %+v", got[0])
		}
		if got[1].State != models.StateResolutionFailed || got[1].Error != "no media" {
			t.Errorf("unexpected second outcome %+v", got[1])
		}
	})

	t.Run("same position replaces", func(t *testing.T) {
		o := models.TrackOutcome{RunID: run.ID(), Position: 1, Track: models.Track{Name: "Song B", Artist: "Artist Y"}, State: models.StateComplete}
		if err := repo.Create(&o); err != nil {
			t.Fatalf("failed to upsert outcome: %v", err)
		}

		got, err := repo.ListByRun(run.ID())
		if err != nil {
			t.Fatalf("failed to list outcomes: %v", err)
		}
		if len(got) != 2 || got[1].State != models.StateComplete {
			t.Errorf("expected position 1 to be replaced, got %+v", got)
		}
	})

	t.Run("requires run", func(t *testing.T) {
		if err := repo.Create(&models.TrackOutcome{Position: 0}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.Create(&models.TrackOutcome{RunID: "missing", Track: models.Track{Name: "x", Artist: "y"}}); err == nil {
			t.Error("expected foreign key violation for unknown run")
		}
	})
}

func TestJournal(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	journal := NewJournal(db)

	run := models.NewRun("Road Trip", 2)
	if err := journal.Begin(ctx, run); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	for i, state := range []models.TrackState{models.StateComplete, models.StateConversionFailed} {
		run.Count(state)
		err := journal.Record(ctx, models.TrackOutcome{
			RunID:    run.ID(),
			Position: i,
			Track:    models.Track{Name: "Song", Artist: "Artist"},
			State:    state,
		})
		if err != nil {
			t.Fatalf("failed to record outcome: %v", err)
		}
	}

	run.Finish(nil)
	if err := journal.Finish(ctx, run); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	t.Run("Report by id", func(t *testing.T) {
		report, err := journal.Report(run.ID())
		if err != nil {
			t.Fatalf("failed to load report: %v", err)
		}
		if report.Run.Succeeded() != 1 || report.Run.Failed() != 1 {
			t.Errorf("unexpected counters %d/%d", report.Run.Succeeded(), report.Run.Failed())
		}
		if len(report.Outcomes) != 2 {
			t.Errorf("expected 2 outcomes, got %d", len(report.Outcomes))
		}
	})

	t.Run("Report by sequence", func(t *testing.T) {
		report, err := journal.Report("1")
		if err != nil {
			t.Fatalf("failed to load report: %v", err)
		}
		if report.Run.ID() != run.ID() {
			t.Errorf("expected run %s, got %s", run.ID(), report.Run.ID())
		}
	})

	t.Run("Recent", func(t *testing.T) {
		if err := journal.Begin(ctx, models.NewRun("Focus", 0)); err != nil {
			t.Fatalf("failed to begin run: %v", err)
		}

		runs, err := journal.Recent("", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].Playlist() != "Focus" {
			t.Errorf("expected Focus first of 2 runs, got %d runs", len(runs))
		}

		runs, err = journal.Recent("Road Trip", 5)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].ID() != run.ID() {
			t.Errorf("expected only the Road Trip run, got %d runs", len(runs))
		}
	})

	t.Run("Report missing", func(t *testing.T) {
		if _, err := journal.Report("not-a-run"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seq1, err := NextSequence(db, "runs")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(db, "runs")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}
