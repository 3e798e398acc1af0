package models

import (
	"errors"
	"testing"
)

func TestTrackState(t *testing.T) {
	t.Run("round trips through strings", func(t *testing.T) {
		for st := StatePending; st <= StateComplete; st++ {
			got, ok := ParseTrackState(st.String())
			if !ok || got != st {
				t.Errorf("ParseTrackState(%q) = %v, %v", st.String(), got, ok)
			}
		}
		if _, ok := ParseTrackState("bogus"); ok {
			t.Error("expected unknown state to fail parsing")
		}
	})

	t.Run("terminal states", func(t *testing.T) {
		tests := []struct {
			state    TrackState
			terminal bool
			failed   bool
		}{
			{StatePending, false, false},
			{StateResolving, false, false},
			{StateResolutionFailed, true, true},
			{StateResolved, false, false},
			{StateDownloading, false, false},
			{StateDownloadFailed, true, true},
			{StateDownloaded, false, false},
			{StateConverting, false, false},
			{StateConversionFailed, true, true},
			{StateComplete, true, false},
		}

		for _, tt := range tests {
			t.Run(tt.state.String(), func(t *testing.T) {
				if tt.state.Terminal() != tt.terminal {
					t.Errorf("Terminal() = %v, want %v", tt.state.Terminal(), tt.terminal)
				}
				if tt.state.Failed() != tt.failed {
					t.Errorf("Failed() = %v, want %v", tt.state.Failed(), tt.failed)
				}
			})
		}
	})
}

func TestTrack(t *testing.T) {
	tr := Track{Name: "Bohemian Rhapsody", Artist: "Queen", Album: "A Night at the Opera"}

	if tr.Key() != "bohemian_rhapsody" {
		t.Errorf("Key() = %s", tr.Key())
	}
	if tr.Query() != "Bohemian Rhapsody Queen" {
		t.Errorf("Query() = %s", tr.Query())
	}
	if tr.String() != "Queen - Bohemian Rhapsody" {
		t.Errorf("String() = %s", tr.String())
	}
}

func TestRun(t *testing.T) {
	t.Run("counts and finishes", func(t *testing.T) {
		run := NewRun("Road Trip", 3)
		run.Count(StateComplete)
		run.Count(StateResolutionFailed)
		run.Count(StateDownloading)

		if run.Succeeded() != 1 || run.Failed() != 1 || run.Processed() != 2 {
			t.Errorf("unexpected counters: %d/%d", run.Succeeded(), run.Failed())
		}
		if err := run.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}

		run.Finish(nil)
		if run.Status() != RunCompleted || run.FinishedAt() == nil {
			t.Errorf("expected completed run, got %s", run.Status())
		}
	})

	t.Run("failed finish keeps error text", func(t *testing.T) {
		run := NewRun("Road Trip", 0)
		run.Finish(errors.New("boom"))
		if run.Status() != RunFailed || run.ErrorText() != "boom" {
			t.Errorf("expected failed run with error, got %s %q", run.Status(), run.ErrorText())
		}
	})

	t.Run("validation", func(t *testing.T) {
		if err := NewRun("", 1).Validate(); err == nil {
			t.Error("expected error for missing playlist")
		}

		run := NewRun("p", 1)
		run.Count(StateComplete)
		run.Count(StateComplete)
		if err := run.Validate(); err == nil {
			t.Error("expected error when processed exceeds total")
		}
	})
}
