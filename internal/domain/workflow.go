package domain

import (
	"fmt"
	"time"
)

// Stage is a step of the scheduling workflow.
type Stage string

const (
	StageSearching       Stage = "searching"
	StageClassified      Stage = "classified"
	StageWeatherAnalyzed Stage = "weather_analyzed"
	StageRecommended     Stage = "recommended"
	StageConflictChecked Stage = "conflict_checked"
	StageScheduled       Stage = "scheduled"
	StageRejected        Stage = "rejected"
	StageCancelled       Stage = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s Stage) Terminal() bool {
	return s == StageScheduled || s == StageRejected || s == StageCancelled
}

var transitions = map[Stage][]Stage{
	StageSearching:       {StageClassified},
	StageClassified:      {StageWeatherAnalyzed},
	StageWeatherAnalyzed: {StageRecommended},
	StageRecommended:     {StageConflictChecked},
	StageConflictChecked: {StageScheduled, StageRejected},
}

// Transition records one stage change.
type Transition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// Workflow tracks a single planning run. It is not safe for concurrent use;
// each run owns its own Workflow.
type Workflow struct {
	stage   Stage
	history []Transition
}

// NewWorkflow starts a workflow in StageSearching.
func NewWorkflow() *Workflow {
	return &Workflow{stage: StageSearching}
}

// NewWorkflowAt starts a workflow at an arbitrary non-terminal stage. Runs
// that skip search (a direct conflict check or schedule request) enter at
// StageRecommended.
func NewWorkflowAt(s Stage) *Workflow {
	return &Workflow{stage: s}
}

// Stage returns the current stage.
func (w *Workflow) Stage() Stage { return w.stage }

// History returns the transitions taken so far.
func (w *Workflow) History() []Transition {
	out := make([]Transition, len(w.history))
	copy(out, w.history)
	return out
}

// Advance moves to next if the edge exists.
func (w *Workflow) Advance(next Stage) error {
	for _, allowed := range transitions[w.stage] {
		if allowed == next {
			w.record(next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.stage, next)
}

// Cancel moves any non-terminal workflow to StageCancelled.
func (w *Workflow) Cancel() error {
	if w.stage.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.stage, StageCancelled)
	}
	w.record(StageCancelled)
	return nil
}

func (w *Workflow) record(next Stage) {
	w.history = append(w.history, Transition{From: w.stage, To: next, At: clock.Now().UTC()})
	w.stage = next
}
