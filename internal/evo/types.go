package evo

import (
	"context"
	"time"

	"evonas/internal/encoding"
)

type Phase string

const (
	PhaseSeed    Phase = "seed"
	PhaseImprove Phase = "improve"
)

// Candidate is one evaluated architecture. Candidates are never modified
// after they enter the history.
type Candidate struct {
	ID        string
	Ordinal   int
	Name      string
	Model     *encoding.FixedEdge
	Score     float64
	ParentID  string
	Phase     Phase
	Mutations []string
	Signature encoding.Signature
	Elapsed   time.Duration
}

type LineageRecord struct {
	CandidateID string           `json:"candidate_id"`
	ParentID    string           `json:"parent_id,omitempty"`
	Ordinal     int              `json:"ordinal"`
	Name        string           `json:"name"`
	Phase       Phase            `json:"phase"`
	Operation   string           `json:"operation"`
	Fingerprint string           `json:"fingerprint"`
	Summary     encoding.Summary `json:"summary"`
}

type RunResult struct {
	RunID      string
	Best       Candidate
	History    []Candidate
	Population []Candidate
	Lineage    []LineageRecord
	Progress   float64
}

// Trainer scores a model. Observers must receive one OnProgress call per
// finished epoch of every fold.
type Trainer interface {
	TrainAndEval(ctx context.Context, model *encoding.FixedEdge, name string, observers []ProgressObserver) (float64, error)
}

type ProgressObserver interface {
	OnProgress(name string, cvIdx, epochIdx, totalCV, totalEpoch int)
}

// ProgressObserverFunc adapts a function to ProgressObserver.
type ProgressObserverFunc func(name string, cvIdx, epochIdx, totalCV, totalEpoch int)

func (f ProgressObserverFunc) OnProgress(name string, cvIdx, epochIdx, totalCV, totalEpoch int) {
	f(name, cvIdx, epochIdx, totalCV, totalEpoch)
}

// MetricsRecorder receives search-level measurements.
type MetricsRecorder interface {
	ObserveEvaluation(phase Phase, score float64, elapsed time.Duration)
	SetPopulation(size int)
	SetBest(score float64)
	SetProgress(fraction float64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveEvaluation(Phase, float64, time.Duration) {}
func (noopMetrics) SetPopulation(int)                               {}
func (noopMetrics) SetBest(float64)                                 {}
func (noopMetrics) SetProgress(float64)                             {}
