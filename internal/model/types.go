package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one search run and its outcome.
type RunRecord struct {
	VersionedRecord
	ID              string    `json:"id"`
	Topology        string    `json:"topology"`
	Mutation        string    `json:"mutation"`
	Selector        string    `json:"selector"`
	Seed            int64     `json:"seed"`
	PopulationSize  int       `json:"population_size"`
	Iterations      int       `json:"iterations"`
	SampleSize      int       `json:"sample_size"`
	Folds           int       `json:"folds"`
	Epochs          int       `json:"epochs"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Evaluations     int       `json:"evaluations"`
	BestCandidateID string    `json:"best_candidate_id"`
	BestName        string    `json:"best_name"`
	BestScore       float64   `json:"best_score"`
	BestFingerprint string    `json:"best_fingerprint"`
	Progress        float64   `json:"progress"`
}

type TopologySummary struct {
	Vertices              int            `json:"vertices"`
	Edges                 int            `json:"edges"`
	FixedEdges            int            `json:"fixed_edges"`
	MutableEdges          int            `json:"mutable_edges"`
	Operations            int            `json:"operations"`
	OperationDistribution map[string]int `json:"operation_distribution,omitempty"`
}

// CandidateRecord is the persisted form of an evaluated candidate. The
// architecture itself is not stored, only its fingerprint and summary.
type CandidateRecord struct {
	VersionedRecord
	ID             string          `json:"id"`
	RunID          string          `json:"run_id"`
	Ordinal        int             `json:"ordinal"`
	Name           string          `json:"name"`
	ParentID       string          `json:"parent_id,omitempty"`
	Phase          string          `json:"phase"`
	Score          float64         `json:"score"`
	Mutations      []string        `json:"mutations,omitempty"`
	Fingerprint    string          `json:"fingerprint"`
	Summary        TopologySummary `json:"summary"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
}

type LineageRecord struct {
	VersionedRecord
	CandidateID string          `json:"candidate_id"`
	ParentID    string          `json:"parent_id,omitempty"`
	Ordinal     int             `json:"ordinal"`
	Name        string          `json:"name"`
	Phase       string          `json:"phase"`
	Operation   string          `json:"operation"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Summary     TopologySummary `json:"summary"`
}
