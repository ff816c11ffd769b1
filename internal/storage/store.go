package storage

import (
	"context"

	"evonas/internal/model"
)

// Store persists search runs, their candidates and lineage.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveCandidates(ctx context.Context, runID string, candidates []model.CandidateRecord) error
	GetCandidates(ctx context.Context, runID string) ([]model.CandidateRecord, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
	SaveScoreHistory(ctx context.Context, runID string, history []float64) error
	GetScoreHistory(ctx context.Context, runID string) ([]float64, bool, error)
}

// Versioned stamps the current schema and codec versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}
