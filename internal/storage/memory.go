package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"

	"evonas/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	candidates  map[string][]model.CandidateRecord
	lineage     map[string][]model.LineageRecord
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.candidates = make(map[string][]model.CandidateRecord)
	s.lineage = make(map[string][]model.LineageRecord)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveCandidates(_ context.Context, runID string, candidates []model.CandidateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.CandidateRecord, len(candidates))
	for i, c := range candidates {
		c.Mutations = slices.Clone(c.Mutations)
		c.Summary.OperationDistribution = maps.Clone(c.Summary.OperationDistribution)
		copied[i] = c
	}
	s.candidates[runID] = copied
	return nil
}

func (s *MemoryStore) GetCandidates(_ context.Context, runID string) ([]model.CandidateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates, ok := s.candidates[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.CandidateRecord, len(candidates))
	for i, c := range candidates {
		c.Mutations = slices.Clone(c.Mutations)
		c.Summary.OperationDistribution = maps.Clone(c.Summary.OperationDistribution)
		copied[i] = c
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.lineage[runID] = cloneLineage(lineage)
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneLineage(lineage), true, nil
}

func (s *MemoryStore) SaveScoreHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetScoreHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func cloneLineage(in []model.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, len(in))
	for i, r := range in {
		r.Summary.OperationDistribution = maps.Clone(r.Summary.OperationDistribution)
		out[i] = r
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
