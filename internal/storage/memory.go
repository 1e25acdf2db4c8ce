package storage

import (
	"context"
	"sort"
	"sync"

	"genepool/internal/model"
)

type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]model.RunRecord
	history map[string][]model.GenerationRewards
	sizes   map[string][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]model.GenerationRewards)
	s.sizes = make(map[string][]int)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, record model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.ID] = record
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[id]
	return record, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.RunRecord, 0, len(s.runs))
	for _, record := range s.runs {
		records = append(records, record)
	}
	sort.Slice(records, func(a, b int) bool {
		if records[a].CreatedAtUTC != records[b].CreatedAtUTC {
			return records[a].CreatedAtUTC < records[b].CreatedAtUTC
		}
		return records[a].ID < records[b].ID
	})
	return records, nil
}

func (s *MemoryStore) SaveRewardHistory(_ context.Context, runID string, history []model.GenerationRewards) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationRewards, len(history))
	copy(copied, history)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetRewardHistory(_ context.Context, runID string) ([]model.GenerationRewards, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationRewards, len(history))
	copy(copied, history)
	return copied, true, nil
}

func (s *MemoryStore) SaveArchiveSizes(_ context.Context, runID string, sizes []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sizes[runID] = append([]int(nil), sizes...)
	return nil
}

func (s *MemoryStore) GetArchiveSizes(_ context.Context, runID string) ([]int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sizes, ok := s.sizes[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]int(nil), sizes...), true, nil
}
