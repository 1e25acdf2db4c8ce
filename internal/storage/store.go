package storage

import (
	"context"

	"genepool/internal/model"
)

// Store persists run metadata and per-generation reward history across
// engine invocations. Checkpoint artifacts stay on the filesystem; the store
// only answers the inspection surface: which runs exist and how they scored.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, record model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveRewardHistory(ctx context.Context, runID string, history []model.GenerationRewards) error
	GetRewardHistory(ctx context.Context, runID string) ([]model.GenerationRewards, bool, error)
	SaveArchiveSizes(ctx context.Context, runID string, sizes []int) error
	GetArchiveSizes(ctx context.Context, runID string) ([]int, bool, error)
}
