package genepool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"genepool/internal/artifact"
	"genepool/internal/evo"
	"genepool/internal/model"
	"genepool/internal/sim"
	"genepool/internal/storage"
)

const (
	defaultRunsDir = "runs"
	defaultDBPath  = "genepool.db"
)

type Options struct {
	StoreKind string
	DBPath    string
	RunsDir   string
}

// Client is the embedding surface: it owns the run-history store and the
// runs directory that holds per-run checkpoint artifacts.
type Client struct {
	store   storage.Store
	runsDir string
}

type RunRequest struct {
	Environment         string
	Population          int
	EliteCount          int
	Generations         int
	Games               int
	MaxSteps            int
	Hidden              []int
	Workers             int
	TasksPerWorker      int
	NoveltySearch       bool
	NoveltyElites       int
	NoveltyEvery        int
	KeepHistory         bool
	MutationProbability float64
	MutationPower       float64
	Seed                int64
	EnvSeed             int64
	AgentSeed           int64

	// RunID overrides the generated id, mainly for tests.
	RunID string

	OnGeneration func(evo.GenerationSummary)
	Progress     func(doneRollouts, totalRollouts int)
}

type ResumeRequest struct {
	RunID          string
	Workers        int
	TasksPerWorker int

	OnGeneration func(evo.GenerationSummary)
	Progress     func(doneRollouts, totalRollouts int)
}

type RunSummary struct {
	RunID            string
	RunDir           string
	BestByGeneration []float64
	FinalBest        float64
	History          []model.GenerationRewards
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, runsDir: runsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) RunDir(runID string) string {
	return filepath.Join(c.runsDir, runID)
}

// Run starts a fresh run: seeds the initial population, drives the full
// generation loop and records the reward history.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	applyRunDefaults(&req)

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	runDir := c.RunDir(req.RunID)
	layout := artifact.NewLayout(runDir)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return RunSummary{}, fmt.Errorf("create run directory: %w", err)
	}

	record := model.RunRecord{
		ID:                  req.RunID,
		Environment:         req.Environment,
		CreatedAtUTC:        time.Now().UTC().Format(time.RFC3339),
		Population:          req.Population,
		EliteCount:          req.EliteCount,
		Generations:         req.Generations,
		Games:               req.Games,
		MaxSteps:            req.MaxSteps,
		Hidden:              req.Hidden,
		NoveltySearch:       req.NoveltySearch,
		NoveltyElites:       req.NoveltyElites,
		NoveltyEvery:        req.NoveltyEvery,
		KeepHistory:         req.KeepHistory,
		MutationProbability: req.MutationProbability,
		MutationPower:       req.MutationPower,
		Seed:                req.Seed,
		EnvSeed:             req.EnvSeed,
		AgentSeed:           req.AgentSeed,
	}
	if err := artifact.SaveRun(layout, record); err != nil {
		return RunSummary{}, fmt.Errorf("persist run metadata: %w", err)
	}
	if err := c.store.SaveRun(ctx, stampRecord(record)); err != nil {
		return RunSummary{}, fmt.Errorf("store run metadata: %w", err)
	}

	return c.drive(ctx, record, layout, false, req.Workers, req.TasksPerWorker, req.OnGeneration, req.Progress)
}

// Resume continues an interrupted run from its last checkpoint, rebuilding
// the engine configuration from the persisted run metadata so the replayed
// portion is identical to what the original process would have produced.
func (c *Client) Resume(ctx context.Context, req ResumeRequest) (RunSummary, error) {
	if req.RunID == "" {
		return RunSummary{}, fmt.Errorf("run id is required")
	}
	layout := artifact.NewLayout(c.RunDir(req.RunID))
	record, err := artifact.LoadRun(layout)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load run %s: %w", req.RunID, err)
	}
	return c.drive(ctx, record, layout, true, req.Workers, req.TasksPerWorker, req.OnGeneration, req.Progress)
}

func (c *Client) drive(ctx context.Context, record model.RunRecord, layout artifact.Layout, resume bool,
	workers, tasksPerWorker int, onGeneration func(evo.GenerationSummary), progress func(int, int)) (RunSummary, error) {

	factory, err := sim.Resolve(record.Environment)
	if err != nil {
		return RunSummary{}, err
	}

	engine, err := evo.NewEngine(evo.Config{
		Layout:              layout,
		SimFactory:          factory,
		Hidden:              record.Hidden,
		Population:          record.Population,
		EliteCount:          record.EliteCount,
		NoveltyElites:       record.NoveltyElites,
		Generations:         record.Generations,
		Games:               record.Games,
		MaxSteps:            record.MaxSteps,
		Workers:             workers,
		TasksPerWorker:      tasksPerWorker,
		NoveltySearch:       record.NoveltySearch,
		NoveltyEvery:        record.NoveltyEvery,
		KeepHistory:         record.KeepHistory,
		MutationProbability: record.MutationProbability,
		MutationPower:       record.MutationPower,
		Seed:                record.Seed,
		EnvSeed:             record.EnvSeed,
		AgentSeed:           record.AgentSeed,
		Resume:              resume,
		OnGeneration:        onGeneration,
		Progress:            progress,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	if err := c.store.SaveRewardHistory(ctx, record.ID, result.History); err != nil {
		return RunSummary{}, fmt.Errorf("store reward history: %w", err)
	}
	if record.NoveltySearch {
		sizes := make([]int, 0, len(result.History))
		for _, row := range result.History {
			sizes = append(sizes, row.ArchiveSize)
		}
		if err := c.store.SaveArchiveSizes(ctx, record.ID, sizes); err != nil {
			return RunSummary{}, fmt.Errorf("store archive sizes: %w", err)
		}
	}

	return RunSummary{
		RunID:            record.ID,
		RunDir:           layout.Root,
		BestByGeneration: result.BestByGeneration,
		FinalBest:        result.FinalBest,
		History:          result.History,
	}, nil
}

// Runs lists known runs, falling back to scanning the runs directory when
// the store has no record of them. The artifact directory is ground truth;
// the store is an index over it.
func (c *Client) Runs(ctx context.Context) ([]model.RunRecord, error) {
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		return records, nil
	}
	return c.scanRuns()
}

func (c *Client) scanRuns() ([]model.RunRecord, error) {
	entries, err := os.ReadDir(c.runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []model.RunRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		layout := artifact.NewLayout(filepath.Join(c.runsDir, entry.Name()))
		record, err := artifact.LoadRun(layout)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// FitnessHistory returns the per-generation reward rows of a run, rebuilt
// from the checkpoint rankings when the store has none.
func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]model.GenerationRewards, error) {
	history, ok, err := c.store.GetRewardHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return history, nil
	}

	layout := artifact.NewLayout(c.RunDir(runID))
	record, err := artifact.LoadRun(layout)
	if err != nil {
		return nil, fmt.Errorf("unknown run %s: %w", runID, err)
	}
	for gen := 1; gen <= record.Generations && layout.HasRankings(gen); gen++ {
		rankings, err := artifact.LoadRankings(layout, gen)
		if err != nil {
			return nil, err
		}
		row := model.GenerationRewards{
			Generation: gen,
			BestReward: rankings.MeanRewards[rankings.ParentIndices[0]],
			MeanReward: meanOf(rankings.MeanRewards),
		}
		if record.NoveltySearch {
			entries, err := artifact.LoadArchive(layout, gen)
			if err == nil {
				row.ArchiveSize = len(entries)
			}
		}
		history = append(history, row)
	}
	return history, nil
}

// ArchiveSizes returns the archive growth curve of a novelty run.
func (c *Client) ArchiveSizes(ctx context.Context, runID string) ([]int, error) {
	sizes, ok, err := c.store.GetArchiveSizes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return sizes, nil
	}
	history, err := c.FitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	sizes = make([]int, 0, len(history))
	for _, row := range history {
		sizes = append(sizes, row.ArchiveSize)
	}
	return sizes, nil
}

func stampRecord(record model.RunRecord) model.RunRecord {
	record.SchemaVersion = storage.CurrentSchemaVersion
	record.CodecVersion = storage.CurrentCodecVersion
	return record
}

func applyRunDefaults(req *RunRequest) {
	if req.Environment == "" {
		req.Environment = "wellfield"
	}
	if req.Population <= 0 {
		req.Population = 50
	}
	if req.EliteCount <= 0 {
		req.EliteCount = req.Population / 5
		if req.EliteCount < 1 {
			req.EliteCount = 1
		}
	}
	if req.Generations <= 0 {
		req.Generations = 100
	}
	if req.Games <= 0 {
		req.Games = 3
	}
	if req.MaxSteps <= 0 {
		req.MaxSteps = 200
	}
	if len(req.Hidden) == 0 {
		req.Hidden = []int{16}
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.TasksPerWorker <= 0 {
		req.TasksPerWorker = 4
	}
	if req.NoveltySearch {
		if req.NoveltyElites <= 0 {
			req.NoveltyElites = req.Population / 10
			if req.NoveltyElites < 1 {
				req.NoveltyElites = 1
			}
		}
		if req.NoveltyEvery <= 0 {
			req.NoveltyEvery = 1
		}
		req.KeepHistory = true
	}
	if req.MutationProbability <= 0 {
		req.MutationProbability = 0.3
	}
	if req.MutationPower <= 0 {
		req.MutationPower = 0.02
	}
	if req.EnvSeed == 0 {
		req.EnvSeed = req.Seed
	}
	if req.AgentSeed == 0 {
		req.AgentSeed = req.Seed + 1
	}
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
