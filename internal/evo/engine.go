package evo

import (
	"context"
	"fmt"
	"time"

	"genepool/internal/artifact"
	"genepool/internal/model"
	"genepool/internal/policy"
	"genepool/internal/sim"
)

// GenState is the explicit per-generation state machine. A generation is
// durable once Checkpointed: the best-agent artifact is written last and its
// presence is the sole resume signal.
type GenState string

const (
	StatePending      GenState = "pending"
	StateEvaluating   GenState = "evaluating"
	StateRanked       GenState = "ranked"
	StateReproduced   GenState = "reproduced"
	StateCheckpointed GenState = "checkpointed"
)

// Config carries the full engine configuration. The engine owns no ambient
// state: archive, rankings and rewards live in the run context built here
// and in the on-disk artifacts.
type Config struct {
	Layout     artifact.Layout
	SimFactory sim.Factory

	// Hidden layer widths of the policy network; input and output widths
	// come from the simulator.
	Hidden []int

	Population    int
	EliteCount    int
	NoveltyElites int
	Generations   int
	Games         int
	MaxSteps      int

	Workers        int
	TasksPerWorker int

	NoveltySearch bool
	NoveltyEvery  int
	KeepHistory   bool

	MutationProbability float64
	MutationPower       float64

	Seed      int64
	EnvSeed   int64
	AgentSeed int64

	Resume        bool
	RetryAttempts int
	RetryBackoff  time.Duration

	// OnGeneration, when set, observes each completed (or skipped)
	// generation. Progress observes drained evaluation chunks.
	OnGeneration func(GenerationSummary)
	Progress     func(doneRollouts, totalRollouts int)
}

// GenerationSummary reports one generation's outcome.
type GenerationSummary struct {
	Generation        int
	BestReward        float64
	MeanReward        float64
	ArchiveSize       int
	DistinctBehaviors int
	Resumed           bool
	Elapsed           time.Duration
}

// Result aggregates a run.
type Result struct {
	BestByGeneration []float64
	History          []model.GenerationRewards
	FinalBest        float64
}

type Engine struct {
	cfg        Config
	evaluator  *Evaluator
	reproducer *Reproducer
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SimFactory == nil {
		return nil, fmt.Errorf("simulator factory is required")
	}
	if cfg.Population <= 1 {
		return nil, fmt.Errorf("population size must be > 1")
	}
	if cfg.EliteCount <= 0 || cfg.EliteCount > cfg.Population {
		return nil, fmt.Errorf("elite count must be in [1, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.Games <= 0 {
		return nil, fmt.Errorf("games averaged per agent must be > 0")
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be > 0")
	}
	if cfg.MutationProbability < 0 || cfg.MutationProbability > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1]")
	}
	if cfg.NoveltySearch {
		if cfg.NoveltyElites <= 0 || cfg.NoveltyElites >= cfg.Population {
			return nil, fmt.Errorf("novelty elite count must be in [1, population size)")
		}
		if cfg.NoveltyEvery <= 0 {
			return nil, fmt.Errorf("novelty cadence must be > 0")
		}
		if !cfg.KeepHistory {
			return nil, fmt.Errorf("novelty search requires keeping model history: archived parents live in earlier generations")
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TasksPerWorker <= 0 {
		cfg.TasksPerWorker = 4
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	evaluator := &Evaluator{
		Layout:         cfg.Layout,
		SimFactory:     cfg.SimFactory,
		Workers:        cfg.Workers,
		TasksPerWorker: cfg.TasksPerWorker,
		Games:          cfg.Games,
		MaxSteps:       cfg.MaxSteps,
		EnvSeed:        cfg.EnvSeed,
		Progress:       cfg.Progress,
	}
	reproducer := &Reproducer{
		Layout:              cfg.Layout,
		Population:          cfg.Population,
		NoveltyElites:       cfg.NoveltyElites,
		NoveltyEvery:        cfg.NoveltyEvery,
		NoveltySearch:       cfg.NoveltySearch,
		MutationProbability: cfg.MutationProbability,
		MutationPower:       cfg.MutationPower,
		Seed:                cfg.Seed,
		RetryAttempts:       cfg.RetryAttempts,
		RetryBackoff:        cfg.RetryBackoff,
	}
	return &Engine{cfg: cfg, evaluator: evaluator, reproducer: reproducer}, nil
}

// Run drives the generation loop: evaluate, score novelty, rank, reproduce,
// checkpoint. Stopping is only possible between generations; a canceled
// context leaves the run resumable at the last checkpoint boundary.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	cfg := e.cfg
	resuming := cfg.Resume

	if !resuming {
		if err := e.seedInitialPopulation(); err != nil {
			return Result{}, err
		}
	}

	archive := NewArchive()
	result := Result{}

	for gen := 1; gen <= cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		started := time.Now()

		if resuming {
			if cfg.Layout.HasBest(gen) {
				summary, restored, err := e.skipCompletedGeneration(gen)
				if err != nil {
					return result, err
				}
				if restored != nil {
					archive = restored
				}
				summary.Elapsed = time.Since(started)
				e.record(&result, summary)
				continue
			}
			restored, err := e.prepareInterruptedGeneration(gen, archive)
			if err != nil {
				return result, err
			}
			if restored != nil {
				archive = restored
			}
			resuming = false
		}

		summary, err := e.runGeneration(ctx, gen, archive)
		if err != nil {
			return result, err
		}
		summary.Elapsed = time.Since(started)
		e.record(&result, summary)
	}

	if n := len(result.BestByGeneration); n > 0 {
		result.FinalBest = result.BestByGeneration[n-1]
	}
	return result, nil
}

func (e *Engine) record(result *Result, summary GenerationSummary) {
	result.BestByGeneration = append(result.BestByGeneration, summary.BestReward)
	result.History = append(result.History, model.GenerationRewards{
		Generation:  summary.Generation,
		BestReward:  summary.BestReward,
		MeanReward:  summary.MeanReward,
		ArchiveSize: summary.ArchiveSize,
	})
	if e.cfg.OnGeneration != nil {
		e.cfg.OnGeneration(summary)
	}
}

func (e *Engine) seedInitialPopulation() error {
	cfg := e.cfg
	if err := cfg.Layout.EnsureGenDir(1); err != nil {
		return err
	}
	simulator := cfg.SimFactory()
	sizes := append([]int{simulator.ObservationSize()}, cfg.Hidden...)
	sizes = append(sizes, simulator.ActionSpaceSize())

	for index := 1; index <= cfg.Population; index++ {
		network, err := policy.NewRandom(sizes, cfg.AgentSeed+int64(index))
		if err != nil {
			return fmt.Errorf("seed agent %d: %w", index, err)
		}
		if err := network.Save(cfg.Layout.AgentFile(1, index)); err != nil {
			return fmt.Errorf("save seed agent %d: %w", index, err)
		}
	}
	return nil
}

// skipCompletedGeneration re-derives the Ranked state of a checkpointed
// generation from its persisted rankings and archive snapshot without any
// re-evaluation.
func (e *Engine) skipCompletedGeneration(gen int) (GenerationSummary, *Archive, error) {
	rankings, err := artifact.LoadRankings(e.cfg.Layout, gen)
	if err != nil {
		return GenerationSummary{}, nil, fmt.Errorf("resume generation %d: %w", gen, err)
	}
	var restored *Archive
	if e.cfg.NoveltySearch {
		entries, err := artifact.LoadArchive(e.cfg.Layout, gen)
		if err != nil {
			return GenerationSummary{}, nil, fmt.Errorf("resume archive of generation %d: %w", gen, err)
		}
		restored = RestoreArchive(entries)
	}

	summary := GenerationSummary{
		Generation: gen,
		BestReward: rankings.MeanRewards[rankings.ParentIndices[0]],
		MeanReward: mean(rankings.MeanRewards),
		Resumed:    true,
	}
	if restored != nil {
		summary.ArchiveSize = restored.Len()
		summary.DistinctBehaviors = restored.DistinctCount()
	}
	return summary, restored, nil
}

// prepareInterruptedGeneration restores the preconditions for evaluating a
// generation whose checkpoint is missing: generation 1 is reseeded from the
// agent seeds; later generations are regenerated by deterministically
// replaying the previous generation's selection and reproduction from its
// persisted ranking, never by re-simulating. Without retained history the
// replay is impossible and the run must stop.
func (e *Engine) prepareInterruptedGeneration(gen int, archive *Archive) (*Archive, error) {
	if gen == 1 {
		return nil, e.seedInitialPopulation()
	}
	if !e.cfg.KeepHistory {
		return nil, fmt.Errorf("resume generation %d: %w", gen, artifact.ErrMissingHistory)
	}
	prev := gen - 1
	rankings, err := artifact.LoadRankings(e.cfg.Layout, prev)
	if err != nil {
		return nil, fmt.Errorf("resume replay of generation %d: %w", prev, err)
	}
	restored := archive
	if e.cfg.NoveltySearch {
		entries, err := artifact.LoadArchive(e.cfg.Layout, prev)
		if err != nil {
			return nil, fmt.Errorf("resume archive of generation %d: %w", prev, err)
		}
		restored = RestoreArchive(entries)
	}
	if err := e.reproducer.Produce(prev, rankings, restored); err != nil {
		return nil, err
	}
	if restored != archive {
		return restored, nil
	}
	return nil, nil
}

func (e *Engine) runGeneration(ctx context.Context, gen int, archive *Archive) (GenerationSummary, error) {
	cfg := e.cfg
	state := StateEvaluating

	rewards, err := e.evaluator.EvaluateGeneration(ctx, gen, cfg.Population)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("generation %d (%s): %w", gen, state, err)
	}

	ranked := RankRewards(rewards.Mean)
	rankings := model.Rankings{
		Generation:    gen,
		ParentIndices: SelectParents(ranked, cfg.EliteCount),
		MeanRewards:   rewards.Mean,
		MinRewards:    rewards.Min,
		MaxRewards:    rewards.Max,
	}

	if cfg.NoveltySearch {
		for index := 1; index <= cfg.Population; index++ {
			res, err := artifact.LoadResults(cfg.Layout, gen, index)
			if err != nil {
				return GenerationSummary{}, fmt.Errorf("generation %d (%s): archive agent %d: %w", gen, state, index, err)
			}
			archive.Append(res.AgentID, res.FlatActions(), cfg.Layout.AgentFile(gen, index))
		}
		if err := archive.Refresh(ctx, cfg.Workers, cfg.TasksPerWorker); err != nil {
			return GenerationSummary{}, fmt.Errorf("generation %d (%s): novelty refresh: %w", gen, state, err)
		}
	}

	if err := artifact.SaveRankings(cfg.Layout, rankings); err != nil {
		return GenerationSummary{}, fmt.Errorf("generation %d (%s): %w", gen, state, err)
	}
	if cfg.NoveltySearch {
		if err := artifact.SaveArchive(cfg.Layout, gen, archive.Entries()); err != nil {
			return GenerationSummary{}, fmt.Errorf("generation %d (%s): %w", gen, state, err)
		}
	}
	state = StateRanked

	if gen < cfg.Generations {
		if err := e.reproducer.Produce(gen, rankings, archive); err != nil {
			return GenerationSummary{}, fmt.Errorf("generation %d (%s): %w", gen, state, err)
		}
		state = StateReproduced
	}

	// Checkpoint: the best-agent artifact is written last so its presence
	// implies evaluation, selection and reproduction all completed.
	bestIdx := rankings.ParentIndices[0]
	best, err := artifact.LoadPolicyWithRetry(cfg.Layout.AgentFile(gen, bestIdx+1), cfg.RetryAttempts, cfg.RetryBackoff)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("generation %d (%s): %w", gen, state, err)
	}
	if err := best.Save(cfg.Layout.BestFile(gen)); err != nil {
		return GenerationSummary{}, fmt.Errorf("generation %d (%s): checkpoint: %w", gen, state, err)
	}
	if !cfg.KeepHistory {
		if err := cfg.Layout.PruneAgents(gen, cfg.Population); err != nil {
			return GenerationSummary{}, err
		}
	}

	summary := GenerationSummary{
		Generation: gen,
		BestReward: rewards.Mean[bestIdx],
		MeanReward: mean(rewards.Mean),
	}
	if cfg.NoveltySearch {
		summary.ArchiveSize = archive.Len()
		summary.DistinctBehaviors = archive.DistinctCount()
	}
	return summary, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
