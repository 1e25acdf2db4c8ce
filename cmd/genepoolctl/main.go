package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"genepool/internal/evo"
	"genepool/internal/storage"
	api "genepool/pkg/genepool"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "resume":
		return runResume(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "archive":
		return runArchive(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: genepoolctl <run|resume|runs|fitness|archive> [flags]", msg)
}

func addClientFlags(fs *flag.FlagSet) (storeKind, dbPath, runsDir *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "genepool.db", "sqlite database path")
	runsDir = fs.String("runs-dir", "runs", "directory holding per-run artifacts")
	return storeKind, dbPath, runsDir
}

func newClient(ctx context.Context, storeKind, dbPath, runsDir string) (*api.Client, error) {
	client, err := api.New(api.Options{StoreKind: storeKind, DBPath: dbPath, RunsDir: runsDir})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	environment := fs.String("env", "wellfield", "environment name")
	population := fs.Int("pop", 50, "population size")
	eliteCount := fs.Int("elites", 0, "breeding elite count (0 derives from population)")
	generations := fs.Int("gens", 100, "generation count")
	games := fs.Int("games", 3, "games averaged per agent")
	maxSteps := fs.Int("max-steps", 200, "step budget per rollout")
	hidden := fs.String("hidden", "16", "comma-separated hidden layer widths")
	workers := fs.Int("workers", 4, "worker count")
	tasksPerWorker := fs.Int("tasks-per-worker", 4, "queued rollouts per worker per chunk")
	novelty := fs.Bool("novelty", false, "enable novelty search")
	noveltyElites := fs.Int("novelty-elites", 0, "novelty parent count (0 derives from population)")
	noveltyEvery := fs.Int("novelty-every", 1, "novelty parenting cadence in generations")
	keepHistory := fs.Bool("keep-history", false, "retain per-generation policy artifacts")
	mutationProb := fs.Float64("mutation-prob", 0.3, "per-tensor mutation probability")
	mutationPower := fs.Float64("mutation-power", 0.02, "mutation noise magnitude")
	seed := fs.Int64("seed", 1, "run seed")
	envSeed := fs.Int64("env-seed", 0, "environment seed base (0 uses run seed)")
	agentSeed := fs.Int64("agent-seed", 0, "initial population seed base (0 uses run seed+1)")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	storeKind, dbPath, runsDir := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		hiddenSizes, err := parseHidden(*hidden)
		if err != nil {
			return err
		}
		req = api.RunRequest{
			Environment:         *environment,
			Population:          *population,
			EliteCount:          *eliteCount,
			Generations:         *generations,
			Games:               *games,
			MaxSteps:            *maxSteps,
			Hidden:              hiddenSizes,
			Workers:             *workers,
			TasksPerWorker:      *tasksPerWorker,
			NoveltySearch:       *novelty,
			NoveltyElites:       *noveltyElites,
			NoveltyEvery:        *noveltyEvery,
			KeepHistory:         *keepHistory,
			MutationProbability: *mutationProb,
			MutationPower:       *mutationPower,
			Seed:                *seed,
			EnvSeed:             *envSeed,
			AgentSeed:           *agentSeed,
		}
	}
	if *runID != "" {
		req.RunID = *runID
	}
	if !*quiet {
		attachObservers(&req)
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *runsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	printRunSummary(summary, time.Since(started))
	return nil
}

func runResume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to resume (required)")
	workers := fs.Int("workers", 4, "worker count")
	tasksPerWorker := fs.Int("tasks-per-worker", 4, "queued rollouts per worker per chunk")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	storeKind, dbPath, runsDir := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("resume requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *runsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := api.ResumeRequest{RunID: *runID, Workers: *workers, TasksPerWorker: *tasksPerWorker}
	if !*quiet {
		req.OnGeneration = printGeneration
		req.Progress = printProgress
	}

	started := time.Now()
	summary, err := client.Resume(ctx, req)
	if err != nil {
		return err
	}
	printRunSummary(summary, time.Since(started))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath, runsDir := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *runsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.Runs(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, record := range records {
		fmt.Printf("%s  env=%s pop=%d gens=%d seed=%d novelty=%v created=%s\n",
			record.ID, record.Environment, record.Population, record.Generations,
			record.Seed, record.NoveltySearch, record.CreatedAtUTC)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (required)")
	storeKind, dbPath, runsDir := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("fitness requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *runsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, *runID)
	if err != nil {
		return err
	}
	for _, row := range history {
		fmt.Printf("gen %4d  best=%.4f mean=%.4f\n", row.Generation, row.BestReward, row.MeanReward)
	}
	return nil
}

func runArchive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (required)")
	storeKind, dbPath, runsDir := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("archive requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *runsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sizes, err := client.ArchiveSizes(ctx, *runID)
	if err != nil {
		return err
	}
	for i, size := range sizes {
		fmt.Printf("gen %4d  archive=%s\n", i+1, humanize.Comma(int64(size)))
	}
	return nil
}

func attachObservers(req *api.RunRequest) {
	req.OnGeneration = printGeneration
	req.Progress = printProgress
}

func printGeneration(s evo.GenerationSummary) {
	line := fmt.Sprintf("gen %4d  best=%.4f mean=%.4f elapsed=%s",
		s.Generation, s.BestReward, s.MeanReward, s.Elapsed.Round(time.Millisecond))
	if s.ArchiveSize > 0 {
		line += fmt.Sprintf(" archive=%s distinct=%s",
			humanize.Comma(int64(s.ArchiveSize)), humanize.Comma(int64(s.DistinctBehaviors)))
	}
	if s.Resumed {
		line += " (resumed)"
	}
	fmt.Println(line)
}

func printProgress(done, total int) {
	fmt.Printf("\revaluated %s/%s rollouts", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
	if done == total {
		fmt.Println()
	}
}

func printRunSummary(summary api.RunSummary, elapsed time.Duration) {
	fmt.Printf("run %s finished: %d generations, final best %.4f in %s\n",
		summary.RunID, len(summary.BestByGeneration), summary.FinalBest, elapsed.Round(time.Millisecond))
	fmt.Printf("artifacts: %s\n", summary.RunDir)
}
