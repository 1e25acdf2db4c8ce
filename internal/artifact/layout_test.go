package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"genepool/internal/model"
	"genepool/internal/policy"
)

func TestLayoutPathsAreZeroPadded(t *testing.T) {
	l := NewLayout("/runs/demo")
	if got := l.AgentFile(3, 12); got != filepath.Join("/runs/demo", "gen0003", "agent0012.json") {
		t.Fatalf("unexpected agent path: %s", got)
	}
	if got := l.ResultsFile(3, 12); !strings.HasSuffix(got, "agent0012.results.json") {
		t.Fatalf("unexpected results path: %s", got)
	}
	if got := l.BestFile(10); got != filepath.Join("/runs/demo", "gen0010", "best.json") {
		t.Fatalf("unexpected best path: %s", got)
	}
}

func TestRankingsRoundTrip(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.EnsureGenDir(2); err != nil {
		t.Fatalf("ensure gen dir: %v", err)
	}

	in := model.Rankings{
		Generation:    2,
		ParentIndices: []int{2, 0},
		MeanRewards:   []float64{10, 5, 20, 1},
		MinRewards:    []float64{8, 5, 15, 0},
		MaxRewards:    []float64{12, 5, 25, 2},
	}
	if err := SaveRankings(l, in); err != nil {
		t.Fatalf("save rankings: %v", err)
	}
	out, err := LoadRankings(l, 2)
	if err != nil {
		t.Fatalf("load rankings: %v", err)
	}
	if out.Generation != 2 || len(out.ParentIndices) != 2 || out.ParentIndices[0] != 2 {
		t.Fatalf("unexpected rankings: %+v", out)
	}
	if out.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("rankings missing version stamp: %+v", out.VersionedRecord)
	}
}

func TestLoadRankingsRejectsVersionMismatch(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.EnsureGenDir(1); err != nil {
		t.Fatalf("ensure gen dir: %v", err)
	}
	if err := os.WriteFile(l.RankingsFile(1), []byte(`{"schema_version":99,"codec_version":1,"generation":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRankings(l, 1); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestHasBestSignalsCompletion(t *testing.T) {
	l := NewLayout(t.TempDir())
	if l.HasBest(1) {
		t.Fatal("best artifact should not exist yet")
	}
	if err := l.EnsureGenDir(1); err != nil {
		t.Fatalf("ensure gen dir: %v", err)
	}
	if err := os.WriteFile(l.BestFile(1), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write best: %v", err)
	}
	if !l.HasBest(1) {
		t.Fatal("best artifact not detected")
	}
}

func TestPruneAgentsKeepsResultsAndBest(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.EnsureGenDir(1); err != nil {
		t.Fatalf("ensure gen dir: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := os.WriteFile(l.AgentFile(1, i), []byte(`{}`), 0o644); err != nil {
			t.Fatalf("write agent: %v", err)
		}
	}
	if err := SaveResults(l, model.RolloutResult{AgentID: model.AgentID{Generation: 1, Index: 2}}); err != nil {
		t.Fatalf("save results: %v", err)
	}
	if err := os.WriteFile(l.BestFile(1), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write best: %v", err)
	}

	if err := l.PruneAgents(1, 3); err != nil {
		t.Fatalf("prune: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if l.HasAgent(1, i) {
			t.Fatalf("agent %d survived pruning", i)
		}
	}
	if _, err := LoadResults(l, 1, 2); err != nil {
		t.Fatalf("results blob must survive pruning: %v", err)
	}
	if !l.HasBest(1) {
		t.Fatal("best artifact must survive pruning")
	}
	// A second prune over already-removed files is a no-op.
	if err := l.PruneAgents(1, 3); err != nil {
		t.Fatalf("idempotent prune: %v", err)
	}
}

func TestLoadPolicyWithRetryBounded(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "agent0001.json")
	start := time.Now()
	_, err := LoadPolicyWithRetry(missing, 3, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected at least two backoff sleeps, elapsed %v", elapsed)
	}
}

func TestLoadPolicyWithRetrySucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent0001.json")
	network, err := policy.NewRandom([]int{2, 3}, 1)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	if err := network.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadPolicyWithRetry(path, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("load with retry: %v", err)
	}
	if !network.Equal(loaded) {
		t.Fatal("loaded policy differs")
	}
}
