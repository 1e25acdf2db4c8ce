// Package artifact owns the on-disk layout of a run: per-generation
// directories of per-agent policy and results files, the rankings and
// novelty-archive blobs, and the best-agent checkpoint marker.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves the file paths of one run's artifact namespace. Generation
// and agent indices are 1-based and zero-padded so lexical order matches
// numeric order.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) RunFile() string {
	return filepath.Join(l.Root, "run.json")
}

func (l Layout) GenDir(generation int) string {
	return filepath.Join(l.Root, fmt.Sprintf("gen%04d", generation))
}

func (l Layout) AgentFile(generation, index int) string {
	return filepath.Join(l.GenDir(generation), fmt.Sprintf("agent%04d.json", index))
}

func (l Layout) ResultsFile(generation, index int) string {
	return filepath.Join(l.GenDir(generation), fmt.Sprintf("agent%04d.results.json", index))
}

func (l Layout) BestFile(generation int) string {
	return filepath.Join(l.GenDir(generation), "best.json")
}

func (l Layout) RankingsFile(generation int) string {
	return filepath.Join(l.GenDir(generation), "rankings.json")
}

func (l Layout) ArchiveFile(generation int) string {
	return filepath.Join(l.GenDir(generation), "archive.json")
}

// EnsureGenDir creates the generation directory if needed.
func (l Layout) EnsureGenDir(generation int) error {
	return os.MkdirAll(l.GenDir(generation), 0o755)
}

// HasBest reports whether the generation's best-agent checkpoint exists. Its
// presence is the sole signal that the generation completed.
func (l Layout) HasBest(generation int) bool {
	_, err := os.Stat(l.BestFile(generation))
	return err == nil
}

// HasRankings reports whether the generation's rankings blob exists.
func (l Layout) HasRankings(generation int) bool {
	_, err := os.Stat(l.RankingsFile(generation))
	return err == nil
}

// HasAgent reports whether one agent's policy artifact exists.
func (l Layout) HasAgent(generation, index int) bool {
	_, err := os.Stat(l.AgentFile(generation, index))
	return err == nil
}

// PruneAgents removes the generation's per-agent policy blobs. Results,
// rankings and archive blobs stay untouched.
func (l Layout) PruneAgents(generation, population int) error {
	for index := 1; index <= population; index++ {
		if err := os.Remove(l.AgentFile(generation, index)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune agent %d of generation %d: %w", index, generation, err)
		}
	}
	return nil
}
