package evo

import (
	"fmt"
	"math/rand"
	"time"

	"genepool/internal/artifact"
	"genepool/internal/model"
)

// Reproducer produces generation g+1 from generation g's rankings: slots
// 1..N-1 are mutated children, slot N is the untouched clone of the best
// agent, guaranteeing the best-known reward never degrades. Reproduction is
// fully deterministic given the run seed, the generation and the persisted
// rankings, so the resume path can replay it without re-simulating.
type Reproducer struct {
	Layout              artifact.Layout
	Population          int
	NoveltyElites       int
	NoveltyEvery        int
	NoveltySearch       bool
	MutationProbability float64
	MutationPower       float64
	Seed                int64
	RetryAttempts       int
	RetryBackoff        time.Duration
}

// Produce writes generation+1's agents from the given rankings and archive.
func (r *Reproducer) Produce(generation int, rankings model.Rankings, archive *Archive) error {
	if len(rankings.ParentIndices) == 0 {
		return fmt.Errorf("reproduce generation %d: empty parent ranking", generation)
	}
	if err := r.Layout.EnsureGenDir(generation + 1); err != nil {
		return err
	}

	var noveltySlots map[int]model.ArchiveEntry
	if r.NoveltySearch && r.NoveltyEvery > 0 && generation%r.NoveltyEvery == 0 {
		noveltySlots = AssignNoveltySlots(archive, r.NoveltyElites, r.Population)
	}

	for slot := 1; slot <= r.Population-1; slot++ {
		rng := rand.New(rand.NewSource(childSeed(r.Seed, generation, slot)))

		parentPath := ""
		if entry, ok := noveltySlots[slot]; ok {
			parentPath = entry.PolicyPath
		} else {
			parentIdx := rankings.ParentIndices[rng.Intn(len(rankings.ParentIndices))]
			parentPath = r.Layout.AgentFile(generation, parentIdx+1)
		}

		parent, err := artifact.LoadPolicyWithRetry(parentPath, r.RetryAttempts, r.RetryBackoff)
		if err != nil {
			return fmt.Errorf("reproduce generation %d slot %d: %w", generation, slot, err)
		}
		child := parent.Clone()
		child.Mutate(rng, r.MutationProbability, r.MutationPower)
		if err := child.Save(r.Layout.AgentFile(generation+1, slot)); err != nil {
			return fmt.Errorf("save child %d of generation %d: %w", slot, generation+1, err)
		}
	}

	// Elite carry-over: the best-reward agent propagates unmutated.
	bestIdx := rankings.ParentIndices[0]
	best, err := artifact.LoadPolicyWithRetry(r.Layout.AgentFile(generation, bestIdx+1), r.RetryAttempts, r.RetryBackoff)
	if err != nil {
		return fmt.Errorf("reproduce generation %d elite clone: %w", generation, err)
	}
	if err := best.Save(r.Layout.AgentFile(generation+1, r.Population)); err != nil {
		return fmt.Errorf("save elite clone of generation %d: %w", generation+1, err)
	}
	return nil
}

// childSeed derives an independent deterministic seed per child slot.
func childSeed(seed int64, generation, slot int) int64 {
	h := uint64(seed)
	h ^= uint64(generation) * 0x9e3779b97f4a7c15
	h ^= uint64(slot) * 0xbf58476d1ce4e5b9
	h ^= h >> 31
	return int64(h)
}
