package evo

import (
	"context"
	"testing"
	"time"

	"genepool/internal/artifact"
	"genepool/internal/model"
	"genepool/internal/policy"
)

func testReproducer(layout artifact.Layout, population int) *Reproducer {
	return &Reproducer{
		Layout:              layout,
		Population:          population,
		MutationProbability: 0.5,
		MutationPower:       0.1,
		Seed:                42,
		RetryAttempts:       2,
		RetryBackoff:        time.Millisecond,
	}
}

func loadAgent(t *testing.T, layout artifact.Layout, gen, index int) *policy.Network {
	t.Helper()
	network, err := policy.Load(layout.AgentFile(gen, index))
	if err != nil {
		t.Fatalf("load agent gen%d/%d: %v", gen, index, err)
	}
	return network
}

func TestProduceZeroProbabilityCopiesParents(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	seedTestPopulation(t, layout, 4)

	r := testReproducer(layout, 4)
	r.MutationProbability = 0

	// A single breeding parent makes every child's ancestry unambiguous.
	rankings := model.Rankings{Generation: 1, ParentIndices: []int{1}}
	if err := r.Produce(1, rankings, nil); err != nil {
		t.Fatalf("produce: %v", err)
	}

	parent := loadAgent(t, layout, 1, 2)
	for slot := 1; slot <= 4; slot++ {
		child := loadAgent(t, layout, 2, slot)
		if !child.Equal(parent) {
			t.Fatalf("slot %d differs from its parent with mutation disabled", slot)
		}
	}
}

func TestProduceEliteCloneIsUnmutated(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	seedTestPopulation(t, layout, 4)

	r := testReproducer(layout, 4)
	r.MutationProbability = 1
	r.MutationPower = 0.5

	rankings := model.Rankings{Generation: 1, ParentIndices: []int{2, 0}}
	if err := r.Produce(1, rankings, nil); err != nil {
		t.Fatalf("produce: %v", err)
	}

	best := loadAgent(t, layout, 1, 3)
	elite := loadAgent(t, layout, 2, 4)
	if !elite.Equal(best) {
		t.Fatal("the last slot must carry the best agent untouched")
	}

	mutated := false
	for slot := 1; slot <= 3; slot++ {
		child := loadAgent(t, layout, 2, slot)
		if !child.Equal(loadAgent(t, layout, 1, 1)) && !child.Equal(loadAgent(t, layout, 1, 3)) {
			mutated = true
		}
	}
	if !mutated {
		t.Fatal("no child shows any mutation at probability 1")
	}
}

func TestProduceIsDeterministic(t *testing.T) {
	rankings := model.Rankings{Generation: 1, ParentIndices: []int{2, 0, 3}}

	produce := func() (artifact.Layout, *Reproducer) {
		layout := artifact.NewLayout(t.TempDir())
		seedTestPopulation(t, layout, 4)
		r := testReproducer(layout, 4)
		if err := r.Produce(1, rankings, nil); err != nil {
			t.Fatalf("produce: %v", err)
		}
		return layout, r
	}

	first, _ := produce()
	second, _ := produce()
	for slot := 1; slot <= 4; slot++ {
		a := loadAgent(t, first, 2, slot)
		b := loadAgent(t, second, 2, slot)
		if !a.Equal(b) {
			t.Fatalf("slot %d differs across identical reproductions", slot)
		}
	}
}

func TestProduceNoveltySlotsOverrideRankedParents(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	seedTestPopulation(t, layout, 3)

	// Archive a behavior owned by agent 3, distinct enough to be the top
	// novelty parent.
	archive := NewArchive()
	archive.Append(model.AgentID{Generation: 1, Index: 3}, []int{0, 1, 2}, layout.AgentFile(1, 3))
	archive.Append(model.AgentID{Generation: 1, Index: 1}, []int{3, 3, 3}, layout.AgentFile(1, 1))
	if err := archive.Refresh(context.Background(), 1, 4); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	r := testReproducer(layout, 3)
	r.MutationProbability = 0
	r.NoveltySearch = true
	r.NoveltyEvery = 1
	r.NoveltyElites = 1

	rankings := model.Rankings{Generation: 1, ParentIndices: []int{1}}
	if err := r.Produce(1, rankings, archive); err != nil {
		t.Fatalf("produce: %v", err)
	}

	topParentFile := archive.TopNovel(1)[0].PolicyPath
	wantNovel, err := policy.Load(topParentFile)
	if err != nil {
		t.Fatalf("load novelty parent: %v", err)
	}
	lastChild := loadAgent(t, layout, 2, 2)
	if !lastChild.Equal(wantNovel) {
		t.Fatal("the trailing child slot must descend from the most novel behavior")
	}
	firstChild := loadAgent(t, layout, 2, 1)
	if !firstChild.Equal(loadAgent(t, layout, 1, 2)) {
		t.Fatal("the leading child slot must descend from the ranked parent")
	}
}

func TestProduceNoveltyCadenceSkipsOffGenerations(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	seedTestPopulation(t, layout, 3)

	archive := NewArchive()
	archive.Append(model.AgentID{Generation: 1, Index: 3}, []int{0, 1, 2}, layout.AgentFile(1, 3))
	archive.Append(model.AgentID{Generation: 1, Index: 1}, []int{3, 3, 3}, layout.AgentFile(1, 1))
	if err := archive.Refresh(context.Background(), 1, 4); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	r := testReproducer(layout, 3)
	r.MutationProbability = 0
	r.NoveltySearch = true
	r.NoveltyEvery = 2
	r.NoveltyElites = 1

	rankings := model.Rankings{Generation: 1, ParentIndices: []int{1}}
	if err := r.Produce(1, rankings, archive); err != nil {
		t.Fatalf("produce: %v", err)
	}

	// Generation 1 is off-cadence for NoveltyEvery=2, so every child
	// descends from the ranked parent.
	parent := loadAgent(t, layout, 1, 2)
	for slot := 1; slot <= 2; slot++ {
		if !loadAgent(t, layout, 2, slot).Equal(parent) {
			t.Fatalf("slot %d did not descend from the ranked parent", slot)
		}
	}
}

func TestProduceRejectsEmptyRanking(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	r := testReproducer(layout, 3)
	if err := r.Produce(1, model.Rankings{Generation: 1}, nil); err == nil {
		t.Fatal("expected an error for an empty parent ranking")
	}
}
