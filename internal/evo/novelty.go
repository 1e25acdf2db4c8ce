package evo

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"genepool/internal/model"
)

// Archive is the append-only novelty archive for one run. Entries are keyed
// by a monotonically increasing item index independent of generation and are
// never overwritten or deleted.
type Archive struct {
	entries  []model.ArchiveEntry
	registry *SignatureRegistry

	// representative item index per signature, in first-seen order
	representatives []int
	bySignature     map[int]int
}

func NewArchive() *Archive {
	return &Archive{
		registry:    NewSignatureRegistry(),
		bySignature: make(map[int]int),
	}
}

// RestoreArchive rebuilds an archive from a persisted snapshot, re-deriving
// the signature registry and the unique/duplicate split.
func RestoreArchive(entries []model.ArchiveEntry) *Archive {
	a := NewArchive()
	for _, entry := range entries {
		a.Append(entry.AgentID, entry.Actions, entry.PolicyPath)
		a.entries[len(a.entries)-1].Novelty = entry.Novelty
	}
	return a
}

// Append records one behavior and returns its item index. Behaviors
// structurally identical to an archived one share its signature.
func (a *Archive) Append(agentID model.AgentID, actions []int, policyPath string) int {
	itemID := len(a.entries)
	signatureID := a.registry.Signature(actions)
	if _, seen := a.bySignature[signatureID]; !seen {
		a.bySignature[signatureID] = itemID
		a.representatives = append(a.representatives, itemID)
	}
	a.entries = append(a.entries, model.ArchiveEntry{
		ItemID:      itemID,
		AgentID:     agentID,
		SignatureID: signatureID,
		Actions:     actions,
		PolicyPath:  policyPath,
	})
	return itemID
}

func (a *Archive) Len() int { return len(a.entries) }

// DistinctCount is the number of distinct behaviors archived.
func (a *Archive) DistinctCount() int { return len(a.representatives) }

// Entries returns a copy of the archive contents in item order.
func (a *Archive) Entries() []model.ArchiveEntry {
	return append([]model.ArchiveEntry(nil), a.entries...)
}

// Refresh recomputes every entry's novelty: for each distinct behavior, the
// mean pairwise distance to all other distinct behaviors (self excluded);
// duplicates inherit their representative's score. This full recomputation
// dominates the engine's cost and runs on the shared worker pool in
// size-bounded chunks.
func (a *Archive) Refresh(ctx context.Context, workers, tasksPerWorker int) error {
	if workers <= 0 {
		workers = 1
	}
	reps := a.representatives
	novelties := make([]float64, len(reps))

	chunkSize := workers * tasksPerWorker
	for _, chunk := range chunkIndices(len(reps), chunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := pool.New().WithMaxGoroutines(workers)
		for _, ri := range chunk {
			ri := ri
			p.Go(func() {
				novelties[ri] = a.noveltyOfRepresentative(ri)
			})
		}
		p.Wait()
	}

	noveltyBySignature := make(map[int]float64, len(reps))
	for ri, itemID := range reps {
		noveltyBySignature[a.entries[itemID].SignatureID] = novelties[ri]
	}
	for i := range a.entries {
		a.entries[i].Novelty = noveltyBySignature[a.entries[i].SignatureID]
	}
	return nil
}

func (a *Archive) noveltyOfRepresentative(ri int) float64 {
	if len(a.representatives) < 2 {
		return 0
	}
	own := a.entries[a.representatives[ri]].Actions
	total := 0.0
	for rj, itemID := range a.representatives {
		if rj == ri {
			continue
		}
		total += Distance(own, a.entries[itemID].Actions)
	}
	return total / float64(len(a.representatives)-1)
}

// TopNovel returns up to n entries ranked by novelty descending, item index
// ascending on ties.
func (a *Archive) TopNovel(n int) []model.ArchiveEntry {
	sorted := a.Entries()
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Novelty != sorted[j].Novelty {
			return sorted[i].Novelty > sorted[j].Novelty
		}
		return sorted[i].ItemID < sorted[j].ItemID
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Distance is the positional-mismatch metric between two action sequences:
// over the shorter length m, (m - matches) / m. Identical content scores 0,
// fully mismatched positions score 1. Length difference is not penalized,
// so this is not a normalized edit distance.
func Distance(a, b []int) float64 {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if len(shorter) == 0 {
		return 0
	}
	matches := 0
	for i := range shorter {
		if shorter[i] == longer[i] {
			matches++
		}
	}
	return float64(len(shorter)-matches) / float64(len(shorter))
}
