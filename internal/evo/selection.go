package evo

import (
	"sort"

	"genepool/internal/model"
)

// RankRewards returns all agent indices ordered by reward descending, index
// ascending on ties. The tie-break keeps selection deterministic.
func RankRewards(rewards []float64) []int {
	indices := make([]int, len(rewards))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		if rewards[indices[a]] != rewards[indices[b]] {
			return rewards[indices[a]] > rewards[indices[b]]
		}
		return indices[a] < indices[b]
	})
	return indices
}

// SelectParents picks the top eliteCount ranked indices as breeding parents.
func SelectParents(ranked []int, eliteCount int) []int {
	if eliteCount > len(ranked) {
		eliteCount = len(ranked)
	}
	return append([]int(nil), ranked[:eliteCount]...)
}

// AssignNoveltySlots maps the trailing noveltyElites child slots (1-based,
// children occupy slots 1..population-1) to archive entries ranked by
// novelty. The slots are assigned deterministically, most novel last, so
// each selected novelty parent produces exactly one child.
func AssignNoveltySlots(archive *Archive, noveltyElites, population int) map[int]model.ArchiveEntry {
	if archive == nil || noveltyElites <= 0 {
		return nil
	}
	top := archive.TopNovel(noveltyElites)
	slots := make(map[int]model.ArchiveEntry, len(top))
	for slot := population - 1; slot >= 1; slot-- {
		remaining := population - slot
		if remaining > len(top) {
			break
		}
		slots[slot] = top[remaining-1]
	}
	return slots
}
