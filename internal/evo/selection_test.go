package evo

import (
	"context"
	"testing"
)

func TestRankRewardsDescending(t *testing.T) {
	ranked := RankRewards([]float64{10, 5, 20, 1})
	want := []int{2, 0, 1, 3}
	for i := range want {
		if ranked[i] != want[i] {
			t.Fatalf("ranked = %v, want %v", ranked, want)
		}
	}
}

func TestRankRewardsTieBreaksByIndex(t *testing.T) {
	ranked := RankRewards([]float64{5, 5, 5, 7})
	want := []int{3, 0, 1, 2}
	for i := range want {
		if ranked[i] != want[i] {
			t.Fatalf("ranked = %v, want %v", ranked, want)
		}
	}
}

func TestSelectParentsTakesElitePrefix(t *testing.T) {
	ranked := RankRewards([]float64{10, 5, 20, 1})
	parents := SelectParents(ranked, 2)
	if len(parents) != 2 || parents[0] != 2 || parents[1] != 0 {
		t.Fatalf("parents = %v, want [2 0]", parents)
	}

	all := SelectParents(ranked, 10)
	if len(all) != 4 {
		t.Fatalf("oversized elite count returned %d parents, want 4", len(all))
	}
}

func TestSelectParentsCopiesRanking(t *testing.T) {
	ranked := []int{3, 1, 2, 0}
	parents := SelectParents(ranked, 2)
	parents[0] = 99
	if ranked[0] != 3 {
		t.Fatalf("mutating parents changed the ranking: %v", ranked)
	}
}

func TestAssignNoveltySlotsMapsTrailingSlots(t *testing.T) {
	archive := NewArchive()
	archive.Append(agent(1, 1), []int{0, 0, 0}, "p1")
	archive.Append(agent(1, 2), []int{1, 1, 1}, "p2")
	archive.Append(agent(1, 3), []int{0, 1, 0}, "p3")
	if err := archive.Refresh(context.Background(), 1, 4); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// population 6: children occupy slots 1..5, the last 2 go to novelty.
	slots := AssignNoveltySlots(archive, 2, 6)
	if len(slots) != 2 {
		t.Fatalf("assigned %d slots, want 2", len(slots))
	}
	top := archive.TopNovel(2)
	if slots[5].ItemID != top[0].ItemID {
		t.Fatalf("last child slot got item %d, want most novel %d", slots[5].ItemID, top[0].ItemID)
	}
	if slots[4].ItemID != top[1].ItemID {
		t.Fatalf("slot 4 got item %d, want %d", slots[4].ItemID, top[1].ItemID)
	}
	if _, ok := slots[3]; ok {
		t.Fatalf("slot 3 unexpectedly assigned")
	}
}

func TestAssignNoveltySlotsCapsAtArchiveSize(t *testing.T) {
	archive := NewArchive()
	archive.Append(agent(1, 1), []int{0}, "p1")
	if err := archive.Refresh(context.Background(), 1, 4); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	slots := AssignNoveltySlots(archive, 3, 4)
	if len(slots) != 1 {
		t.Fatalf("assigned %d slots from a 1-entry archive, want 1", len(slots))
	}
	if entry, ok := slots[3]; !ok || entry.ItemID != 0 {
		t.Fatalf("expected sole entry in last child slot, got %v", slots)
	}
}

func TestAssignNoveltySlotsNilArchive(t *testing.T) {
	if slots := AssignNoveltySlots(nil, 2, 4); slots != nil {
		t.Fatalf("nil archive produced slots %v", slots)
	}
}
