package sim

import (
	"math"
	"testing"
)

func TestCartpoleStepBeforeResetFails(t *testing.T) {
	c := NewCartpole()
	if _, err := c.Step(Observation{}, ActionKeep, 0); err == nil {
		t.Fatal("expected an error before reset")
	}
}

func TestCartpoleDeterministicGivenSeed(t *testing.T) {
	a, b := NewCartpole(), NewCartpole()
	obsA, err := a.Reset(42)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	obsB, err := b.Reset(42)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if obsA.Vector[0] != obsB.Vector[0] {
		t.Fatalf("seeded starts differ: %v vs %v", obsA.Vector, obsB.Vector)
	}

	for step := 0; step < 20; step++ {
		resA, err := a.Step(obsA, ActionLeft, 0)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		resB, err := b.Step(obsB, ActionLeft, 0)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if resA.Reward != resB.Reward || resA.Observation.Vector[0] != resB.Observation.Vector[0] {
			t.Fatalf("step %d diverged", step)
		}
		obsA, obsB = resA.Observation, resB.Observation
	}
}

func TestCartpoleSurvivingTheEpisodeSucceeds(t *testing.T) {
	c := NewCartpole()
	obs, err := c.Reset(7)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	// A counter-steering controller keeps the cart inside the track.
	for step := 0; step < cartpoleEpisode; step++ {
		action := ActionKeep
		if obs.Vector[0] > 0.1 {
			action = ActionLeft
		} else if obs.Vector[0] < -0.1 {
			action = ActionRight
		}
		res, err := c.Step(obs, action, 0)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		obs = res.Observation
		if res.Done {
			if !res.Success {
				t.Fatalf("controller left the track at step %d, x=%v", step, obs.Vector[0])
			}
			if step != cartpoleEpisode-1 {
				t.Fatalf("episode ended early at step %d", step)
			}
			return
		}
	}
	t.Fatal("episode never ended")
}

func TestCartpoleLeavingTheTrackFails(t *testing.T) {
	c := NewCartpole()
	obs, err := c.Reset(7)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Constant full force in one direction must eventually leave the
	// bounded track.
	for step := 0; step < 500; step++ {
		res, err := c.Step(obs, ActionRight, 0)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		obs = res.Observation
		if res.Done {
			if res.Success && math.Abs(obs.Vector[0]) > cartpoleBound {
				t.Fatal("leaving the track reported success")
			}
			return
		}
	}
	t.Fatal("cart never left the track under constant force")
}

func TestResolveCartpole(t *testing.T) {
	factory, err := Resolve("cartpole")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	simulator := factory()
	if simulator.Name() != "cartpole" {
		t.Fatalf("resolved %s", simulator.Name())
	}
	if simulator.ObservationSize() != 2 || simulator.ActionSpaceSize() != ActionCount {
		t.Fatalf("unexpected io sizes: %d/%d", simulator.ObservationSize(), simulator.ActionSpaceSize())
	}
}
