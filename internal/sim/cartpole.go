package sim

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	cartpoleDT       = 0.1
	cartpoleKPos     = 0.45
	cartpoleKVel     = 0.15
	cartpoleForceK   = 1.25
	cartpoleMaxForce = 1.0
	cartpoleBound    = 2.0
	cartpoleEpisode  = 60
)

// Cartpole is a 1-D balancing control task: the agent applies a bounded
// force to keep the cart near the origin. Surviving the full episode is
// success; leaving the track is failure.
type Cartpole struct {
	x, v  float64
	step  int
	ready bool
}

func NewCartpole() *Cartpole {
	return &Cartpole{}
}

func (c *Cartpole) Name() string         { return "cartpole" }
func (c *Cartpole) ObservationSize() int { return 2 }
func (c *Cartpole) ActionSpaceSize() int { return ActionCount }

func (c *Cartpole) Reset(seed int64) (Observation, error) {
	rng := rand.New(rand.NewSource(seed))
	c.x = -1.0 + 2.0*rng.Float64()
	c.v = 0
	c.step = 0
	c.ready = true
	return c.observe()
}

func (c *Cartpole) Step(_ Observation, action Action, _ float64) (StepResult, error) {
	if !c.ready {
		return StepResult{}, fmt.Errorf("cartpole: step before reset")
	}

	force := forceOf(action)
	acc := cartpoleForceK*force - cartpoleKPos*c.x - cartpoleKVel*c.v
	c.v += acc * cartpoleDT
	c.x += c.v * cartpoleDT
	c.step++

	obs, err := c.observe()
	if err != nil {
		return StepResult{}, err
	}

	if math.Abs(c.x) > cartpoleBound {
		return StepResult{Observation: obs, Reward: 0, Done: true, Success: false}, nil
	}
	reward := 1.0 - math.Min(1.0, math.Abs(c.x)/cartpoleBound)
	if c.step >= cartpoleEpisode {
		return StepResult{Observation: obs, Reward: reward, Done: true, Success: true}, nil
	}
	return StepResult{Observation: obs, Reward: reward, Done: false, Success: false}, nil
}

func (c *Cartpole) observe() (Observation, error) {
	return NewObservation(EnvCartpole, []float64{c.x, c.v})
}

// forceOf maps the discrete action set onto the bounded force axis.
func forceOf(action Action) float64 {
	switch action {
	case ActionLeft:
		return -cartpoleMaxForce
	case ActionRight:
		return cartpoleMaxForce
	case ActionDown:
		return -cartpoleMaxForce / 2
	case ActionUp:
		return cartpoleMaxForce / 2
	default:
		return 0
	}
}
