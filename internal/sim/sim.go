package sim

import "fmt"

// Action is the discrete control applied per timestep.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	ActionKeep

	ActionCount = 5
)

// EnvKind tags the fixed observation schema of an environment variant.
type EnvKind string

const (
	EnvWellfield EnvKind = "wellfield"
	EnvCartpole  EnvKind = "cartpole"
)

var observationSizes = map[EnvKind]int{
	EnvWellfield: 6,
	EnvCartpole:  2,
}

// Observation is a fixed-schema observation value, validated at
// construction against its environment variant.
type Observation struct {
	Kind   EnvKind   `json:"kind"`
	Vector []float64 `json:"vector"`
}

// NewObservation validates the vector length for the given variant.
func NewObservation(kind EnvKind, vector []float64) (Observation, error) {
	want, ok := observationSizes[kind]
	if ok && len(vector) != want {
		return Observation{}, fmt.Errorf("observation size mismatch for %s: got=%d want=%d", kind, len(vector), want)
	}
	return Observation{Kind: kind, Vector: vector}, nil
}

// StepResult is the outcome of advancing the environment by one timestep.
// Done with Success false marks a full-rollout failure.
type StepResult struct {
	Observation Observation
	Reward      float64
	Done        bool
	Success     bool
}

// Simulator advances an opaque environment for one agent rollout. Workers
// each own an independent instance, so implementations need no locking.
type Simulator interface {
	Name() string
	Reset(seed int64) (Observation, error)
	Step(observation Observation, action Action, cumulativeReward float64) (StepResult, error)
	ObservationSize() int
	ActionSpaceSize() int
}

// Factory builds a fresh Simulator instance per rollout.
type Factory func() Simulator

// Resolve maps an environment name to its factory.
func Resolve(name string) (Factory, error) {
	switch name {
	case "", "wellfield":
		return func() Simulator { return NewWellfield() }, nil
	case "cartpole":
		return func() Simulator { return NewCartpole() }, nil
	default:
		return nil, fmt.Errorf("unsupported environment: %s", name)
	}
}
