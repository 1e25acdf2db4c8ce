package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Wellfield is a deterministic 2-D control task on the unit square. A
// particle drifts from the left edge toward the outlet on the right while
// being pulled toward an extraction well. The agent steers the well; the
// rollout succeeds when the particle leaves through the outlet and fails
// when the well captures it first.
type Wellfield struct {
	rng *rand.Rand

	wellX, wellY         float64
	particleX, particleY float64
	drift                float64
}

const (
	wellfieldStride        = 0.05
	wellfieldDrift         = 0.04
	wellfieldMeander       = 0.005
	wellfieldPull          = 0.0005
	wellfieldInfluence     = 0.2
	wellfieldCaptureRadius = 0.08
)

func NewWellfield() *Wellfield {
	return &Wellfield{}
}

func (w *Wellfield) Name() string { return string(EnvWellfield) }

func (w *Wellfield) ObservationSize() int { return observationSizes[EnvWellfield] }

func (w *Wellfield) ActionSpaceSize() int { return ActionCount }

func (w *Wellfield) Reset(seed int64) (Observation, error) {
	w.rng = rand.New(rand.NewSource(seed))
	w.wellX = 0.5
	w.wellY = 0.5
	w.particleX = 0.0
	w.particleY = 0.2 + 0.6*w.rng.Float64()
	w.drift = wellfieldDrift
	return w.observe()
}

func (w *Wellfield) Step(_ Observation, action Action, _ float64) (StepResult, error) {
	if w.rng == nil {
		return StepResult{}, fmt.Errorf("wellfield: step before reset")
	}

	switch action {
	case ActionUp:
		w.wellY += wellfieldStride
	case ActionDown:
		w.wellY -= wellfieldStride
	case ActionLeft:
		w.wellX -= wellfieldStride
	case ActionRight:
		w.wellX += wellfieldStride
	case ActionKeep:
	default:
		return StepResult{}, fmt.Errorf("wellfield: unsupported action %d", action)
	}
	w.wellX = clamp01(w.wellX)
	w.wellY = clamp01(w.wellY)

	// Drift plus seeded meander, then the well's pull.
	w.particleX += w.drift
	w.particleY += wellfieldMeander * (w.rng.Float64()*2 - 1)
	w.particleY = clamp01(w.particleY)

	dx := w.wellX - w.particleX
	dy := w.wellY - w.particleY
	dist := math.Hypot(dx, dy)
	if dist > 1e-9 && dist < wellfieldInfluence {
		pull := wellfieldPull / (dist * dist)
		if pull > wellfieldStride {
			pull = wellfieldStride
		}
		w.particleX += pull * dx / dist
		w.particleY += pull * dy / dist
	}

	obs, err := w.observe()
	if err != nil {
		return StepResult{}, err
	}

	dist = math.Hypot(w.wellX-w.particleX, w.wellY-w.particleY)
	if dist <= wellfieldCaptureRadius {
		return StepResult{Observation: obs, Reward: 0, Done: true, Success: false}, nil
	}
	if w.particleX >= 1.0 {
		return StepResult{Observation: obs, Reward: 1.0, Done: true, Success: true}, nil
	}
	reward := math.Min(dist, 1.0)
	return StepResult{Observation: obs, Reward: reward, Done: false, Success: false}, nil
}

func (w *Wellfield) observe() (Observation, error) {
	dist := math.Hypot(w.wellX-w.particleX, w.wellY-w.particleY)
	return NewObservation(EnvWellfield, []float64{
		w.wellX,
		w.wellY,
		w.particleX,
		w.particleY,
		w.drift,
		dist,
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
