package evo

import (
	"context"
	"fmt"
	"math"

	"github.com/sourcegraph/conc/pool"

	"genepool/internal/artifact"
	"genepool/internal/model"
	"genepool/internal/policy"
	"genepool/internal/sim"
)

// Rewards carries the per-agent aggregates over the averaged games,
// index-aligned with the submitted population ordering.
type Rewards struct {
	Mean []float64
	Min  []float64
	Max  []float64
}

// Evaluator runs rollouts for a whole generation across the worker pool.
// Work is split into chunks of workers*tasksPerWorker rollouts; each chunk
// is fully drained before the next is submitted.
type Evaluator struct {
	Layout         artifact.Layout
	SimFactory     sim.Factory
	Workers        int
	TasksPerWorker int
	Games          int
	MaxSteps       int
	EnvSeed        int64

	// Progress, when set, is called after each drained chunk.
	Progress func(doneRollouts, totalRollouts int)
}

// EvaluateGeneration produces each agent's reward as the mean of Games
// independent rollouts. Rollout g of every agent uses seed EnvSeed+g, the
// run's cross-validation seed convention.
func (e *Evaluator) EvaluateGeneration(ctx context.Context, generation, population int) (Rewards, error) {
	rewards := Rewards{
		Mean: make([]float64, population),
		Min:  make([]float64, population),
		Max:  make([]float64, population),
	}
	for i := 0; i < population; i++ {
		rewards.Min[i] = math.Inf(1)
		rewards.Max[i] = math.Inf(-1)
	}

	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	chunkSize := workers * e.TasksPerWorker
	totalRollouts := population * e.Games
	doneRollouts := 0

	for game := 1; game <= e.Games; game++ {
		perGame := make([]float64, population)
		var firstErr error

		for _, chunk := range chunkIndices(population, chunkSize) {
			if err := ctx.Err(); err != nil {
				return Rewards{}, err
			}
			p := pool.New().WithMaxGoroutines(workers)
			errs := make([]error, len(chunk))
			for ci, agentIdx := range chunk {
				ci, agentIdx := ci, agentIdx
				p.Go(func() {
					reward, err := e.rollout(generation, agentIdx+1, game)
					if err != nil {
						errs[ci] = err
						return
					}
					perGame[agentIdx] = reward
				})
			}
			p.Wait()
			for _, err := range errs {
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			if firstErr != nil {
				return Rewards{}, firstErr
			}
			doneRollouts += len(chunk)
			if e.Progress != nil {
				e.Progress(doneRollouts, totalRollouts)
			}
		}

		for i := 0; i < population; i++ {
			rewards.Mean[i] += perGame[i]
			rewards.Min[i] = math.Min(rewards.Min[i], perGame[i])
			rewards.Max[i] = math.Max(rewards.Max[i], perGame[i])
		}
	}

	for i := 0; i < population; i++ {
		rewards.Mean[i] /= float64(e.Games)
	}
	return rewards, nil
}

// rollout plays one game for one agent and persists the accumulated results
// blob. Agent indices are 1-based. A simulator fault abandons this single
// rollout with reward 0 and never fails the chunk; a missing or unreadable
// policy artifact is a real error.
func (e *Evaluator) rollout(generation, agentIndex, game int) (float64, error) {
	network, err := policy.Load(e.Layout.AgentFile(generation, agentIndex))
	if err != nil {
		return 0, fmt.Errorf("evaluate agent %d of generation %d: %w", agentIndex, generation, err)
	}

	agentID := model.AgentID{Generation: generation, Index: agentIndex}
	result := model.RolloutResult{AgentID: agentID}
	if game == 1 {
		result.Actions = make([][]int, e.Games)
		result.Rewards = make([][]float64, e.Games)
		result.Traces = make([][]float64, e.Games)
		for g := 0; g < e.Games; g++ {
			result.Actions[g] = []int{}
			result.Rewards[g] = []float64{}
		}
	} else {
		result, err = artifact.LoadResults(e.Layout, generation, agentIndex)
		if err != nil {
			return 0, fmt.Errorf("reload results of agent %d: %w", agentIndex, err)
		}
	}

	reward, actions, stepRewards, trace := e.playGame(network, game)
	result.Actions[game-1] = actions
	result.Rewards[game-1] = stepRewards
	result.Traces[game-1] = trace
	if err := artifact.SaveResults(e.Layout, result); err != nil {
		return 0, fmt.Errorf("persist results of agent %d: %w", agentIndex, err)
	}
	return reward, nil
}

// playGame runs a single rollout to completion or MaxSteps. A rollout that
// does not reach the success condition contributes reward 0, overriding any
// partial reward it accumulated.
func (e *Evaluator) playGame(network *policy.Network, game int) (float64, []int, []float64, []float64) {
	simulator := e.SimFactory()
	obs, err := simulator.Reset(e.EnvSeed + int64(game))
	actions := []int{}
	stepRewards := []float64{}
	if err != nil {
		return 0, actions, stepRewards, nil
	}

	cumulative := 0.0
	success := false
	for step := 0; step < e.MaxSteps; step++ {
		actionIdx, err := network.Predict(obs.Vector)
		if err != nil {
			return 0, actions, stepRewards, obs.Vector
		}
		res, err := simulator.Step(obs, sim.Action(actionIdx), cumulative)
		if err != nil {
			// Fatal environment fault: abandon this rollout only.
			return 0, actions, stepRewards, obs.Vector
		}
		actions = append(actions, actionIdx)
		stepRewards = append(stepRewards, res.Reward)
		cumulative += res.Reward
		obs = res.Observation
		if res.Done {
			success = res.Success
			break
		}
	}

	if !success {
		return 0, actions, stepRewards, obs.Vector
	}
	return cumulative, actions, stepRewards, obs.Vector
}
