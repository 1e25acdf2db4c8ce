package model

import "fmt"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// AgentID identifies one candidate policy by the generation that created it
// and its slot index within that generation. Both are 1-based.
type AgentID struct {
	Generation int `json:"generation"`
	Index      int `json:"index"`
}

func (id AgentID) String() string {
	return fmt.Sprintf("gen%04d/agent%04d", id.Generation, id.Index)
}

// RolloutResult accumulates the outcomes of one agent's rollouts, one entry
// per averaged game. It is consumed by novelty scoring and kept on disk so an
// interrupted run can resume without re-simulating.
type RolloutResult struct {
	VersionedRecord
	AgentID AgentID     `json:"agent_id"`
	Actions [][]int     `json:"actions"`
	Rewards [][]float64 `json:"rewards"`
	Traces  [][]float64 `json:"traces"`
}

// FlatActions concatenates the per-game action sequences into the single
// behavior sequence used for signatures and novelty.
func (r RolloutResult) FlatActions() []int {
	total := 0
	for _, seq := range r.Actions {
		total += len(seq)
	}
	flat := make([]int, 0, total)
	for _, seq := range r.Actions {
		flat = append(flat, seq...)
	}
	return flat
}

// ArchiveEntry is one append-only novelty archive item. ItemID increases
// monotonically across the whole run, independent of generation.
type ArchiveEntry struct {
	ItemID      int     `json:"item_id"`
	AgentID     AgentID `json:"agent_id"`
	SignatureID int     `json:"signature_id"`
	Actions     []int   `json:"actions"`
	Novelty     float64 `json:"novelty"`
	PolicyPath  string  `json:"policy_path"`
}

// Rankings is the per-generation selection record: the elite parent indices
// in breeding order plus the aggregate reward vectors they were derived from.
type Rankings struct {
	VersionedRecord
	Generation    int       `json:"generation"`
	ParentIndices []int     `json:"parent_indices"`
	MeanRewards   []float64 `json:"mean_rewards"`
	MinRewards    []float64 `json:"min_rewards"`
	MaxRewards    []float64 `json:"max_rewards"`
}

// GenerationRewards summarizes one completed generation for the run-history
// store.
type GenerationRewards struct {
	Generation  int     `json:"generation"`
	BestReward  float64 `json:"best_reward"`
	MeanReward  float64 `json:"mean_reward"`
	ArchiveSize int     `json:"archive_size"`
}

// RunRecord describes a run for the run-history store and the on-disk
// run.json metadata file. It carries every parameter that influences the
// run's outcome, so a resume reconstructs the exact original configuration.
type RunRecord struct {
	VersionedRecord
	ID                  string  `json:"id"`
	Environment         string  `json:"environment"`
	CreatedAtUTC        string  `json:"created_at_utc"`
	Population          int     `json:"population"`
	EliteCount          int     `json:"elite_count"`
	Generations         int     `json:"generations"`
	Games               int     `json:"games"`
	MaxSteps            int     `json:"max_steps"`
	Hidden              []int   `json:"hidden"`
	NoveltySearch       bool    `json:"novelty_search"`
	NoveltyElites       int     `json:"novelty_elites"`
	NoveltyEvery        int     `json:"novelty_every"`
	KeepHistory         bool    `json:"keep_history"`
	MutationProbability float64 `json:"mutation_probability"`
	MutationPower       float64 `json:"mutation_power"`
	Seed                int64   `json:"seed"`
	EnvSeed             int64   `json:"env_seed"`
	AgentSeed           int64   `json:"agent_seed"`
}
