package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	api "genepool/pkg/genepool"
)

func loadOrDefaultRunRequest(path string) (api.RunRequest, error) {
	if path == "" {
		return api.RunRequest{}, nil
	}
	return loadRunRequestFromConfig(path)
}

func loadRunRequestFromConfig(path string) (api.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return api.RunRequest{}, fmt.Errorf("parse run config %s: %w", path, err)
	}

	var req api.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["environment"]); ok {
		req.Environment = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["games"]); ok {
		req.Games = v
	}
	if v, ok := asInt(raw["max_steps"]); ok {
		req.MaxSteps = v
	}
	if v, ok := asIntSlice(raw["hidden"]); ok {
		req.Hidden = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt(raw["tasks_per_worker"]); ok {
		req.TasksPerWorker = v
	}
	if v, ok := asBool(raw["novelty_search"]); ok {
		req.NoveltySearch = v
	}
	if v, ok := asInt(raw["novelty_elites"]); ok {
		req.NoveltyElites = v
	}
	if v, ok := asInt(raw["novelty_every"]); ok {
		req.NoveltyEvery = v
	}
	if v, ok := asBool(raw["keep_history"]); ok {
		req.KeepHistory = v
	}
	if v, ok := asFloat64(raw["mutation_probability"]); ok {
		req.MutationProbability = v
	}
	if v, ok := asFloat64(raw["mutation_power"]); ok {
		req.MutationPower = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt64(raw["env_seed"]); ok {
		req.EnvSeed = v
	}
	if v, ok := asInt64(raw["agent_seed"]); ok {
		req.AgentSeed = v
	}
	return req, nil
}

func parseHidden(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		size, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid hidden layer spec %q", spec)
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat64(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asInt64(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func asIntSlice(v any) ([]int, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	sizes := make([]int, 0, len(raw))
	for _, item := range raw {
		size, ok := asInt(item)
		if !ok {
			return nil, false
		}
		sizes = append(sizes, size)
	}
	return sizes, true
}
