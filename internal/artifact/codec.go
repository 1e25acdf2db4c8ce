package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"genepool/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// ErrMissingHistory is returned when resuming needs per-agent artifacts that
// were pruned because the run kept no model history.
var ErrMissingHistory = errors.New("resume requires retained model history")

func stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func SaveRun(l Layout, record model.RunRecord) error {
	record.VersionedRecord = stamp()
	return writeJSON(l.RunFile(), record)
}

func LoadRun(l Layout) (model.RunRecord, error) {
	var record model.RunRecord
	if err := readJSON(l.RunFile(), &record); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("run record %s: %w", l.RunFile(), err)
	}
	return record, nil
}

func SaveRankings(l Layout, rankings model.Rankings) error {
	rankings.VersionedRecord = stamp()
	return writeJSON(l.RankingsFile(rankings.Generation), rankings)
}

func LoadRankings(l Layout, generation int) (model.Rankings, error) {
	var rankings model.Rankings
	if err := readJSON(l.RankingsFile(generation), &rankings); err != nil {
		return model.Rankings{}, err
	}
	if err := checkVersion(rankings.VersionedRecord); err != nil {
		return model.Rankings{}, fmt.Errorf("rankings of generation %d: %w", generation, err)
	}
	return rankings, nil
}

func SaveResults(l Layout, result model.RolloutResult) error {
	result.VersionedRecord = stamp()
	return writeJSON(l.ResultsFile(result.AgentID.Generation, result.AgentID.Index), result)
}

func LoadResults(l Layout, generation, index int) (model.RolloutResult, error) {
	var result model.RolloutResult
	if err := readJSON(l.ResultsFile(generation, index), &result); err != nil {
		return model.RolloutResult{}, err
	}
	if err := checkVersion(result.VersionedRecord); err != nil {
		return model.RolloutResult{}, fmt.Errorf("results of agent %d/%d: %w", generation, index, err)
	}
	return result, nil
}

// SaveArchive rewrites the full accumulated novelty archive snapshot for the
// generation.
func SaveArchive(l Layout, generation int, entries []model.ArchiveEntry) error {
	return writeJSON(l.ArchiveFile(generation), entries)
}

func LoadArchive(l Layout, generation int) ([]model.ArchiveEntry, error) {
	var entries []model.ArchiveEntry
	if err := readJSON(l.ArchiveFile(generation), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
