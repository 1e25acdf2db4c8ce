package storage

import (
	"encoding/json"
	"errors"

	"genepool/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(record model.RunRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return record, nil
}

func EncodeRewardHistory(history []model.GenerationRewards) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeRewardHistory(data []byte) ([]model.GenerationRewards, error) {
	var history []model.GenerationRewards
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeArchiveSizes(sizes []int) ([]byte, error) {
	return json.Marshal(sizes)
}

func DecodeArchiveSizes(data []byte) ([]int, error) {
	var sizes []int
	if err := json.Unmarshal(data, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
