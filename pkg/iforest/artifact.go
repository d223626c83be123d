package iforest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"go-loginguard/pkg/models"
)

const (
	formatVersion = 1
	algorithm     = "isolation_forest"
)

var (
	ErrSchemaMismatch = errors.New("model feature schema mismatch")
	ErrCorruptModel   = errors.New("corrupt model artifact")
)

// artifact is the on-disk form of a Forest. The ordered feature names and
// their hash pin the positional schema the trees were grown on.
type artifact struct {
	FormatVersion int       `json:"format_version"`
	Algorithm     string    `json:"algorithm"`
	Features      []string  `json:"features"`
	SchemaHash    string    `json:"schema_hash"`
	TrainedAt     time.Time `json:"trained_at"`
	TrainingRows  int       `json:"training_rows"`
	MaxSamples    int       `json:"max_samples"`
	Contamination float64   `json:"contamination"`
	Offset        float64   `json:"offset"`
	Seed          int64     `json:"seed"`
	Trees         []Tree    `json:"trees"`
}

// Save writes f as JSON.
func Save(path string, f *Forest) error {
	a := artifact{
		FormatVersion: formatVersion,
		Algorithm:     algorithm,
		Features:      f.features,
		SchemaHash:    models.SchemaHash(f.features),
		TrainedAt:     time.Now().UTC(),
		TrainingRows:  f.trainingRows,
		MaxSamples:    f.maxSamples,
		Contamination: f.contamination,
		Offset:        f.offset,
		Seed:          f.seed,
		Trees:         f.trees,
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a forest and rejects it unless its schema equals want.
func Load(path string, want []string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if a.FormatVersion != formatVersion || a.Algorithm != algorithm {
		return nil, fmt.Errorf("%w: format %d algorithm %q", ErrCorruptModel, a.FormatVersion, a.Algorithm)
	}
	if a.SchemaHash != models.SchemaHash(a.Features) {
		return nil, fmt.Errorf("%w: schema hash does not match feature list", ErrCorruptModel)
	}
	if !slices.Equal(a.Features, want) {
		return nil, fmt.Errorf("%w: model %v, serving %v", ErrSchemaMismatch, a.Features, want)
	}
	if len(a.Trees) == 0 || a.MaxSamples <= 0 {
		return nil, fmt.Errorf("%w: no trees", ErrCorruptModel)
	}
	for i := range a.Trees {
		if err := a.Trees[i].validate(len(a.Features)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrCorruptModel, i, err)
		}
	}

	return &Forest{
		trees:         a.Trees,
		features:      a.Features,
		maxSamples:    a.MaxSamples,
		contamination: a.Contamination,
		offset:        a.Offset,
		seed:          a.Seed,
		trainingRows:  a.TrainingRows,
	}, nil
}
