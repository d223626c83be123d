package analyzer

import (
	"fmt"
	"slices"

	"go-loginguard/pkg/iforest"
	"go-loginguard/pkg/models"
)

// Scorer classifies feature vectors with a frozen forest. It holds no
// mutable state and may be shared across goroutines.
type Scorer struct {
	forest *iforest.Forest
}

// NewScorer refuses a forest trained on a different feature schema.
func NewScorer(forest *iforest.Forest) (*Scorer, error) {
	if !slices.Equal(forest.Features(), models.FeatureNames) {
		return nil, fmt.Errorf("%w: %v", iforest.ErrSchemaMismatch, forest.Features())
	}
	return &Scorer{forest: forest}, nil
}

// LoadScorer loads the model artifact at path.
func LoadScorer(path string) (*Scorer, error) {
	forest, err := iforest.Load(path, models.FeatureNames)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return NewScorer(forest)
}

func (s *Scorer) Score(v models.FeatureVector) models.Classification {
	// Dimensions were checked in NewScorer; Predict cannot fail here.
	label, _ := s.forest.Predict(v.Values())
	if label == iforest.Outlier {
		return models.Anomaly
	}
	return models.Normal
}

func (s *Scorer) Forest() *iforest.Forest {
	return s.forest
}
