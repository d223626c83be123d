// Package encoder maps open-vocabulary strings onto the integer codes the
// anomaly model was trained with.
package encoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"go-loginguard/pkg/models"
)

var (
	ErrNoUnknownClass = errors.New("vocabulary has no UNKNOWN class")
	ErrDuplicateClass = errors.New("vocabulary has duplicate classes")
)

// Vocabulary is a frozen set of classes. A class's code is its index.
type Vocabulary struct {
	feature string
	classes []string
	codes   map[string]int
	unknown int
}

type vocabularyFile struct {
	Feature string   `json:"feature"`
	Classes []string `json:"classes"`
}

// NewVocabulary freezes classes in the given order.
func NewVocabulary(feature string, classes []string) (*Vocabulary, error) {
	v := &Vocabulary{
		feature: feature,
		classes: append([]string(nil), classes...),
		codes:   make(map[string]int, len(classes)),
		unknown: -1,
	}
	for i, c := range v.classes {
		if _, dup := v.codes[c]; dup {
			return nil, fmt.Errorf("%s: %w: %q", feature, ErrDuplicateClass, c)
		}
		v.codes[c] = i
		if c == models.Unknown {
			v.unknown = i
		}
	}
	if v.unknown < 0 {
		return nil, fmt.Errorf("%s: %w", feature, ErrNoUnknownClass)
	}
	return v, nil
}

// Build fits a vocabulary from observed values: unique, UNKNOWN added, sorted.
func Build(feature string, values []string) *Vocabulary {
	seen := map[string]bool{models.Unknown: true}
	classes := []string{models.Unknown}
	for _, val := range values {
		if !seen[val] {
			seen[val] = true
			classes = append(classes, val)
		}
	}
	sort.Strings(classes)
	v, _ := NewVocabulary(feature, classes)
	return v
}

// Encode returns the code of raw, or the UNKNOWN code for unseen values.
func (v *Vocabulary) Encode(raw string) int {
	if code, ok := v.codes[raw]; ok {
		return code
	}
	return v.unknown
}

// Encode is the free-function form of (*Vocabulary).Encode.
func Encode(v *Vocabulary, raw string) int {
	return v.Encode(raw)
}

func (v *Vocabulary) Feature() string { return v.feature }

func (v *Vocabulary) UnknownCode() int { return v.unknown }

func (v *Vocabulary) Len() int { return len(v.classes) }

// Classes returns a copy of the classes in code order.
func (v *Vocabulary) Classes() []string {
	return append([]string(nil), v.classes...)
}

func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(vocabularyFile{Feature: v.feature, Classes: v.classes})
}

// Load reads a vocabulary written by Save.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f vocabularyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewVocabulary(f.Feature, f.Classes)
}

func Save(path string, v *Vocabulary) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
