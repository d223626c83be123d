// Package iforest implements Isolation Forest scoring and fitting with the
// decision rule of the reference implementation: a sample is an outlier when
// its score falls below the offset learned from the contamination rate.
package iforest

import (
	"errors"
	"fmt"
	"math"
)

const eulerGamma = 0.5772156649015329

// Predict labels.
const (
	Outlier = -1
	Inlier  = 1
)

var ErrDimension = errors.New("sample dimension mismatch")

// Node is one entry of a flattened isolation tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Size      int     `json:"n"`
}

func (n Node) leaf() bool { return n.Feature < 0 }

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is immutable once built and safe for concurrent scoring.
type Forest struct {
	trees         []Tree
	features      []string
	maxSamples    int
	contamination float64
	offset        float64
	seed          int64
	trainingRows  int
}

func (f *Forest) NumTrees() int { return len(f.trees) }
func (f *Forest) NumFeatures() int { return len(f.features) }
func (f *Forest) MaxSamples() int { return f.maxSamples }
func (f *Forest) Offset() float64 { return f.offset }
func (f *Forest) Features() []string { return append([]string(nil), f.features...) }
func (f *Forest) Contamination() float64 { return f.contamination }

// ScoreSamples returns the negated anomaly score; lower is more abnormal.
func (f *Forest) ScoreSamples(x []float64) (float64, error) {
	if len(x) != len(f.features) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), len(f.features))
	}
	var depth float64
	for i := range f.trees {
		depth += f.trees[i].pathLength(x)
	}
	mean := depth / float64(len(f.trees))
	return -math.Pow(2, -mean/averagePathLength(f.maxSamples)), nil
}

// Decision is ScoreSamples shifted by the offset; negative means outlier.
func (f *Forest) Decision(x []float64) (float64, error) {
	s, err := f.ScoreSamples(x)
	if err != nil {
		return 0, err
	}
	return s - f.offset, nil
}

// Predict returns Outlier or Inlier.
func (f *Forest) Predict(x []float64) (int, error) {
	d, err := f.Decision(x)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return Outlier, nil
	}
	return Inlier, nil
}

func (t *Tree) pathLength(x []float64) float64 {
	i, depth := 0, 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return float64(depth) + averagePathLength(n.Size)
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean depth of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func (t *Tree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.leaf() {
			continue
		}
		if n.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: bad child index", i)
		}
	}
	return nil
}
