package iforest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// AutoContamination selects the fixed offset of -0.5 instead of a percentile.
const AutoContamination = 0

type options struct {
	trees         int
	maxSamples    int
	contamination float64
	seed          int64
}

type Option func(*options)

func WithTrees(n int) Option { return func(o *options) { o.trees = n } }

func WithMaxSamples(n int) Option { return func(o *options) { o.maxSamples = n } }

// WithContamination sets the expected outlier fraction in (0, 0.5].
func WithContamination(c float64) Option { return func(o *options) { o.contamination = c } }

func WithSeed(seed int64) Option { return func(o *options) { o.seed = seed } }

// Fit grows a forest on rows whose columns follow features.
func Fit(rows [][]float64, features []string, opts ...Option) (*Forest, error) {
	o := options{trees: 100, maxSamples: 256, contamination: AutoContamination, seed: 42}
	for _, opt := range opts {
		opt(&o)
	}
	if len(rows) == 0 {
		return nil, errors.New("no training rows")
	}
	if o.trees <= 0 || o.maxSamples <= 0 {
		return nil, errors.New("trees and max samples must be positive")
	}
	if o.contamination < 0 || o.contamination > 0.5 {
		return nil, fmt.Errorf("contamination %v outside [0, 0.5]", o.contamination)
	}
	for i, r := range rows {
		if len(r) != len(features) {
			return nil, fmt.Errorf("row %d: %w: got %d, want %d", i, ErrDimension, len(r), len(features))
		}
	}

	psi := o.maxSamples
	if psi > len(rows) {
		psi = len(rows)
	}
	b := &builder{
		rng:   rand.New(rand.NewSource(o.seed)),
		limit: int(math.Ceil(math.Log2(float64(max(psi, 2))))),
	}

	f := &Forest{
		trees:         make([]Tree, o.trees),
		features:      append([]string(nil), features...),
		maxSamples:    psi,
		contamination: o.contamination,
		seed:          o.seed,
		trainingRows:  len(rows),
	}
	for i := range f.trees {
		perm := b.rng.Perm(len(rows))[:psi]
		sample := make([][]float64, psi)
		for j, idx := range perm {
			sample[j] = rows[idx]
		}
		b.nodes = nil
		b.grow(sample, 0)
		f.trees[i] = Tree{Nodes: b.nodes}
	}

	if o.contamination == AutoContamination {
		f.offset = -0.5
		return f, nil
	}
	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i], _ = f.ScoreSamples(r)
	}
	f.offset = percentile(scores, 100*o.contamination)
	return f, nil
}

type builder struct {
	rng   *rand.Rand
	limit int
	nodes []Node
}

// grow appends the subtree for rows and returns its root index.
func (b *builder) grow(rows [][]float64, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Size: len(rows)})
	if len(rows) <= 1 || depth >= b.limit {
		return idx
	}

	var candidates []int
	lows := make([]float64, len(rows[0]))
	highs := make([]float64, len(rows[0]))
	for f := range lows {
		lo, hi := rows[0][f], rows[0][f]
		for _, r := range rows[1:] {
			lo = math.Min(lo, r[f])
			hi = math.Max(hi, r[f])
		}
		lows[f], highs[f] = lo, hi
		if hi > lo {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return idx
	}

	feature := candidates[b.rng.Intn(len(candidates))]
	lo, hi := lows[feature], highs[feature]
	split := lo + b.rng.Float64()*(hi-lo)
	if split >= hi {
		split = lo
	}

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] <= split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: split, Left: l, Right: r, Size: len(rows)}
	return idx
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
