package iforest

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-loginguard/pkg/models"
)

var abc = []string{"a", "b", "c"}

func cluster(n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}
	return rows
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2447709, averagePathLength(256), 1e-6)
}

func TestPercentile(t *testing.T) {
	v := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 1.4, percentile(v, 10), 1e-9)
	assert.InDelta(t, 3.0, percentile(v, 50), 1e-9)
	assert.InDelta(t, 5.0, percentile(v, 100), 1e-9)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, v, "input must not be reordered")
}

func TestFit_SeparatesOutlier(t *testing.T) {
	f, err := Fit(cluster(500, 1), abc, WithTrees(100), WithContamination(0.1), WithSeed(42))
	require.NoError(t, err)
	assert.Equal(t, 100, f.NumTrees())
	assert.Equal(t, 256, f.MaxSamples())

	label, err := f.Predict([]float64{50, -50, 50})
	require.NoError(t, err)
	assert.Equal(t, Outlier, label)

	label, err = f.Predict([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, Inlier, label)

	far, _ := f.ScoreSamples([]float64{50, -50, 50})
	near, _ := f.ScoreSamples([]float64{0.5, 0.5, 0.5})
	assert.Less(t, far, near)
}

func TestFit_ContaminationSetsFlaggedFraction(t *testing.T) {
	rows := cluster(1000, 3)
	f, err := Fit(rows, abc, WithContamination(0.2), WithSeed(7))
	require.NoError(t, err)

	flagged := 0
	for _, r := range rows {
		if label, _ := f.Predict(r); label == Outlier {
			flagged++
		}
	}
	assert.InDelta(t, 0.2, float64(flagged)/float64(len(rows)), 0.02)
}

func TestFit_AutoContamination(t *testing.T) {
	f, err := Fit(cluster(100, 5), abc)
	require.NoError(t, err)
	assert.Equal(t, -0.5, f.Offset())
	assert.Equal(t, 100, f.MaxSamples(), "max samples capped at the row count")
}

func TestFit_SameSeedSameForest(t *testing.T) {
	rows := cluster(300, 9)
	f1, err := Fit(rows, abc, WithSeed(11), WithContamination(0.1))
	require.NoError(t, err)
	f2, err := Fit(rows, abc, WithSeed(11), WithContamination(0.1))
	require.NoError(t, err)

	assert.Equal(t, f1.trees, f2.trees)
	assert.Equal(t, f1.Offset(), f2.Offset())
}

func TestFit_Rejects(t *testing.T) {
	_, err := Fit(nil, abc)
	assert.Error(t, err)

	_, err = Fit([][]float64{{1, 2}}, abc)
	assert.ErrorIs(t, err, ErrDimension)

	_, err = Fit(cluster(10, 1), abc, WithContamination(0.9))
	assert.Error(t, err)

	_, err = Fit(cluster(10, 1), abc, WithTrees(0))
	assert.Error(t, err)
}

func TestFit_ConstantColumnsStillBuild(t *testing.T) {
	rows := make([][]float64, 50)
	for i := range rows {
		rows[i] = []float64{1, 1, float64(i % 2)}
	}
	f, err := Fit(rows, abc, WithTrees(10))
	require.NoError(t, err)
	for _, tree := range f.trees {
		require.NoError(t, tree.validate(3))
		for _, n := range tree.Nodes {
			if !n.leaf() {
				assert.Equal(t, 2, n.Feature, "only the varying column can split")
			}
		}
	}
}

func TestPredict_DimensionMismatch(t *testing.T) {
	f, err := Fit(cluster(20, 1), abc, WithTrees(5))
	require.NoError(t, err)
	_, err = f.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestPredict_Deterministic(t *testing.T) {
	f, err := Fit(cluster(200, 2), abc, WithContamination(0.1))
	require.NoError(t, err)
	x := []float64{0.9, 0.01, 0.4}
	first, _ := f.Decision(x)
	for i := 0; i < 50; i++ {
		d, _ := f.Decision(x)
		assert.Equal(t, first, d)
	}
}

func TestSaveLoad_RoundTripPreservesDecisions(t *testing.T) {
	rows := cluster(200, 4)
	f, err := Fit(rows, abc, WithTrees(20), WithContamination(0.15))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, Save(path, f))

	loaded, err := Load(path, abc)
	require.NoError(t, err)
	assert.Equal(t, f.Offset(), loaded.Offset())
	assert.Equal(t, f.Contamination(), loaded.Contamination())
	assert.Equal(t, abc, loaded.Features())
	for _, r := range rows[:50] {
		want, _ := f.Decision(r)
		got, _ := loaded.Decision(r)
		assert.Equal(t, want, got)
	}
}

func TestLoad_SchemaMismatch(t *testing.T) {
	f, err := Fit(cluster(20, 1), abc, WithTrees(3))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, Save(path, f))

	_, err = Load(path, []string{"b", "a", "c"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Load(path, models.FeatureNames)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"), abc)
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("\x80\x04pickle"), 0o644))
	_, err = Load(garbage, abc)
	assert.ErrorIs(t, err, ErrCorruptModel)

	tampered := filepath.Join(dir, "tampered.json")
	body := `{"format_version":1,"algorithm":"isolation_forest","features":["a","b","c"],"schema_hash":"` +
		models.SchemaHash(abc) + `","max_samples":4,"trees":[{"nodes":[{"f":0,"t":0.5,"l":0,"r":0,"n":4}]}]}`
	require.NoError(t, os.WriteFile(tampered, []byte(body), 0o644))
	_, err = Load(tampered, abc)
	assert.ErrorIs(t, err, ErrCorruptModel)

	rehashed := filepath.Join(dir, "rehashed.json")
	body = `{"format_version":1,"algorithm":"isolation_forest","features":["a","b","c"],"schema_hash":"deadbeef","max_samples":4,"trees":[]}`
	require.NoError(t, os.WriteFile(rehashed, []byte(body), 0o644))
	_, err = Load(rehashed, abc)
	assert.ErrorIs(t, err, ErrCorruptModel)
}
