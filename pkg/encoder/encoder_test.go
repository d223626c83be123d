package encoder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-loginguard/pkg/models"
)

func roles(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary(Role, []string{"Admin", "Doctor", "Nurse", "UNKNOWN"})
	require.NoError(t, err)
	return v
}

func TestEncode_KnownValues(t *testing.T) {
	v := roles(t)
	assert.Equal(t, 0, v.Encode("Admin"))
	assert.Equal(t, 1, v.Encode("Doctor"))
	assert.Equal(t, 2, Encode(v, "Nurse"))
	assert.Equal(t, 3, v.UnknownCode())
}

func TestEncode_UnseenValuesMapToUnknown(t *testing.T) {
	v := roles(t)
	for _, raw := range []string{"Alien", "", "nurse", " Nurse", "UNKNOWN"} {
		assert.Equal(t, v.UnknownCode(), v.Encode(raw), raw)
		assert.Equal(t, v.UnknownCode(), v.Encode(raw), "repeat %q", raw)
	}
	assert.Equal(t, 4, v.Len(), "encoding must not grow the vocabulary")
}

func TestEncode_RandomInputNeverLeavesRange(t *testing.T) {
	v := roles(t)
	faker := gofakeit.New(7)
	for i := 0; i < 500; i++ {
		raw := faker.Word() + faker.JobTitle()
		code := v.Encode(raw)
		assert.GreaterOrEqual(t, code, 0)
		assert.Less(t, code, v.Len())
		assert.Equal(t, code, v.Encode(raw))
	}
}

func TestNewVocabulary_Rejects(t *testing.T) {
	_, err := NewVocabulary(Role, []string{"Admin", "Nurse"})
	assert.ErrorIs(t, err, ErrNoUnknownClass)

	_, err = NewVocabulary(Role, []string{"Admin", "Admin", "UNKNOWN"})
	assert.ErrorIs(t, err, ErrDuplicateClass)
}

func TestBuild_SortsAndAddsUnknown(t *testing.T) {
	v := Build(Browser, []string{"Opera/9.80", "Mozilla/5.0", "Mozilla/5.0"})
	assert.Equal(t, []string{"Mozilla/5.0", "Opera/9.80", models.Unknown}, v.Classes())
	assert.Equal(t, 0, v.Encode("Mozilla/5.0"))
	assert.Equal(t, 2, v.Encode("curl/8.0"))
}

func TestClasses_ReturnsCopy(t *testing.T) {
	v := roles(t)
	c := v.Classes()
	c[0] = "Root"
	assert.Equal(t, 0, v.Encode("Admin"))
	assert.Equal(t, v.UnknownCode(), v.Encode("Root"))
}

func TestSaveLoad_CodesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(Role))
	v := roles(t)
	require.NoError(t, Save(path, v))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Role, loaded.Feature())
	for _, c := range v.Classes() {
		assert.Equal(t, v.Encode(c), loaded.Encode(c), c)
	}
	assert.Equal(t, v.Encode("Alien"), loaded.Encode("Alien"))
}

func TestSave_WritesFeatureAndClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(Role))
	require.NoError(t, Save(path, roles(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"feature":"role","classes":["Admin","Doctor","Nurse","UNKNOWN"]}`, string(data))

	inline, err := json.Marshal(roles(t))
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(inline))
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	s := &Set{}
	for _, name := range Names {
		require.NoError(t, s.Put(name, Build(name, []string{"a", "b"})))
	}
	require.NoError(t, SaveSet(dir, s))

	loaded, err := LoadSet(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Role.Encode("a"), "UNKNOWN sorts before lowercase classes")
	assert.Equal(t, loaded.UserID.UnknownCode(), loaded.UserID.Encode("zzz"))
	assert.NotNil(t, loaded.LocationCity)
	assert.NotNil(t, loaded.DeviceType)

	require.NoError(t, os.Remove(filepath.Join(dir, FileName(ISP))))
	_, err = LoadSet(dir)
	assert.ErrorContains(t, err, "isp")
}

func TestSet_PutUnknownName(t *testing.T) {
	s := &Set{}
	assert.Error(t, s.Put("shoe_size", Build("shoe_size", nil)))
}
