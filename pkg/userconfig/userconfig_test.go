package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Parallel()

	settings, err := LoadFrom(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *settings)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: anthropic\ntop_k: 4\n"), 0o600))

	settings, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", settings.Provider)
	assert.Equal(t, 4, settings.TopK)
	assert.Equal(t, 8, settings.PoolCapacity)
	assert.Equal(t, "bm25", settings.Scorer)
	require.NotNil(t, settings.Temperature)
	assert.InDelta(t, 0.1, *settings.Temperature, 1e-9)
}

func TestSaveAndReload_RetrievalTuning(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	settings := Defaults()
	require.NoError(t, settings.Set("scorer", "hybrid"))
	require.NoError(t, settings.Set("fusion", "weighted"))
	require.NoError(t, settings.Set("fusion_weights", "2, 1"))
	require.NoError(t, settings.Set("bm25_b", "0.5"))
	require.NoError(t, settings.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "weighted", loaded.Fusion)
	assert.Equal(t, []float64{2, 1}, loaded.FusionWeights)
	assert.InDelta(t, 0.5, loaded.BM25B, 1e-9)
	assert.InDelta(t, 1.5, loaded.BM25K1, 1e-9)
	assert.Equal(t, 60, loaded.FusionK)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: [oops"), 0o600))

	_, err := LoadFrom(path)
	require.ErrorContains(t, err, "failed to parse settings file")
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	settings := Defaults()
	require.NoError(t, settings.Set("model", "gpt-4o"))
	require.NoError(t, settings.Set("temperature", "0.3"))
	require.NoError(t, settings.Set("active_library", "abcd1234"))
	require.NoError(t, settings.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.Model)
	assert.InDelta(t, 0.3, *loaded.Temperature, 1e-9)
	assert.Equal(t, "abcd1234", loaded.ActiveLibrary)
	assert.Equal(t, CurrentVersion, loaded.Version)
}

func TestSet_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value string
		wantErr    string
	}{
		{"provider", "google", ""},
		{"provider", "cohere", "expected one of"},
		{"top_k", "12", ""},
		{"top_k", "0", "positive integer"},
		{"max_rounds", "many", "positive integer"},
		{"temperature", "3", "between 0 and 2"},
		{"scorer", "bleve", ""},
		{"scorer", "hybrid", ""},
		{"scorer", "tfidf", "expected one of"},
		{"bm25_k1", "1.2", ""},
		{"bm25_k1", "0", "number in (0, 10]"},
		{"bm25_b", "0", ""},
		{"bm25_b", "1.5", "number in [0, 1]"},
		{"bm25_epsilon", "0.1", ""},
		{"fusion", "weighted", ""},
		{"fusion", "sum", "expected one of"},
		{"fusion_k", "20", ""},
		{"fusion_weights", "2,0.5", ""},
		{"fusion_weights", "2,heavy", "non-negative numbers"},
		{"markup", "markdown", ""},
		{"colour", "blue", "unknown setting"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Parallel()

			settings := Defaults()
			err := settings.Set(tt.key, tt.value)
			if tt.wantErr == "" {
				require.NoError(t, err)
				got, err := settings.Get(tt.key)
				require.NoError(t, err)
				assert.Equal(t, tt.value, got)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	keys := Keys()
	assert.IsNonDecreasing(t, keys)
	assert.Contains(t, keys, "short_query_threshold")
	assert.Contains(t, keys, "api_key")
}

func TestMaskedAPIKey(t *testing.T) {
	t.Parallel()

	assert.Empty(t, (&Settings{}).MaskedAPIKey())
	assert.Equal(t, "****", (&Settings{APIKey: "abc"}).MaskedAPIKey())
	assert.Equal(t, "********wxyz", (&Settings{APIKey: "sk-1234wxyz"}).MaskedAPIKey())
}

func TestResolvedDataDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/srv/rules", (&Settings{DataDir: "/srv/rules"}).ResolvedDataDir())
	assert.NotEmpty(t, (&Settings{}).ResolvedDataDir())
}
