package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "./local_data", cfg.DataDir)
	assert.Equal(t, 2, cfg.CountWorkers)
	assert.Equal(t, 5, cfg.RAGAttempts)
	assert.Equal(t, 2*time.Second, cfg.RAGDelay)
	assert.Equal(t, 1200, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.True(t, cfg.ExtractionEnabled)
	assert.True(t, cfg.RAGEnabled)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join("local_data", "document_types.json"), filepath.Clean(cfg.PhaseStorePath()))
	assert.Equal(t, filepath.Join("local_data", "original_files"), filepath.Clean(cfg.OriginalFilesDir()))
	assert.Equal(t, filepath.Join("local_data", "extraction_results"), filepath.Clean(cfg.ArtifactsDir()))
	assert.Equal(t, filepath.Join("local_data", "extracted_pages"), filepath.Clean(cfg.ExtractedPagesDir()))
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(mapLookup(map[string]string{
		EnvDataDir:           "/srv/docflow",
		EnvDefaultCompany:    "canadalife",
		EnvCountWorkers:      "4",
		EnvRAGAttempts:       "3",
		EnvRAGDelay:          "500ms",
		EnvChunkSize:         "800",
		EnvChunkOverlap:      " 100 ",
		EnvExtractionEnabled: "false",
		EnvHost:              "http://gpu-box:8000",
		EnvExtractionModel:   "llama3.1:8b",
		EnvEmbeddingRPM:      "600",
		EnvBreakerTimeout:    "1m",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/srv/docflow", cfg.DataDir)
	assert.Equal(t, "canadalife", cfg.DefaultCompany)
	assert.Equal(t, 4, cfg.CountWorkers)
	assert.Equal(t, 3, cfg.RAGAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RAGDelay)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.False(t, cfg.ExtractionEnabled)
	assert.Equal(t, "http://gpu-box:8000", cfg.AI.EmbeddingHost, "shared host applies to both")
	assert.Equal(t, "http://gpu-box:8000", cfg.AI.ExtractionHost)
	assert.Equal(t, "llama3.1:8b", cfg.AI.ExtractionModel)
	assert.Equal(t, 600, cfg.AI.EmbeddingRPM)
	assert.Equal(t, time.Minute, cfg.AI.BreakerTimeout)
}

func TestFromEnv_SpecificHostWins(t *testing.T) {
	cfg, err := FromEnv(mapLookup(map[string]string{
		EnvHost:          "http://shared:11434",
		EnvEmbeddingHost: "http://embed:9000/v1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://embed:9000/v1", cfg.AI.EmbeddingHost)
	assert.Equal(t, "http://shared:11434", cfg.AI.ExtractionHost)
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	_, err := FromEnv(mapLookup(map[string]string{
		EnvCountWorkers:      "two",
		EnvRAGDelay:          "soon",
		EnvExtractionEnabled: "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvCountWorkers)
	assert.Contains(t, err.Error(), EnvRAGDelay)
	assert.Contains(t, err.Error(), EnvExtractionEnabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = " " }},
		{"zero workers", func(c *Config) { c.CountWorkers = 0 }},
		{"zero attempts", func(c *Config) { c.RAGAttempts = 0 }},
		{"negative delay", func(c *Config) { c.RAGDelay = -time.Second }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"no ai config", func(c *Config) { c.AI = nil }},
		{"no embedding model", func(c *Config) { c.AI.EmbeddingModel = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DOCFLOW_COUNT_WORKERS=7\nDOCFLOW_DATA_DIR=/tmp/from-file\n"), 0o644))
	t.Setenv(EnvDataDir, "/tmp/from-env")
	// registered so the variable loaded from the file is cleared afterwards
	t.Setenv(EnvCountWorkers, "")
	os.Unsetenv(EnvCountWorkers)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.CountWorkers)
	assert.Equal(t, "/tmp/from-env", cfg.DataDir, "environment wins over the file")
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}
