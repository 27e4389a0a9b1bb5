package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/parsing"
	"github.com/poiesic/docflow/rag"
	"github.com/poiesic/docflow/storage/jsonfile"
)

// Environment variable names.
const (
	EnvDataDir           = "DOCFLOW_DATA_DIR"
	EnvConfigsDir        = "DOCFLOW_CONFIGS_DIR"
	EnvDefaultCompany    = "DOCFLOW_DEFAULT_COMPANY"
	EnvCountWorkers      = "DOCFLOW_COUNT_WORKERS"
	EnvRAGAttempts       = "DOCFLOW_RAG_ATTEMPTS"
	EnvRAGDelay          = "DOCFLOW_RAG_DELAY"
	EnvChunkSize         = "DOCFLOW_CHUNK_SIZE"
	EnvChunkOverlap      = "DOCFLOW_CHUNK_OVERLAP"
	EnvExtractionEnabled = "DOCFLOW_EXTRACTION_ENABLED"
	EnvRAGEnabled        = "DOCFLOW_RAG_ENABLED"
	EnvHost              = "DOCFLOW_AI_HOST"
	EnvEmbeddingHost     = "DOCFLOW_EMBEDDING_HOST"
	EnvExtractionHost    = "DOCFLOW_EXTRACTION_HOST"
	EnvEmbeddingModel    = "DOCFLOW_EMBEDDING_MODEL"
	EnvExtractionModel   = "DOCFLOW_EXTRACTION_MODEL"
	EnvToken             = "DOCFLOW_AI_TOKEN"
	EnvEmbeddingRPM      = "DOCFLOW_EMBEDDING_RPM"
	EnvBreakerFailures   = "DOCFLOW_BREAKER_FAILURES"
	EnvBreakerTimeout    = "DOCFLOW_BREAKER_TIMEOUT"
)

const (
	DefaultDataDir    = "./local_data"
	DefaultConfigsDir = "./configs"
)

// Config holds every setting of a docflow install.
type Config struct {
	// DataDir holds the phase record, original files, extraction results
	// and the node store.
	DataDir string

	// ConfigsDir holds per-company prompt configs.
	ConfigsDir string

	// DefaultCompany selects the prompt config when a request names none.
	DefaultCompany string

	// CountWorkers bounds bulk ingestion concurrency.
	CountWorkers int

	// RAGAttempts and RAGDelay bound the backfiller's wait for indexed chunks.
	RAGAttempts int
	RAGDelay    time.Duration

	ChunkSize    int
	ChunkOverlap int

	// ExtractionEnabled turns structured extraction on. When off, documents
	// are only parsed and indexed.
	ExtractionEnabled bool

	// RAGEnabled turns backfill of missing fields on.
	RAGEnabled bool

	AI *ai.Config
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		DataDir:           DefaultDataDir,
		ConfigsDir:        DefaultConfigsDir,
		CountWorkers:      ingestion.DefaultCountWorkers,
		RAGAttempts:       rag.DefaultWaitAttempts,
		RAGDelay:          rag.DefaultWaitDelay,
		ChunkSize:         parsing.DefaultChunkSize,
		ChunkOverlap:      parsing.DefaultChunkOverlap,
		ExtractionEnabled: true,
		RAGEnabled:        true,
		AI:                ai.DefaultConfig(),
	}
}

// Load applies envFiles (or ./.env when none are given and it exists) to
// the process environment and reads the configuration from it. Variables
// already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv reads the configuration through lookup, falling back to defaults
// for unset variables.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := Default()

	cfg.DataDir = r.str(EnvDataDir, cfg.DataDir)
	cfg.ConfigsDir = r.str(EnvConfigsDir, cfg.ConfigsDir)
	cfg.DefaultCompany = r.str(EnvDefaultCompany, cfg.DefaultCompany)
	cfg.CountWorkers = r.int(EnvCountWorkers, cfg.CountWorkers)
	cfg.RAGAttempts = r.int(EnvRAGAttempts, cfg.RAGAttempts)
	cfg.RAGDelay = r.duration(EnvRAGDelay, cfg.RAGDelay)
	cfg.ChunkSize = r.int(EnvChunkSize, cfg.ChunkSize)
	cfg.ChunkOverlap = r.int(EnvChunkOverlap, cfg.ChunkOverlap)
	cfg.ExtractionEnabled = r.bool(EnvExtractionEnabled, cfg.ExtractionEnabled)
	cfg.RAGEnabled = r.bool(EnvRAGEnabled, cfg.RAGEnabled)

	aiCfg := cfg.AI
	host := r.str(EnvHost, "")
	if host != "" {
		aiCfg.EmbeddingHost = host
		aiCfg.ExtractionHost = host
	}
	aiCfg.EmbeddingHost = r.str(EnvEmbeddingHost, aiCfg.EmbeddingHost)
	aiCfg.ExtractionHost = r.str(EnvExtractionHost, aiCfg.ExtractionHost)
	aiCfg.EmbeddingModel = r.str(EnvEmbeddingModel, aiCfg.EmbeddingModel)
	aiCfg.ExtractionModel = r.str(EnvExtractionModel, aiCfg.ExtractionModel)
	aiCfg.Token = r.str(EnvToken, aiCfg.Token)
	aiCfg.EmbeddingRPM = r.int(EnvEmbeddingRPM, aiCfg.EmbeddingRPM)
	aiCfg.BreakerFailures = r.int(EnvBreakerFailures, aiCfg.BreakerFailures)
	aiCfg.BreakerTimeout = r.duration(EnvBreakerTimeout, aiCfg.BreakerTimeout)

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("config: data dir is required"))
	}
	if c.CountWorkers < 1 {
		errs = append(errs, fmt.Errorf("config: count workers must be at least 1, got %d", c.CountWorkers))
	}
	if c.RAGAttempts < 1 {
		errs = append(errs, fmt.Errorf("config: rag attempts must be at least 1, got %d", c.RAGAttempts))
	}
	if c.RAGDelay < 0 {
		errs = append(errs, fmt.Errorf("config: rag delay must not be negative, got %s", c.RAGDelay))
	}
	if c.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("config: chunk size must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("config: chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap))
	}
	if c.AI == nil {
		errs = append(errs, errors.New("config: ai config is required"))
	} else if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PhaseStorePath is where the document type record lives.
func (c *Config) PhaseStorePath() string {
	return filepath.Join(c.DataDir, jsonfile.DefaultFileName)
}

// OriginalFilesDir is where uploads are kept under their file names.
func (c *Config) OriginalFilesDir() string {
	return filepath.Join(c.DataDir, "original_files")
}

// ArtifactsDir is the root of the per-document extraction result directories.
func (c *Config) ArtifactsDir() string {
	return filepath.Join(c.DataDir, "extraction_results")
}

// ExtractedPagesDir is where page selections cut from originals are saved.
func (c *Config) ExtractedPagesDir() string {
	return filepath.Join(c.DataDir, "extracted_pages")
}

// NodeStoreDir is where the badger node store keeps its files.
func (c *Config) NodeStoreDir() string {
	return filepath.Join(c.DataDir, "nodes")
}

// reader collects parse errors so every bad variable is reported at once.
type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: not an integer", key, v))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: not a boolean", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: not a duration", key, v))
		return def
	}
	return d
}
