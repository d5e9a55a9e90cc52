package internal

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the engine configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Raw      RawConfig         `yaml:"raw"`
	Chunking ChunkingConfig    `yaml:"chunking"`
	Dedup    DedupConfig       `yaml:"dedup"`
	Log      LogConfig         `yaml:"log"`
	Cluster  ClusterConfig     `yaml:"cluster"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Raw.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.Cluster.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// RawConfig configures raw-input discovery.
type RawConfig struct {
	// Patterns are glob patterns, matched against workspace-relative
	// forward-slash paths, that identify raw input files.
	Patterns []string `yaml:"patterns"`
}

// Validate validates the raw-input configuration.
func (c *RawConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Patterns, validation.Required, validation.Length(1, 0)),
	)
}

// ChunkingConfig bounds chunk size.
type ChunkingConfig struct {
	// MaxLines is the hard upper bound on lines per chunk; longer
	// paragraphs and code blocks are split at this bound.
	MaxLines int `yaml:"max_lines"`
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxLines, validation.Required, validation.Min(1)),
	)
}

// DedupConfig configures near-duplicate suppression. Exact hash dedup is
// always active and has no knobs.
type DedupConfig struct {
	// SimilarityThreshold is the Jaccard score at or above which a chunk
	// is suppressed as a near-duplicate when semantic dedupe is enabled.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// RecentWindow bounds how many recently accepted chunks a candidate
	// is compared against.
	RecentWindow int `yaml:"recent_window"`
}

// Validate validates the dedup configuration.
func (c *DedupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SimilarityThreshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.RecentWindow, validation.Required, validation.Min(1)),
	)
}

// LogConfig configures the append logs.
type LogConfig struct {
	// LockTimeout caps how long an append waits for the exclusive lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// DefaultMax caps read results when the caller gives no bound.
	DefaultMax int `yaml:"default_max"`
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LockTimeout, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.DefaultMax, validation.Required, validation.Min(1)),
	)
}

// ClusterConfig configures similarity clustering.
type ClusterConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinAtoms            int     `yaml:"min_atoms"`
}

// Validate validates the cluster configuration.
func (c *ClusterConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SimilarityThreshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MinAtoms, validation.Required, validation.Min(2)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Raw: RawConfig{
			Patterns: []string{"NOTES.md", "**/NOTES.md", "inbox/**"},
		},
		Chunking: ChunkingConfig{
			MaxLines: 40,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.65,
			RecentWindow:        256,
		},
		Log: LogConfig{
			LockTimeout: 5 * time.Second,
			DefaultMax:  200,
		},
		Cluster: ClusterConfig{
			SimilarityThreshold: 0.65,
			MinAtoms:            2,
		},
	}
}
