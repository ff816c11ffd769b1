// Package config loads search configuration from YAML or TOML files.
// Values missing from a file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"evonas/internal/evo"
	"evonas/internal/ops"
	"evonas/internal/storage"
	"evonas/internal/topology"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Config struct {
	Search   SearchConfig   `yaml:"search" toml:"search" json:"search"`
	Topology TopologyConfig `yaml:"topology" toml:"topology" json:"topology"`
	Trainer  TrainerConfig  `yaml:"trainer" toml:"trainer" json:"trainer"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage" json:"storage"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics" json:"metrics"`
}

type SearchConfig struct {
	PopulationSize   int                      `yaml:"population_size" toml:"population_size" json:"population_size"`
	Iterations       int                      `yaml:"iterations" toml:"iterations" json:"iterations"`
	SampleSize       int                      `yaml:"sample_size" toml:"sample_size" json:"sample_size"`
	Seed             int64                    `yaml:"seed" toml:"seed" json:"seed"`
	Selector         string                   `yaml:"selector" toml:"selector" json:"selector"`
	Mutation         string                   `yaml:"mutation" toml:"mutation" json:"mutation"`
	Weights          evo.LayerMutationWeights `yaml:"weights" toml:"weights" json:"weights"`
	SeedMinMutations int                      `yaml:"seed_min_mutations" toml:"seed_min_mutations" json:"seed_min_mutations"`
	SeedMaxMutations int                      `yaml:"seed_max_mutations" toml:"seed_max_mutations" json:"seed_max_mutations"`
}

type TopologyConfig struct {
	Name                   string   `yaml:"name" toml:"name" json:"name"`
	Candidates             []string `yaml:"candidates" toml:"candidates" json:"candidates"`
	MaxVertices            int      `yaml:"max_vertices" toml:"max_vertices" json:"max_vertices"`
	InitializeWithIdentity bool     `yaml:"initialize_with_identity" toml:"initialize_with_identity" json:"initialize_with_identity"`
	Hidden                 int      `yaml:"hidden" toml:"hidden" json:"hidden"`
	Outputs                int      `yaml:"outputs" toml:"outputs" json:"outputs"`
	PoolSize               int      `yaml:"pool_size" toml:"pool_size" json:"pool_size"`
	DropoutRate            float64  `yaml:"dropout_rate" toml:"dropout_rate" json:"dropout_rate"`
	Softmax                bool     `yaml:"softmax" toml:"softmax" json:"softmax"`
}

type TrainerConfig struct {
	Folds        int     `yaml:"folds" toml:"folds" json:"folds"`
	Epochs       int     `yaml:"epochs" toml:"epochs" json:"epochs"`
	Workers      int     `yaml:"workers" toml:"workers" json:"workers"`
	Samples      int     `yaml:"samples" toml:"samples" json:"samples"`
	Features     int     `yaml:"features" toml:"features" json:"features"`
	Noise        float64 `yaml:"noise" toml:"noise" json:"noise"`
	LearningRate float64 `yaml:"learning_rate" toml:"learning_rate" json:"learning_rate"`
	Ridge        float64 `yaml:"ridge" toml:"ridge" json:"ridge"`
	// DataPath points at a CSV dataset. Empty uses a synthetic regression
	// task sized by Samples and Features.
	DataPath      string   `yaml:"data_path" toml:"data_path" json:"data_path"`
	DataHeader    bool     `yaml:"data_header" toml:"data_header" json:"data_header"`
	TargetColumns []string `yaml:"target_columns" toml:"target_columns" json:"target_columns"`
}

type StorageConfig struct {
	Kind          string `yaml:"kind" toml:"kind" json:"kind"`
	Path          string `yaml:"path" toml:"path" json:"path"`
	BenchmarksDir string `yaml:"benchmarks_dir" toml:"benchmarks_dir" json:"benchmarks_dir"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level" json:"level"`
	Format     string `yaml:"format" toml:"format" json:"format"`
	File       string `yaml:"file" toml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" json:"max_age_days"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr"`
}

// Default returns a small configuration that completes in seconds on the
// synthetic dataset.
func Default() Config {
	return Config{
		Search: SearchConfig{
			PopulationSize:   4,
			Iterations:       6,
			SampleSize:       2,
			Seed:             1,
			Selector:         "tournament",
			Mutation:         "mutate_one_layer",
			SeedMinMutations: 1,
			SeedMaxMutations: 5,
		},
		Topology: TopologyConfig{
			Name:                   topology.BranchedName,
			Candidates:             []string{"batchnorm", "dense:16", "tanh", "identity", "sigmoid", "dropout:0.25", "relu"},
			MaxVertices:            6,
			InitializeWithIdentity: true,
			Outputs:                1,
		},
		Trainer: TrainerConfig{
			Folds:        2,
			Epochs:       3,
			Workers:      2,
			Samples:      128,
			Features:     4,
			Noise:        0.05,
			LearningRate: 0.05,
		},
		Storage: StorageConfig{
			Kind:          storage.DefaultStoreKind,
			Path:          "evonas.db",
			BenchmarksDir: "benchmarks",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. The format follows the file extension.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode yaml config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode toml config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("decode toml config %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	s := c.Search
	if s.PopulationSize <= 0 {
		return fmt.Errorf("search.population_size must be > 0, got %d", s.PopulationSize)
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("search.iterations must be > 0, got %d", s.Iterations)
	}
	if s.SampleSize <= 0 {
		return fmt.Errorf("search.sample_size must be > 0, got %d", s.SampleSize)
	}
	if s.SeedMinMutations <= 0 || s.SeedMaxMutations <= s.SeedMinMutations {
		return fmt.Errorf("search seed mutations require 0 < min < max, got [%d, %d)", s.SeedMinMutations, s.SeedMaxMutations)
	}
	if err := s.Weights.Validate(); err != nil {
		return fmt.Errorf("search.weights: %w", err)
	}
	if _, err := evo.ResolveSelector(s.Selector); err != nil {
		return fmt.Errorf("search.selector: %w", err)
	}
	if !slices.Contains(evo.ListMutations(), s.Mutation) {
		return fmt.Errorf("search.mutation: %w: %s", evo.ErrStrategyNotFound, s.Mutation)
	}

	t := c.Topology
	if !slices.Contains(topology.List(), t.Name) {
		return fmt.Errorf("topology.name: %w: %s", topology.ErrTopologyNotFound, t.Name)
	}
	if len(t.Candidates) == 0 {
		return errors.New("topology.candidates must not be empty")
	}
	if _, err := ops.ParseAll(t.Candidates); err != nil {
		return fmt.Errorf("topology.candidates: %w", err)
	}
	if t.MaxVertices < 0 {
		return fmt.Errorf("topology.max_vertices must be >= 0, got %d", t.MaxVertices)
	}
	if t.DropoutRate < 0 || t.DropoutRate >= 1 {
		return fmt.Errorf("topology.dropout_rate must be in [0, 1), got %v", t.DropoutRate)
	}

	tr := c.Trainer
	if tr.Folds <= 0 || tr.Epochs <= 0 {
		return fmt.Errorf("trainer folds and epochs must be > 0, got folds=%d epochs=%d", tr.Folds, tr.Epochs)
	}
	if tr.Workers < 0 {
		return fmt.Errorf("trainer.workers must be >= 0, got %d", tr.Workers)
	}
	if tr.DataPath == "" {
		if tr.Samples < tr.Folds {
			return fmt.Errorf("trainer.samples must be >= folds, got samples=%d folds=%d", tr.Samples, tr.Folds)
		}
		if tr.Features <= 0 {
			return fmt.Errorf("trainer.features must be > 0, got %d", tr.Features)
		}
	} else if len(tr.TargetColumns) > 0 && !tr.DataHeader {
		return errors.New("trainer.target_columns requires trainer.data_header")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
