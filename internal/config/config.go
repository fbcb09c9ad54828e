// Package config loads training run configuration from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Data configures the dataset manager.
type Data struct {
	Path      string `json:"path"`
	Shuffle   bool   `json:"shuffle"`
	NoTarget  bool   `json:"no_target"`
	Augment   bool   `json:"augmentation"`
	NumCached int    `json:"num_cached"`
}

// Training configures the training loop.
type Training struct {
	NumEpochs           int  `json:"n_epochs"`
	BatchSize           int  `json:"batch_size"`
	ValidationBatchSize int  `json:"validation_batch_size"`
	Continue            bool `json:"continue"`
	DisplayCost         bool `json:"display_cost"`
}

// Testing configures evaluation runs.
type Testing struct {
	BatchSize int  `json:"batch_size"`
	GetOutput bool `json:"get_output"`
}

// SaveLoad configures checkpointing and parameter extraction.
type SaveLoad struct {
	SaveModel     bool   `json:"save_model"`
	Checkpoint    bool   `json:"checkpoint"`
	CheckpointDir string `json:"checkpoint_dir"`
	ExtractParams bool   `json:"extract_params"`
	ParamFile     string `json:"param_file"`
}

// Config is the top-level run configuration.
type Config struct {
	Data       Data     `json:"data"`
	Training   Training `json:"training"`
	Testing    Testing  `json:"testing"`
	SaveLoad   SaveLoad `json:"save_load"`
	SummaryDir string   `json:"summary_dir"`
}

func (c *Config) setDefaults() {
	if c.Data.NumCached == 0 {
		c.Data.NumCached = 10
	}
	if c.Training.NumEpochs == 0 {
		c.Training.NumEpochs = 1
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 32
	}
	if c.Training.ValidationBatchSize == 0 {
		c.Training.ValidationBatchSize = c.Training.BatchSize
	}
	if c.Testing.BatchSize == 0 {
		c.Testing.BatchSize = c.Training.ValidationBatchSize
	}
	if c.SaveLoad.CheckpointDir == "" {
		c.SaveLoad.CheckpointDir = "checkpoints"
	}
}

// Load reads and parses a JSON configuration file, filling in defaults
// for omitted fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration %q: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("cannot load configuration %q: %w", path, err)
	}
	c.setDefaults()
	return &c, nil
}
