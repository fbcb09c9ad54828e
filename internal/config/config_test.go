package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"data": {"path": "mnist", "shuffle": true, "num_cached": 4},
		"training": {"n_epochs": 5, "batch_size": 64, "display_cost": true},
		"save_load": {"checkpoint": true, "checkpoint_dir": "ckpt"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mnist", cfg.Data.Path)
	assert.True(t, cfg.Data.Shuffle)
	assert.Equal(t, 4, cfg.Data.NumCached)
	assert.Equal(t, 5, cfg.Training.NumEpochs)
	assert.Equal(t, 64, cfg.Training.BatchSize)
	assert.True(t, cfg.Training.DisplayCost)
	assert.True(t, cfg.SaveLoad.Checkpoint)
	assert.Equal(t, "ckpt", cfg.SaveLoad.CheckpointDir)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Data.NumCached)
	assert.Equal(t, 1, cfg.Training.NumEpochs)
	assert.Equal(t, 32, cfg.Training.BatchSize)
	assert.Equal(t, 32, cfg.Training.ValidationBatchSize)
	assert.Equal(t, 32, cfg.Testing.BatchSize)
	assert.Equal(t, "checkpoints", cfg.SaveLoad.CheckpointDir)
}

func TestLoadValidationDefaultsFollowBatchSize(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"training": {"batch_size": 16}}`))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Training.ValidationBatchSize)
	assert.Equal(t, 16, cfg.Testing.BatchSize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot load configuration")

	_, err = Load(writeConfig(t, `{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot load configuration")
}
