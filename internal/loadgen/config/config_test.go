package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	w := cfg.Workload
	assert.Equal(t, 10, w.Workers)
	assert.Equal(t, 3*time.Minute, w.Duration())
	assert.Equal(t, 100000, w.KeySpace)
	assert.Equal(t, 100, w.GetPercent+w.PutPercent+w.DeletePercent)
	assert.Equal(t, time.Second, w.MaxThink())
	assert.NoError(t, w.Validate())
	assert.Equal(t, backend.KindZooKeeper, cfg.Client.Registry.Kind)
}

func TestWorkloadConfig_Validate(t *testing.T) {
	cases := map[string]func(*WorkloadConfig){
		"no workers":    func(w *WorkloadConfig) { w.Workers = 0 },
		"no keys":       func(w *WorkloadConfig) { w.KeySpace = 0 },
		"mix not 100":   func(w *WorkloadConfig) { w.DeletePercent = 20 },
		"negative mix":  func(w *WorkloadConfig) { w.GetPercent, w.DeletePercent = 80, -10 },
		"empty values":  func(w *WorkloadConfig) { w.MinValueBytes = 0 },
		"inverted sizes":func(w *WorkloadConfig) { w.MaxValueBytes = 1 },
		"negative think":func(w *WorkloadConfig) { w.MaxThinkMS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := DefaultConfig().Workload
			mutate(&w)
			assert.Error(t, w.Validate())
		})
	}
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "loadgen.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workload.Workers)
	assert.Equal(t, time.Second, cfg.Workload.Duration())
	assert.Equal(t, 100000, cfg.Workload.KeySpace)
	assert.Equal(t, backend.KindMemory, cfg.Client.Registry.Kind)
}

func TestLoad_MissingExplicitPathFails(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsPathOutsideWorkingDir(t *testing.T) {
	_, err := Load(filepath.Join("..", "config", "testdata", "loadgen.yaml"))
	assert.Error(t, err)
}
