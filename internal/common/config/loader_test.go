package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: caregiving_db
    user: postgres
  redis:
    address: localhost:6379
workers:
  process-matching:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, 50, cfg.Matching.CandidateLimit)
	assert.Equal(t, 10, cfg.Matching.MaxMatches)
	assert.Equal(t, 30*time.Second, GetDuration(cfg.Matching.ProcessingTimeout))
	assert.Equal(t, 30, cfg.Training.WindowDays)
	assert.Equal(t, 50, cfg.Training.MinSamples)
	assert.Equal(t, 0.02, cfg.Training.ImprovementThreshold)
	assert.Equal(t, 0.8, cfg.Training.TrainFraction)
	assert.Equal(t, 10, cfg.Training.NDCGAt)
	assert.Equal(t, "zeebe", cfg.Integrations.Retry.Mode)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	w := cfg.Workers["process-matching"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_MAPS_KEY", "maps-secret")
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
integrations:
  maps:
    api_key: ${TEST_MAPS_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "maps-secret", cfg.Integrations.Maps.APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: h\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "http retry without url",
			body:    minimalYAML + "integrations:\n  retry:\n    mode: http\n",
			wantErr: "integrations.retry.url",
		},
		{
			name:    "unknown retry mode",
			body:    minimalYAML + "integrations:\n  retry:\n    mode: carrier-pigeon\n",
			wantErr: "integrations.retry.mode",
		},
		{
			name:    "threshold out of range",
			body:    minimalYAML + "matching:\n  similarity_threshold: 1.5\n",
			wantErr: "similarity_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}
	w := GetWorkerConfig(cfg, "retrain-ranking-model")
	assert.True(t, w.Enabled)
	assert.Equal(t, 60000, w.Timeout)
}
