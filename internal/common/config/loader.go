// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml and applies
// environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are commonly provided only through the environment.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty := func(dst *string, env string) {
		if *dst == "" {
			if val := os.Getenv(env); val != "" {
				*dst = val
			}
		}
	}

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Integrations.Maps.APIKey, "GOOGLE_MAPS_API_KEY")
	setIfEmpty(&cfg.Integrations.TrainingService.APIKey, "TRAINING_SERVICE_API_KEY")
	setIfEmpty(&cfg.Integrations.AWS.SNS.TopicARN, "MATCHES_TOPIC_ARN")
	setIfEmpty(&cfg.Training.ProductionPath, "ML_MODEL_PATH")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	m := &cfg.Matching
	if m.SimilarityThreshold == 0 {
		m.SimilarityThreshold = 0.6
	}
	if m.CandidateLimit == 0 {
		m.CandidateLimit = 50
	}
	if m.MaxMatches == 0 {
		m.MaxMatches = 10
	}
	if m.ProcessingTimeout == 0 {
		m.ProcessingTimeout = 30000
	}
	if m.MaxDistanceKm == 0 {
		m.MaxDistanceKm = 50
	}
	if m.EnrichmentConcurrency == 0 {
		m.EnrichmentConcurrency = 1
	}
	if m.ProfileCacheTTL == 0 {
		m.ProfileCacheTTL = 10 * 60 * 1000
	}
	if m.DistanceCacheTTL == 0 {
		m.DistanceCacheTTL = 24 * 60 * 60 * 1000
	}

	tr := &cfg.Training
	if tr.WindowDays == 0 {
		tr.WindowDays = 30
	}
	if tr.MinSamples == 0 {
		tr.MinSamples = 50
	}
	if tr.ImprovementThreshold == 0 {
		tr.ImprovementThreshold = 0.02
	}
	if tr.TrainFraction == 0 {
		tr.TrainFraction = 0.8
	}
	if tr.ArtifactDir == "" {
		tr.ArtifactDir = "models/staging"
	}
	if tr.ProductionPath == "" {
		tr.ProductionPath = "models/matching-model-v1.txt"
	}
	if tr.NumRounds == 0 {
		tr.NumRounds = 100
	}
	if tr.LearningRate == 0 {
		tr.LearningRate = 0.05
	}
	if tr.MaxLeaves == 0 {
		tr.MaxLeaves = 31
	}
	if tr.MinDataInLeaf == 0 {
		tr.MinDataInLeaf = 5
	}
	if tr.EarlyStoppingRounds == 0 {
		tr.EarlyStoppingRounds = 10
	}
	if tr.NDCGAt == 0 {
		tr.NDCGAt = 10
	}

	if cfg.Integrations.Maps.BaseURL == "" {
		cfg.Integrations.Maps.BaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	}
	if cfg.Integrations.Maps.Timeout == 0 {
		cfg.Integrations.Maps.Timeout = 5000
	}
	if cfg.Integrations.TrainingService.PollInterval == 0 {
		cfg.Integrations.TrainingService.PollInterval = 15000
	}
	if cfg.Integrations.TrainingService.Timeout == 0 {
		cfg.Integrations.TrainingService.Timeout = 30 * 60 * 1000
	}
	if cfg.Integrations.Retry.Mode == "" {
		cfg.Integrations.Retry.Mode = "zeebe"
	}
	if cfg.Integrations.Retry.ProcessID == "" {
		cfg.Integrations.Retry.ProcessID = "matching-retry"
	}
	if cfg.Integrations.Retry.Timeout == 0 {
		cfg.Integrations.Retry.Timeout = 10000
	}

	if cfg.Observability.MetricsIndex == "" {
		cfg.Observability.MetricsIndex = "matching-model-metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 60000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Matching.SimilarityThreshold < 0 || cfg.Matching.SimilarityThreshold >= 1 {
		return fmt.Errorf("matching.similarity_threshold must be in [0,1), got %v", cfg.Matching.SimilarityThreshold)
	}
	if cfg.Training.TrainFraction <= 0 || cfg.Training.TrainFraction >= 1 {
		return fmt.Errorf("training.train_fraction must be in (0,1), got %v", cfg.Training.TrainFraction)
	}
	switch cfg.Integrations.Retry.Mode {
	case "http":
		if cfg.Integrations.Retry.URL == "" {
			return fmt.Errorf("integrations.retry.url is required when mode is http")
		}
	case "zeebe":
	default:
		return fmt.Errorf("integrations.retry.mode must be http or zeebe, got %q", cfg.Integrations.Retry.Mode)
	}
	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}
