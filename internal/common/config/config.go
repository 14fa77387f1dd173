// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Training      TrainingConfig          `mapstructure:"training"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// MatchingConfig drives the online pipeline.
type MatchingConfig struct {
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold"`
	CandidateLimit        int     `mapstructure:"candidate_limit"`
	MaxMatches            int     `mapstructure:"max_matches"`
	ProcessingTimeout     int     `mapstructure:"processing_timeout_ms"`
	MaxDistanceKm         float64 `mapstructure:"max_distance_km"`
	EnrichmentConcurrency int     `mapstructure:"enrichment_concurrency"`
	ProfileCacheTTL       int     `mapstructure:"profile_cache_ttl_ms"`
	DistanceCacheTTL      int     `mapstructure:"distance_cache_ttl_ms"`
	ModelReloadInterval   int     `mapstructure:"model_reload_interval_ms"` // 0 disables periodic reload
}

// TrainingConfig drives the offline retrain job.
type TrainingConfig struct {
	WindowDays           int     `mapstructure:"window_days"`
	MinSamples           int     `mapstructure:"min_samples"`
	ImprovementThreshold float64 `mapstructure:"improvement_threshold"`
	TrainFraction        float64 `mapstructure:"train_fraction"`
	ArtifactDir          string  `mapstructure:"artifact_dir"`
	ProductionPath       string  `mapstructure:"production_path"`
	NumRounds            int     `mapstructure:"num_rounds"`
	LearningRate         float64 `mapstructure:"learning_rate"`
	MaxLeaves            int     `mapstructure:"max_leaves"`
	MinDataInLeaf        int     `mapstructure:"min_data_in_leaf"`
	EarlyStoppingRounds  int     `mapstructure:"early_stopping_rounds"`
	NDCGAt               int     `mapstructure:"ndcg_k"`
}

// IntegrationConfig holds settings for notification, distance, training and retry services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	Maps struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"maps"`

	TrainingService struct {
		BaseURL      string `mapstructure:"base_url"`
		APIKey       string `mapstructure:"api_key"`
		PollInterval int    `mapstructure:"poll_interval"` // milliseconds
		Timeout      int    `mapstructure:"timeout"`       // milliseconds
	} `mapstructure:"training_service"`

	Retry struct {
		Mode      string `mapstructure:"mode"` // "http" or "zeebe"
		URL       string `mapstructure:"url"`
		ProcessID string `mapstructure:"process_id"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"retry"`
}

// ObservabilityConfig holds tracing and telemetry sink settings.
type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	MetricsIndex   string `mapstructure:"metrics_index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig holds the health/metrics/retrain HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
