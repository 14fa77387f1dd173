// internal/workers/training/retrain-ranking-model/config.go
package retrainrankingmodel

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 45 * time.Minute,
	}
}
