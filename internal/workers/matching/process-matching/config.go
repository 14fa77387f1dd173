// internal/workers/matching/process-matching/config.go
package processmatching

import "time"

type Config struct {
	Timeout time.Duration
	Async   bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
