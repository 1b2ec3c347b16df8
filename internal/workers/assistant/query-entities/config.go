// internal/workers/assistant/query-entities/config.go
package queryentities

import "time"

type Config struct {
	Timeout   time.Duration
	ListLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   10 * time.Second,
		ListLimit: 5,
	}
}
