package app

import (
	"time"

	"github.com/clearlens/governance-backend/internal/platform/envutil"
)

type Config struct {
	Port                   string
	GinMode                string
	MonitorDefaultInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:                   envutil.String("PORT", "8080"),
		GinMode:                envutil.String("GIN_MODE", "debug"),
		MonitorDefaultInterval: envutil.DurationSeconds("MONITOR_DEFAULT_INTERVAL_SECONDS", time.Minute),
	}
}
