package config

import (
	"strings"
	"time"

	"timearchitect/utils"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type ServerConfig struct {
	Port            string
	Storage         string
	RedisURL        string
	AllowedOrigins  []string
	MaxRequestBytes int64
	TimelineTTL     time.Duration
	ShutdownTimeout time.Duration
	// ReplayWindow bounds how far in the past a replayed (offline) activity
	// timestamp may be; live reports are held to LiveSkew.
	ReplayWindow time.Duration
	LiveSkew     time.Duration
	Database     DatabaseConfig
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            utils.GetEnvAsString("PORT", "3000"),
		Storage:         strings.ToLower(utils.GetEnvAsString("STORAGE", StorageMongo)),
		RedisURL:        utils.GetEnvAsString("REDIS_URL", ""),
		AllowedOrigins:  utils.GetEnvAsList("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174"),
		MaxRequestBytes: int64(utils.GetEnvAsInt("MAX_REQUEST_BYTES", 1<<20)),
		TimelineTTL:     utils.GetEnvAsDuration("TIMELINE_CACHE_TTL", 10*time.Minute),
		ShutdownTimeout: utils.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ReplayWindow:    utils.GetEnvAsDuration("REPLAY_WINDOW", 7*24*time.Hour),
		LiveSkew:        utils.GetEnvAsDuration("LIVE_SKEW", 5*time.Minute),
		Database:        LoadDatabaseConfig(),
	}
}
