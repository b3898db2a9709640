package config

import (
	"context"
	"fmt"
	"time"

	"timearchitect/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type DatabaseConfig struct {
	URI                string
	MaxPoolSize        uint64
	MinPoolSize        uint64
	MaxConnIdleTime    time.Duration
	DatabaseName       string
	RetryWrites        bool
	SessionsCollection string
	SettingsCollection string
}

func LoadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URI:                utils.GetEnvAsString("MONGO_URI", "mongodb://localhost:27017"),
		MaxPoolSize:        utils.GetEnvAsUint64("MONGO_MAX_POOL_SIZE", 100),
		MinPoolSize:        utils.GetEnvAsUint64("MONGO_MIN_POOL_SIZE", 10),
		MaxConnIdleTime:    time.Duration(utils.GetEnvAsInt("MONGO_MAX_CONN_IDLE_TIME", 60)) * time.Second,
		DatabaseName:       utils.GetEnvAsString("MONGO_DB", "time_tracking"),
		RetryWrites:        utils.GetEnvAsBool("MONGO_RETRY_WRITES", true),
		SessionsCollection: utils.GetEnvAsString("SESSIONS_COLLECTION", "sessions"),
		SettingsCollection: utils.GetEnvAsString("SETTINGS_COLLECTION", "settings"),
	}
}

// Connect opens a pooled client and verifies it with a ping.
func (c DatabaseConfig) Connect(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(c.URI).
		SetMaxPoolSize(c.MaxPoolSize).
		SetMinPoolSize(c.MinPoolSize).
		SetMaxConnIdleTime(c.MaxConnIdleTime).
		SetRetryWrites(c.RetryWrites)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}
