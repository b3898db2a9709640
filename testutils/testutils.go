package testutils

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"timearchitect/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const testDatabase = "timearchitect_test"

var envOnce sync.Once

// SetupTestEnvironment loads the project .env once and points the database
// settings at the test database.
func SetupTestEnvironment() {
	envOnce.Do(func() {
		if rootDir := findProjectRoot(); rootDir != "" {
			if err := godotenv.Load(filepath.Join(rootDir, ".env")); err != nil {
				log.Printf("Warning: Could not load .env file: %v", err)
			}
		}

		os.Setenv("GO_ENV", "test")
		os.Setenv("MONGO_DB", testDatabase)
		if os.Getenv("TEST_MONGO_URI") == "" {
			os.Setenv("TEST_MONGO_URI", utils.GetEnvAsString("MONGO_URI", "mongodb://localhost:27017"))
		}
		if os.Getenv("TEST_REDIS_URL") == "" {
			os.Setenv("TEST_REDIS_URL", utils.GetEnvAsString("REDIS_URL", "redis://localhost:6379/15"))
		}
	})
}

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

// SetupTestDB connects to the test MongoDB, skipping the test when no server
// answers. The returned database is dropped on cleanup.
func SetupTestDB(t *testing.T) (*mongo.Client, *mongo.Database) {
	t.Helper()
	SetupTestEnvironment()

	opts := options.Client().
		ApplyURI(os.Getenv("TEST_MONGO_URI")).
		SetServerSelectionTimeout(2 * time.Second).
		SetMaxPoolSize(utils.GetEnvAsUint64("MONGO_MAX_POOL_SIZE", 10))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("MongoDB not available: %v", err)
	}

	db := client.Database(testDatabase)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := db.Drop(ctx); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", testDatabase, err)
		}
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Warning: Failed to disconnect: %v", err)
		}
	})
	return client, db
}

// SetupTestRedis connects to the test Redis database, skipping the test when
// it is unreachable. The database is flushed before and after the test.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	SetupTestEnvironment()

	opts, err := redis.ParseURL(os.Getenv("TEST_REDIS_URL"))
	if err != nil {
		t.Fatalf("Invalid TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}
