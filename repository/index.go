package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func SetupIndexes(db *mongo.Database, sessionsCollection, settingsCollection string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionIndexes := []mongo.IndexModel{
		// Day listings and total shift time
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "start_time", Value: -1},
			},
			Options: options.Index().
				SetName("user_sessions_start"),
		},
		// Active session lookup on clock-out and breaks
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().
				SetName("user_sessions_status"),
		},
		// Admin listings across users
		{
			Keys: bson.D{{Key: "start_time", Value: -1}},
			Options: options.Index().
				SetName("sessions_start"),
		},
	}

	settingsIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "key", Value: 1}},
			Options: options.Index().
				SetName("settings_key").
				SetUnique(true),
		},
	}

	if _, err := db.Collection(sessionsCollection).Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create sessions indexes: %w", err)
	}
	if _, err := db.Collection(settingsCollection).Indexes().CreateMany(ctx, settingsIndexes); err != nil {
		return fmt.Errorf("failed to create settings indexes: %w", err)
	}

	log.Println("Successfully created all indexes")
	return nil
}
