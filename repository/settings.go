package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"timearchitect/model"
	"timearchitect/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SettingsRepo struct {
	MongoCollection *mongo.Collection
}

func GetSettingsRepo(client *mongo.Client, dbName, collectionName string) *SettingsRepo {
	return &SettingsRepo{
		MongoCollection: client.Database(dbName).Collection(collectionName),
	}
}

// InitializeDefaults inserts any missing default settings. Values an admin
// already edited are left alone.
func (r *SettingsRepo) InitializeDefaults(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, setting := range model.DefaultSettings() {
		setting.UpdatedAt = time.Now()
		result, err := r.MongoCollection.UpdateOne(ctx,
			bson.M{"key": setting.Key},
			bson.M{"$setOnInsert": setting},
			options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", setting.Key, err)
		}
		if result.UpsertedCount > 0 {
			log.Printf("Created default setting: %s", setting.Key)
		}
	}
	return nil
}

func (r *SettingsRepo) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	timer := utils.TrackDBOperation("find", "settings")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var setting model.Setting
	err := r.MongoCollection.FindOne(ctx, bson.M{"key": key}).Decode(&setting)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch setting %s: %w", key, err)
	}
	return &setting, nil
}

func (r *SettingsRepo) ListSettings(ctx context.Context) ([]*model.Setting, error) {
	timer := utils.TrackDBOperation("find", "settings")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.MongoCollection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	defer cursor.Close(ctx)

	var settings []*model.Setting
	if err := cursor.All(ctx, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

func (r *SettingsRepo) UpdateSetting(ctx context.Context, key string, value interface{}, now time.Time) (*model.Setting, error) {
	timer := utils.TrackDBOperation("update", "settings")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var updated model.Setting
	err := r.MongoCollection.FindOneAndUpdate(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update setting %s: %w", key, err)
	}
	return &updated, nil
}
