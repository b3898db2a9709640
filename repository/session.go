package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timearchitect/model"
	"timearchitect/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrVersionConflict means another writer saved the session since it
	// was loaded; the caller reloads and retries.
	ErrVersionConflict = errors.New("session was modified concurrently")
)

type SessionFilter struct {
	UserID string
	Status model.SessionStatus
	From   *time.Time
	To     *time.Time
}

type SessionRepo struct {
	MongoCollection *mongo.Collection
}

func GetSessionRepo(client *mongo.Client, dbName, collectionName string) *SessionRepo {
	return &SessionRepo{
		MongoCollection: client.Database(dbName).Collection(collectionName),
	}
}

func (r *SessionRepo) CreateSession(ctx context.Context, session *model.Session) error {
	timer := utils.TrackDBOperation("insert", "sessions")
	defer timer.ObserveDuration()

	if session == nil {
		utils.TrackError("database", "nil_session")
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" || session.UserID == "" {
		utils.TrackError("database", "invalid_session_data")
		return fmt.Errorf("invalid session data: missing required fields")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.MongoCollection.InsertOne(ctx, session); err != nil {
		utils.TrackError("database", "session_creation_failed")
		return fmt.Errorf("failed to create session in database: %w", err)
	}
	return nil
}

// GetSession returns nil, nil when no session has the id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var session model.Session
	err := r.MongoCollection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		utils.TrackError("database", "session_fetch_failed")
		return nil, fmt.Errorf("failed to fetch session from database: %w", err)
	}
	return &session, nil
}

func (r *SessionRepo) GetActiveSession(ctx context.Context, userID string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}})
	var session model.Session
	err := r.MongoCollection.FindOne(ctx, bson.M{
		"user_id": userID,
		"status":  bson.M{"$ne": model.StatusCompleted},
	}, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		utils.TrackError("database", "active_session_fetch_failed")
		return nil, fmt.Errorf("failed to fetch active session: %w", err)
	}
	return &session, nil
}

// SaveSession writes the mutable lifecycle fields with a compare-and-swap on
// version. Activity logs and the counters they feed are never written here,
// so concurrent appends are not overwritten.
func (r *SessionRepo) SaveSession(ctx context.Context, session *model.Session) error {
	timer := utils.TrackDBOperation("update", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":               session.Status,
			"end_time":             session.EndTime,
			"breaks":               session.Breaks,
			"last_synced_duration": session.LastSyncedDuration,
			"last_sync_time":       session.LastSyncTime,
			"updated_at":           session.UpdatedAt,
			"version":              session.Version + 1,
		},
	}

	result, err := r.MongoCollection.UpdateOne(ctx,
		bson.M{"_id": session.ID, "version": session.Version}, update)
	if err != nil {
		utils.TrackError("database", "session_update_failed")
		return fmt.Errorf("failed to update session in database: %w", err)
	}
	if result.MatchedCount == 0 {
		utils.TrackError("database", "session_version_conflict")
		return ErrVersionConflict
	}
	session.Version++
	return nil
}

// AppendActivity pushes entry unless an entry with the same timestamp and
// type already exists, keeping the log sorted by timestamp. The duplicate
// check, push and counter increments happen in one document update.
func (r *SessionRepo) AppendActivity(ctx context.Context, sessionID string, entry model.ActivityLog, inactiveInc, pendingInc int64, now time.Time) (bool, error) {
	timer := utils.TrackDBOperation("append", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"_id": sessionID,
		"activity_logs": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"timestamp": entry.Timestamp,
			"type":      entry.Type,
		}}},
	}
	update := bson.M{
		"$push": bson.M{"activity_logs": bson.M{
			"$each": []model.ActivityLog{entry},
			"$sort": bson.M{"timestamp": 1},
		}},
		"$inc": bson.M{
			"inactive_time":           inactiveInc,
			"pending_validation_time": pendingInc,
		},
		"$set": bson.M{"updated_at": now},
	}

	result, err := r.MongoCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		utils.TrackError("database", "activity_append_failed")
		return false, fmt.Errorf("failed to append activity: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	count, err := r.MongoCollection.CountDocuments(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	if count == 0 {
		return false, ErrSessionNotFound
	}
	return false, nil
}

// FindSessions returns matching sessions, newest start first.
func (r *SessionRepo) FindSessions(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.From != nil || filter.To != nil {
		rng := bson.M{}
		if filter.From != nil {
			rng["$gte"] = *filter.From
		}
		if filter.To != nil {
			rng["$lt"] = *filter.To
		}
		query["start_time"] = rng
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}})
	cursor, err := r.MongoCollection.Find(ctx, query, opts)
	if err != nil {
		utils.TrackError("database", "session_find_failed")
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}
