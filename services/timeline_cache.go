package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"timearchitect/model"

	"github.com/redis/go-redis/v9"
)

// TimelineCache stores grouped timelines. Keys include the log length and
// status, so an append or a clock-out naturally misses the old entry.
type TimelineCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTimelineCache(client *redis.Client, ttl time.Duration) *TimelineCache {
	return &TimelineCache{client: client, ttl: ttl}
}

func TimelineKey(session *model.Session) string {
	return fmt.Sprintf("timeline:%s:%d:%s", session.ID, len(session.ActivityLogs), session.Status)
}

func (tc *TimelineCache) GetTimeline(ctx context.Context, key string) ([]model.Segment, bool, error) {
	data, err := tc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get timeline from cache: %v", err)
	}

	var segments []model.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal timeline: %v", err)
	}
	return segments, true, nil
}

func (tc *TimelineCache) SetTimeline(ctx context.Context, key string, segments []model.Segment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %v", err)
	}
	if err := tc.client.Set(ctx, key, data, tc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache timeline: %v", err)
	}
	return nil
}

func (tc *TimelineCache) IsConnected(ctx context.Context) bool {
	if tc == nil || tc.client == nil {
		return false
	}
	return tc.client.Ping(ctx).Err() == nil
}
