package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventSessionStarted        = "sessionStarted"
	EventSessionEnded          = "sessionEnded"
	EventSessionUpdated        = "sessionUpdated"
	EventBreakStarted          = "breakStarted"
	EventBreakEnded            = "breakEnded"
	EventSettingsUpdated       = "settingsUpdated"
	EventTotalShiftTimeUpdated = "totalShiftTimeUpdate"

	eventsChannel = "timearchitect:events"
)

type Event struct {
	Type   string          `json:"type"`
	UserID string          `json:"user_id,omitempty"`
	Data   json.RawMessage `json:"data"`
	At     time.Time       `json:"at"`
}

func NewEvent(eventType, userID string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event: %v", eventType, err)
	}
	return Event{Type: eventType, UserID: userID, Data: raw, At: time.Now().UTC()}, nil
}

// LocalBus fans events out to in-process subscribers. Slow subscribers
// lose events instead of blocking publishers.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subscribers: make(map[int]chan Event)}
}

func (b *LocalBus) Publish(_ context.Context, event Event) error {
	b.fanOut(event)
	return nil
}

func (b *LocalBus) fanOut(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a channel of events and a function that releases it.
func (b *LocalBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 32)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// RedisBus publishes through a Redis channel so every server instance's
// subscribers see every event.
type RedisBus struct {
	*LocalBus
	client *redis.Client
	pubsub *redis.PubSub
}

func NewRedisBus(ctx context.Context, client *redis.Client) (*RedisBus, error) {
	pubsub := client.Subscribe(ctx, eventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %v", eventsChannel, err)
	}

	bus := &RedisBus{LocalBus: NewLocalBus(), client: client, pubsub: pubsub}
	go bus.forward()
	return bus, nil
}

func (b *RedisBus) forward() {
	for msg := range b.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("Warning: dropping malformed event: %v", err)
			continue
		}
		b.fanOut(event)
	}
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}
	if err := b.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %v", err)
	}
	return nil
}

func (b *RedisBus) Close() error {
	return b.pubsub.Close()
}

// NewRedisClient parses the URL and checks the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	return client, nil
}
