package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

type Kind string

const (
	KindActivity Kind = "activity"
	KindCommand  Kind = "command"
)

// ErrRejected marks a send the server refused outright. Retrying would fail
// the same way, so Drain discards the entry instead of stopping on it.
var ErrRejected = errors.New("rejected by server")

// Entry is one queued outgoing message. IDs grow with enqueue order.
type Entry struct {
	ID         uint      `gorm:"primarykey"`
	Kind       Kind      `gorm:"not null;index"`
	Payload    string    `gorm:"type:text;not null"`
	EnqueuedAt time.Time `gorm:"not null"`
	Attempts   int       `gorm:"not null;default:0"`
	LastError  string
}

func (Entry) TableName() string {
	return "offline_queue"
}

func (e Entry) Decode(v interface{}) error {
	return json.Unmarshal([]byte(e.Payload), v)
}

type SendFunc func(ctx context.Context, entry Entry) error

type DrainReport struct {
	Sent      int
	Rejected  int
	Remaining int
	// Interrupted is set when the client went offline mid-drain.
	Interrupted bool
}

type Queue struct {
	db     *gorm.DB
	logger *slog.Logger
	mu     sync.Mutex
}

func NewQueue(db *gorm.DB, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Queue{db: db, logger: logger}
}

func (q *Queue) Enqueue(ctx context.Context, kind Kind, payload interface{}) (*Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	entry := &Entry{Kind: kind, Payload: string(data), EnqueuedAt: time.Now()}
	if err := q.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}
	q.logger.Debug("queued while offline", "id", entry.ID, "kind", kind)
	return entry, nil
}

// Pending lists queued entries in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := q.db.WithContext(ctx).Order("id asc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return entries, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	var count int64
	if err := q.db.WithContext(ctx).Model(&Entry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return int(count), nil
}

// Drain sends entries strictly in enqueue order. It stops at the first
// failed send, leaving that entry and everything after it queued in their
// original order, and stops quietly when online reports false. Sent entries
// are removed one by one, so a crash mid-drain resends at most one entry.
func (q *Queue) Drain(ctx context.Context, online func() bool, send SendFunc) (DrainReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var report DrainReport
	entries, err := q.Pending(ctx)
	if err != nil {
		return report, err
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(entries) - i
			return report, err
		}
		if online != nil && !online() {
			report.Interrupted = true
			report.Remaining = len(entries) - i
			q.logger.Info("drain interrupted, client offline", "remaining", report.Remaining)
			return report, nil
		}

		sendErr := send(ctx, entry)
		switch {
		case sendErr == nil:
			report.Sent++
		case errors.Is(sendErr, ErrRejected):
			report.Rejected++
			q.logger.Warn("server rejected queued entry, discarding", "id", entry.ID, "kind", entry.Kind, "error", sendErr)
		default:
			report.Remaining = len(entries) - i
			if err := q.markFailed(ctx, entry, sendErr); err != nil {
				q.logger.Error("failed to record send failure", "id", entry.ID, "error", err)
			}
			return report, fmt.Errorf("drain stopped at entry %d: %w", entry.ID, sendErr)
		}

		if err := q.db.WithContext(ctx).Delete(&Entry{}, entry.ID).Error; err != nil {
			report.Remaining = len(entries) - i
			return report, fmt.Errorf("failed to remove sent entry %d: %w", entry.ID, err)
		}
	}
	return report, nil
}

func (q *Queue) markFailed(ctx context.Context, entry Entry, sendErr error) error {
	return q.db.WithContext(ctx).Model(&Entry{}).Where("id = ?", entry.ID).Updates(map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": sendErr.Error(),
	}).Error
}
