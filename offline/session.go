package offline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRecord is the session a tracker is clocked into. It outlives the
// process so a restart after a crash picks the same session up again, and
// is removed once the clock-out has been sent or queued.
type SessionRecord struct {
	UserID    string    `gorm:"primaryKey"`
	SessionID string    `gorm:"not null"`
	StartTime time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (SessionRecord) TableName() string {
	return "client_session"
}

// CurrentSession returns nil when no session is recorded for userID.
func (r *Reconciler) CurrentSession(ctx context.Context, userID string) (*SessionRecord, error) {
	var record SessionRecord
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current session: %w", err)
	}
	return &record, nil
}

func (r *Reconciler) SaveSession(ctx context.Context, record SessionRecord) error {
	record.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "start_time", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to record current session: %w", err)
	}
	return nil
}

func (r *Reconciler) ClearSession(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Delete(&SessionRecord{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to clear current session: %w", err)
	}
	return nil
}
