package model

import (
	"errors"
	"time"
)

type SessionStatus string
type BreakType string
type ActivityType string

const (
	StatusActive            SessionStatus = "active"
	StatusPendingValidation SessionStatus = "pending_validation"
	StatusInactive          SessionStatus = "inactive"
	StatusCompleted         SessionStatus = "completed"

	BreakNormal BreakType = "normal"
	BreakOffice BreakType = "office"

	ActivityKeyboard          ActivityType = "keyboard"
	ActivityMouse             ActivityType = "mouse"
	ActivityWindowSwitch      ActivityType = "window_switch"
	ActivityInactivity        ActivityType = "inactivity"
	ActivityPendingValidation ActivityType = "pending_validation"
	ActivityAutoClockOut      ActivityType = "auto_clock_out"
)

var (
	ErrBreakInProgress  = errors.New("break already in progress")
	ErrNoOpenBreak      = errors.New("no active break found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrInvalidBreakType = errors.New("break type must be normal or office")
)

type Break struct {
	StartTime        time.Time  `bson:"start_time" json:"start_time"`
	EndTime          *time.Time `bson:"end_time" json:"end_time"`
	Type             BreakType  `bson:"type" json:"type"`
	Reason           string     `bson:"reason" json:"reason"`
	IntendedDuration int64      `bson:"intended_duration" json:"intended_duration"` // seconds
}

// ActivityLog entries are append-only; Details carries the client payload
// (count, app, duration, start/end, resumed, flushed, window identity).
type ActivityLog struct {
	Timestamp time.Time              `bson:"timestamp" json:"timestamp"`
	Type      ActivityType           `bson:"type" json:"type"`
	Details   map[string]interface{} `bson:"details" json:"details"`
}

type Session struct {
	ID                    string        `bson:"_id" json:"id"`
	UserID                string        `bson:"user_id" json:"user_id"`
	StartTime             time.Time     `bson:"start_time" json:"start_time"`
	EndTime               *time.Time    `bson:"end_time" json:"end_time"`
	Status                SessionStatus `bson:"status" json:"status"`
	Breaks                []Break       `bson:"breaks" json:"breaks"`
	InactiveTime          int64         `bson:"inactive_time" json:"inactive_time"`
	PendingValidationTime int64         `bson:"pending_validation_time" json:"pending_validation_time"`
	LastSyncedDuration    int64         `bson:"last_synced_duration" json:"last_synced_duration"`
	LastSyncTime          *time.Time    `bson:"last_sync_time" json:"last_sync_time"`
	ActivityLogs          []ActivityLog `bson:"activity_logs" json:"activity_logs"`
	Device                string        `bson:"device,omitempty" json:"device,omitempty"`
	Version               int64         `bson:"version" json:"-"`
	CreatedAt             time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `bson:"updated_at" json:"updated_at"`
}

func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		UserID:       userID,
		StartTime:    now,
		Status:       StatusActive,
		Breaks:       []Break{},
		ActivityLogs: []ActivityLog{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Session) IsCompleted() bool {
	return s.Status == StatusCompleted
}

func (b BreakType) Valid() bool {
	return b == BreakNormal || b == BreakOffice
}

// ActiveBreak returns the open break, which can only ever be the latest one.
func (s *Session) ActiveBreak() *Break {
	if len(s.Breaks) == 0 {
		return nil
	}
	latest := &s.Breaks[len(s.Breaks)-1]
	if latest.EndTime != nil {
		return nil
	}
	return latest
}

func (s *Session) StartBreak(breakType BreakType, reason string, intendedDuration int64, now time.Time) error {
	if s.IsCompleted() {
		return ErrSessionCompleted
	}
	if !breakType.Valid() {
		return ErrInvalidBreakType
	}
	if s.ActiveBreak() != nil {
		return ErrBreakInProgress
	}
	s.Breaks = append(s.Breaks, Break{
		StartTime:        now,
		Type:             breakType,
		Reason:           reason,
		IntendedDuration: intendedDuration,
	})
	return nil
}

// EndBreak closes the latest break only. With nothing open the session is
// left untouched and ErrNoOpenBreak is returned.
func (s *Session) EndBreak(now time.Time) error {
	active := s.ActiveBreak()
	if active == nil {
		return ErrNoOpenBreak
	}
	end := now
	if end.Before(active.StartTime) {
		end = active.StartTime
	}
	active.EndTime = &end
	return nil
}

// Finalize completes the session at end (client-measured) or now. An open
// break is closed at the same instant the session ends.
func (s *Session) Finalize(end *time.Time, now time.Time) error {
	if s.IsCompleted() {
		return ErrSessionCompleted
	}
	endAt := now
	if end != nil && !end.IsZero() {
		endAt = *end
	}
	if endAt.Before(s.StartTime) {
		endAt = s.StartTime
	}
	if active := s.ActiveBreak(); active != nil {
		breakEnd := endAt
		if breakEnd.Before(active.StartTime) {
			breakEnd = active.StartTime
		}
		active.EndTime = &breakEnd
	}
	s.EndTime = &endAt
	s.Status = StatusCompleted
	return nil
}

// UpdateSyncedDuration never moves the synced duration backwards.
func (s *Session) UpdateSyncedDuration(seconds int64, now time.Time) error {
	if s.IsCompleted() {
		return ErrSessionCompleted
	}
	if seconds > s.LastSyncedDuration {
		s.LastSyncedDuration = seconds
	}
	syncedAt := now
	s.LastSyncTime = &syncedAt
	return nil
}

// DetailInt reads a numeric detail regardless of how the decoder typed it.
func (a ActivityLog) DetailInt(key string) int64 {
	if a.Details == nil {
		return 0
	}
	switch v := a.Details[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (a ActivityLog) DetailString(key string) string {
	if a.Details == nil {
		return ""
	}
	if v, ok := a.Details[key].(string); ok {
		return v
	}
	return ""
}
