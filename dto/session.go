package dto

import (
	"time"

	"timearchitect/model"
)

type ClockInRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type ClockInResponse struct {
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
	Device    string    `json:"device,omitempty"`
}

// ClockOutRequest carries the client-measured duration and, when known, the
// instant the client stopped tracking.
type ClockOutRequest struct {
	UserID   string     `json:"user_id" binding:"required"`
	Duration int64      `json:"duration" binding:"gte=0"`
	EndTime  *time.Time `json:"end_time,omitempty"`
}

type ClockOutResponse struct {
	SessionID string       `json:"session_id"`
	Duration  float64      `json:"duration"`
	EndTime   *time.Time   `json:"end_time"`
	Totals    model.Totals `json:"totals"`
}

type BreakStartRequest struct {
	UserID           string          `json:"user_id" binding:"required"`
	Type             model.BreakType `json:"type" binding:"required,breaktype"`
	Reason           string          `json:"reason"`
	IntendedDuration int64           `json:"intended_duration" binding:"required,gt=0"`
}

type BreakEndRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type BreakResponse struct {
	SessionID string       `json:"session_id"`
	Break     *model.Break `json:"break"`
}

type ActivityRequest struct {
	SessionID     string                 `json:"session_id" binding:"required"`
	Type          model.ActivityType     `json:"type" binding:"required,activitytype"`
	Timestamp     *time.Time             `json:"timestamp,omitempty"`
	Details       map[string]interface{} `json:"details"`
	IsOfflineSync bool                   `json:"is_offline_sync"`
}

type ActivityResponse struct {
	Duplicate bool      `json:"duplicate"`
	Timestamp time.Time `json:"timestamp"`
}

type SyncRequest struct {
	Duration *int64 `json:"duration" binding:"required,gte=0"`
}

type SyncResponse struct {
	SessionID          string     `json:"session_id"`
	LastSyncedDuration int64      `json:"last_synced_duration"`
	LastSyncTime       *time.Time `json:"last_sync_time"`
}

type SettingUpdateRequest struct {
	Value interface{} `json:"value"`
}

type SessionResponse struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"user_id"`
	Status             model.SessionStatus `json:"status"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            *time.Time          `json:"end_time"`
	Device             string              `json:"device,omitempty"`
	Breaks             []model.Break       `json:"breaks"`
	ActiveBreak        *model.Break        `json:"active_break,omitempty"`
	ActivityCount      int                 `json:"activity_count"`
	LastSyncedDuration int64               `json:"last_synced_duration"`
	LastSyncTime       *time.Time          `json:"last_sync_time"`
	Totals             model.Totals        `json:"totals"`
}

func ToSessionResponse(session *model.Session, totals model.Totals) SessionResponse {
	return SessionResponse{
		ID:                 session.ID,
		UserID:             session.UserID,
		Status:             session.Status,
		StartTime:          session.StartTime,
		EndTime:            session.EndTime,
		Device:             session.Device,
		Breaks:             session.Breaks,
		ActiveBreak:        session.ActiveBreak(),
		ActivityCount:      len(session.ActivityLogs),
		LastSyncedDuration: session.LastSyncedDuration,
		LastSyncTime:       session.LastSyncTime,
		Totals:             totals,
	}
}

type DayGroupResponse struct {
	Key      string            `json:"key"`
	UserID   string            `json:"user_id"`
	Date     string            `json:"date"`
	Sessions []SessionResponse `json:"sessions"`
	Totals   model.Totals      `json:"totals"`
}
