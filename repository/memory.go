package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"timearchitect/model"
)

// MemorySessionRepo mirrors SessionRepo in process memory. It backs
// STORAGE=memory and the usecase and handler tests.
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *MemorySessionRepo) CreateSession(_ context.Context, session *model.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" || session.UserID == "" {
		return fmt.Errorf("invalid session data: missing required fields")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepo) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneSession(session), nil
}

func (r *MemorySessionRepo) GetActiveSession(_ context.Context, userID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *model.Session
	for _, s := range r.sessions {
		if s.UserID != userID || s.IsCompleted() {
			continue
		}
		if latest == nil || s.StartTime.After(latest.StartTime) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneSession(latest), nil
}

func (r *MemorySessionRepo) SaveSession(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return ErrVersionConflict
	}

	next := cloneSession(stored)
	next.Status = session.Status
	next.EndTime = session.EndTime
	next.Breaks = cloneBreaks(session.Breaks)
	next.LastSyncedDuration = session.LastSyncedDuration
	next.LastSyncTime = session.LastSyncTime
	next.UpdatedAt = session.UpdatedAt
	next.Version = session.Version + 1
	r.sessions[session.ID] = next

	session.Version++
	return nil
}

func (r *MemorySessionRepo) AppendActivity(_ context.Context, sessionID string, entry model.ActivityLog, inactiveInc, pendingInc int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrSessionNotFound
	}
	for _, existing := range stored.ActivityLogs {
		if existing.Type == entry.Type && existing.Timestamp.Equal(entry.Timestamp) {
			return false, nil
		}
	}

	stored.ActivityLogs = append(stored.ActivityLogs, cloneActivity(entry))
	sort.SliceStable(stored.ActivityLogs, func(i, j int) bool {
		return stored.ActivityLogs[i].Timestamp.Before(stored.ActivityLogs[j].Timestamp)
	})
	stored.InactiveTime += inactiveInc
	stored.PendingValidationTime += pendingInc
	stored.UpdatedAt = now
	return true, nil
}

func (r *MemorySessionRepo) FindSessions(_ context.Context, filter SessionFilter) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Session
	for _, s := range r.sessions {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.From != nil && s.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !s.StartTime.Before(*filter.To) {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

// MemorySettingsRepo mirrors SettingsRepo in process memory.
type MemorySettingsRepo struct {
	mu       sync.Mutex
	settings map[string]model.Setting
}

func NewMemorySettingsRepo() *MemorySettingsRepo {
	return &MemorySettingsRepo{settings: make(map[string]model.Setting)}
}

func (r *MemorySettingsRepo) InitializeDefaults(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, setting := range model.DefaultSettings() {
		if _, ok := r.settings[setting.Key]; !ok {
			setting.UpdatedAt = time.Now()
			r.settings[setting.Key] = setting
		}
	}
	return nil
}

func (r *MemorySettingsRepo) GetSetting(_ context.Context, key string) (*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	setting, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &setting, nil
}

func (r *MemorySettingsRepo) ListSettings(_ context.Context) ([]*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Setting, 0, len(r.settings))
	for _, setting := range r.settings {
		s := setting
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *MemorySettingsRepo) UpdateSetting(_ context.Context, key string, value interface{}, now time.Time) (*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	setting, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	setting.Value = value
	setting.UpdatedAt = now
	r.settings[key] = setting
	return &setting, nil
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.Breaks = cloneBreaks(s.Breaks)
	c.ActivityLogs = make([]model.ActivityLog, len(s.ActivityLogs))
	for i, a := range s.ActivityLogs {
		c.ActivityLogs[i] = cloneActivity(a)
	}
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	if s.LastSyncTime != nil {
		synced := *s.LastSyncTime
		c.LastSyncTime = &synced
	}
	return &c
}

func cloneBreaks(breaks []model.Break) []model.Break {
	out := make([]model.Break, len(breaks))
	for i, b := range breaks {
		out[i] = b
		if b.EndTime != nil {
			end := *b.EndTime
			out[i].EndTime = &end
		}
	}
	return out
}

func cloneActivity(a model.ActivityLog) model.ActivityLog {
	if a.Details == nil {
		return a
	}
	details := make(map[string]interface{}, len(a.Details))
	for k, v := range a.Details {
		details[k] = v
	}
	a.Details = details
	return a
}
