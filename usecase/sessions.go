package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"timearchitect/model"
	"timearchitect/repository"
	"timearchitect/services"
	"timearchitect/utils"
)

const maxSaveAttempts = 3

var (
	ErrNoActiveSession      = errors.New("no active session found")
	ErrSessionAlreadyActive = errors.New("user already has an active session")
	ErrInvalidActivity      = errors.New("invalid activity")
	ErrConcurrentUpdate     = errors.New("session is being modified concurrently")

	ErrSessionNotFound  = repository.ErrSessionNotFound
	ErrBreakInProgress  = model.ErrBreakInProgress
	ErrNoOpenBreak      = model.ErrNoOpenBreak
	ErrSessionCompleted = model.ErrSessionCompleted
	ErrInvalidBreakType = model.ErrInvalidBreakType
)

// SessionStore is implemented by repository.SessionRepo and
// repository.MemorySessionRepo.
type SessionStore interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	GetActiveSession(ctx context.Context, userID string) (*model.Session, error)
	SaveSession(ctx context.Context, session *model.Session) error
	AppendActivity(ctx context.Context, sessionID string, entry model.ActivityLog, inactiveInc, pendingInc int64, now time.Time) (bool, error)
	FindSessions(ctx context.Context, filter repository.SessionFilter) ([]*model.Session, error)
}

type Publisher interface {
	Publish(ctx context.Context, event services.Event) error
}

type TimelineCache interface {
	GetTimeline(ctx context.Context, key string) ([]model.Segment, bool, error)
	SetTimeline(ctx context.Context, key string, segments []model.Segment) error
}

type SessionService struct {
	Sessions SessionStore
	Clock    utils.Clock
	Events   Publisher     // optional
	Cache    TimelineCache // optional

	// LiveSkew bounds how far a live report's timestamp may sit from server
	// time. Replayed reports may be up to ReplayWindow old.
	LiveSkew     time.Duration
	ReplayWindow time.Duration
}

func NewSessionService(store SessionStore, clock utils.Clock) *SessionService {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &SessionService{
		Sessions:     store,
		Clock:        clock,
		LiveSkew:     5 * time.Minute,
		ReplayWindow: 7 * 24 * time.Hour,
	}
}

type BreakRequest struct {
	UserID           string
	Type             model.BreakType
	Reason           string
	IntendedDuration int64
}

type ClockOutRequest struct {
	UserID string
	// EndTime is the client-measured end. When absent, Duration seconds
	// after start is used, then server time.
	EndTime  *time.Time
	Duration int64
}

type ActivityReport struct {
	SessionID     string
	Type          model.ActivityType
	Timestamp     time.Time
	Details       map[string]interface{}
	IsOfflineSync bool
}

type ActivityResult struct {
	Entry     model.ActivityLog
	Duplicate bool
}

// SessionView is a stored session together with its derived totals.
type SessionView struct {
	*model.Session
	Totals model.Totals `json:"totals"`
}

// DayGroup collects one user's sessions that started on one UTC date.
type DayGroup struct {
	Key      string        `json:"key"`
	UserID   string        `json:"user_id"`
	Date     string        `json:"date"`
	Sessions []SessionView `json:"sessions"`
	Totals   model.Totals  `json:"totals"`
}

type SessionQuery struct {
	UserID string
	Status model.SessionStatus
	From   *time.Time
	To     *time.Time
}

type ShiftTotal struct {
	UserID   string  `json:"user_id"`
	Date     string  `json:"date"`
	Sessions int     `json:"sessions"`
	Duration float64 `json:"total_duration"`
	WorkTime float64 `json:"work_time"`
}

func (svc *SessionService) ClockIn(ctx context.Context, userID, userAgent string) (*model.Session, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	existing, err := svc.Sessions.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyActive, existing.ID)
	}

	session := model.NewSession(utils.GenerateSessionID(), userID, svc.Clock.Now())
	if userAgent != "" {
		session.Device = utils.DescribeDevice(userAgent)
	}
	if err := svc.Sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	utils.TrackSessionOperation("clock_in")
	log.Printf("Session %s started for user %s", session.ID, userID)
	svc.publish(ctx, services.EventSessionStarted, userID, session)
	return session, nil
}

func (svc *SessionService) ClockOut(ctx context.Context, req ClockOutRequest) (*SessionView, error) {
	session, err := svc.mutate(ctx, svc.activeLoader(req.UserID), func(s *model.Session, now time.Time) error {
		end := req.EndTime
		if end == nil && req.Duration > 0 {
			measured := s.StartTime.Add(time.Duration(req.Duration) * time.Second)
			end = &measured
		}
		if req.Duration > s.LastSyncedDuration {
			s.LastSyncedDuration = req.Duration
		}
		return s.Finalize(end, now)
	})
	if err != nil {
		return nil, err
	}

	utils.TrackSessionOperation("clock_out")
	view := svc.view(session)
	log.Printf("Session %s completed for user %s after %.0fs", session.ID, session.UserID, view.Totals.Duration)
	svc.publish(ctx, services.EventSessionEnded, session.UserID, view)
	return view, nil
}

func (svc *SessionService) StartBreak(ctx context.Context, req BreakRequest) (*model.Session, error) {
	if !req.Type.Valid() {
		return nil, ErrInvalidBreakType
	}
	if req.IntendedDuration <= 0 {
		return nil, errors.New("intended duration must be positive")
	}

	session, err := svc.mutate(ctx, svc.activeLoader(req.UserID), func(s *model.Session, now time.Time) error {
		return s.StartBreak(req.Type, req.Reason, req.IntendedDuration, now)
	})
	if err != nil {
		return nil, err
	}

	utils.TrackSessionOperation("break_start")
	svc.publish(ctx, services.EventBreakStarted, session.UserID, session.ActiveBreak())
	return session, nil
}

func (svc *SessionService) EndBreak(ctx context.Context, userID string) (*model.Session, error) {
	session, err := svc.mutate(ctx, svc.activeLoader(userID), func(s *model.Session, now time.Time) error {
		return s.EndBreak(now)
	})
	if err != nil {
		return nil, err
	}

	utils.TrackSessionOperation("break_end")
	svc.publish(ctx, services.EventBreakEnded, session.UserID, session.Breaks[len(session.Breaks)-1])
	return session, nil
}

// UpdateSyncedDuration records a client-reported elapsed total. The stored
// value only ever grows.
func (svc *SessionService) UpdateSyncedDuration(ctx context.Context, sessionID string, seconds int64) (*model.Session, error) {
	if seconds < 0 {
		return nil, errors.New("duration cannot be negative")
	}

	session, err := svc.mutate(ctx, svc.idLoader(sessionID), func(s *model.Session, now time.Time) error {
		return s.UpdateSyncedDuration(seconds, now)
	})
	if err != nil {
		return nil, err
	}

	utils.TrackSessionOperation("sync")
	svc.publish(ctx, services.EventTotalShiftTimeUpdated, session.UserID, map[string]interface{}{
		"session_id": session.ID,
		"duration":   session.LastSyncedDuration,
	})
	return session, nil
}

// ReportActivity appends one entry to the session's activity log. A second
// report with the same timestamp and type is acknowledged as a duplicate
// without changing the session, which makes replays idempotent.
func (svc *SessionService) ReportActivity(ctx context.Context, report ActivityReport) (*ActivityResult, error) {
	if report.SessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrInvalidActivity)
	}
	if !utils.IsReportableActivity(report.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidActivity, report.Type)
	}

	now := svc.Clock.Now()
	timestamp, err := svc.acceptTimestamp(report, now)
	if err != nil {
		return nil, err
	}

	session, err := svc.Sessions.GetSession(ctx, report.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	// Replays may legitimately describe time before a clock-out that reached
	// the server first.
	if session.IsCompleted() && !report.IsOfflineSync {
		return nil, ErrSessionCompleted
	}

	details := make(map[string]interface{}, len(report.Details)+1)
	for k, v := range report.Details {
		details[k] = v
	}
	if report.IsOfflineSync {
		details["offline_sync"] = true
	}
	entry := model.ActivityLog{Timestamp: timestamp, Type: report.Type, Details: details}

	var inactiveInc, pendingInc int64
	switch report.Type {
	case model.ActivityInactivity, model.ActivityAutoClockOut:
		inactiveInc = entry.DetailInt("duration")
	case model.ActivityPendingValidation:
		pendingInc = entry.DetailInt("duration")
	}
	if inactiveInc < 0 || pendingInc < 0 {
		return nil, fmt.Errorf("%w: duration cannot be negative", ErrInvalidActivity)
	}

	appended, err := svc.Sessions.AppendActivity(ctx, report.SessionID, entry, inactiveInc, pendingInc, now)
	if err != nil {
		return nil, err
	}

	utils.TrackActivityReport(string(report.Type), !appended)
	if report.IsOfflineSync {
		utils.OfflineReplaysTotal.Inc()
	}
	if appended {
		svc.publish(ctx, services.EventSessionUpdated, session.UserID, map[string]interface{}{
			"session_id": session.ID,
			"activity":   entry,
		})
	}
	return &ActivityResult{Entry: entry, Duplicate: !appended}, nil
}

// acceptTimestamp defaults a missing timestamp to now and truncates to the
// millisecond precision storage keeps, so replays compare equal.
func (svc *SessionService) acceptTimestamp(report ActivityReport, now time.Time) (time.Time, error) {
	if report.Timestamp.IsZero() {
		return now.Truncate(time.Millisecond), nil
	}
	ts := report.Timestamp.Truncate(time.Millisecond)

	if ts.After(now.Add(svc.LiveSkew)) {
		return time.Time{}, fmt.Errorf("%w: timestamp %s is in the future", ErrInvalidActivity, ts.Format(time.RFC3339))
	}
	oldest := now.Add(-svc.LiveSkew)
	if report.IsOfflineSync {
		oldest = now.Add(-svc.ReplayWindow)
	}
	if ts.Before(oldest) {
		return time.Time{}, fmt.Errorf("%w: timestamp %s is too old", ErrInvalidActivity, ts.Format(time.RFC3339))
	}
	return ts, nil
}

func (svc *SessionService) GetSession(ctx context.Context, sessionID string) (*SessionView, error) {
	session, err := svc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return svc.view(session), nil
}

func (svc *SessionService) GetActiveSession(ctx context.Context, userID string) (*SessionView, error) {
	session, err := svc.Sessions.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active session: %w", err)
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	return svc.view(session), nil
}

// ListSessions groups matching sessions by user and UTC start date, newest
// date first.
func (svc *SessionService) ListSessions(ctx context.Context, query SessionQuery) ([]DayGroup, error) {
	sessions, err := svc.Sessions.FindSessions(ctx, repository.SessionFilter{
		UserID: query.UserID,
		Status: query.Status,
		From:   query.From,
		To:     query.To,
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*DayGroup)
	var order []string
	for _, session := range sessions {
		key, date := model.DayKey(session.UserID, session.StartTime)
		group, ok := groups[key]
		if !ok {
			group = &DayGroup{Key: key, UserID: session.UserID, Date: date, Sessions: []SessionView{}}
			groups[key] = group
			order = append(order, key)
		}
		view := svc.view(session)
		group.Sessions = append(group.Sessions, *view)
		group.Totals = group.Totals.Add(view.Totals)
	}

	result := make([]DayGroup, 0, len(order))
	for _, key := range order {
		result = append(result, *groups[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date > result[j].Date
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

// TotalShiftTime sums the sessions the user started on day's UTC date.
func (svc *SessionService) TotalShiftTime(ctx context.Context, userID string, day time.Time) (*ShiftTotal, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	from := model.StartOfDayUTC(day)
	to := from.Add(24 * time.Hour)

	sessions, err := svc.Sessions.FindSessions(ctx, repository.SessionFilter{UserID: userID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	now := svc.Clock.Now()
	total := &ShiftTotal{UserID: userID, Date: from.Format("2006-01-02"), Sessions: len(sessions)}
	for _, session := range sessions {
		total.Duration += model.Duration(session)
		total.WorkTime += model.WorkTime(session, now)
	}
	return total, nil
}

// Timeline groups the session's activity log, using the cache when one is
// configured.
func (svc *SessionService) Timeline(ctx context.Context, sessionID string) ([]model.Segment, error) {
	session, err := svc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	key := services.TimelineKey(session)
	if svc.Cache != nil {
		segments, hit, err := svc.Cache.GetTimeline(ctx, key)
		if err != nil {
			log.Printf("Warning: timeline cache read failed: %v", err)
		}
		utils.TrackCacheOperation("timeline", hit)
		if hit {
			return segments, nil
		}
	}

	segments := GroupActivities(session.ActivityLogs)
	if svc.Cache != nil {
		if err := svc.Cache.SetTimeline(ctx, key, segments); err != nil {
			log.Printf("Warning: timeline cache write failed: %v", err)
		}
	}
	return segments, nil
}

func (svc *SessionService) view(session *model.Session) *SessionView {
	return &SessionView{Session: session, Totals: model.ComputeTotals(session, svc.Clock.Now())}
}

type sessionLoader func(ctx context.Context) (*model.Session, error)

func (svc *SessionService) activeLoader(userID string) sessionLoader {
	return func(ctx context.Context) (*model.Session, error) {
		if userID == "" {
			return nil, errors.New("user ID is required")
		}
		session, err := svc.Sessions.GetActiveSession(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch active session: %w", err)
		}
		if session == nil {
			return nil, ErrNoActiveSession
		}
		return session, nil
	}
}

func (svc *SessionService) idLoader(sessionID string) sessionLoader {
	return func(ctx context.Context) (*model.Session, error) {
		session, err := svc.Sessions.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch session: %w", err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}
}

// mutate runs a read-modify-write against the session's version, reloading
// when another writer got there first.
func (svc *SessionService) mutate(ctx context.Context, load sessionLoader, apply func(*model.Session, time.Time) error) (*model.Session, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		session, err := load(ctx)
		if err != nil {
			return nil, err
		}

		now := svc.Clock.Now()
		if err := apply(session, now); err != nil {
			return nil, err
		}
		session.UpdatedAt = now

		err = svc.Sessions.SaveSession(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		log.Printf("Version conflict on session %s (attempt %d/%d)", session.ID, attempt, maxSaveAttempts)
	}
	utils.TrackError("session", "concurrent_update")
	return nil, ErrConcurrentUpdate
}

func (svc *SessionService) publish(ctx context.Context, eventType, userID string, data interface{}) {
	if svc.Events == nil {
		return
	}
	event, err := services.NewEvent(eventType, userID, data)
	if err == nil {
		err = svc.Events.Publish(ctx, event)
	}
	if err != nil {
		log.Printf("Warning: failed to publish %s: %v", eventType, err)
	}
}
