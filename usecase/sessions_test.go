package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timearchitect/model"
	"timearchitect/repository"
	"timearchitect/services"
	"timearchitect/utils"
)

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event services.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestService(t *testing.T) (*SessionService, *utils.FixedClock, *recordingPublisher) {
	t.Helper()
	clock := &utils.FixedClock{Fixed: base}
	svc := NewSessionService(repository.NewMemorySessionRepo(), clock)
	events := &recordingPublisher{}
	svc.Events = events
	return svc, clock, events
}

func TestClockInOut(t *testing.T) {
	ctx := context.Background()
	svc, clock, events := newTestService(t)

	session, err := svc.ClockIn(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ClockIn() error = %v", err)
	}
	if session.Status != model.StatusActive {
		t.Errorf("Status = %q, want active", session.Status)
	}

	if _, err := svc.ClockIn(ctx, "u1", ""); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Errorf("second ClockIn() error = %v, want %v", err, ErrSessionAlreadyActive)
	}

	clock.Advance(10 * time.Second)
	view, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("ClockOut() error = %v", err)
	}
	if view.Totals.Duration != 10 {
		t.Errorf("Duration = %v, want 10", view.Totals.Duration)
	}
	if view.Totals.WorkTime != 10 {
		t.Errorf("WorkTime = %v, want 10", view.Totals.WorkTime)
	}

	if _, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1"}); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("ClockOut() without session error = %v, want %v", err, ErrNoActiveSession)
	}

	got := events.types()
	want := []string{services.EventSessionStarted, services.EventSessionEnded}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestClockOutUsesClientDuration(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	if _, err := svc.ClockIn(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)

	view, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1", Duration: 1800})
	if err != nil {
		t.Fatalf("ClockOut() error = %v", err)
	}
	if !view.EndTime.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("EndTime = %v, want start+30m", view.EndTime)
	}
	if view.LastSyncedDuration != 1800 {
		t.Errorf("LastSyncedDuration = %d, want 1800", view.LastSyncedDuration)
	}
}

func TestBreaks(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)
	if _, err := svc.ClockIn(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.StartBreak(ctx, BreakRequest{UserID: "u1", Type: "nap", IntendedDuration: 60}); !errors.Is(err, ErrInvalidBreakType) {
		t.Errorf("StartBreak(nap) error = %v, want %v", err, ErrInvalidBreakType)
	}

	clock.Advance(time.Minute)
	if _, err := svc.StartBreak(ctx, BreakRequest{UserID: "u1", Type: model.BreakOffice, IntendedDuration: 600}); err != nil {
		t.Fatalf("StartBreak() error = %v", err)
	}
	if _, err := svc.StartBreak(ctx, BreakRequest{UserID: "u1", Type: model.BreakNormal, IntendedDuration: 600}); !errors.Is(err, ErrBreakInProgress) {
		t.Errorf("overlapping StartBreak() error = %v, want %v", err, ErrBreakInProgress)
	}

	clock.Advance(5 * time.Minute)
	session, err := svc.EndBreak(ctx, "u1")
	if err != nil {
		t.Fatalf("EndBreak() error = %v", err)
	}
	if session.ActiveBreak() != nil {
		t.Error("break still open")
	}
	if _, err := svc.EndBreak(ctx, "u1"); !errors.Is(err, ErrNoOpenBreak) {
		t.Errorf("EndBreak() twice error = %v, want %v", err, ErrNoOpenBreak)
	}

	clock.Advance(4 * time.Minute)
	view, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if view.Totals.OfficeBreakDuration != 300 {
		t.Errorf("OfficeBreakDuration = %v, want 300", view.Totals.OfficeBreakDuration)
	}
	if view.Totals.PayableHours != view.Totals.WorkTime+view.Totals.OfficeBreakDuration {
		t.Errorf("PayableHours = %v, want work+office", view.Totals.PayableHours)
	}
}

func TestUpdateSyncedDurationNeverDecreases(t *testing.T) {
	ctx := context.Background()
	svc, _, events := newTestService(t)
	session, _ := svc.ClockIn(ctx, "u1", "")

	if _, err := svc.UpdateSyncedDuration(ctx, session.ID, 300); err != nil {
		t.Fatal(err)
	}
	updated, err := svc.UpdateSyncedDuration(ctx, session.ID, 120)
	if err != nil {
		t.Fatal(err)
	}
	if updated.LastSyncedDuration != 300 {
		t.Errorf("LastSyncedDuration = %d, want 300", updated.LastSyncedDuration)
	}
	if _, err := svc.UpdateSyncedDuration(ctx, "missing", 10); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want %v", err, ErrSessionNotFound)
	}

	var syncs int
	for _, typ := range events.types() {
		if typ == services.EventTotalShiftTimeUpdated {
			syncs++
		}
	}
	if syncs != 2 {
		t.Errorf("shift time updates = %d, want 2", syncs)
	}
}

func TestReportActivity(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)
	session, _ := svc.ClockIn(ctx, "u1", "")
	clock.Advance(time.Minute)

	report := ActivityReport{
		SessionID: session.ID,
		Type:      model.ActivityInactivity,
		Timestamp: base.Add(10 * time.Second),
		Details:   map[string]interface{}{"duration": float64(25)},
	}
	first, err := svc.ReportActivity(ctx, report)
	if err != nil {
		t.Fatalf("ReportActivity() error = %v", err)
	}
	if first.Duplicate {
		t.Error("first report marked duplicate")
	}

	second, err := svc.ReportActivity(ctx, report)
	if err != nil {
		t.Fatalf("duplicate ReportActivity() error = %v", err)
	}
	if !second.Duplicate {
		t.Error("second report not marked duplicate")
	}

	view, _ := svc.GetSession(ctx, session.ID)
	if len(view.ActivityLogs) != 1 {
		t.Errorf("len(ActivityLogs) = %d, want 1", len(view.ActivityLogs))
	}
	if view.InactiveTime != 25 {
		t.Errorf("InactiveTime = %d, want 25", view.InactiveTime)
	}
}

func TestReportActivityTimestampWindow(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)
	session, _ := svc.ClockIn(ctx, "u1", "")
	clock.Advance(2 * time.Hour)
	now := clock.Now()

	tests := []struct {
		name    string
		ts      time.Time
		replay  bool
		wantErr error
	}{
		{name: "live recent", ts: now.Add(-time.Minute)},
		{name: "live too old", ts: now.Add(-time.Hour), wantErr: ErrInvalidActivity},
		{name: "replay old", ts: now.Add(-time.Hour), replay: true},
		{name: "future", ts: now.Add(time.Hour), wantErr: ErrInvalidActivity},
		{name: "replay beyond window", ts: now.Add(-8 * 24 * time.Hour), replay: true, wantErr: ErrInvalidActivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReportActivity(ctx, ActivityReport{
				SessionID:     session.ID,
				Type:          model.ActivityKeyboard,
				Timestamp:     tt.ts,
				Details:       map[string]interface{}{"count": 3},
				IsOfflineSync: tt.replay,
			})
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReportActivityAfterClockOut(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)
	session, _ := svc.ClockIn(ctx, "u1", "")
	clock.Advance(time.Minute)
	if _, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}

	report := ActivityReport{SessionID: session.ID, Type: model.ActivityMouse, Timestamp: base.Add(30 * time.Second)}
	if _, err := svc.ReportActivity(ctx, report); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("live report error = %v, want %v", err, ErrSessionCompleted)
	}

	report.IsOfflineSync = true
	result, err := svc.ReportActivity(ctx, report)
	if err != nil {
		t.Fatalf("replayed report error = %v", err)
	}
	if result.Entry.Details["offline_sync"] != true {
		t.Errorf("replayed entry details = %v, want offline_sync", result.Entry.Details)
	}
}

func TestReportActivityRejectsUnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)
	session, _ := svc.ClockIn(context.Background(), "u1", "")

	_, err := svc.ReportActivity(context.Background(), ActivityReport{SessionID: session.ID, Type: "scroll"})
	if !errors.Is(err, ErrInvalidActivity) {
		t.Errorf("error = %v, want %v", err, ErrInvalidActivity)
	}
}

func TestListSessionsGroupsByUTCDay(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	// 23:30 UTC on the 4th, 00:30 UTC on the 5th.
	clock.Set(time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC))
	if _, err := svc.ClockIn(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}
	clock.Advance(20 * time.Minute)
	if _, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	clock.Set(time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC))
	if _, err := svc.ClockIn(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClockIn(ctx, "u2", ""); err != nil {
		t.Fatal(err)
	}

	groups, err := svc.ListSessions(ctx, SessionQuery{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	wantKeys := []string{"u1_2024-03-05", "u2_2024-03-05", "u1_2024-03-04"}
	for i, key := range wantKeys {
		if groups[i].Key != key {
			t.Errorf("groups[%d].Key = %q, want %q", i, groups[i].Key, key)
		}
	}
	if groups[2].Totals.Duration != 1200 {
		t.Errorf("day total = %v, want 1200", groups[2].Totals.Duration)
	}

	from := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	filtered, _ := svc.ListSessions(ctx, SessionQuery{UserID: "u1", From: &from})
	if len(filtered) != 1 || filtered[0].Date != "2024-03-05" {
		t.Errorf("filtered = %+v, want only u1 on 2024-03-05", filtered)
	}
}

func TestTotalShiftTime(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)

	for i := 0; i < 2; i++ {
		if _, err := svc.ClockIn(ctx, "u1", ""); err != nil {
			t.Fatal(err)
		}
		clock.Advance(30 * time.Minute)
		if _, err := svc.ClockOut(ctx, ClockOutRequest{UserID: "u1"}); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Hour)
	}

	total, err := svc.TotalShiftTime(ctx, "u1", base)
	if err != nil {
		t.Fatalf("TotalShiftTime() error = %v", err)
	}
	if total.Sessions != 2 || total.Duration != 3600 {
		t.Errorf("total = %+v, want 2 sessions and 3600s", total)
	}
}

type memoryTimelineCache struct {
	entries map[string][]model.Segment
	gets    int
}

func (c *memoryTimelineCache) GetTimeline(_ context.Context, key string) ([]model.Segment, bool, error) {
	c.gets++
	segments, ok := c.entries[key]
	return segments, ok, nil
}

func (c *memoryTimelineCache) SetTimeline(_ context.Context, key string, segments []model.Segment) error {
	c.entries[key] = segments
	return nil
}

func TestTimelineUsesCache(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t)
	cache := &memoryTimelineCache{entries: map[string][]model.Segment{}}
	svc.Cache = cache

	session, _ := svc.ClockIn(ctx, "u1", "")
	clock.Advance(time.Minute)
	_, _ = svc.ReportActivity(ctx, ActivityReport{SessionID: session.ID, Type: model.ActivityKeyboard, Timestamp: base.Add(5 * time.Second)})

	first, err := svc.Timeline(ctx, session.ID)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(cache.entries) != 1 {
		t.Errorf("cache entries = %d, want 1", len(cache.entries))
	}
	second, _ := svc.Timeline(ctx, session.ID)
	if len(first) != len(second) || first[0].GroupID != second[0].GroupID {
		t.Error("cached timeline differs from computed one")
	}

	if _, err := svc.Timeline(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session error = %v, want %v", err, ErrSessionNotFound)
	}
}

// conflictingStore fails the first saves with a version conflict.
type conflictingStore struct {
	*repository.MemorySessionRepo
	conflicts int
}

func (s *conflictingStore) SaveSession(ctx context.Context, session *model.Session) error {
	if s.conflicts > 0 {
		s.conflicts--
		return repository.ErrVersionConflict
	}
	return s.MemorySessionRepo.SaveSession(ctx, session)
}

func TestMutateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	clock := &utils.FixedClock{Fixed: base}

	store := &conflictingStore{MemorySessionRepo: repository.NewMemorySessionRepo(), conflicts: 2}
	svc := NewSessionService(store, clock)
	session, _ := svc.ClockIn(ctx, "u1", "")
	if _, err := svc.UpdateSyncedDuration(ctx, session.ID, 60); err != nil {
		t.Errorf("UpdateSyncedDuration() after 2 conflicts error = %v", err)
	}

	store.conflicts = maxSaveAttempts
	if _, err := svc.UpdateSyncedDuration(ctx, session.ID, 90); !errors.Is(err, ErrConcurrentUpdate) {
		t.Errorf("error = %v, want %v", err, ErrConcurrentUpdate)
	}
}
