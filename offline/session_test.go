package offline

import (
	"context"
	"testing"
	"time"
)

func TestSessionRecord(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(openTestDB(t), nil, nil)
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	if record, err := r.CurrentSession(ctx, "u1"); record != nil || err != nil {
		t.Fatalf("CurrentSession() on empty store = %+v, %v; want nil, nil", record, err)
	}

	if err := r.SaveSession(ctx, SessionRecord{UserID: "u1", SessionID: "s1", StartTime: start}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := r.SaveSession(ctx, SessionRecord{UserID: "u1", SessionID: "s2", StartTime: start.Add(time.Hour)}); err != nil {
		t.Fatalf("second SaveSession() error = %v", err)
	}
	_ = r.SaveSession(ctx, SessionRecord{UserID: "u2", SessionID: "s3", StartTime: start})

	record, err := r.CurrentSession(ctx, "u1")
	if err != nil || record == nil {
		t.Fatalf("CurrentSession() = %+v, %v", record, err)
	}
	if record.SessionID != "s2" || !record.StartTime.Equal(start.Add(time.Hour)) {
		t.Errorf("record = %+v, want s2 started at 10:00", record)
	}

	if err := r.ClearSession(ctx, "u1"); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if record, _ := r.CurrentSession(ctx, "u1"); record != nil {
		t.Errorf("record still present after ClearSession: %+v", record)
	}
	if other, _ := r.CurrentSession(ctx, "u2"); other == nil || other.SessionID != "s3" {
		t.Errorf("another user's record was touched: %+v", other)
	}
}
