package offline

import (
	"context"
	"errors"
	"testing"
)

type fakeServer struct {
	totals map[string]int64
	pushes []int64
	err    error
}

func (s *fakeServer) ServerTotal(_ context.Context, sessionID string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.totals[sessionID], nil
}

func (s *fakeServer) PushTotal(_ context.Context, sessionID string, seconds int64) error {
	s.pushes = append(s.pushes, seconds)
	s.totals[sessionID] = seconds
	return nil
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		local, server, want int64
	}{
		{local: 100, server: 50, want: 100},
		{local: 50, server: 100, want: 100},
		{local: 0, server: 0, want: 0},
	}
	for _, tt := range tests {
		if got := Reconcile(tt.local, tt.server); got != tt.want {
			t.Errorf("Reconcile(%d, %d) = %d, want %d", tt.local, tt.server, got, tt.want)
		}
	}
}

func TestRecordLocalIsMonotonic(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(openTestDB(t), &fakeServer{totals: map[string]int64{}}, nil)

	if _, err := r.RecordLocal(ctx, "s1", 120); err != nil {
		t.Fatalf("RecordLocal() error = %v", err)
	}
	got, err := r.RecordLocal(ctx, "s1", 60)
	if err != nil {
		t.Fatalf("RecordLocal() error = %v", err)
	}
	if got != 120 {
		t.Errorf("RecordLocal() = %d, want 120", got)
	}
	if stored, _ := r.LocalTotal(ctx, "s1"); stored != 120 {
		t.Errorf("LocalTotal() = %d, want 120", stored)
	}
	if other, _ := r.LocalTotal(ctx, "s2"); other != 0 {
		t.Errorf("LocalTotal(unknown) = %d, want 0", other)
	}
}

func TestApplyPushesLargerLocal(t *testing.T) {
	ctx := context.Background()
	server := &fakeServer{totals: map[string]int64{"s1": 300}}
	r := NewReconciler(openTestDB(t), server, nil)

	got, err := r.Apply(ctx, "s1", 900)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != 900 {
		t.Errorf("Apply() = %d, want 900", got)
	}
	if len(server.pushes) != 1 || server.pushes[0] != 900 {
		t.Errorf("pushes = %v, want [900]", server.pushes)
	}
}

func TestApplyAdoptsLargerServer(t *testing.T) {
	ctx := context.Background()
	server := &fakeServer{totals: map[string]int64{"s1": 1200}}
	r := NewReconciler(openTestDB(t), server, nil)

	got, err := r.Apply(ctx, "s1", 900)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != 1200 {
		t.Errorf("Apply() = %d, want 1200", got)
	}
	if len(server.pushes) != 0 {
		t.Errorf("pushed %v to a server that was ahead", server.pushes)
	}
	if local, _ := r.LocalTotal(ctx, "s1"); local != 1200 {
		t.Errorf("LocalTotal() = %d, want 1200", local)
	}
}

func TestApplyKeepsLocalWhenServerDown(t *testing.T) {
	ctx := context.Background()
	down := errors.New("dial tcp: connection refused")
	r := NewReconciler(openTestDB(t), &fakeServer{totals: map[string]int64{}, err: down}, nil)

	got, err := r.Apply(ctx, "s1", 500)
	if !errors.Is(err, down) {
		t.Errorf("Apply() error = %v, want %v", err, down)
	}
	if got != 500 {
		t.Errorf("Apply() = %d, want 500", got)
	}
	if err := r.Forget(ctx, "s1"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if local, _ := r.LocalTotal(ctx, "s1"); local != 0 {
		t.Errorf("LocalTotal() after Forget = %d, want 0", local)
	}
}
