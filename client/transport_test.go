package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"timearchitect/dto"
	"timearchitect/offline"
)

func TestHTTPTransportErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRejected bool
		wantOffline  bool
	}{
		{name: "ok", status: http.StatusCreated},
		{name: "bad request", status: http.StatusBadRequest, wantRejected: true},
		{name: "conflict", status: http.StatusConflict, wantRejected: true},
		{name: "too many requests", status: http.StatusTooManyRequests, wantOffline: true},
		{name: "server error", status: http.StatusInternalServerError, wantOffline: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))
			defer server.Close()

			transport := NewHTTPTransport(server.URL, time.Second)
			err := transport.SendActivity(context.Background(), dto.ActivityRequest{SessionID: "s1", Type: "keyboard"})

			if got := errors.Is(err, offline.ErrRejected); got != tt.wantRejected {
				t.Errorf("rejected = %v, want %v (err %v)", got, tt.wantRejected, err)
			}
			if got := errors.Is(err, ErrUnreachable); got != tt.wantOffline {
				t.Errorf("unreachable = %v, want %v (err %v)", got, tt.wantOffline, err)
			}
			if !tt.wantRejected && !tt.wantOffline && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestHTTPTransportUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewHTTPTransport(url, time.Second).Ping(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Ping() error = %v, want %v", err, ErrUnreachable)
	}
}

func TestHTTPTransportClockIn(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	var got dto.ClockInRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/clock-in" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "Clocked in",
			"data":    dto.ClockInResponse{SessionID: "abc", StartTime: start},
		})
	}))
	defer server.Close()

	resp, err := NewHTTPTransport(server.URL+"/", time.Second).ClockIn(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ClockIn() error = %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("request user = %q, want u1", got.UserID)
	}
	if resp.SessionID != "abc" || !resp.StartTime.Equal(start) {
		t.Errorf("response = %+v", resp)
	}
}

func TestHTTPTransportSyncCommand(t *testing.T) {
	var path string
	var body dto.SyncRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": nil})
	}))
	defer server.Close()

	err := NewHTTPTransport(server.URL, time.Second).SendCommand(context.Background(), Command{
		Type:      CommandSync,
		SessionID: "s1",
		Duration:  42,
	})
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if path != "/api/sessions/s1/sync" {
		t.Errorf("path = %q", path)
	}
	if body.Duration == nil || *body.Duration != 42 {
		t.Errorf("duration = %v, want 42", body.Duration)
	}

	if err := NewHTTPTransport(server.URL, time.Second).SendCommand(context.Background(), Command{Type: "teleport"}); !errors.Is(err, offline.ErrRejected) {
		t.Errorf("unknown command error = %v, want %v", err, offline.ErrRejected)
	}
}

func TestHTTPTransportSessionLookups(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/session/s1", "/api/sessions/active/u1":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": dto.SessionResponse{ID: "s1", UserID: "u1", Status: "active", StartTime: start},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	}))
	defer server.Close()
	transport := NewHTTPTransport(server.URL, time.Second)
	ctx := context.Background()

	session, err := transport.GetSession(ctx, "s1")
	if err != nil || session.ID != "s1" || !session.StartTime.Equal(start) {
		t.Errorf("GetSession() = %+v, %v", session, err)
	}
	active, err := transport.ActiveSession(ctx, "u1")
	if err != nil || active.ID != "s1" {
		t.Errorf("ActiveSession() = %+v, %v", active, err)
	}
	if _, err := transport.GetSession(ctx, "missing"); !errors.Is(err, offline.ErrRejected) {
		t.Errorf("GetSession(missing) error = %v, want %v", err, offline.ErrRejected)
	}
	if _, err := transport.ActiveSession(ctx, "u2"); !errors.Is(err, offline.ErrRejected) {
		t.Errorf("ActiveSession(u2) error = %v, want %v", err, offline.ErrRejected)
	}
}
