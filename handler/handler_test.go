package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"timearchitect/repository"
	"timearchitect/usecase"
	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.InitValidator()
	os.Exit(m.Run())
}

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	clock    *utils.FixedClock
	sessions *usecase.SessionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &utils.FixedClock{Fixed: time.Now().UTC().Truncate(time.Second)}
	sessions := usecase.NewSessionService(repository.NewMemorySessionRepo(), clock)
	settings := usecase.NewSettingsService(repository.NewMemorySettingsRepo(), clock)
	if err := settings.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	sessionHandler := NewSessionHandler(sessions)
	activityHandler := NewActivityHandler(sessions)
	settingsHandler := NewSettingsHandler(settings)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/clock-in", sessionHandler.ClockIn)
	api.POST("/clock-out", sessionHandler.ClockOut)
	api.POST("/break-start", sessionHandler.StartBreak)
	api.POST("/break-end", sessionHandler.EndBreak)
	api.POST("/activity", activityHandler.ReportActivity)
	api.GET("/sessions", sessionHandler.ListSessions)
	api.GET("/sessions/active/:userId", sessionHandler.GetActiveSession)
	api.POST("/sessions/:id/sync", sessionHandler.SyncDuration)
	api.GET("/sessions/:id/timeline", sessionHandler.Timeline)
	api.GET("/session/:id", sessionHandler.GetSession)
	api.GET("/total-shift-time/:userId", sessionHandler.TotalShiftTime)
	api.GET("/settings", settingsHandler.ListSettings)
	api.GET("/settings/:key", settingsHandler.GetSetting)
	api.PUT("/settings/:key", settingsHandler.UpdateSetting)

	return &testServer{router: router, clock: clock, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, w.Body.String(), err)
	}
	return w, env
}

func (s *testServer) clockIn(t *testing.T, userID string) string {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/clock-in", map[string]string{"user_id": userID})
	if w.Code != http.StatusCreated {
		t.Fatalf("clock-in status = %d, body %s", w.Code, w.Body.String())
	}
	var data struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	return data.SessionID
}

func TestClockInHandler(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{name: "missing user", body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "first clock-in", body: map[string]string{"user_id": "u1"}, wantStatus: http.StatusCreated},
		{name: "already active", body: map[string]string{"user_id": "u1"}, wantStatus: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/clock-in", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (error %q)", w.Code, tt.wantStatus, env.Error)
			}
		})
	}
}

func TestActivityHandler(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.clockIn(t, "u1")
	ts := s.clock.Now().Add(-10 * time.Second)

	valid := map[string]interface{}{
		"session_id": sessionID,
		"type":       "keyboard",
		"timestamp":  ts,
		"details":    map[string]interface{}{"count": 4, "app": "Editor"},
	}

	tests := []struct {
		name          string
		body          interface{}
		wantStatus    int
		wantDuplicate bool
	}{
		{name: "unknown type", body: map[string]interface{}{"session_id": sessionID, "type": "scroll"}, wantStatus: http.StatusBadRequest},
		{name: "missing session", body: map[string]interface{}{"type": "mouse"}, wantStatus: http.StatusBadRequest},
		{name: "unknown session", body: map[string]interface{}{"session_id": "nope", "type": "mouse"}, wantStatus: http.StatusNotFound},
		{name: "recorded", body: valid, wantStatus: http.StatusCreated},
		{name: "duplicate", body: valid, wantStatus: http.StatusOK, wantDuplicate: true},
		{
			name: "stale live timestamp",
			body: map[string]interface{}{
				"session_id": sessionID,
				"type":       "mouse",
				"timestamp":  s.clock.Now().Add(-time.Hour),
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "stale replayed timestamp",
			body: map[string]interface{}{
				"session_id":      sessionID,
				"type":            "mouse",
				"timestamp":       s.clock.Now().Add(-time.Hour),
				"is_offline_sync": true,
			},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/activity", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (error %q)", w.Code, tt.wantStatus, env.Error)
			}
			if w.Code >= 300 {
				return
			}
			var data struct {
				Duplicate bool `json:"duplicate"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.Duplicate != tt.wantDuplicate {
				t.Errorf("duplicate = %v, want %v", data.Duplicate, tt.wantDuplicate)
			}
		})
	}
}

func TestBreakHandlers(t *testing.T) {
	s := newTestServer(t)
	s.clockIn(t, "u1")

	steps := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
	}{
		{name: "invalid type", path: "/api/break-start", body: map[string]interface{}{"user_id": "u1", "type": "nap", "intended_duration": 60}, wantStatus: http.StatusBadRequest},
		{name: "missing duration", path: "/api/break-start", body: map[string]interface{}{"user_id": "u1", "type": "normal"}, wantStatus: http.StatusBadRequest},
		{name: "end with nothing open", path: "/api/break-end", body: map[string]interface{}{"user_id": "u1"}, wantStatus: http.StatusConflict},
		{name: "start", path: "/api/break-start", body: map[string]interface{}{"user_id": "u1", "type": "office", "intended_duration": 600}, wantStatus: http.StatusOK},
		{name: "overlap", path: "/api/break-start", body: map[string]interface{}{"user_id": "u1", "type": "normal", "intended_duration": 600}, wantStatus: http.StatusConflict},
		{name: "end", path: "/api/break-end", body: map[string]interface{}{"user_id": "u1"}, wantStatus: http.StatusOK},
		{name: "no session", path: "/api/break-start", body: map[string]interface{}{"user_id": "u2", "type": "normal", "intended_duration": 60}, wantStatus: http.StatusNotFound},
	}

	for _, step := range steps {
		w, env := s.do(t, http.MethodPost, step.path, step.body)
		if w.Code != step.wantStatus {
			t.Errorf("%s: status = %d, want %d (error %q)", step.name, w.Code, step.wantStatus, env.Error)
		}
	}
}

func TestSessionLifecycleHandlers(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.clockIn(t, "u1")

	if w, _ := s.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/sync", map[string]interface{}{}); w.Code != http.StatusBadRequest {
		t.Errorf("sync without duration status = %d, want 400", w.Code)
	}
	w, env := s.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/sync", map[string]interface{}{"duration": 30})
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d (error %q)", w.Code, env.Error)
	}

	w, env = s.do(t, http.MethodGet, "/api/sessions/active/u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("active session status = %d", w.Code)
	}
	var active struct {
		ID     string `json:"id"`
		Totals struct {
			Duration float64 `json:"duration"`
		} `json:"totals"`
	}
	_ = json.Unmarshal(env.Data, &active)
	if active.ID != sessionID || active.Totals.Duration != 30 {
		t.Errorf("active = %+v, want %s with 30s synced", active, sessionID)
	}

	s.clock.Advance(time.Minute)
	w, env = s.do(t, http.MethodPost, "/api/clock-out", map[string]interface{}{"user_id": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("clock-out status = %d (error %q)", w.Code, env.Error)
	}
	var out struct {
		Duration float64 `json:"duration"`
	}
	_ = json.Unmarshal(env.Data, &out)
	if out.Duration != 60 {
		t.Errorf("clock-out duration = %v, want 60", out.Duration)
	}

	if w, _ := s.do(t, http.MethodPost, "/api/clock-out", map[string]interface{}{"user_id": "u1"}); w.Code != http.StatusNotFound {
		t.Errorf("second clock-out status = %d, want 404", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/sessions/active/u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("active after clock-out status = %d, want 404", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/session/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", w.Code)
	}

	w, env = s.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/timeline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", w.Code)
	}
	var segments []map[string]interface{}
	if err := json.Unmarshal(env.Data, &segments); err != nil {
		t.Fatal(err)
	}
	if len(segments) != 0 {
		t.Errorf("timeline of a session without activity = %v, want empty", segments)
	}
}

func TestListSessionsHandler(t *testing.T) {
	s := newTestServer(t)
	s.clockIn(t, "u1")
	s.clockIn(t, "u2")
	today := s.clock.Now().UTC().Format("2006-01-02")

	w, env := s.do(t, http.MethodGet, "/api/sessions?start_date="+today+"&end_date="+today, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (error %q)", w.Code, env.Error)
	}
	var groups []struct {
		Key      string        `json:"key"`
		Date     string        `json:"date"`
		Sessions []interface{} `json:"sessions"`
	}
	if err := json.Unmarshal(env.Data, &groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Key != "u1_"+today || groups[1].Key != "u2_"+today {
		t.Errorf("groups = %+v, want u1 then u2 on %s", groups, today)
	}

	if w, _ := s.do(t, http.MethodGet, "/api/sessions?start_date=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad start_date status = %d, want 400", w.Code)
	}

	w, env = s.do(t, http.MethodGet, "/api/total-shift-time/u1?date="+today, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("total shift time status = %d", w.Code)
	}
	var total struct {
		Sessions int `json:"sessions"`
	}
	_ = json.Unmarshal(env.Data, &total)
	if total.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", total.Sessions)
	}
}

func TestSettingsHandlers(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var settings []map[string]interface{}
	_ = json.Unmarshal(env.Data, &settings)
	if len(settings) != 6 {
		t.Errorf("len(settings) = %d, want 6", len(settings))
	}

	tests := []struct {
		name       string
		method     string
		key        string
		body       interface{}
		wantStatus int
	}{
		{name: "get", method: http.MethodGet, key: "inactiveThreshold", wantStatus: http.StatusOK},
		{name: "get unknown", method: http.MethodGet, key: "theme", wantStatus: http.StatusNotFound},
		{name: "update", method: http.MethodPut, key: "inactiveThreshold", body: map[string]interface{}{"value": 45}, wantStatus: http.StatusOK},
		{name: "update to false", method: http.MethodPut, key: "autoClockOutEnabled", body: map[string]interface{}{"value": false}, wantStatus: http.StatusOK},
		{name: "missing value", method: http.MethodPut, key: "inactiveThreshold", body: map[string]interface{}{}, wantStatus: http.StatusBadRequest},
		{name: "wrong type", method: http.MethodPut, key: "autoClockOutEnabled", body: map[string]interface{}{"value": "yes"}, wantStatus: http.StatusBadRequest},
		{name: "update unknown", method: http.MethodPut, key: "theme", body: map[string]interface{}{"value": 1}, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, "/api/settings/"+tt.key, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (error %q)", w.Code, tt.wantStatus, env.Error)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
	}{
		{name: "no dependencies", checks: map[string]HealthCheck{}, wantStatus: http.StatusOK},
		{
			name: "dependency down",
			checks: map[string]HealthCheck{
				"mongodb": func(context.Context) error { return errors.New("no reachable servers") },
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", NewHealthHandler(tt.checks).Health)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
