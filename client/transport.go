package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timearchitect/dto"
	"timearchitect/model"
	"timearchitect/offline"
)

// ErrUnreachable wraps failures that say nothing about the request itself:
// network errors, timeouts and 5xx answers. The caller goes offline and
// retries later.
var ErrUnreachable = errors.New("server unreachable")

type CommandType string

const (
	CommandClockOut   CommandType = "clock_out"
	CommandStartBreak CommandType = "break_start"
	CommandEndBreak   CommandType = "break_end"
	CommandSync       CommandType = "sync"
)

// Command is a session command that can be queued while offline.
type Command struct {
	Type             CommandType     `json:"type"`
	UserID           string          `json:"user_id"`
	SessionID        string          `json:"session_id,omitempty"`
	Duration         int64           `json:"duration,omitempty"`
	EndTime          *time.Time      `json:"end_time,omitempty"`
	BreakType        model.BreakType `json:"break_type,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	IntendedDuration int64           `json:"intended_duration,omitempty"`
}

type Transport interface {
	ClockIn(ctx context.Context, userID string) (*dto.ClockInResponse, error)
	GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	ActiveSession(ctx context.Context, userID string) (*dto.SessionResponse, error)
	SendActivity(ctx context.Context, req dto.ActivityRequest) error
	SendCommand(ctx context.Context, cmd Command) error
	FetchSettings(ctx context.Context) ([]model.Setting, error)
	ServerTotal(ctx context.Context, sessionID string) (int64, error)
	PushTotal(ctx context.Context, sessionID string, seconds int64) error
	Ping(ctx context.Context) error
}

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// HTTPTransport talks to the server's JSON API.
type HTTPTransport struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "timearchitect-tracker/1.0",
		Client:    &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) ClockIn(ctx context.Context, userID string) (*dto.ClockInResponse, error) {
	var resp dto.ClockInResponse
	if err := t.do(ctx, http.MethodPost, "/api/clock-in", dto.ClockInRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) SendActivity(ctx context.Context, req dto.ActivityRequest) error {
	return t.do(ctx, http.MethodPost, "/api/activity", req, nil)
}

func (t *HTTPTransport) SendCommand(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CommandClockOut:
		return t.do(ctx, http.MethodPost, "/api/clock-out", dto.ClockOutRequest{
			UserID:   cmd.UserID,
			Duration: cmd.Duration,
			EndTime:  cmd.EndTime,
		}, nil)
	case CommandStartBreak:
		return t.do(ctx, http.MethodPost, "/api/break-start", dto.BreakStartRequest{
			UserID:           cmd.UserID,
			Type:             cmd.BreakType,
			Reason:           cmd.Reason,
			IntendedDuration: cmd.IntendedDuration,
		}, nil)
	case CommandEndBreak:
		return t.do(ctx, http.MethodPost, "/api/break-end", dto.BreakEndRequest{UserID: cmd.UserID}, nil)
	case CommandSync:
		return t.PushTotal(ctx, cmd.SessionID, cmd.Duration)
	}
	return fmt.Errorf("%w: unknown command %q", offline.ErrRejected, cmd.Type)
}

func (t *HTTPTransport) FetchSettings(ctx context.Context) ([]model.Setting, error) {
	var settings []model.Setting
	if err := t.do(ctx, http.MethodGet, "/api/settings", nil, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (t *HTTPTransport) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	var session dto.SessionResponse
	if err := t.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSession answers a 404 StatusError when the user is clocked out.
func (t *HTTPTransport) ActiveSession(ctx context.Context, userID string) (*dto.SessionResponse, error) {
	var session dto.SessionResponse
	if err := t.do(ctx, http.MethodGet, "/api/sessions/active/"+url.PathEscape(userID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (t *HTTPTransport) ServerTotal(ctx context.Context, sessionID string) (int64, error) {
	session, err := t.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return session.LastSyncedDuration, nil
}

func (t *HTTPTransport) PushTotal(ctx context.Context, sessionID string, seconds int64) error {
	return t.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/sync", dto.SyncRequest{Duration: &seconds}, nil)
}

func (t *HTTPTransport) Ping(ctx context.Context) error {
	return t.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", t.UserAgent)

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil && err != io.EOF {
		return fmt.Errorf("%w: unreadable response from %s: %v", ErrUnreachable, path, err)
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s returned %d %s", ErrUnreachable, method, path, resp.StatusCode, env.Error)
	case resp.StatusCode >= 400:
		return &StatusError{Code: resp.StatusCode, Message: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

// StatusError is a 4xx answer. It unwraps to offline.ErrRejected so queued
// entries that can never succeed are discarded.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return offline.ErrRejected
}

// ListSessions fetches day groups for a report. It is not part of Transport;
// only the CLI reads history.
func (t *HTTPTransport) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]dto.DayGroupResponse, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	if !from.IsZero() {
		query.Set("start_date", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		query.Set("end_date", to.UTC().Format(time.RFC3339))
	}

	var groups []dto.DayGroupResponse
	if err := t.do(ctx, http.MethodGet, "/api/sessions?"+query.Encode(), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
