package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"timearchitect/dto"
	"timearchitect/model"
	"timearchitect/offline"
	"timearchitect/tracker"
)

type Control string

const (
	ControlResume         Control = "resume"
	ControlConvertToBreak Control = "break"
	ControlStartBreak     Control = "break_start"
	ControlEndBreak       Control = "break_end"
	ControlOnline         Control = "online"
	ControlOffline        Control = "offline"
	ControlStop           Control = "stop"
)

type AgentConfig struct {
	UserID       string
	TickInterval time.Duration
	// BreakDuration is the intended duration sent when idle time is turned
	// into a break or a break is started by hand.
	BreakDuration time.Duration
	Now           func() time.Time
}

// Agent runs one tracking session. Its step methods (Start, Input, Tick,
// Control, Stop) are not safe for concurrent use; Run calls them from a
// single goroutine.
type Agent struct {
	cfg        AgentConfig
	transport  Transport
	queue      *offline.Queue
	reconciler *offline.Reconciler
	settings   *Settings
	logger     *slog.Logger

	machine   *tracker.Machine
	sessionID string
	started   time.Time
	online    bool
	backlog   bool
	finished  bool

	prompts chan tracker.Prompt
}

func NewAgent(cfg AgentConfig, transport Transport, queue *offline.Queue, reconciler *offline.Reconciler, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.BreakDuration <= 0 {
		cfg.BreakDuration = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Agent{
		cfg:        cfg,
		transport:  transport,
		queue:      queue,
		reconciler: reconciler,
		settings:   NewSettings(transport, logger),
		logger:     logger,
		prompts:    make(chan tracker.Prompt, 1),
	}
}

// Prompts delivers user prompts such as the inactivity question.
func (a *Agent) Prompts() <-chan tracker.Prompt {
	return a.prompts
}

func (a *Agent) SessionID() string {
	return a.sessionID
}

func (a *Agent) Phase() tracker.Phase {
	if a.machine == nil {
		return tracker.PhaseStopped
	}
	return a.machine.Phase()
}

func (a *Agent) Online() bool {
	return a.online
}

func (a *Agent) Finished() bool {
	return a.finished
}

// Start drains whatever a previous run left queued, then resumes the
// session that run recorded if the server still has it open, or clocks in.
// A fresh clock-in needs the server; a session id cannot be invented
// offline, but a recorded one can be resumed offline.
func (a *Agent) Start(ctx context.Context) error {
	a.online = true
	if n, err := a.queue.Len(ctx); err != nil {
		a.logger.Error("failed to read queue", "error", err)
	} else if n > 0 {
		// A queued clock-out must reach the server before a new clock-in.
		a.backlog = true
		a.drain(ctx)
	}

	if err := a.resumeOrClockIn(ctx); err != nil {
		return err
	}
	record := offline.SessionRecord{UserID: a.cfg.UserID, SessionID: a.sessionID, StartTime: a.started}
	if err := a.reconciler.SaveSession(ctx, record); err != nil {
		a.logger.Error("failed to record session", "error", err)
	}

	// Offline this falls back to defaults and marks a refresh as due.
	a.settings.Load(ctx)
	a.machine = tracker.NewMachine(a.settings.Thresholds(), a.cfg.Now(), a.logger.With("component", "tracker"))
	return nil
}

func (a *Agent) resumeOrClockIn(ctx context.Context) error {
	record, err := a.reconciler.CurrentSession(ctx, a.cfg.UserID)
	if err != nil {
		a.logger.Error("failed to read recorded session", "error", err)
	}
	if record != nil {
		if !a.online {
			a.logger.Warn("server unreachable, resuming recorded session offline", "session", record.SessionID)
			a.adopt(record.SessionID, record.StartTime)
			return nil
		}
		session, err := a.transport.GetSession(ctx, record.SessionID)
		switch {
		case err == nil && session.Status != model.StatusCompleted:
			a.logger.Info("resumed session", "session", session.ID, "start", session.StartTime)
			a.adopt(session.ID, session.StartTime)
			return nil
		case err == nil, errors.Is(err, offline.ErrRejected):
			a.logger.Info("recorded session is closed", "session", record.SessionID)
			if err := a.reconciler.ClearSession(ctx, a.cfg.UserID); err != nil {
				a.logger.Error("failed to clear recorded session", "error", err)
			}
		default:
			a.logger.Warn("server unreachable, resuming recorded session offline", "session", record.SessionID, "error", err)
			a.online = false
			a.adopt(record.SessionID, record.StartTime)
			return nil
		}
	}

	if a.backlog {
		n, _ := a.queue.Len(ctx)
		return fmt.Errorf("failed to clock in: %d entries from a previous run are still queued", n)
	}
	resp, err := a.transport.ClockIn(ctx, a.cfg.UserID)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusConflict {
			return a.adoptActive(ctx, err)
		}
		return fmt.Errorf("failed to clock in: %w", err)
	}
	a.online = true
	a.adopt(resp.SessionID, resp.StartTime)
	a.logger.Info("clocked in", "session", a.sessionID, "start", a.started)
	return nil
}

// adoptActive takes over the session the server already has open for the
// user, left behind by a run whose local record is gone.
func (a *Agent) adoptActive(ctx context.Context, clockInErr error) error {
	session, err := a.transport.ActiveSession(ctx, a.cfg.UserID)
	if err != nil {
		return fmt.Errorf("failed to clock in: %w", clockInErr)
	}
	a.logger.Info("adopted open session", "session", session.ID, "start", session.StartTime)
	a.adopt(session.ID, session.StartTime)
	return nil
}

func (a *Agent) adopt(sessionID string, started time.Time) {
	a.sessionID = sessionID
	a.started = started
}

func (a *Agent) Input(ctx context.Context, ev tracker.Event) {
	a.handle(ctx, a.machine.Input(ev))
}

func (a *Agent) Tick(ctx context.Context, now time.Time) {
	a.handle(ctx, a.machine.Tick(now))
}

func (a *Agent) Control(ctx context.Context, control Control) {
	now := a.cfg.Now()
	switch control {
	case ControlResume:
		a.handle(ctx, a.machine.Resume(now))
	case ControlConvertToBreak:
		res := a.machine.ConvertToBreak(now)
		a.handle(ctx, res)
		if len(res.Activities) > 0 {
			a.startBreak(ctx, "converted from inactivity")
		}
	case ControlStartBreak:
		a.startBreak(ctx, "manual")
	case ControlEndBreak:
		a.deliverCommand(ctx, Command{Type: CommandEndBreak, UserID: a.cfg.UserID})
	case ControlOnline:
		a.SetOnline(ctx, true)
	case ControlOffline:
		a.SetOnline(ctx, false)
	case ControlStop:
		a.Stop(ctx, now)
	}
}

func (a *Agent) startBreak(ctx context.Context, reason string) {
	a.deliverCommand(ctx, Command{
		Type:             CommandStartBreak,
		UserID:           a.cfg.UserID,
		BreakType:        model.BreakNormal,
		Reason:           reason,
		IntendedDuration: int64(a.cfg.BreakDuration / time.Second),
	})
}

// SetOnline records a connectivity change. Coming online drains the queue,
// reconciles the synced total and refreshes settings when one is due.
func (a *Agent) SetOnline(ctx context.Context, online bool) {
	if online == a.online {
		return
	}
	a.online = online
	if !online {
		a.logger.Warn("offline, queueing outgoing messages")
		return
	}

	a.logger.Info("back online")
	a.drain(ctx)
	if !a.online {
		return
	}
	if !a.finished {
		if _, err := a.reconciler.Apply(ctx, a.sessionID, a.elapsed(a.cfg.Now())); err != nil {
			a.logger.Warn("reconciliation failed", "error", err)
		}
	}
	if a.settings.RefreshDue() && a.settings.Load(ctx) && a.machine != nil {
		a.machine.SetThresholds(a.settings.Thresholds())
	}
}

// Sync reports the elapsed total, or records it locally while offline.
func (a *Agent) Sync(ctx context.Context, now time.Time) {
	if a.finished {
		return
	}
	if !a.online {
		if err := a.transport.Ping(ctx); err == nil {
			a.SetOnline(ctx, true)
		}
	}
	elapsed := a.elapsed(now)
	if _, err := a.reconciler.RecordLocal(ctx, a.sessionID, elapsed); err != nil {
		a.logger.Error("failed to record local total", "error", err)
	}
	// Offline totals are not queued; reconciliation pushes the larger value
	// once the client is back.
	if !a.online {
		return
	}
	a.deliverCommand(ctx, Command{Type: CommandSync, UserID: a.cfg.UserID, SessionID: a.sessionID, Duration: elapsed})
}

// Stop flushes open intervals and clocks out.
func (a *Agent) Stop(ctx context.Context, now time.Time) {
	if a.finished || a.machine == nil {
		return
	}
	a.handle(ctx, a.machine.Stop(now))
	a.clockOut(ctx, now)
}

func (a *Agent) clockOut(ctx context.Context, at time.Time) {
	end := at
	elapsed := a.elapsed(at)
	if _, err := a.reconciler.RecordLocal(ctx, a.sessionID, elapsed); err != nil {
		a.logger.Error("failed to record local total", "error", err)
	}
	a.deliverCommand(ctx, Command{
		Type:     CommandClockOut,
		UserID:   a.cfg.UserID,
		Duration: elapsed,
		EndTime:  &end,
	})
	a.finished = true
	if err := a.reconciler.ClearSession(ctx, a.cfg.UserID); err != nil {
		a.logger.Error("failed to clear recorded session", "error", err)
	}
	if err := a.reconciler.Forget(ctx, a.sessionID); err != nil {
		a.logger.Error("failed to drop local total", "error", err)
	}
	a.logger.Info("clocked out", "session", a.sessionID, "elapsed", elapsed)
}

func (a *Agent) handle(ctx context.Context, res tracker.Result) {
	for _, activity := range res.Activities {
		ts := activity.Timestamp
		a.deliverActivity(ctx, dto.ActivityRequest{
			SessionID: a.sessionID,
			Type:      activity.Type,
			Timestamp: &ts,
			Details:   activity.Details,
		})
	}
	if res.Prompt != tracker.PromptNone {
		select {
		case a.prompts <- res.Prompt:
		default:
		}
	}
	if res.Finalize != nil && !a.finished {
		a.logger.Warn("auto clock-out", "reason", res.Finalize.Reason)
		a.clockOut(ctx, res.Finalize.At)
	}
}

// deliverActivity sends live when nothing is queued ahead of it, so the
// server always sees entries in the order they were produced.
func (a *Agent) deliverActivity(ctx context.Context, req dto.ActivityRequest) {
	if a.online && !a.backlog {
		err := a.transport.SendActivity(ctx, req)
		if err == nil {
			return
		}
		if errors.Is(err, offline.ErrRejected) {
			a.logger.Warn("activity rejected", "type", req.Type, "error", err)
			return
		}
		a.logger.Warn("activity send failed, queueing", "type", req.Type, "error", err)
		a.online = false
	}
	a.enqueue(ctx, offline.KindActivity, req)
}

func (a *Agent) deliverCommand(ctx context.Context, cmd Command) {
	if a.online && !a.backlog {
		err := a.transport.SendCommand(ctx, cmd)
		if err == nil {
			return
		}
		if errors.Is(err, offline.ErrRejected) {
			a.logger.Warn("command rejected", "type", cmd.Type, "error", err)
			return
		}
		a.logger.Warn("command send failed, queueing", "type", cmd.Type, "error", err)
		a.online = false
	}
	a.enqueue(ctx, offline.KindCommand, cmd)
}

func (a *Agent) enqueue(ctx context.Context, kind offline.Kind, payload interface{}) {
	if _, err := a.queue.Enqueue(ctx, kind, payload); err != nil {
		a.logger.Error("failed to queue message", "kind", kind, "error", err)
		return
	}
	a.backlog = true
}

func (a *Agent) drain(ctx context.Context) {
	report, err := a.queue.Drain(ctx, func() bool { return a.online }, a.replay)
	if err != nil {
		// Offline until the next Sync ping succeeds and drains again.
		a.logger.Warn("drain stopped", "sent", report.Sent, "remaining", report.Remaining, "error", err)
		a.online = false
		return
	}
	a.backlog = report.Remaining > 0
	a.logger.Info("queue drained", "sent", report.Sent, "rejected", report.Rejected, "remaining", report.Remaining)
}

func (a *Agent) replay(ctx context.Context, entry offline.Entry) error {
	return Replay(ctx, a.transport, entry)
}

// Replay sends one queued entry, flagging activities as offline replays so
// the server applies its wider timestamp window.
func Replay(ctx context.Context, transport Transport, entry offline.Entry) error {
	switch entry.Kind {
	case offline.KindActivity:
		var req dto.ActivityRequest
		if err := entry.Decode(&req); err != nil {
			return fmt.Errorf("%w: undecodable activity: %v", offline.ErrRejected, err)
		}
		req.IsOfflineSync = true
		return transport.SendActivity(ctx, req)
	case offline.KindCommand:
		var cmd Command
		if err := entry.Decode(&cmd); err != nil {
			return fmt.Errorf("%w: undecodable command: %v", offline.ErrRejected, err)
		}
		return transport.SendCommand(ctx, cmd)
	}
	return fmt.Errorf("%w: unknown entry kind %q", offline.ErrRejected, entry.Kind)
}

func (a *Agent) elapsed(now time.Time) int64 {
	if now.Before(a.started) {
		return 0
	}
	return int64(now.Sub(a.started) / time.Second)
}

// Run drives the agent until ctx ends, a stop control arrives or the session
// is auto clocked out. Every handler runs to completion before the next one.
func (a *Agent) Run(ctx context.Context, events <-chan tracker.Event, controls <-chan Control) error {
	if a.machine == nil {
		return errors.New("agent not started")
	}

	tick := time.NewTicker(a.cfg.TickInterval)
	defer tick.Stop()
	syncInterval := a.settings.SyncInterval()
	sync := time.NewTicker(syncInterval)
	defer sync.Stop()

	for !a.finished {
		select {
		case <-ctx.Done():
			// Flush with a fresh context; the caller's is already cancelled.
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			a.Stop(stopCtx, a.cfg.Now())
			cancel()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			a.Input(ctx, ev)
		case control, ok := <-controls:
			if !ok {
				controls = nil
				continue
			}
			a.Control(ctx, control)
		case <-tick.C:
			a.Tick(ctx, a.cfg.Now())
		case <-sync.C:
			a.Sync(ctx, a.cfg.Now())
			if next := a.settings.SyncInterval(); next != syncInterval {
				syncInterval = next
				sync.Reset(syncInterval)
			}
		}
	}
	return nil
}
