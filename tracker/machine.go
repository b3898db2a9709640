package tracker

import (
	"io"
	"log/slog"
	"time"

	"timearchitect/model"
)

type counter struct {
	count int64
	last  time.Time
}

func (c *counter) add(ev Event) {
	n := int64(ev.Count)
	if n <= 0 {
		n = 1
	}
	c.count += n
	if ev.At.After(c.last) {
		c.last = ev.At
	}
}

// Machine tracks one session's activity phase. It is not safe for
// concurrent use; the agent loop owns it and feeds it inputs and ticks.
type Machine struct {
	thresholds Thresholds
	logger     *slog.Logger

	phase         Phase
	lastActivity  time.Time
	inactiveStart time.Time

	app        string
	title      string
	focusStart time.Time

	keyboard  counter
	mouse     counter
	lastFlush time.Time
}

// NewMachine starts in the working phase as of now.
func NewMachine(thresholds Thresholds, now time.Time, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Machine{
		thresholds:   thresholds,
		logger:       logger,
		phase:        PhaseWorking,
		lastActivity: now,
		focusStart:   now,
		lastFlush:    now,
	}
}

func (m *Machine) Phase() Phase {
	return m.phase
}

func (m *Machine) LastActivity() time.Time {
	return m.lastActivity
}

// SetThresholds applies refreshed settings from the next tick on.
func (m *Machine) SetThresholds(thresholds Thresholds) {
	m.thresholds = thresholds
}

func (m *Machine) terminal() bool {
	return m.phase == PhaseAutoClockedOut || m.phase == PhaseStopped
}

// Input feeds one keyboard, mouse or focus event.
func (m *Machine) Input(ev Event) Result {
	res := Result{Phase: m.phase}
	if m.terminal() {
		return res
	}
	if m.phase == PhaseInactive {
		// Only an explicit Resume or ConvertToBreak leaves inactive.
		m.logger.Debug("input ignored while inactive", "kind", ev.Kind)
		return res
	}

	at := ev.At
	if at.Before(m.lastActivity) {
		at = m.lastActivity
	}

	if m.phase == PhasePendingValidation {
		res.Activities = append(res.Activities, interval(model.ActivityPendingValidation, m.lastActivity, at, nil))
		m.logger.Info("activity detected during pending validation", "idle", at.Sub(m.lastActivity))
	}
	m.phase = PhaseWorking

	switch ev.Kind {
	case EventFocus:
		if ev.App != m.app || ev.Title != m.title {
			res.Activities = append(res.Activities, m.flushCounters(false)...)
			res.Activities = append(res.Activities, Activity{
				Type:      model.ActivityWindowSwitch,
				Timestamp: at,
				Details: map[string]interface{}{
					"from_app":   m.app,
					"from_title": m.title,
					"to_app":     ev.App,
					"to_title":   ev.Title,
					"duration":   wholeSeconds(at.Sub(m.focusStart)),
				},
			})
			m.app, m.title, m.focusStart = ev.App, ev.Title, at
		}
	case EventKeyboard:
		m.keyboard.add(Event{At: at, Count: ev.Count})
	case EventMouse:
		m.mouse.add(Event{At: at, Count: ev.Count})
	}

	m.lastActivity = at
	res.Phase = m.phase
	return res
}

// Tick evaluates the idle thresholds at now and flushes input counters once
// MinActivityInterval has passed since the previous flush.
func (m *Machine) Tick(now time.Time) Result {
	res := Result{Phase: m.phase}
	if m.terminal() {
		return res
	}

	if now.Sub(m.lastFlush) >= m.thresholds.MinActivityInterval {
		res.Activities = append(res.Activities, m.flushCounters(false)...)
		m.lastFlush = now
	}

	idle := now.Sub(m.lastActivity)
	switch {
	case m.thresholds.AutoClockOutEnabled && idle >= m.thresholds.AutoClockOutDelay:
		res.Activities = append(res.Activities, m.flushCounters(false)...)
		res.Activities = append(res.Activities, interval(model.ActivityAutoClockOut, m.lastActivity, now,
			map[string]interface{}{"reason": "inactivity"}))
		res.Finalize = &Finalize{At: now, Reason: "inactivity"}
		m.phase = PhaseAutoClockedOut
		m.logger.Warn("auto clock-out after inactivity", "idle", idle)

	case m.phase != PhaseInactive && idle >= m.thresholds.Inactivity:
		m.phase = PhaseInactive
		m.inactiveStart = m.lastActivity
		res.Prompt = PromptInactive
		m.logger.Info("user inactive", "since", m.inactiveStart)

	case m.phase == PhaseWorking && idle >= m.thresholds.PendingValidation:
		m.phase = PhasePendingValidation
		m.logger.Debug("pending validation", "idle", idle)
	}

	res.Phase = m.phase
	return res
}

// Resume answers the inactivity prompt with "I'm back".
func (m *Machine) Resume(now time.Time) Result {
	return m.leaveInactive(now, map[string]interface{}{"resumed": true})
}

// ConvertToBreak answers the inactivity prompt by turning the idle time into
// a break. The inactivity interval closes at now, where the break starts.
func (m *Machine) ConvertToBreak(now time.Time) Result {
	return m.leaveInactive(now, map[string]interface{}{"resumed": true, "converted_to_break": true})
}

func (m *Machine) leaveInactive(now time.Time, extra map[string]interface{}) Result {
	res := Result{Phase: m.phase}
	if m.phase != PhaseInactive {
		return res
	}
	res.Activities = append(res.Activities, interval(model.ActivityInactivity, m.inactiveStart, now, extra))
	m.phase = PhaseWorking
	m.lastActivity = now
	m.inactiveStart = time.Time{}
	res.Phase = m.phase
	m.logger.Info("resumed from inactivity", "details", extra)
	return res
}

// Stop closes any open interval and flushes counters, marking each entry as
// flushed. Later calls return an empty result.
func (m *Machine) Stop(now time.Time) Result {
	res := Result{Phase: m.phase}
	if m.terminal() {
		return res
	}

	flushed := map[string]interface{}{"flushed": true}
	switch m.phase {
	case PhasePendingValidation:
		res.Activities = append(res.Activities, interval(model.ActivityPendingValidation, m.lastActivity, now, flushed))
	case PhaseInactive:
		res.Activities = append(res.Activities, interval(model.ActivityInactivity, m.inactiveStart, now, flushed))
	}
	res.Activities = append(res.Activities, m.flushCounters(true)...)

	m.phase = PhaseStopped
	res.Phase = m.phase
	m.logger.Info("tracking stopped", "flushed", len(res.Activities))
	return res
}

func (m *Machine) flushCounters(final bool) []Activity {
	var out []Activity
	for _, c := range []struct {
		activityType model.ActivityType
		counter      *counter
	}{
		{model.ActivityKeyboard, &m.keyboard},
		{model.ActivityMouse, &m.mouse},
	} {
		if c.counter.count == 0 {
			continue
		}
		details := map[string]interface{}{"count": c.counter.count, "app": m.app}
		if m.title != "" {
			details["title"] = m.title
		}
		if final {
			details["flushed"] = true
		}
		out = append(out, Activity{Type: c.activityType, Timestamp: c.counter.last, Details: details})
		*c.counter = counter{}
	}
	return out
}
