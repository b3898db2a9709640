package tracker

import (
	"time"

	"timearchitect/model"
)

type Phase string

const (
	PhaseWorking           Phase = "working"
	PhasePendingValidation Phase = "pending_validation"
	PhaseInactive          Phase = "inactive"
	PhaseAutoClockedOut    Phase = "auto_clocked_out"
	PhaseStopped           Phase = "stopped"
)

type EventKind string

const (
	EventKeyboard EventKind = "keyboard"
	EventMouse    EventKind = "mouse"
	EventFocus    EventKind = "focus"
)

// Event is one raw input observation. Count lets a capture hook batch
// several key presses; zero means one.
type Event struct {
	Kind  EventKind
	At    time.Time
	App   string
	Title string
	Count int
}

// Activity is an entry ready to be reported to the server.
type Activity struct {
	Type      model.ActivityType     `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
}

type Prompt string

const (
	PromptNone     Prompt = ""
	PromptInactive Prompt = "inactive"
)

// Finalize asks the surrounding application to complete the session.
type Finalize struct {
	At     time.Time
	Reason string
}

// Result is everything one call produced: closed intervals and reports, an
// optional prompt for the user and an optional clock-out command.
type Result struct {
	Phase      Phase
	Activities []Activity
	Prompt     Prompt
	Finalize   *Finalize
}

func (r Result) Empty() bool {
	return len(r.Activities) == 0 && r.Prompt == PromptNone && r.Finalize == nil
}

func interval(activityType model.ActivityType, start, end time.Time, extra map[string]interface{}) Activity {
	details := map[string]interface{}{
		"duration": wholeSeconds(end.Sub(start)),
		"start":    start.UTC().Format(time.RFC3339),
		"end":      end.UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		details[k] = v
	}
	return Activity{Type: activityType, Timestamp: start, Details: details}
}

func wholeSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
