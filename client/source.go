package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"timearchitect/tracker"
)

// LineSource turns a text stream into tracker input. It stands in for the
// platform capture hook:
//
//	key [count]
//	mouse [count]
//	focus <app> [| <title>]
//	resume | break | break-start | break-end | online | offline | stop
type LineSource struct {
	r   io.Reader
	now func() time.Time
}

func NewLineSource(r io.Reader, now func() time.Time) *LineSource {
	if now == nil {
		now = time.Now
	}
	return &LineSource{r: r, now: now}
}

// Run reads until EOF or ctx ends, then closes both channels. Malformed
// lines are reported through onError and skipped.
func (s *LineSource) Run(ctx context.Context, events chan<- tracker.Event, controls chan<- Control, onError func(error)) error {
	defer close(events)
	defer close(controls)

	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ev, control, err := ParseLine(line, s.now())
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}

		if control != "" {
			select {
			case controls <- control:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// ParseLine decodes one line into either an input event or a control.
func ParseLine(line string, at time.Time) (tracker.Event, Control, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "key", "keyboard":
		count, err := parseCount(rest)
		return tracker.Event{Kind: tracker.EventKeyboard, At: at, Count: count}, "", err
	case "mouse", "click":
		count, err := parseCount(rest)
		return tracker.Event{Kind: tracker.EventMouse, At: at, Count: count}, "", err
	case "focus":
		if rest == "" {
			return tracker.Event{}, "", fmt.Errorf("focus needs an application name")
		}
		app, title, _ := strings.Cut(rest, "|")
		return tracker.Event{
			Kind:  tracker.EventFocus,
			At:    at,
			App:   strings.TrimSpace(app),
			Title: strings.TrimSpace(title),
		}, "", nil
	case "resume":
		return tracker.Event{}, ControlResume, nil
	case "break":
		return tracker.Event{}, ControlConvertToBreak, nil
	case "break-start":
		return tracker.Event{}, ControlStartBreak, nil
	case "break-end":
		return tracker.Event{}, ControlEndBreak, nil
	case "online":
		return tracker.Event{}, ControlOnline, nil
	case "offline":
		return tracker.Event{}, ControlOffline, nil
	case "stop", "quit":
		return tracker.Event{}, ControlStop, nil
	}
	return tracker.Event{}, "", fmt.Errorf("unknown input %q", verb)
}

func parseCount(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	return n, nil
}
