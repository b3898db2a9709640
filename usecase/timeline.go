package usecase

import (
	"fmt"
	"strings"
	"time"

	"timearchitect/model"
)

const (
	// ActivityGapThreshold is the largest gap between two input events that
	// still belong to one activity segment.
	ActivityGapThreshold = 2 * time.Minute

	unknownApp = "Unknown Application"
)

type activityGroup struct {
	start, end time.Time
	app, title string
	keyboard   int64
	mouse      int64
	entries    int
}

// GroupActivities compresses an ordered activity log into display segments.
// The result depends only on the log, so ids are stable across calls.
func GroupActivities(logs []model.ActivityLog) []model.Segment {
	segments := []model.Segment{}
	if len(logs) == 0 {
		return segments
	}

	first := logs[0].Timestamp
	segments = append(segments, instant(model.SegmentClockIn, first))

	var current *activityGroup
	app, title := unknownApp, ""

	closeCurrent := func() {
		if current != nil {
			segments = append(segments, current.segment())
			current = nil
		}
	}

	for _, entry := range logs {
		switch entry.Type {
		case model.ActivityKeyboard, model.ActivityMouse, model.ActivityWindowSwitch:
		default:
			closeCurrent()
			segments = append(segments, intervalSegment(entry))
			continue
		}

		windowChanged := false
		if entry.Type == model.ActivityWindowSwitch {
			nextApp, nextTitle := switchTarget(entry)
			windowChanged = nextApp != app || nextTitle != title
			app, title = nextApp, nextTitle
		} else if reported := entry.DetailString("app"); reported != "" && reported != app {
			app, title = reported, ""
			windowChanged = true
		}

		if current == nil ||
			windowChanged ||
			current.app != app ||
			entry.Timestamp.Sub(current.end) > ActivityGapThreshold {
			closeCurrent()
			current = &activityGroup{start: entry.Timestamp, end: entry.Timestamp, app: app, title: title}
		}

		current.end = entry.Timestamp
		current.entries++
		switch entry.Type {
		case model.ActivityKeyboard:
			current.keyboard += eventCount(entry)
		case model.ActivityMouse:
			current.mouse += eventCount(entry)
		}
	}
	closeCurrent()

	if !endedByAutoClockOut(logs) {
		segments = append(segments, instant(model.SegmentClockOut, logs[len(logs)-1].Timestamp))
	}
	return segments
}

// endedByAutoClockOut looks at the whole log: the auto clock-out entry is
// stamped at the start of the idle span, so a counter flush may sort after it.
func endedByAutoClockOut(logs []model.ActivityLog) bool {
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].Type == model.ActivityAutoClockOut {
			return true
		}
	}
	return false
}

func GroupID(start, end time.Time) string {
	return start.UTC().Format(time.RFC3339Nano) + "_" + end.UTC().Format(time.RFC3339Nano)
}

func instant(segmentType model.SegmentType, at time.Time) model.Segment {
	return model.Segment{
		GroupID:   GroupID(at, at),
		Type:      segmentType,
		StartTime: at,
		EndTime:   at,
	}
}

// intervalSegment spans a non-coalescable entry's own duration.
func intervalSegment(entry model.ActivityLog) model.Segment {
	duration := entry.DetailInt("duration")
	if duration < 0 {
		duration = 0
	}
	end := entry.Timestamp.Add(time.Duration(duration) * time.Second)
	return model.Segment{
		GroupID:    GroupID(entry.Timestamp, end),
		Type:       model.SegmentType(entry.Type),
		StartTime:  entry.Timestamp,
		EndTime:    end,
		Duration:   float64(duration),
		HasDetails: len(entry.Details) > 0,
		Details:    entry.Details,
	}
}

func (g *activityGroup) segment() model.Segment {
	summary := &model.SegmentSummary{
		TotalEvents: g.keyboard + g.mouse,
		Keyboard:    g.keyboard,
		Mouse:       g.mouse,
	}
	details := map[string]interface{}{"entries": g.entries}
	if g.title != "" {
		details["title"] = g.title
	}
	return model.Segment{
		GroupID:     GroupID(g.start, g.end),
		Type:        model.SegmentActivity,
		StartTime:   g.start,
		EndTime:     g.end,
		Duration:    g.end.Sub(g.start).Seconds(),
		App:         g.app,
		Summary:     summary,
		Description: describe(g),
		HasDetails:  summary.TotalEvents > 0,
		Details:     details,
	}
}

func describe(g *activityGroup) string {
	var parts []string
	if g.keyboard > 0 {
		parts = append(parts, fmt.Sprintf("%d keystrokes", g.keyboard))
	}
	if g.mouse > 0 {
		parts = append(parts, fmt.Sprintf("%d mouse clicks", g.mouse))
	}
	if len(parts) == 0 {
		parts = append(parts, "activity")
	}
	return strings.Join(parts, ", ") + " in " + g.app
}

// switchTarget reads the focused window after a switch. Older clients sent
// appName only.
func switchTarget(entry model.ActivityLog) (string, string) {
	app := entry.DetailString("to_app")
	if app == "" {
		app = entry.DetailString("appName")
	}
	if app == "" {
		app = unknownApp
	}
	return app, entry.DetailString("to_title")
}

// eventCount is the number of raw events one report stands for.
func eventCount(entry model.ActivityLog) int64 {
	if n := entry.DetailInt("count"); n > 0 {
		return n
	}
	return 1
}
