package model

import "time"

type SegmentType string

const (
	SegmentClockIn           SegmentType = "clock_in"
	SegmentClockOut          SegmentType = "clock_out"
	SegmentActivity          SegmentType = "activity"
	SegmentInactivity        SegmentType = "inactivity"
	SegmentPendingValidation SegmentType = "pending_validation"
	SegmentAutoClockOut      SegmentType = "auto_clock_out"
)

type SegmentSummary struct {
	TotalEvents int64 `json:"total_events"`
	Keyboard    int64 `json:"keyboard"`
	Mouse       int64 `json:"mouse"`
}

// Segment is one presentable span of a session timeline. GroupID is derived
// from the start and end timestamps so re-grouping the same log yields the
// same ids.
type Segment struct {
	GroupID     string                 `json:"group_id"`
	Type        SegmentType            `json:"type"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     time.Time              `json:"end_time"`
	Duration    float64                `json:"duration"`
	App         string                 `json:"app,omitempty"`
	Summary     *SegmentSummary        `json:"summary,omitempty"`
	Description string                 `json:"description,omitempty"`
	HasDetails  bool                   `json:"has_details"`
	Details     map[string]interface{} `json:"details,omitempty"`
}
