package model

import (
	"math"
	"time"
)

// Totals holds the billing quantities derived from a session snapshot, all
// in seconds. They are computed on read and never stored.
type Totals struct {
	Duration              float64 `json:"duration"`
	NormalBreakDuration   float64 `json:"normal_break_duration"`
	OfficeBreakDuration   float64 `json:"office_break_duration"`
	TotalBreakDuration    float64 `json:"total_break_duration"`
	InactiveTime          float64 `json:"inactive_time"`
	PendingValidationTime float64 `json:"pending_validation_time"`
	WorkTime              float64 `json:"work_time"`
	PayableHours          float64 `json:"payable_hours"`
}

// Duration is end-start for completed sessions, otherwise the last duration
// the client synced.
func Duration(s *Session) float64 {
	if s.IsCompleted() && s.EndTime != nil {
		return math.Floor(s.EndTime.Sub(s.StartTime).Seconds())
	}
	return float64(s.LastSyncedDuration)
}

// BreakDuration sums breaks of one type; open breaks count up to now.
func BreakDuration(s *Session, breakType BreakType, now time.Time) float64 {
	var total time.Duration
	for _, b := range s.Breaks {
		if b.Type != breakType {
			continue
		}
		end := now
		if b.EndTime != nil {
			end = *b.EndTime
		}
		if end.After(b.StartTime) {
			total += end.Sub(b.StartTime)
		}
	}
	return total.Seconds()
}

// WorkTime is floored at zero: duration, breaks and inactivity are tracked
// independently and may disagree by a few seconds.
func WorkTime(s *Session, now time.Time) float64 {
	total := BreakDuration(s, BreakNormal, now) + BreakDuration(s, BreakOffice, now)
	return math.Max(0, Duration(s)-total-float64(s.InactiveTime))
}

// PayableHours counts office breaks as paid time.
func PayableHours(s *Session, now time.Time) float64 {
	return WorkTime(s, now) + BreakDuration(s, BreakOffice, now)
}

func ComputeTotals(s *Session, now time.Time) Totals {
	normal := BreakDuration(s, BreakNormal, now)
	office := BreakDuration(s, BreakOffice, now)
	work := WorkTime(s, now)
	return Totals{
		Duration:              Duration(s),
		NormalBreakDuration:   normal,
		OfficeBreakDuration:   office,
		TotalBreakDuration:    normal + office,
		InactiveTime:          float64(s.InactiveTime),
		PendingValidationTime: float64(s.PendingValidationTime),
		WorkTime:              work,
		PayableHours:          work + office,
	}
}

func (t Totals) Add(other Totals) Totals {
	return Totals{
		Duration:              t.Duration + other.Duration,
		NormalBreakDuration:   t.NormalBreakDuration + other.NormalBreakDuration,
		OfficeBreakDuration:   t.OfficeBreakDuration + other.OfficeBreakDuration,
		TotalBreakDuration:    t.TotalBreakDuration + other.TotalBreakDuration,
		InactiveTime:          t.InactiveTime + other.InactiveTime,
		PendingValidationTime: t.PendingValidationTime + other.PendingValidationTime,
		WorkTime:              t.WorkTime + other.WorkTime,
		PayableHours:          t.PayableHours + other.PayableHours,
	}
}

// DayKey groups sessions by user and the UTC calendar date of start_time,
// whatever zone the start time was recorded in.
func DayKey(userID string, start time.Time) (key string, date string) {
	date = start.UTC().Format("2006-01-02")
	return userID + "_" + date, date
}

// StartOfDayUTC returns midnight UTC of t's UTC date.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
