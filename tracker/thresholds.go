package tracker

import (
	"fmt"
	"time"
)

// Thresholds are measured from the last qualifying input.
type Thresholds struct {
	PendingValidation   time.Duration
	Inactivity          time.Duration
	AutoClockOutDelay   time.Duration
	AutoClockOutEnabled bool
	// MinActivityInterval is the shortest gap between two keyboard/mouse
	// reports.
	MinActivityInterval time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PendingValidation:   10 * time.Second,
		Inactivity:          20 * time.Second,
		AutoClockOutDelay:   40 * time.Second,
		AutoClockOutEnabled: true,
		MinActivityInterval: 5 * time.Second,
	}
}

// Validate requires PendingValidation < Inactivity < AutoClockOutDelay.
func (t Thresholds) Validate() error {
	if t.PendingValidation <= 0 || t.Inactivity <= 0 || t.AutoClockOutDelay <= 0 {
		return fmt.Errorf("thresholds must be positive: %+v", t)
	}
	if t.PendingValidation >= t.Inactivity {
		return fmt.Errorf("pending validation threshold %s must be below inactivity threshold %s",
			t.PendingValidation, t.Inactivity)
	}
	if t.Inactivity >= t.AutoClockOutDelay {
		return fmt.Errorf("inactivity threshold %s must be below auto clock-out delay %s",
			t.Inactivity, t.AutoClockOutDelay)
	}
	if t.MinActivityInterval < 0 {
		return fmt.Errorf("minimum activity interval cannot be negative")
	}
	return nil
}
