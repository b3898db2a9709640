package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"timearchitect/model"
	"timearchitect/tracker"
)

type staticSettings struct {
	settings []model.Setting
	err      error
}

func (s staticSettings) FetchSettings(context.Context) ([]model.Setting, error) {
	return s.settings, s.err
}

func TestApplySettings(t *testing.T) {
	settings := []model.Setting{
		{Key: model.SettingPendingValidationThreshold, Value: float64(30)},
		{Key: model.SettingInactiveThreshold, Value: float64(60)},
		{Key: model.SettingAutoClockOutDelay, Value: int64(300)},
		{Key: model.SettingAutoClockOutEnabled, Value: false},
		{Key: model.SettingServerSyncInterval, Value: float64(20)},
		{Key: model.SettingMinActivityThreshold, Value: "fast"},
		{Key: "theme", Value: "dark"},
	}

	th, sync := ApplySettings(tracker.DefaultThresholds(), defaultSyncInterval, settings)
	want := tracker.Thresholds{
		PendingValidation:   30 * time.Second,
		Inactivity:          time.Minute,
		AutoClockOutDelay:   5 * time.Minute,
		AutoClockOutEnabled: false,
		MinActivityInterval: 5 * time.Second,
	}
	if th != want {
		t.Errorf("thresholds = %+v, want %+v", th, want)
	}
	if sync != 20*time.Second {
		t.Errorf("sync interval = %v, want 20s", sync)
	}
}

func TestSettingsLoad(t *testing.T) {
	t.Run("server down keeps defaults", func(t *testing.T) {
		s := NewSettings(staticSettings{err: errors.New("unreachable")}, nil)
		if s.Load(context.Background()) {
			t.Error("Load() = true with server down")
		}
		if s.Thresholds() != tracker.DefaultThresholds() {
			t.Errorf("thresholds = %+v, want defaults", s.Thresholds())
		}
		if !s.RefreshDue() {
			t.Error("RefreshDue() = false after failed load")
		}
	})

	t.Run("inconsistent thresholds ignored", func(t *testing.T) {
		s := NewSettings(staticSettings{settings: []model.Setting{
			{Key: model.SettingPendingValidationThreshold, Value: float64(120)},
		}}, nil)
		if s.Load(context.Background()) {
			t.Error("Load() accepted pending >= inactivity")
		}
		if s.Thresholds() != tracker.DefaultThresholds() {
			t.Errorf("thresholds = %+v, want defaults", s.Thresholds())
		}
	})

	t.Run("applies server values", func(t *testing.T) {
		s := NewSettings(staticSettings{settings: []model.Setting{
			{Key: model.SettingAutoClockOutDelay, Value: float64(90)},
		}}, nil)
		if !s.Load(context.Background()) {
			t.Fatal("Load() = false")
		}
		if s.Thresholds().AutoClockOutDelay != 90*time.Second {
			t.Errorf("AutoClockOutDelay = %v, want 90s", s.Thresholds().AutoClockOutDelay)
		}
		if s.RefreshDue() {
			t.Error("RefreshDue() = true after successful load")
		}
	})
}
