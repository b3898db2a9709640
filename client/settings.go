package client

import (
	"context"
	"io"
	"log/slog"
	"time"

	"timearchitect/model"
	"timearchitect/tracker"
)

type SettingsSource interface {
	FetchSettings(ctx context.Context) ([]model.Setting, error)
}

const defaultSyncInterval = 10 * time.Second

// Settings holds the thresholds the tracker runs with. When the server
// cannot be reached it keeps the compiled-in defaults and marks a refresh as
// due for the next time the client comes online.
type Settings struct {
	source       SettingsSource
	logger       *slog.Logger
	thresholds   tracker.Thresholds
	syncInterval time.Duration
	refreshDue   bool
}

func NewSettings(source SettingsSource, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Settings{
		source:       source,
		logger:       logger,
		thresholds:   tracker.DefaultThresholds(),
		syncInterval: defaultSyncInterval,
		refreshDue:   true,
	}
}

func (s *Settings) Thresholds() tracker.Thresholds {
	return s.thresholds
}

func (s *Settings) SyncInterval() time.Duration {
	return s.syncInterval
}

func (s *Settings) RefreshDue() bool {
	return s.refreshDue
}

// Load fetches settings. It reports whether fresh values were applied; a
// failure is logged and leaves the current values in place.
func (s *Settings) Load(ctx context.Context) bool {
	settings, err := s.source.FetchSettings(ctx)
	if err != nil {
		s.refreshDue = true
		s.logger.Warn("settings unavailable, using current thresholds", "error", err)
		return false
	}

	thresholds, syncInterval := ApplySettings(tracker.DefaultThresholds(), defaultSyncInterval, settings)
	if err := thresholds.Validate(); err != nil {
		s.refreshDue = false
		s.logger.Warn("server thresholds are inconsistent, keeping current values", "error", err)
		return false
	}

	s.thresholds = thresholds
	s.syncInterval = syncInterval
	s.refreshDue = false
	s.logger.Debug("settings loaded", "thresholds", thresholds, "sync_interval", syncInterval)
	return true
}

// ApplySettings overlays server settings on base. Unknown keys and values of
// the wrong type are skipped.
func ApplySettings(base tracker.Thresholds, syncInterval time.Duration, settings []model.Setting) (tracker.Thresholds, time.Duration) {
	seconds := func(v interface{}) (time.Duration, bool) {
		n, ok := model.AsInt64(v)
		if !ok || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}

	for _, setting := range settings {
		switch setting.Key {
		case model.SettingPendingValidationThreshold:
			if d, ok := seconds(setting.Value); ok {
				base.PendingValidation = d
			}
		case model.SettingInactiveThreshold:
			if d, ok := seconds(setting.Value); ok {
				base.Inactivity = d
			}
		case model.SettingAutoClockOutDelay:
			if d, ok := seconds(setting.Value); ok {
				base.AutoClockOutDelay = d
			}
		case model.SettingMinActivityThreshold:
			if d, ok := seconds(setting.Value); ok {
				base.MinActivityInterval = d
			}
		case model.SettingAutoClockOutEnabled:
			if b, ok := setting.Value.(bool); ok {
				base.AutoClockOutEnabled = b
			}
		case model.SettingServerSyncInterval:
			if d, ok := seconds(setting.Value); ok {
				syncInterval = d
			}
		}
	}
	return base, syncInterval
}
