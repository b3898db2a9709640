package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	SettingPendingValidationThreshold = "pendingValidationThreshold"
	SettingInactiveThreshold          = "inactiveThreshold"
	SettingAutoClockOutEnabled        = "autoClockOutEnabled"
	SettingAutoClockOutDelay          = "autoClockOutDelay"
	SettingServerSyncInterval         = "serverSyncInterval"
	SettingMinActivityThreshold       = "minActivityThreshold"

	MinServerSyncInterval = 5
	MaxServerSyncInterval = 60
)

var ErrInvalidSetting = errors.New("invalid setting")

type Setting struct {
	Key         string      `bson:"key" json:"key"`
	Value       interface{} `bson:"value" json:"value"`
	Description string      `bson:"description" json:"description"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
}

// DefaultSettings are seeded on startup; values are seconds unless boolean.
func DefaultSettings() []Setting {
	return []Setting{
		{Key: SettingPendingValidationThreshold, Value: int64(10), Description: "Time of inactivity before session requires validation (in seconds)"},
		{Key: SettingInactiveThreshold, Value: int64(20), Description: "Time of inactivity before session is marked as inactive (in seconds)"},
		{Key: SettingAutoClockOutEnabled, Value: true, Description: "Whether to automatically clock out inactive sessions"},
		{Key: SettingAutoClockOutDelay, Value: int64(40), Description: "Time to wait before auto clocking out an inactive session (in seconds)"},
		{Key: SettingServerSyncInterval, Value: int64(10), Description: "Interval for syncing session data with server (in seconds)"},
		{Key: SettingMinActivityThreshold, Value: int64(5), Description: "Minimum time between activity logs (in seconds)"},
	}
}

func IsKnownSetting(key string) bool {
	for _, s := range DefaultSettings() {
		if s.Key == key {
			return true
		}
	}
	return false
}

// NormalizeSettingValue checks a value against its key and returns it as
// int64 seconds or bool.
func NormalizeSettingValue(key string, value interface{}) (interface{}, error) {
	if !IsKnownSetting(key) {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
	if key == SettingAutoClockOutEnabled {
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidSetting, key)
		}
		return b, nil
	}

	n, ok := AsInt64(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a whole number of seconds", ErrInvalidSetting, key)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidSetting, key)
	}
	if key == SettingServerSyncInterval && (n < MinServerSyncInterval || n > MaxServerSyncInterval) {
		return nil, fmt.Errorf("%w: %s must be between %d and %d seconds",
			ErrInvalidSetting, key, MinServerSyncInterval, MaxServerSyncInterval)
	}
	return n, nil
}

// AsInt64 accepts the numeric types produced by JSON and BSON decoding.
func AsInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
