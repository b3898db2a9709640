package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"timearchitect/model"
	"timearchitect/services"
	"timearchitect/utils"
)

var (
	ErrInvalidSetting  = model.ErrInvalidSetting
	ErrSettingNotFound = errors.New("setting not found")
)

// SettingsStore is implemented by repository.SettingsRepo and
// repository.MemorySettingsRepo.
type SettingsStore interface {
	InitializeDefaults(ctx context.Context) error
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	ListSettings(ctx context.Context) ([]*model.Setting, error)
	UpdateSetting(ctx context.Context, key string, value interface{}, now time.Time) (*model.Setting, error)
}

type SettingsService struct {
	Settings SettingsStore
	Clock    utils.Clock
	Events   Publisher // optional
}

func NewSettingsService(store SettingsStore, clock utils.Clock) *SettingsService {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &SettingsService{Settings: store, Clock: clock}
}

func (svc *SettingsService) Initialize(ctx context.Context) error {
	if err := svc.Settings.InitializeDefaults(ctx); err != nil {
		return fmt.Errorf("failed to initialize settings: %w", err)
	}
	return nil
}

func (svc *SettingsService) List(ctx context.Context) ([]*model.Setting, error) {
	settings, err := svc.Settings.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = []*model.Setting{}
	}
	return settings, nil
}

func (svc *SettingsService) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := svc.Settings.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return setting, nil
}

// Update validates the value for its key before storing it.
func (svc *SettingsService) Update(ctx context.Context, key string, value interface{}) (*model.Setting, error) {
	if !model.IsKnownSetting(key) {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	normalized, err := model.NormalizeSettingValue(key, value)
	if err != nil {
		return nil, err
	}

	setting, err := svc.Settings.UpdateSetting(ctx, key, normalized, svc.Clock.Now())
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}

	log.Printf("Setting %s updated to %v", key, normalized)
	if svc.Events != nil {
		event, err := services.NewEvent(services.EventSettingsUpdated, "", setting)
		if err == nil {
			err = svc.Events.Publish(ctx, event)
		}
		if err != nil {
			log.Printf("Warning: failed to publish %s: %v", services.EventSettingsUpdated, err)
		}
	}
	return setting, nil
}
