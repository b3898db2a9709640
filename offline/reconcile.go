package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// State holds per-session local totals that must survive a restart.
type State struct {
	Name      string `gorm:"primaryKey"`
	Value     int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (State) TableName() string {
	return "client_state"
}

// TotalSource is the server side of reconciliation.
type TotalSource interface {
	ServerTotal(ctx context.Context, sessionID string) (int64, error)
	PushTotal(ctx context.Context, sessionID string, seconds int64) error
}

// Reconcile combines the local and server elapsed totals after an outage.
// It never goes backward: whichever side observed more time wins. With two
// trackers running for one user the larger report wins even if it is not
// literally correct.
func Reconcile(local, server int64) int64 {
	if local > server {
		return local
	}
	return server
}

type Reconciler struct {
	db     *gorm.DB
	server TotalSource
	logger *slog.Logger
}

func NewReconciler(db *gorm.DB, server TotalSource, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{db: db, server: server, logger: logger}
}

func stateKey(sessionID string) string {
	return "synced_duration:" + sessionID
}

func (r *Reconciler) LocalTotal(ctx context.Context, sessionID string) (int64, error) {
	var state State
	err := r.db.WithContext(ctx).First(&state, "name = ?", stateKey(sessionID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read local total: %w", err)
	}
	return state.Value, nil
}

// RecordLocal stores seconds unless a larger total is already stored.
func (r *Reconciler) RecordLocal(ctx context.Context, sessionID string, seconds int64) (int64, error) {
	stored, err := r.LocalTotal(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	value := Reconcile(seconds, stored)
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&State{Name: stateKey(sessionID), Value: value, UpdatedAt: time.Now()}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to store local total: %w", err)
	}
	return value, nil
}

// Apply reconciles local against the server's total, stores the result and
// pushes it back when the server was behind. Both sides end at max(L, S).
func (r *Reconciler) Apply(ctx context.Context, sessionID string, local int64) (int64, error) {
	local, err := r.RecordLocal(ctx, sessionID, local)
	if err != nil {
		return 0, err
	}

	server, err := r.server.ServerTotal(ctx, sessionID)
	if err != nil {
		return local, fmt.Errorf("failed to fetch server total: %w", err)
	}

	reconciled := Reconcile(local, server)
	if reconciled != local {
		if _, err := r.RecordLocal(ctx, sessionID, reconciled); err != nil {
			return reconciled, err
		}
		r.logger.Info("adopted larger server total", "session", sessionID, "local", local, "server", server)
	}
	if reconciled > server {
		if err := r.server.PushTotal(ctx, sessionID, reconciled); err != nil {
			return reconciled, fmt.Errorf("failed to push reconciled total: %w", err)
		}
		r.logger.Info("pushed larger local total", "session", sessionID, "local", local, "server", server)
	}
	return reconciled, nil
}

func (r *Reconciler) Forget(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Delete(&State{}, "name = ?", stateKey(sessionID)).Error
}
