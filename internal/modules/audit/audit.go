package audit

import (
	"context"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/storage"

	"go.uber.org/zap"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Store interface {
	AddEffectLog(ctx context.Context, entry storage.EffectLog) error
}

// Logger records the outcome of executed side effects.
type Logger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) Report(ctx context.Context, effect effects.Effect, err error) {
	entry := storage.EffectLog{
		EffectID:  effect.ID,
		Kind:      string(effect.Kind),
		Target:    effect.Target(),
		Status:    StatusOK,
		CreatedAt: l.now(),
	}
	if err != nil {
		entry.Status = StatusFailed
		entry.Error = err.Error()
	}
	if l.store != nil {
		if storeErr := l.store.AddEffectLog(ctx, entry); storeErr != nil {
			l.logger.Warn("effect log write failed", zap.String("effect_id", effect.ID), zap.Error(storeErr))
		}
	}

	fields := []zap.Field{
		zap.String("effect_id", entry.EffectID),
		zap.String("effect", entry.Kind),
		zap.String("target", entry.Target),
	}
	if err != nil {
		l.logger.Error("effect failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Info("effect applied", fields...)
}
