package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/poll"
	"council-bot/internal/storage"

	"go.uber.org/zap"
)

type GiveawayEnder interface {
	Expired(ctx context.Context) ([]storage.Giveaway, error)
	End(ctx context.Context, id int64) (giveaway.Result, error)
}

type PollCloser interface {
	Expired(ctx context.Context) ([]storage.Poll, error)
	End(ctx context.Context, id int64) (poll.Result, error)
}

type Awarder interface {
	Award(ctx context.Context, now time.Time) ([]effects.Effect, error)
}

// GiveawayTask ends every expired giveaway in turn. A giveaway that fails to end is logged and retried on the next sweep.
func GiveawayTask(interval time.Duration, ender GiveawayEnder, executor effects.Executor, reporter effects.Reporter, logger *zap.Logger) Task {
	return Task{
		Name:     "giveaway_expiry",
		Interval: interval,
		Run: func(ctx context.Context, _ time.Time) error {
			expired, err := ender.Expired(ctx)
			if err != nil {
				return err
			}

			failures := 0
			for _, g := range expired {
				result, err := ender.End(ctx, g.ID)
				if errors.Is(err, giveaway.ErrAlreadyEnded) {
					logger.Debug("giveaway already ended", zap.Int64("giveaway_id", g.ID))
					continue
				}
				if err != nil {
					failures++
					logger.Error("giveaway end failed", zap.Int64("giveaway_id", g.ID), zap.Error(err))
					continue
				}
				effects.Run(ctx, executor, reporter, result.Effects)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d expired giveaways failed to end", failures, len(expired))
			}
			return nil
		},
	}
}

// PollTask closes every poll past its end time so the final tally is rendered without buttons.
func PollTask(interval time.Duration, closer PollCloser, executor effects.Executor, reporter effects.Reporter, logger *zap.Logger) Task {
	return Task{
		Name:     "poll_expiry",
		Interval: interval,
		Run: func(ctx context.Context, _ time.Time) error {
			expired, err := closer.Expired(ctx)
			if err != nil {
				return err
			}

			var errs []error
			for _, p := range expired {
				result, err := closer.End(ctx, p.ID)
				if errors.Is(err, poll.ErrEnded) {
					continue
				}
				if err != nil {
					logger.Error("poll end failed", zap.Int64("poll_id", p.ID), zap.Error(err))
					errs = append(errs, fmt.Errorf("poll %d: %w", p.ID, err))
					continue
				}
				effects.Run(ctx, executor, reporter, result.Effects)
			}
			return errors.Join(errs...)
		},
	}
}

func ActivityTask(interval time.Duration, awarder Awarder, executor effects.Executor, reporter effects.Reporter) Task {
	return Task{
		Name:     "activity_award",
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) error {
			list, err := awarder.Award(ctx, now)
			if err != nil {
				return err
			}
			effects.Run(ctx, executor, reporter, list)
			return nil
		},
	}
}
