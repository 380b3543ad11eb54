package activity

import (
	"context"
	"errors"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/storage"

	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

type Config struct {
	GuildID     string
	ChannelID   string
	AwardRoleID string
	// AwardHour is the UTC hour after which the previous day is awarded.
	AwardHour int
	Excluded  []string
}

type Report struct {
	Day   string
	Total int
	Top   []storage.DayStat
}

type Service struct {
	cfg      Config
	store    *storage.Store
	logger   *zap.Logger
	excluded map[string]struct{}
}

func New(cfg Config, store *storage.Store, logger *zap.Logger) *Service {
	excluded := make(map[string]struct{}, len(cfg.Excluded))
	for _, id := range cfg.Excluded {
		excluded[id] = struct{}{}
	}
	return &Service{cfg: cfg, store: store, logger: logger, excluded: excluded}
}

func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

func (s *Service) RecordMessage(ctx context.Context, userID string, at time.Time) error {
	return s.store.IncrementDayStat(ctx, userID, Day(at))
}

func (s *Service) Report(ctx context.Context, day string, limit int) (Report, error) {
	total, err := s.store.DayTotal(ctx, day)
	if err != nil {
		return Report{}, err
	}
	top, err := s.store.TopDayStats(ctx, day, limit)
	if err != nil {
		return Report{}, err
	}
	return Report{Day: day, Total: total, Top: top}, nil
}

// Award hands the award role to the most active member of the previous day. Each day is awarded at most once.
func (s *Service) Award(ctx context.Context, now time.Time) ([]effects.Effect, error) {
	now = now.UTC()
	if now.Hour() < s.cfg.AwardHour {
		return nil, nil
	}
	day := Day(now.AddDate(0, 0, -1))

	if _, err := s.store.GetAward(ctx, day); err == nil {
		return nil, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	winner, count, err := s.mostActive(ctx, day)
	if err != nil || winner == "" {
		return nil, err
	}

	previous, err := s.store.LatestAward(ctx, day)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	inserted, err := s.store.InsertAward(ctx, storage.AwardWinner{Day: day, UserID: winner, AwardedAt: now})
	if err != nil || !inserted {
		return nil, err
	}

	s.logger.Info("activity award", zap.String("day", day), zap.String("user_id", winner), zap.Int("messages", count))

	var out []effects.Effect
	if previous.UserID != "" && previous.UserID != winner {
		out = append(out, effects.RevokeRole(s.cfg.GuildID, previous.UserID, s.cfg.AwardRoleID))
	}
	if previous.UserID != winner {
		out = append(out, effects.GrantRole(s.cfg.GuildID, winner, s.cfg.AwardRoleID))
	}
	out = append(out, effects.AnnounceWinners(s.cfg.ChannelID, []string{winner}, "most active member of "+day))
	return out, nil
}

func (s *Service) mostActive(ctx context.Context, day string) (string, int, error) {
	top, err := s.store.TopDayStats(ctx, day, len(s.excluded)+1)
	if err != nil {
		return "", 0, err
	}
	for _, stat := range top {
		if _, skip := s.excluded[stat.UserID]; skip {
			continue
		}
		return stat.UserID, stat.Count, nil
	}
	return "", 0, nil
}
