package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type DayStat struct {
	UserID string `db:"user_id"`
	Day    string `db:"day"`
	Count  int    `db:"message_count"`
}

type AwardWinner struct {
	Day       string
	UserID    string
	AwardedAt time.Time
}

func (q queries) IncrementDayStat(ctx context.Context, userID, day string) error {
	_, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO message_day_stats (user_id, day, message_count) VALUES (?, ?, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET message_count = message_day_stats.message_count + 1
	`), userID, day)
	return err
}

func (q queries) TopDayStats(ctx context.Context, day string, limit int) ([]DayStat, error) {
	var stats []DayStat
	err := sqlx.SelectContext(ctx, q.ext, &stats, q.rebind(`
		SELECT user_id, day, message_count FROM message_day_stats
		WHERE day = ?
		ORDER BY message_count DESC, user_id
		LIMIT ?
	`), day, limit)
	return stats, err
}

func (q queries) DayTotal(ctx context.Context, day string) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, q.ext, &total, q.rebind(`
		SELECT COALESCE(SUM(message_count), 0) FROM message_day_stats WHERE day = ?
	`), day)
	return total, err
}

func (q queries) GetAward(ctx context.Context, day string) (AwardWinner, error) {
	var award AwardWinner
	var awardedAt int64
	err := q.ext.QueryRowxContext(ctx, q.rebind(`
		SELECT day, user_id, awarded_at FROM award_winners WHERE day = ?
	`), day).Scan(&award.Day, &award.UserID, &awardedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AwardWinner{}, ErrNotFound
		}
		return AwardWinner{}, err
	}
	award.AwardedAt = time.Unix(awardedAt, 0)
	return award, nil
}

// LatestAward returns the most recent award given before day.
func (q queries) LatestAward(ctx context.Context, before string) (AwardWinner, error) {
	var award AwardWinner
	var awardedAt int64
	err := q.ext.QueryRowxContext(ctx, q.rebind(`
		SELECT day, user_id, awarded_at FROM award_winners WHERE day < ? ORDER BY day DESC LIMIT 1
	`), before).Scan(&award.Day, &award.UserID, &awardedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AwardWinner{}, ErrNotFound
		}
		return AwardWinner{}, err
	}
	award.AwardedAt = time.Unix(awardedAt, 0)
	return award, nil
}

// InsertAward stores the award for a day. inserted is false if the day was already awarded.
func (q queries) InsertAward(ctx context.Context, award AwardWinner) (bool, error) {
	result, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO award_winners (day, user_id, awarded_at) VALUES (?, ?, ?)
		ON CONFLICT (day) DO NOTHING
	`), award.Day, award.UserID, award.AwardedAt.Unix())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected == 1, err
}
