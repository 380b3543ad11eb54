package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type Giveaway struct {
	ID         int64
	ChannelID  string
	MessageID  string
	Prize      string
	MaxWinners int
	StartTime  time.Time
	EndTime    time.Time
	Completed  bool
}

type GiveawayWinner struct {
	GiveawayID int64
	UserID     string
	Rerolled   bool
}

type giveawayRow struct {
	ID         int64  `db:"id"`
	ChannelID  string `db:"channel_id"`
	MessageID  string `db:"message_id"`
	Prize      string `db:"prize"`
	MaxWinners int    `db:"max_winners"`
	StartTime  int64  `db:"start_time"`
	EndTime    int64  `db:"end_time"`
	Completed  int    `db:"completed"`
}

func (r giveawayRow) model() Giveaway {
	return Giveaway{
		ID:         r.ID,
		ChannelID:  r.ChannelID,
		MessageID:  r.MessageID,
		Prize:      r.Prize,
		MaxWinners: r.MaxWinners,
		StartTime:  time.Unix(r.StartTime, 0),
		EndTime:    time.Unix(r.EndTime, 0),
		Completed:  r.Completed == 1,
	}
}

const giveawayColumns = `id, channel_id, message_id, prize, max_winners, start_time, end_time, completed`

func (q queries) InsertGiveaway(ctx context.Context, g Giveaway) (int64, error) {
	var id int64
	err := q.ext.QueryRowxContext(ctx, q.rebind(`
		INSERT INTO giveaways (channel_id, message_id, prize, max_winners, start_time, end_time, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), g.ChannelID, g.MessageID, g.Prize, g.MaxWinners, g.StartTime.Unix(), g.EndTime.Unix(), boolToInt(g.Completed)).Scan(&id)
	return id, err
}

func (q queries) GetGiveaway(ctx context.Context, id int64) (Giveaway, error) {
	var row giveawayRow
	err := sqlx.GetContext(ctx, q.ext, &row, q.rebind(q.forUpdate(`SELECT `+giveawayColumns+` FROM giveaways WHERE id = ?`)), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Giveaway{}, ErrNotFound
		}
		return Giveaway{}, err
	}
	return row.model(), nil
}

func (q queries) ListGiveaways(ctx context.Context, offset, limit int) ([]Giveaway, error) {
	var rows []giveawayRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, q.rebind(`
		SELECT `+giveawayColumns+` FROM giveaways ORDER BY id LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, err
	}
	return giveawayModels(rows), nil
}

func (q queries) CountGiveaways(ctx context.Context) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, q.ext, &total, `SELECT COUNT(*) FROM giveaways`)
	return total, err
}

// ListExpiredGiveaways returns uncompleted giveaways whose end time is at or before now.
func (q queries) ListExpiredGiveaways(ctx context.Context, now time.Time) ([]Giveaway, error) {
	var rows []giveawayRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, q.rebind(`
		SELECT `+giveawayColumns+` FROM giveaways
		WHERE completed = 0 AND end_time <= ?
		ORDER BY end_time, id
	`), now.Unix())
	if err != nil {
		return nil, err
	}
	return giveawayModels(rows), nil
}

func (q queries) UpdateGiveawayEnd(ctx context.Context, id int64, end time.Time) error {
	return q.execOne(ctx, `UPDATE giveaways SET end_time = ? WHERE id = ?`, end.Unix(), id)
}

func (q queries) UpdateGiveawayWinnerCount(ctx context.Context, id int64, maxWinners int) error {
	return q.execOne(ctx, `UPDATE giveaways SET max_winners = ? WHERE id = ?`, maxWinners, id)
}

// CompleteGiveaway flips an active giveaway to completed. ErrNotFound means it is missing or already completed.
func (q queries) CompleteGiveaway(ctx context.Context, id int64) error {
	return q.execOne(ctx, `UPDATE giveaways SET completed = 1 WHERE id = ? AND completed = 0`, id)
}

func (q queries) DeleteGiveaway(ctx context.Context, id int64) error {
	if _, err := q.ext.ExecContext(ctx, q.rebind(`DELETE FROM giveaway_winners WHERE giveaway_id = ?`), id); err != nil {
		return err
	}
	return q.execOne(ctx, `DELETE FROM giveaways WHERE id = ?`, id)
}

// ReplaceWinners clears the previous winners of a giveaway and stores the new set.
func (q queries) ReplaceWinners(ctx context.Context, giveawayID int64, userIDs []string, rerolled bool) error {
	if _, err := q.ext.ExecContext(ctx, q.rebind(`DELETE FROM giveaway_winners WHERE giveaway_id = ?`), giveawayID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		_, err := q.ext.ExecContext(ctx, q.rebind(`
			INSERT INTO giveaway_winners (giveaway_id, user_id, rerolled) VALUES (?, ?, ?)
			ON CONFLICT (giveaway_id, user_id) DO NOTHING
		`), giveawayID, userID, boolToInt(rerolled))
		if err != nil {
			return err
		}
	}
	return nil
}

func (q queries) ListWinners(ctx context.Context, giveawayID int64) ([]GiveawayWinner, error) {
	rows, err := q.ext.QueryxContext(ctx, q.rebind(`
		SELECT giveaway_id, user_id, rerolled FROM giveaway_winners WHERE giveaway_id = ? ORDER BY user_id
	`), giveawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var winners []GiveawayWinner
	for rows.Next() {
		var winner GiveawayWinner
		var rerolled int
		if err := rows.Scan(&winner.GiveawayID, &winner.UserID, &rerolled); err != nil {
			return nil, err
		}
		winner.Rerolled = rerolled == 1
		winners = append(winners, winner)
	}
	return winners, rows.Err()
}

func (q queries) execOne(ctx context.Context, query string, args ...any) error {
	result, err := q.ext.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func giveawayModels(rows []giveawayRow) []Giveaway {
	out := make([]Giveaway, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out
}
