package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

func (q queries) IsSilenced(ctx context.Context, userID string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count, q.rebind(`SELECT COUNT(*) FROM silenced_members WHERE user_id = ?`), userID)
	return count > 0, err
}

func (q queries) AddSilenced(ctx context.Context, userID string, at time.Time) error {
	_, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO silenced_members (user_id, silenced_at) VALUES (?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), userID, at.Unix())
	return err
}

// RemoveSilenced reports whether a row was removed.
func (q queries) RemoveSilenced(ctx context.Context, userID string) (bool, error) {
	result, err := q.ext.ExecContext(ctx, q.rebind(`DELETE FROM silenced_members WHERE user_id = ?`), userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}
