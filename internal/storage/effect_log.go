package storage

import (
	"context"
	"time"
)

type EffectLog struct {
	EffectID  string
	Kind      string
	Target    string
	Status    string
	Error     string
	CreatedAt time.Time
}

func (q queries) AddEffectLog(ctx context.Context, entry EffectLog) error {
	_, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO effect_log (effect_id, kind, target, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), entry.EffectID, entry.Kind, entry.Target, entry.Status, entry.Error, entry.CreatedAt.Unix())
	return err
}

func (q queries) ListEffectLogs(ctx context.Context, limit int) ([]EffectLog, error) {
	rows, err := q.ext.QueryxContext(ctx, q.rebind(`
		SELECT effect_id, kind, target, status, error, created_at FROM effect_log ORDER BY id DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []EffectLog
	for rows.Next() {
		var entry EffectLog
		var createdAt int64
		if err := rows.Scan(&entry.EffectID, &entry.Kind, &entry.Target, &entry.Status, &entry.Error, &createdAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
