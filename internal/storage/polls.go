package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type Poll struct {
	ID        int64
	ChannelID string
	MessageID string
	AuthorID  string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Ended     bool
}

type PollOption struct {
	PollID int64  `db:"poll_id"`
	Number int    `db:"option_no"`
	Label  string `db:"label"`
}

// PollBallot is the single choice a voter holds in a poll.
type PollBallot struct {
	PollID  int64
	VoterID string
	Number  int
	CastAt  time.Time
}

type pollRow struct {
	ID        int64  `db:"id"`
	ChannelID string `db:"channel_id"`
	MessageID string `db:"message_id"`
	AuthorID  string `db:"author_id"`
	Title     string `db:"title"`
	StartTime int64  `db:"start_time"`
	EndTime   int64  `db:"end_time"`
	Ended     int    `db:"ended"`
}

func (r pollRow) model() Poll {
	return Poll{
		ID:        r.ID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		AuthorID:  r.AuthorID,
		Title:     r.Title,
		StartTime: time.Unix(r.StartTime, 0),
		EndTime:   time.Unix(r.EndTime, 0),
		Ended:     r.Ended == 1,
	}
}

type ballotRow struct {
	PollID  int64  `db:"poll_id"`
	VoterID string `db:"voter_id"`
	Number  int    `db:"option_no"`
	CastAt  int64  `db:"cast_at"`
}

func (r ballotRow) model() PollBallot {
	return PollBallot{PollID: r.PollID, VoterID: r.VoterID, Number: r.Number, CastAt: time.Unix(r.CastAt, 0)}
}

const pollColumns = `id, channel_id, message_id, author_id, title, start_time, end_time, ended`

// InsertPoll stores the poll and its options numbered from zero. Run it inside InTx.
func (q queries) InsertPoll(ctx context.Context, p Poll, options []string) (int64, error) {
	var id int64
	err := q.ext.QueryRowxContext(ctx, q.rebind(`
		INSERT INTO polls (channel_id, message_id, author_id, title, start_time, end_time, ended)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), p.ChannelID, p.MessageID, p.AuthorID, p.Title, p.StartTime.Unix(), p.EndTime.Unix(), boolToInt(p.Ended)).Scan(&id)
	if err != nil {
		return 0, err
	}
	for number, label := range options {
		_, err := q.ext.ExecContext(ctx, q.rebind(`
			INSERT INTO poll_options (poll_id, option_no, label) VALUES (?, ?, ?)
		`), id, number, label)
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (q queries) GetPoll(ctx context.Context, id int64) (Poll, error) {
	return q.getPoll(ctx, q.forUpdate(`SELECT `+pollColumns+` FROM polls WHERE id = ?`), id)
}

func (q queries) GetPollByMessage(ctx context.Context, messageID string) (Poll, error) {
	return q.getPoll(ctx, `SELECT `+pollColumns+` FROM polls WHERE message_id = ?`, messageID)
}

func (q queries) getPoll(ctx context.Context, query string, arg any) (Poll, error) {
	var row pollRow
	if err := sqlx.GetContext(ctx, q.ext, &row, q.rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Poll{}, ErrNotFound
		}
		return Poll{}, err
	}
	return row.model(), nil
}

func (q queries) ListPollOptions(ctx context.Context, pollID int64) ([]PollOption, error) {
	var options []PollOption
	err := sqlx.SelectContext(ctx, q.ext, &options, q.rebind(`
		SELECT poll_id, option_no, label FROM poll_options WHERE poll_id = ? ORDER BY option_no
	`), pollID)
	return options, err
}

func (q queries) ListPollBallots(ctx context.Context, pollID int64) ([]PollBallot, error) {
	var rows []ballotRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, q.rebind(`
		SELECT poll_id, voter_id, option_no, cast_at FROM poll_ballots WHERE poll_id = ? ORDER BY cast_at, voter_id
	`), pollID)
	if err != nil {
		return nil, err
	}
	out := make([]PollBallot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (q queries) GetBallot(ctx context.Context, pollID int64, voterID string) (PollBallot, error) {
	var row ballotRow
	err := sqlx.GetContext(ctx, q.ext, &row, q.rebind(`
		SELECT poll_id, voter_id, option_no, cast_at FROM poll_ballots WHERE poll_id = ? AND voter_id = ?
	`), pollID, voterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PollBallot{}, ErrNotFound
		}
		return PollBallot{}, err
	}
	return row.model(), nil
}

// PutBallot stores the voter's choice, replacing any earlier one in the same poll.
func (q queries) PutBallot(ctx context.Context, b PollBallot) error {
	_, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO poll_ballots (poll_id, voter_id, option_no, cast_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (poll_id, voter_id) DO UPDATE SET option_no = excluded.option_no, cast_at = excluded.cast_at
	`), b.PollID, b.VoterID, b.Number, b.CastAt.Unix())
	return err
}

// ListExpiredPolls returns open polls whose end time is at or before now.
func (q queries) ListExpiredPolls(ctx context.Context, now time.Time) ([]Poll, error) {
	var rows []pollRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, q.rebind(`
		SELECT `+pollColumns+` FROM polls
		WHERE ended = 0 AND end_time <= ?
		ORDER BY end_time, id
	`), now.Unix())
	if err != nil {
		return nil, err
	}
	out := make([]Poll, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// EndPoll closes an open poll. ErrNotFound means it is missing or already ended.
func (q queries) EndPoll(ctx context.Context, id int64) error {
	return q.execOne(ctx, `UPDATE polls SET ended = 1 WHERE id = ? AND ended = 0`, id)
}

// DeletePoll removes a poll with its options and ballots.
func (q queries) DeletePoll(ctx context.Context, id int64) error {
	for _, query := range []string{
		`DELETE FROM poll_ballots WHERE poll_id = ?`,
		`DELETE FROM poll_options WHERE poll_id = ?`,
	} {
		if _, err := q.ext.ExecContext(ctx, q.rebind(query), id); err != nil {
			return err
		}
	}
	return q.execOne(ctx, `DELETE FROM polls WHERE id = ?`, id)
}
