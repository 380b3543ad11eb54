package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Action string

const (
	ActionDeleteMessage  Action = "delete_message"
	ActionSilenceSuspect Action = "silence_suspect"
	ActionBlockReporter  Action = "block_reporter"
)

// Actions lists the vote tracks of a report case in display order.
var Actions = []Action{ActionDeleteMessage, ActionSilenceSuspect, ActionBlockReporter}

func (a Action) Valid() bool {
	switch a {
	case ActionDeleteMessage, ActionSilenceSuspect, ActionBlockReporter:
		return true
	default:
		return false
	}
}

func (a Action) columnPrefix() string {
	switch a {
	case ActionDeleteMessage:
		return "delete"
	case ActionSilenceSuspect:
		return "silence"
	case ActionBlockReporter:
		return "block"
	default:
		return ""
	}
}

type Track struct {
	Votes    int
	Required int
	Resolved bool
}

type ReportCase struct {
	ID               int64
	VoteChannelID    string
	VoteMessageID    string
	SuspectChannelID string
	SuspectMessageID string
	SuspectID        string
	ReporterID       string
	Content          string
	SuspectSentAt    time.Time
	CreatedAt        time.Time
	ModeratorsOnline int
	Delete           Track
	Silence          Track
	Block            Track
	UselessClicks    int
	MessageDeleted   bool
}

func (c ReportCase) Track(action Action) Track {
	switch action {
	case ActionDeleteMessage:
		return c.Delete
	case ActionSilenceSuspect:
		return c.Silence
	case ActionBlockReporter:
		return c.Block
	default:
		return Track{}
	}
}

func (c *ReportCase) SetTrack(action Action, track Track) {
	switch action {
	case ActionDeleteMessage:
		c.Delete = track
	case ActionSilenceSuspect:
		c.Silence = track
	case ActionBlockReporter:
		c.Block = track
	}
}

type Vote struct {
	CaseID    int64
	VoterID   string
	Action    Action
	CreatedAt time.Time
}

type MessageEdit struct {
	ID       int64
	CaseID   int64
	Content  string
	EditedAt time.Time
}

// Deleted reports whether the entry marks the removal of the message.
func (e MessageEdit) Deleted() bool {
	return e.Content == ""
}

type caseRow struct {
	ID               int64  `db:"id"`
	VoteChannelID    string `db:"vote_channel_id"`
	VoteMessageID    string `db:"vote_message_id"`
	SuspectChannelID string `db:"suspect_channel_id"`
	SuspectMessageID string `db:"suspect_message_id"`
	SuspectID        string `db:"suspect_id"`
	ReporterID       string `db:"reporter_id"`
	Content          string `db:"content"`
	SuspectSentAt    int64  `db:"suspect_sent_at"`
	CreatedAt        int64  `db:"created_at"`
	ModeratorsOnline int    `db:"moderators_online"`
	DeleteVotes      int    `db:"delete_votes"`
	DeleteRequired   int    `db:"delete_required"`
	DeleteResolved   int    `db:"delete_resolved"`
	SilenceVotes     int    `db:"silence_votes"`
	SilenceRequired  int    `db:"silence_required"`
	SilenceResolved  int    `db:"silence_resolved"`
	BlockVotes       int    `db:"block_votes"`
	BlockRequired    int    `db:"block_required"`
	BlockResolved    int    `db:"block_resolved"`
	UselessClicks    int    `db:"useless_clicks"`
	MessageDeleted   int    `db:"message_deleted"`
}

func (r caseRow) model() ReportCase {
	return ReportCase{
		ID:               r.ID,
		VoteChannelID:    r.VoteChannelID,
		VoteMessageID:    r.VoteMessageID,
		SuspectChannelID: r.SuspectChannelID,
		SuspectMessageID: r.SuspectMessageID,
		SuspectID:        r.SuspectID,
		ReporterID:       r.ReporterID,
		Content:          r.Content,
		SuspectSentAt:    time.Unix(r.SuspectSentAt, 0),
		CreatedAt:        time.Unix(r.CreatedAt, 0),
		ModeratorsOnline: r.ModeratorsOnline,
		Delete:           Track{Votes: r.DeleteVotes, Required: r.DeleteRequired, Resolved: r.DeleteResolved == 1},
		Silence:          Track{Votes: r.SilenceVotes, Required: r.SilenceRequired, Resolved: r.SilenceResolved == 1},
		Block:            Track{Votes: r.BlockVotes, Required: r.BlockRequired, Resolved: r.BlockResolved == 1},
		UselessClicks:    r.UselessClicks,
		MessageDeleted:   r.MessageDeleted == 1,
	}
}

const caseColumns = `id, vote_channel_id, vote_message_id, suspect_channel_id, suspect_message_id, suspect_id,
	reporter_id, content, suspect_sent_at, created_at, moderators_online,
	delete_votes, delete_required, delete_resolved, silence_votes, silence_required, silence_resolved,
	block_votes, block_required, block_resolved, useless_clicks, message_deleted`

func (q queries) InsertCase(ctx context.Context, c ReportCase) (int64, error) {
	var id int64
	err := q.ext.QueryRowxContext(ctx, q.rebind(`
		INSERT INTO report_cases (vote_channel_id, vote_message_id, suspect_channel_id, suspect_message_id,
			suspect_id, reporter_id, content, suspect_sent_at, created_at, moderators_online,
			delete_required, silence_required, block_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), c.VoteChannelID, c.VoteMessageID, c.SuspectChannelID, c.SuspectMessageID,
		c.SuspectID, c.ReporterID, c.Content, c.SuspectSentAt.Unix(), c.CreatedAt.Unix(), c.ModeratorsOnline,
		c.Delete.Required, c.Silence.Required, c.Block.Required).Scan(&id)
	return id, err
}

func (q queries) GetCase(ctx context.Context, id int64) (ReportCase, error) {
	return q.getCase(ctx, `id = ?`, id)
}

func (q queries) GetCaseByVoteMessage(ctx context.Context, messageID string) (ReportCase, error) {
	return q.getCase(ctx, `vote_message_id = ?`, messageID)
}

func (q queries) GetCaseBySuspectMessage(ctx context.Context, messageID string) (ReportCase, error) {
	return q.getCase(ctx, `suspect_message_id = ?`, messageID)
}

func (q queries) getCase(ctx context.Context, where string, arg any) (ReportCase, error) {
	var row caseRow
	err := sqlx.GetContext(ctx, q.ext, &row, q.rebind(q.forUpdate(`SELECT `+caseColumns+` FROM report_cases WHERE `+where)), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportCase{}, ErrNotFound
		}
		return ReportCase{}, err
	}
	return row.model(), nil
}

// UpdateCaseTrack persists the counter and resolved flag of one action track.
func (q queries) UpdateCaseTrack(ctx context.Context, caseID int64, action Action, track Track) error {
	prefix := action.columnPrefix()
	if prefix == "" {
		return fmt.Errorf("unknown action %q", action)
	}
	return q.execOne(ctx, `UPDATE report_cases SET `+prefix+`_votes = ?, `+prefix+`_resolved = ? WHERE id = ?`,
		track.Votes, boolToInt(track.Resolved), caseID)
}

func (q queries) IncrementUselessClicks(ctx context.Context, caseID int64) error {
	return q.execOne(ctx, `UPDATE report_cases SET useless_clicks = useless_clicks + 1 WHERE id = ?`, caseID)
}

func (q queries) MarkMessageDeleted(ctx context.Context, caseID int64) error {
	return q.execOne(ctx, `UPDATE report_cases SET message_deleted = 1 WHERE id = ?`, caseID)
}

// InsertVote records a ballot. inserted is false when the ballot already existed.
func (q queries) InsertVote(ctx context.Context, vote Vote) (bool, error) {
	result, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO votes (case_id, voter_id, action, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (case_id, voter_id, action) DO NOTHING
	`), vote.CaseID, vote.VoterID, string(vote.Action), vote.CreatedAt.Unix())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteVote removes a ballot. deleted is false when there was nothing to remove.
func (q queries) DeleteVote(ctx context.Context, caseID int64, voterID string, action Action) (bool, error) {
	result, err := q.ext.ExecContext(ctx, q.rebind(`
		DELETE FROM votes WHERE case_id = ? AND voter_id = ? AND action = ?
	`), caseID, voterID, string(action))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (q queries) CountVotes(ctx context.Context, caseID int64, action Action) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count, q.rebind(`
		SELECT COUNT(*) FROM votes WHERE case_id = ? AND action = ?
	`), caseID, string(action))
	return count, err
}

func (q queries) ListVotes(ctx context.Context, caseID int64) ([]Vote, error) {
	rows, err := q.ext.QueryxContext(ctx, q.rebind(`
		SELECT case_id, voter_id, action, created_at FROM votes WHERE case_id = ? ORDER BY created_at, voter_id
	`), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []Vote
	for rows.Next() {
		var vote Vote
		var action string
		var createdAt int64
		if err := rows.Scan(&vote.CaseID, &vote.VoterID, &action, &createdAt); err != nil {
			return nil, err
		}
		vote.Action = Action(action)
		vote.CreatedAt = time.Unix(createdAt, 0)
		votes = append(votes, vote)
	}
	return votes, rows.Err()
}

func (q queries) AppendMessageEdit(ctx context.Context, edit MessageEdit) error {
	_, err := q.ext.ExecContext(ctx, q.rebind(`
		INSERT INTO message_edits (case_id, content, edited_at) VALUES (?, ?, ?)
	`), edit.CaseID, edit.Content, edit.EditedAt.Unix())
	return err
}

func (q queries) ListMessageEdits(ctx context.Context, caseID int64) ([]MessageEdit, error) {
	rows, err := q.ext.QueryxContext(ctx, q.rebind(`
		SELECT id, case_id, content, edited_at FROM message_edits WHERE case_id = ? ORDER BY edited_at, id
	`), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edits []MessageEdit
	for rows.Next() {
		var edit MessageEdit
		var editedAt int64
		if err := rows.Scan(&edit.ID, &edit.CaseID, &edit.Content, &editedAt); err != nil {
			return nil, err
		}
		edit.EditedAt = time.Unix(editedAt, 0)
		edits = append(edits, edit)
	}
	return edits, rows.Err()
}

func (q queries) SetCaseVoteMessage(ctx context.Context, caseID int64, messageID string) error {
	return q.execOne(ctx, `UPDATE report_cases SET vote_message_id = ? WHERE id = ?`, messageID, caseID)
}
