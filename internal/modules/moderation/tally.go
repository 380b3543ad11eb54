package moderation

import (
	"context"
	"time"

	"council-bot/internal/storage"

	"go.uber.org/zap"
)

type Outcome int

const (
	NoOp Outcome = iota
	Counted
)

func (o Outcome) String() string {
	if o == Counted {
		return "counted"
	}
	return "noop"
}

type VoteResult struct {
	Outcome  Outcome
	Count    int
	Required int
	// Crossed is true only for the call that first met the threshold of an unresolved track.
	Crossed bool
}

type ballotStore interface {
	InsertVote(ctx context.Context, vote storage.Vote) (bool, error)
	DeleteVote(ctx context.Context, caseID int64, voterID string, action storage.Action) (bool, error)
	CountVotes(ctx context.Context, caseID int64, action storage.Action) (int, error)
	UpdateCaseTrack(ctx context.Context, caseID int64, action storage.Action, track storage.Track) error
	IncrementUselessClicks(ctx context.Context, caseID int64) error
}

// Tally applies single ballots to a case. Callers hold the case lock and pass a transaction.
type Tally struct {
	logger *zap.Logger
}

func NewTally(logger *zap.Logger) *Tally {
	return &Tally{logger: logger}
}

func (t *Tally) Cast(ctx context.Context, st ballotStore, c *storage.ReportCase, voterID string, action Action, now time.Time) (VoteResult, error) {
	track := c.Track(action)
	noop := VoteResult{Outcome: NoOp, Count: track.Votes, Required: track.Required}

	if Moot(*c, action) {
		return noop, t.uselessClick(ctx, st, c)
	}

	inserted, err := st.InsertVote(ctx, storage.Vote{CaseID: c.ID, VoterID: voterID, Action: action, CreatedAt: now})
	if err != nil {
		return VoteResult{}, err
	}
	if !inserted {
		return noop, nil
	}
	if track.Resolved && track.Votes >= track.Required {
		// the ballot is kept for the record but the action already fired
		return noop, t.uselessClick(ctx, st, c)
	}

	rows, err := st.CountVotes(ctx, c.ID, action)
	if err != nil {
		return VoteResult{}, err
	}
	track.Votes = min(rows, track.Required)
	crossed := !track.Resolved && track.Votes >= track.Required
	if crossed {
		track.Resolved = true
	}
	if err := st.UpdateCaseTrack(ctx, c.ID, action, track); err != nil {
		return VoteResult{}, err
	}
	c.SetTrack(action, track)

	return VoteResult{Outcome: Counted, Count: track.Votes, Required: track.Required, Crossed: crossed}, nil
}

func (t *Tally) Retract(ctx context.Context, st ballotStore, c *storage.ReportCase, voterID string, action Action) (VoteResult, error) {
	track := c.Track(action)

	deleted, err := st.DeleteVote(ctx, c.ID, voterID, action)
	if err != nil {
		return VoteResult{}, err
	}
	if !deleted {
		return VoteResult{Outcome: NoOp, Count: track.Votes, Required: track.Required}, nil
	}

	rows, err := st.CountVotes(ctx, c.ID, action)
	if err != nil {
		return VoteResult{}, err
	}
	if track.Votes <= 0 && track.Required > 0 {
		t.logger.Warn("vote counter already at zero on retract",
			zap.Int64("case_id", c.ID),
			zap.String("action", string(action)),
			zap.String("voter_id", voterID))
	}
	track.Votes = max(min(rows, track.Required), 0)
	if err := st.UpdateCaseTrack(ctx, c.ID, action, track); err != nil {
		return VoteResult{}, err
	}
	c.SetTrack(action, track)

	return VoteResult{Outcome: Counted, Count: track.Votes, Required: track.Required}, nil
}

func (t *Tally) uselessClick(ctx context.Context, st ballotStore, c *storage.ReportCase) error {
	if err := st.IncrementUselessClicks(ctx, c.ID); err != nil {
		return err
	}
	c.UselessClicks++
	return nil
}
