package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/lock"
	"council-bot/internal/storage"

	"go.uber.org/zap"
)

const (
	MaxTitleLength  = 255
	MaxOptionLength = 32
	MinOptions      = 2
	// MaxOptions is what fits in one row of buttons.
	MaxOptions = 5
)

var (
	ErrNotFound        = errors.New("poll not found")
	ErrInvalidState    = errors.New("invalid poll state")
	ErrEnded           = fmt.Errorf("%w: poll has ended", ErrInvalidState)
	ErrInvalidDuration = fmt.Errorf("%w: duration must be at least 1 second", ErrInvalidState)
	ErrTooFewOptions   = fmt.Errorf("%w: at least %d options are needed", ErrInvalidState, MinOptions)
	ErrTooManyOptions  = fmt.Errorf("%w: at most %d options fit", ErrInvalidState, MaxOptions)
	ErrUnknownOption   = fmt.Errorf("%w: unknown option", ErrInvalidState)
)

type Outcome string

const (
	// OutcomeCast is a first ballot in the poll.
	OutcomeCast Outcome = "cast"
	// OutcomeMoved replaced the voter's earlier choice.
	OutcomeMoved Outcome = "moved"
	// OutcomeNoOp repeated the choice the voter already holds.
	OutcomeNoOp Outcome = "noop"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type CreateRequest struct {
	ChannelID       string
	MessageID       string
	AuthorID        string
	Title           string
	Options         []string
	DurationSeconds int
}

type Result struct {
	Poll    storage.Poll
	Outcome Outcome
	Effects []effects.Effect
}

type Option struct {
	Number int
	Label  string
	Votes  int
}

// Snapshot is a poll with its options and the ballot count of each.
type Snapshot struct {
	Poll    storage.Poll
	Options []Option
	Total   int
}

type Service struct {
	store  *storage.Store
	locker lock.Locker
	logger *zap.Logger
	clock  Clock
}

func New(store *storage.Store, locker lock.Locker, logger *zap.Logger) *Service {
	return &Service{store: store, locker: locker, logger: logger, clock: realClock{}}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// ParseOptions splits a comma separated option list. Labels are cut to MaxOptionLength and blanks dropped.
func ParseOptions(raw string) ([]string, error) {
	var options []string
	for _, part := range strings.Split(raw, ",") {
		label := strings.TrimSpace(cut(part, MaxOptionLength))
		if label == "" {
			continue
		}
		options = append(options, label)
	}
	switch {
	case len(options) < MinOptions:
		return nil, ErrTooFewOptions
	case len(options) > MaxOptions:
		return nil, ErrTooManyOptions
	}
	return options, nil
}

func cut(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Result, error) {
	if req.DurationSeconds < 1 {
		return Result{}, ErrInvalidDuration
	}
	if len(req.Options) < MinOptions {
		return Result{}, ErrTooFewOptions
	}
	if len(req.Options) > MaxOptions {
		return Result{}, ErrTooManyOptions
	}

	now := s.clock.Now()
	p := storage.Poll{
		ChannelID: req.ChannelID,
		MessageID: req.MessageID,
		AuthorID:  req.AuthorID,
		Title:     cut(req.Title, MaxTitleLength),
		StartTime: now,
		EndTime:   now.Add(time.Duration(req.DurationSeconds) * time.Second),
	}
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		id, err := tx.InsertPoll(ctx, p, req.Options)
		p.ID = id
		return err
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("poll created",
		zap.Int64("poll_id", p.ID),
		zap.String("channel_id", p.ChannelID),
		zap.Int("options", len(req.Options)),
		zap.Time("end_time", p.EndTime))
	return Result{Poll: p, Effects: []effects.Effect{effects.RenderPollUpdate(p.ID)}}, nil
}

// Vote gives the voter's single ballot to the option. Choosing another option moves the ballot,
// choosing the held option again changes nothing.
func (s *Service) Vote(ctx context.Context, pollID int64, voterID string, number int) (Result, error) {
	unlock, err := s.locker.Lock(ctx, lock.PollKey(pollID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	now := s.clock.Now()
	var p storage.Poll
	outcome := OutcomeCast
	err = s.store.InTx(ctx, func(tx *storage.Tx) error {
		var err error
		p, err = tx.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if p.Ended || !now.Before(p.EndTime) {
			return ErrEnded
		}
		options, err := tx.ListPollOptions(ctx, pollID)
		if err != nil {
			return err
		}
		if number < 0 || number >= len(options) {
			return ErrUnknownOption
		}

		held, err := tx.GetBallot(ctx, pollID, voterID)
		switch {
		case err == nil && held.Number == number:
			outcome = OutcomeNoOp
			return nil
		case err == nil:
			outcome = OutcomeMoved
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		return tx.PutBallot(ctx, storage.PollBallot{PollID: pollID, VoterID: voterID, Number: number, CastAt: now})
	})
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{Poll: p}, err
	}

	s.logger.Debug("poll ballot",
		zap.Int64("poll_id", pollID),
		zap.String("voter_id", voterID),
		zap.Int("option", number),
		zap.String("outcome", string(outcome)))
	if outcome == OutcomeNoOp {
		return Result{Poll: p, Outcome: outcome}, nil
	}
	return Result{Poll: p, Outcome: outcome, Effects: []effects.Effect{effects.RenderPollUpdate(pollID)}}, nil
}

// End closes the poll for voting. Ending twice returns ErrEnded.
func (s *Service) End(ctx context.Context, pollID int64) (Result, error) {
	unlock, err := s.locker.Lock(ctx, lock.PollKey(pollID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	var p storage.Poll
	err = s.store.InTx(ctx, func(tx *storage.Tx) error {
		var err error
		p, err = tx.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if p.Ended {
			return ErrEnded
		}
		if err := tx.EndPoll(ctx, pollID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrEnded
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrEnded):
		return Result{Poll: p}, err
	case errors.Is(err, storage.ErrNotFound):
		return Result{}, ErrNotFound
	case err != nil:
		return Result{}, err
	}
	p.Ended = true

	s.logger.Info("poll ended", zap.Int64("poll_id", pollID))
	return Result{Poll: p, Effects: []effects.Effect{effects.RenderPollUpdate(pollID)}}, nil
}

// Delete drops a poll whose message could not be rendered.
func (s *Service) Delete(ctx context.Context, pollID int64) error {
	unlock, err := s.locker.Lock(ctx, lock.PollKey(pollID))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.store.InTx(ctx, func(tx *storage.Tx) error {
		return tx.DeletePoll(ctx, pollID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Expired lists open polls whose end time has passed.
func (s *Service) Expired(ctx context.Context) ([]storage.Poll, error) {
	return s.store.ListExpiredPolls(ctx, s.clock.Now())
}

func (s *Service) ByMessage(ctx context.Context, messageID string) (storage.Poll, error) {
	p, err := s.store.GetPollByMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Poll{}, ErrNotFound
	}
	return p, err
}

func (s *Service) Snapshot(ctx context.Context, pollID int64) (Snapshot, error) {
	p, err := s.store.GetPoll(ctx, pollID)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	options, err := s.store.ListPollOptions(ctx, pollID)
	if err != nil {
		return Snapshot{}, err
	}
	ballots, err := s.store.ListPollBallots(ctx, pollID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{Poll: p, Options: make([]Option, len(options))}
	for i, option := range options {
		snapshot.Options[i] = Option{Number: option.Number, Label: option.Label}
	}
	for _, ballot := range ballots {
		if ballot.Number >= 0 && ballot.Number < len(snapshot.Options) {
			snapshot.Options[ballot.Number].Votes++
			snapshot.Total++
		}
	}
	return snapshot, nil
}
