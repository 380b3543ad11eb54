package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/lock"
	"council-bot/internal/storage"
	"council-bot/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("report case not found")
	ErrInvalidState    = errors.New("invalid report state")
	ErrUnknownAction   = fmt.Errorf("%w: unknown vote action", ErrInvalidState)
	ErrReporterBlocked = errors.New("reporter is blocked from reporting")
	ErrRateLimited     = errors.New("too many reports")
	ErrAlreadyReported = errors.New("message already reported")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ModeratorCounter reports how many moderators can currently see the moderation channel.
type ModeratorCounter interface {
	OnlineModerators(ctx context.Context) (int, error)
}

type Config struct {
	GuildID         string
	ChannelID       string
	SilencedRoleID  string
	NoReportsRoleID string
	ReportLimit     int
	ReportWindow    time.Duration
}

type Report struct {
	ReporterID string
	// ReporterBlocked is set when the reporter holds the no-reports role.
	ReporterBlocked  bool
	SuspectID        string
	SuspectChannelID string
	SuspectMessageID string
	Content          string
	SuspectSentAt    time.Time
}

// Transition is the state a case reached and the effects the presentation layer must apply.
type Transition struct {
	Case    storage.ReportCase
	Result  VoteResult
	Effects []effects.Effect
}

type Snapshot struct {
	Case  storage.ReportCase
	State State
	Votes []storage.Vote
	Edits []storage.MessageEdit
}

type Service struct {
	cfg        Config
	store      *storage.Store
	locker     lock.Locker
	moderators ModeratorCounter
	tally      *Tally
	limiter    *utils.Limiter
	logger     *zap.Logger
	clock      Clock
}

func New(cfg Config, store *storage.Store, locker lock.Locker, moderators ModeratorCounter, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		locker:     locker,
		moderators: moderators,
		tally:      NewTally(logger),
		limiter:    utils.NewLimiter(cfg.ReportLimit, cfg.ReportWindow),
		logger:     logger,
		clock:      realClock{},
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// OpenCase puts a reported message up for a vote. When the message was already reported
// the existing case is returned together with ErrAlreadyReported.
func (s *Service) OpenCase(ctx context.Context, report Report) (Transition, error) {
	if report.ReporterBlocked {
		return Transition{}, ErrReporterBlocked
	}

	unlock, err := s.locker.Lock(ctx, lock.ReportKey(report.SuspectMessageID))
	if err != nil {
		return Transition{}, err
	}
	defer unlock()

	existing, err := s.store.GetCaseBySuspectMessage(ctx, report.SuspectMessageID)
	if err == nil {
		return Transition{Case: existing}, ErrAlreadyReported
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Transition{}, err
	}

	now := s.clock.Now()
	s.limiter.Prune(now)
	if !s.limiter.Allow(report.ReporterID, now) {
		return Transition{}, ErrRateLimited
	}

	online, err := s.moderators.OnlineModerators(ctx)
	if err != nil {
		return Transition{}, fmt.Errorf("count online moderators: %w", err)
	}

	c := storage.ReportCase{
		VoteChannelID:    s.cfg.ChannelID,
		SuspectChannelID: report.SuspectChannelID,
		SuspectMessageID: report.SuspectMessageID,
		SuspectID:        report.SuspectID,
		ReporterID:       report.ReporterID,
		Content:          report.Content,
		SuspectSentAt:    report.SuspectSentAt,
		CreatedAt:        now,
		ModeratorsOnline: online,
		Delete:           storage.Track{Required: RequiredVotes(ActionDeleteMessage, online)},
		Silence:          storage.Track{Required: RequiredVotes(ActionSilenceSuspect, online)},
		Block:            storage.Track{Required: RequiredVotes(ActionBlockReporter, online)},
	}
	c.ID, err = s.store.InsertCase(ctx, c)
	if err != nil {
		return Transition{}, err
	}

	s.logger.Info("report case opened",
		zap.Int64("case_id", c.ID),
		zap.String("reporter_id", c.ReporterID),
		zap.String("suspect_id", c.SuspectID),
		zap.Int("moderators_online", online))

	return Transition{Case: c, Effects: []effects.Effect{effects.RenderCaseUpdate(c.ID)}}, nil
}

// AttachVoteMessage records the moderation channel message that carries the vote buttons.
func (s *Service) AttachVoteMessage(ctx context.Context, caseID int64, messageID string) error {
	err := s.store.SetCaseVoteMessage(ctx, caseID, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// CastVote applies one ballot without producing effects.
func (s *Service) CastVote(ctx context.Context, caseID int64, voterID string, action Action) (VoteResult, error) {
	transition, err := s.vote(ctx, caseID, voterID, action, true)
	return transition.Result, err
}

func (s *Service) RetractVote(ctx context.Context, caseID int64, voterID string, action Action) (VoteResult, error) {
	transition, err := s.vote(ctx, caseID, voterID, action, false)
	return transition.Result, err
}

// HandleVote casts a ballot and, on the first crossing of the action's threshold, requests the action exactly once.
func (s *Service) HandleVote(ctx context.Context, caseID int64, voterID string, action Action) (Transition, error) {
	transition, err := s.vote(ctx, caseID, voterID, action, true)
	if err != nil || transition.Result.Outcome == NoOp {
		return transition, err
	}

	c := transition.Case
	if transition.Result.Crossed {
		s.logger.Info("vote threshold crossed",
			zap.Int64("case_id", c.ID),
			zap.String("action", string(action)),
			zap.Int("required", transition.Result.Required))
		switch action {
		case ActionDeleteMessage:
			transition.Effects = append(transition.Effects, effects.DeleteMessage(c.SuspectChannelID, c.SuspectMessageID))
		case ActionSilenceSuspect:
			transition.Effects = append(transition.Effects, effects.GrantRole(s.cfg.GuildID, c.SuspectID, s.cfg.SilencedRoleID))
		case ActionBlockReporter:
			transition.Effects = append(transition.Effects, effects.GrantRole(s.cfg.GuildID, c.ReporterID, s.cfg.NoReportsRoleID))
		}
	}
	transition.Effects = append(transition.Effects, effects.RenderCaseUpdate(c.ID))
	return transition, nil
}

func (s *Service) HandleRetract(ctx context.Context, caseID int64, voterID string, action Action) (Transition, error) {
	transition, err := s.vote(ctx, caseID, voterID, action, false)
	if err != nil || transition.Result.Outcome == NoOp {
		return transition, err
	}
	transition.Effects = []effects.Effect{effects.RenderCaseUpdate(caseID)}
	return transition, nil
}

func (s *Service) vote(ctx context.Context, caseID int64, voterID string, action Action, cast bool) (Transition, error) {
	if !action.Valid() {
		return Transition{}, ErrUnknownAction
	}

	unlock, err := s.locker.Lock(ctx, lock.CaseKey(caseID))
	if err != nil {
		return Transition{}, err
	}
	defer unlock()

	var transition Transition
	err = s.store.InTx(ctx, func(tx *storage.Tx) error {
		c, err := tx.GetCase(ctx, caseID)
		if err != nil {
			return err
		}

		var result VoteResult
		if cast {
			result, err = s.tally.Cast(ctx, tx, &c, voterID, action, s.clock.Now())
		} else {
			result, err = s.tally.Retract(ctx, tx, &c, voterID, action)
		}
		if err != nil {
			return err
		}
		if result.Crossed && action == ActionSilenceSuspect {
			if err := tx.AddSilenced(ctx, c.SuspectID, s.clock.Now()); err != nil {
				return err
			}
		}
		transition = Transition{Case: c, Result: result}
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return Transition{}, ErrNotFound
	}
	return transition, err
}

// HandleEdit appends a new revision of a reported message. Messages without a case are ignored.
func (s *Service) HandleEdit(ctx context.Context, messageID, content string, at time.Time) (Transition, error) {
	return s.recordRevision(ctx, messageID, content, at, false)
}

// HandleDelete records the removal of a reported message as an empty revision.
func (s *Service) HandleDelete(ctx context.Context, messageID string, at time.Time) (Transition, error) {
	return s.recordRevision(ctx, messageID, "", at, true)
}

func (s *Service) recordRevision(ctx context.Context, messageID, content string, at time.Time, deleted bool) (Transition, error) {
	c, err := s.store.GetCaseBySuspectMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return Transition{}, nil
	}
	if err != nil {
		return Transition{}, err
	}

	unlock, err := s.locker.Lock(ctx, lock.CaseKey(c.ID))
	if err != nil {
		return Transition{}, err
	}
	defer unlock()

	err = s.store.InTx(ctx, func(tx *storage.Tx) error {
		if err := tx.AppendMessageEdit(ctx, storage.MessageEdit{CaseID: c.ID, Content: content, EditedAt: at}); err != nil {
			return err
		}
		if deleted {
			if err := tx.MarkMessageDeleted(ctx, c.ID); err != nil {
				return err
			}
			c.MessageDeleted = true
		}
		return nil
	})
	if err != nil {
		return Transition{}, err
	}
	return Transition{Case: c, Effects: []effects.Effect{effects.RenderCaseUpdate(c.ID)}}, nil
}

// Unsilence lifts a silence regardless of how it was applied.
func (s *Service) Unsilence(ctx context.Context, userID string) (Transition, error) {
	removed, err := s.store.RemoveSilenced(ctx, userID)
	if err != nil {
		return Transition{}, err
	}
	if !removed {
		s.logger.Debug("unsilence without silenced record", zap.String("user_id", userID))
	}
	return Transition{Effects: []effects.Effect{effects.RevokeRole(s.cfg.GuildID, userID, s.cfg.SilencedRoleID)}}, nil
}

// SyncSilenced mirrors silenced role changes made outside the bot.
func (s *Service) SyncSilenced(ctx context.Context, userID string, silenced bool) error {
	if silenced {
		return s.store.AddSilenced(ctx, userID, s.clock.Now())
	}
	_, err := s.store.RemoveSilenced(ctx, userID)
	return err
}

func (s *Service) IsSilenced(ctx context.Context, userID string) (bool, error) {
	return s.store.IsSilenced(ctx, userID)
}

func (s *Service) CaseByVoteMessage(ctx context.Context, messageID string) (storage.ReportCase, error) {
	c, err := s.store.GetCaseByVoteMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ReportCase{}, ErrNotFound
	}
	return c, err
}

func (s *Service) Snapshot(ctx context.Context, caseID int64) (Snapshot, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	votes, err := s.store.ListVotes(ctx, caseID)
	if err != nil {
		return Snapshot{}, err
	}
	edits, err := s.store.ListMessageEdits(ctx, caseID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Case: c, State: CaseState(c), Votes: votes, Edits: edits}, nil
}
