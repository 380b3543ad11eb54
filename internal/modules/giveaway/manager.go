package giveaway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/lock"
	"council-bot/internal/storage"

	"go.uber.org/zap"
)

const PageSize = 10

var (
	ErrNotFound        = errors.New("giveaway not found")
	ErrInvalidState    = errors.New("invalid giveaway state")
	ErrAlreadyEnded    = fmt.Errorf("%w: giveaway already ended", ErrInvalidState)
	ErrCompleted       = fmt.Errorf("%w: giveaway is completed", ErrInvalidState)
	ErrInvalidDuration = fmt.Errorf("%w: duration must be at least 1 second", ErrInvalidState)
	ErrInvalidWinners  = fmt.Errorf("%w: winner count must be at least 1", ErrInvalidState)
	ErrUnknownField    = fmt.Errorf("%w: unknown field", ErrInvalidState)
)

type Field string

const (
	FieldDuration Field = "duration"
	FieldWinners  Field = "winners"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// EntrantSource supplies the current eligible entrants of a giveaway, bots already removed.
type EntrantSource interface {
	Entrants(ctx context.Context, g storage.Giveaway) ([]string, error)
}

type StartRequest struct {
	ChannelID       string
	MessageID       string
	DurationSeconds int
	MaxWinners      int
	Prize           string
}

type Entry struct {
	Giveaway storage.Giveaway
	Winners  []string
}

type Page struct {
	Entries []Entry
	Offset  int
	Total   int
	HasPrev bool
	HasNext bool
}

type Result struct {
	Giveaway storage.Giveaway
	Winners  []string
	Effects  []effects.Effect
}

type Manager struct {
	store    *storage.Store
	locker   lock.Locker
	entrants EntrantSource
	logger   *zap.Logger
	clock    Clock
	roll     func(pool []string, maxWinners int) []string
}

func New(store *storage.Store, locker lock.Locker, entrants EntrantSource, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		locker:   locker,
		entrants: entrants,
		logger:   logger,
		clock:    realClock{},
		roll:     RollWinners,
	}
}

func (m *Manager) WithClock(clock Clock) {
	m.clock = clock
}

func (m *Manager) Start(ctx context.Context, req StartRequest) (Result, error) {
	if req.DurationSeconds < 1 {
		return Result{}, ErrInvalidDuration
	}
	if req.MaxWinners < 1 {
		return Result{}, ErrInvalidWinners
	}

	now := m.clock.Now()
	g := storage.Giveaway{
		ChannelID:  req.ChannelID,
		MessageID:  req.MessageID,
		Prize:      req.Prize,
		MaxWinners: req.MaxWinners,
		StartTime:  now,
		EndTime:    now.Add(time.Duration(req.DurationSeconds) * time.Second),
	}
	id, err := m.store.InsertGiveaway(ctx, g)
	if err != nil {
		return Result{}, err
	}
	g.ID = id

	m.logger.Info("giveaway started",
		zap.Int64("giveaway_id", id),
		zap.String("channel_id", g.ChannelID),
		zap.Time("end_time", g.EndTime))
	return Result{Giveaway: g, Effects: []effects.Effect{effects.RenderGiveawayUpdate(id)}}, nil
}

func (m *Manager) List(ctx context.Context, offset int) (Page, error) {
	offset = max(offset, 0)
	total, err := m.store.CountGiveaways(ctx)
	if err != nil {
		return Page{}, err
	}
	giveaways, err := m.store.ListGiveaways(ctx, offset, PageSize)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Offset:  offset,
		Total:   total,
		HasPrev: offset-PageSize >= 0,
		HasNext: offset+PageSize < total,
	}
	for _, g := range giveaways {
		winners, err := m.winnerIDs(ctx, g.ID)
		if err != nil {
			return Page{}, err
		}
		page.Entries = append(page.Entries, Entry{Giveaway: g, Winners: winners})
	}
	return page, nil
}

func (m *Manager) Get(ctx context.Context, id int64) (Entry, error) {
	g, err := m.get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	winners, err := m.winnerIDs(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Giveaway: g, Winners: winners}, nil
}

// End draws the winners and completes the giveaway. Ending twice returns ErrAlreadyEnded without drawing again.
func (m *Manager) End(ctx context.Context, id int64) (Result, error) {
	return m.draw(ctx, id, false)
}

// Reroll draws a fresh set of winners from the current entrants, in any state.
func (m *Manager) Reroll(ctx context.Context, id int64) (Result, error) {
	return m.draw(ctx, id, true)
}

func (m *Manager) draw(ctx context.Context, id int64, reroll bool) (Result, error) {
	unlock, err := m.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	g, err := m.get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if g.Completed && !reroll {
		return Result{Giveaway: g}, ErrAlreadyEnded
	}

	pool, err := m.entrants.Entrants(ctx, g)
	if err != nil {
		return Result{}, fmt.Errorf("fetch entrants for giveaway %d: %w", id, err)
	}
	winners := m.roll(pool, g.MaxWinners)

	err = m.store.InTx(ctx, func(tx *storage.Tx) error {
		current, err := tx.GetGiveaway(ctx, id)
		if err != nil {
			return err
		}
		if current.Completed && !reroll {
			return ErrAlreadyEnded
		}
		if err := tx.ReplaceWinners(ctx, id, winners, reroll); err != nil {
			return err
		}
		if current.Completed {
			return nil
		}
		if err := tx.CompleteGiveaway(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrAlreadyEnded
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrAlreadyEnded):
		g.Completed = true
		return Result{Giveaway: g}, err
	case errors.Is(err, storage.ErrNotFound):
		return Result{}, ErrNotFound
	case err != nil:
		return Result{}, err
	}
	g.Completed = true

	m.logger.Info("giveaway winners rolled",
		zap.Int64("giveaway_id", id),
		zap.Bool("reroll", reroll),
		zap.Int("entrants", len(pool)),
		zap.Strings("winners", winners))

	return Result{
		Giveaway: g,
		Winners:  winners,
		Effects: []effects.Effect{
			effects.RenderGiveawayUpdate(id),
			effects.AnnounceWinners(g.ChannelID, winners, g.Prize),
		},
	}, nil
}

func (m *Manager) Edit(ctx context.Context, id int64, field Field, value int) (Result, error) {
	switch field {
	case FieldDuration:
		if value < 1 {
			return Result{}, ErrInvalidDuration
		}
	case FieldWinners:
		if value < 1 {
			return Result{}, ErrInvalidWinners
		}
	default:
		return Result{}, ErrUnknownField
	}

	unlock, err := m.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	g, err := m.get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if g.Completed {
		return Result{Giveaway: g}, ErrCompleted
	}

	switch field {
	case FieldDuration:
		g.EndTime = g.StartTime.Add(time.Duration(value) * time.Second)
		err = m.store.UpdateGiveawayEnd(ctx, id, g.EndTime)
	case FieldWinners:
		g.MaxWinners = value
		err = m.store.UpdateGiveawayWinnerCount(ctx, id, value)
	}
	if err != nil {
		return Result{}, err
	}

	m.logger.Info("giveaway edited", zap.Int64("giveaway_id", id), zap.String("field", string(field)), zap.Int("value", value))
	return Result{Giveaway: g, Effects: []effects.Effect{effects.RenderGiveawayUpdate(id)}}, nil
}

// Delete removes the giveaway and its winners and asks for the announcement to be removed.
func (m *Manager) Delete(ctx context.Context, id int64) (Result, error) {
	unlock, err := m.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	g, err := m.get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	err = m.store.InTx(ctx, func(tx *storage.Tx) error {
		return tx.DeleteGiveaway(ctx, id)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}

	m.logger.Info("giveaway deleted", zap.Int64("giveaway_id", id))
	return Result{Giveaway: g, Effects: []effects.Effect{effects.DeleteMessage(g.ChannelID, g.MessageID)}}, nil
}

// Expired lists active giveaways whose end time has passed.
func (m *Manager) Expired(ctx context.Context) ([]storage.Giveaway, error) {
	return m.store.ListExpiredGiveaways(ctx, m.clock.Now())
}

func (m *Manager) get(ctx context.Context, id int64) (storage.Giveaway, error) {
	g, err := m.store.GetGiveaway(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Giveaway{}, ErrNotFound
	}
	return g, err
}

func (m *Manager) winnerIDs(ctx context.Context, id int64) ([]string, error) {
	winners, err := m.store.ListWinners(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(winners))
	for _, winner := range winners {
		ids = append(ids, winner.UserID)
	}
	return ids, nil
}
