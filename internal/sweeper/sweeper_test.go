package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/lock"
	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/poll"
	"council-bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves time forward in steps, firing timers as they come due.
func (f *fakeClock) Advance(d time.Duration) {
	target := f.Now().Add(d)
	for {
		f.mu.Lock()
		var next *fakeTimer
		idx := -1
		for i, t := range f.timers {
			if t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next, idx = t, i
			}
		}
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.timers = append(f.timers[:idx], f.timers[idx+1:]...)
		f.now = next.at
		f.mu.Unlock()
		next.fn()
	}
}

type recordingExecutor struct {
	mu   sync.Mutex
	seen []effects.Effect
}

func (r *recordingExecutor) Execute(_ context.Context, effect effects.Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, effect)
	return nil
}

func (r *recordingExecutor) kinds() []effects.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []effects.Kind
	for _, effect := range r.seen {
		out = append(out, effect.Kind)
	}
	return out
}

type staticEntrants []string

func (s staticEntrants) Entrants(context.Context, storage.Giveaway) ([]string, error) {
	return s, nil
}

func TestGiveawayExpiryScenario(t *testing.T) {
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate())

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	manager := giveaway.New(store, lock.NewKeyed(), staticEntrants{"a", "b", "c"}, zap.NewNop())
	manager.WithClock(clock)

	ctx := context.Background()
	started, err := manager.Start(ctx, giveaway.StartRequest{ChannelID: "c", MessageID: "m", DurationSeconds: 3600, MaxWinners: 2, Prize: "X"})
	require.NoError(t, err)

	executor := &recordingExecutor{}
	sw := New(zap.NewNop(), GiveawayTask(30*time.Second, manager, executor, nil, zap.NewNop()))
	sw.WithClock(clock)
	sw.Start(ctx)
	defer sw.Stop()

	clock.Advance(30 * time.Second)
	entry, err := manager.Get(ctx, started.Giveaway.ID)
	require.NoError(t, err)
	assert.False(t, entry.Giveaway.Completed, "tick before expiry must not end the giveaway")
	assert.Empty(t, executor.kinds())

	clock.Advance(time.Hour)
	entry, err = manager.Get(ctx, started.Giveaway.ID)
	require.NoError(t, err)
	assert.True(t, entry.Giveaway.Completed)
	assert.Len(t, entry.Winners, 2)
	assert.Equal(t, []effects.Kind{effects.KindRenderGiveawayUpdate, effects.KindAnnounceWinners}, executor.kinds())

	clock.Advance(5 * time.Minute)
	assert.Len(t, executor.kinds(), 2, "completed giveaways are not swept again")
}

type fakeEnder struct {
	expired []storage.Giveaway
	errs    map[int64]error
	ended   []int64
}

func (f *fakeEnder) Expired(context.Context) ([]storage.Giveaway, error) {
	return f.expired, nil
}

func (f *fakeEnder) End(_ context.Context, id int64) (giveaway.Result, error) {
	f.ended = append(f.ended, id)
	if err := f.errs[id]; err != nil {
		return giveaway.Result{}, err
	}
	return giveaway.Result{Effects: []effects.Effect{effects.RenderGiveawayUpdate(id)}}, nil
}

func TestGiveawayTaskContinuesAfterFailure(t *testing.T) {
	ender := &fakeEnder{
		expired: []storage.Giveaway{{ID: 1}, {ID: 2}, {ID: 3}},
		errs: map[int64]error{
			1: errors.New("message lookup failed"),
			2: giveaway.ErrAlreadyEnded,
		},
	}
	executor := &recordingExecutor{}
	task := GiveawayTask(time.Second, ender, executor, nil, zap.NewNop())

	err := task.Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Equal(t, []int64{1, 2, 3}, ender.ended)
	require.Len(t, executor.seen, 1)
	assert.Equal(t, int64(3), executor.seen[0].GiveawayID)
}

func TestPollExpiryScenario(t *testing.T) {
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate())

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	polls := poll.New(store, lock.NewKeyed(), zap.NewNop())
	polls.WithClock(clock)

	ctx := context.Background()
	created, err := polls.Create(ctx, poll.CreateRequest{ChannelID: "c", MessageID: "m", Title: "Q", Options: []string{"a", "b"}, DurationSeconds: 90})
	require.NoError(t, err)
	_, err = polls.Vote(ctx, created.Poll.ID, "u1", 1)
	require.NoError(t, err)

	executor := &recordingExecutor{}
	sw := New(zap.NewNop(), PollTask(time.Minute, polls, executor, nil, zap.NewNop()))
	sw.WithClock(clock)
	sw.Start(ctx)
	defer sw.Stop()

	clock.Advance(time.Minute)
	assert.Empty(t, executor.kinds())

	clock.Advance(time.Minute)
	snapshot, err := polls.Snapshot(ctx, created.Poll.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Poll.Ended)
	assert.Equal(t, 1, snapshot.Options[1].Votes, "ending keeps the final tally")
	assert.Equal(t, []effects.Kind{effects.KindRenderPollUpdate}, executor.kinds())

	clock.Advance(5 * time.Minute)
	assert.Len(t, executor.kinds(), 1, "ended polls are not swept again")
}

type fakeAwarder struct {
	calls []time.Time
}

func (f *fakeAwarder) Award(_ context.Context, now time.Time) ([]effects.Effect, error) {
	f.calls = append(f.calls, now)
	return []effects.Effect{effects.GrantRole("g", "u", "r")}, nil
}

func TestStopPreventsFurtherRuns(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	awarder := &fakeAwarder{}
	executor := &recordingExecutor{}

	sw := New(zap.NewNop(), ActivityTask(time.Minute, awarder, executor, nil))
	sw.WithClock(clock)
	sw.Start(context.Background())

	clock.Advance(3 * time.Minute)
	require.Len(t, awarder.calls, 3)
	assert.Equal(t, time.Unix(60, 0), awarder.calls[0])

	sw.Stop()
	clock.Advance(3 * time.Minute)
	assert.Len(t, awarder.calls, 3)
	assert.Len(t, executor.kinds(), 3)
}
