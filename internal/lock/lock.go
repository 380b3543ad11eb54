package lock

import (
	"context"
	"strconv"
	"sync"
)

// Locker serializes work on a single entity id.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func CaseKey(id int64) string {
	return "case:" + strconv.FormatInt(id, 10)
}

func GiveawayKey(id int64) string {
	return "giveaway:" + strconv.FormatInt(id, 10)
}

func PollKey(id int64) string {
	return "poll:" + strconv.FormatInt(id, 10)
}

func ReportKey(messageID string) string {
	return "report:" + messageID
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Keyed is an in-process lock with one mutex per key. Entries are dropped once no caller holds or waits on them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e := k.entries[key]
	if e == nil {
		e = &entry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *Keyed) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
