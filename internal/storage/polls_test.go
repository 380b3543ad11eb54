package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func insertTestPoll(t *testing.T, store *Store, start time.Time) int64 {
	t.Helper()
	var id int64
	err := store.InTx(context.Background(), func(tx *Tx) error {
		var err error
		id, err = tx.InsertPoll(context.Background(), Poll{
			ChannelID: "c1",
			MessageID: "m1",
			AuthorID:  "author",
			Title:     "Lunch?",
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		}, []string{"pizza", "sushi", "salad"})
		return err
	})
	if err != nil {
		t.Fatalf("insert poll: %v", err)
	}
	return id
}

func TestPollLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Unix(1000, 0)
	id := insertTestPoll(t, store, start)

	got, err := store.GetPollByMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("get by message: %v", err)
	}
	if got.ID != id || got.Title != "Lunch?" || got.Ended || !got.EndTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected poll: %+v", got)
	}

	options, err := store.ListPollOptions(ctx, id)
	if err != nil {
		t.Fatalf("list options: %v", err)
	}
	if len(options) != 3 || options[0].Number != 0 || options[2].Label != "salad" {
		t.Fatalf("unexpected options: %+v", options)
	}

	expired, err := store.ListExpiredPolls(ctx, start.Add(59*time.Minute))
	if err != nil || len(expired) != 0 {
		t.Fatalf("expected no expired polls, got %d %v", len(expired), err)
	}
	expired, err = store.ListExpiredPolls(ctx, start.Add(time.Hour))
	if err != nil || len(expired) != 1 {
		t.Fatalf("expected one expired poll, got %d %v", len(expired), err)
	}

	if err := store.EndPoll(ctx, id); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := store.EndPoll(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second end to match no open poll, got %v", err)
	}
	expired, err = store.ListExpiredPolls(ctx, start.Add(2*time.Hour))
	if err != nil || len(expired) != 0 {
		t.Fatalf("expected ended poll to leave the expiry list, got %d %v", len(expired), err)
	}
}

func TestPutBallotKeepsOnePerVoter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := insertTestPoll(t, store, time.Unix(1000, 0))

	if err := store.PutBallot(ctx, PollBallot{PollID: id, VoterID: "u1", Number: 0, CastAt: time.Unix(1010, 0)}); err != nil {
		t.Fatalf("first ballot: %v", err)
	}
	if err := store.PutBallot(ctx, PollBallot{PollID: id, VoterID: "u2", Number: 1, CastAt: time.Unix(1020, 0)}); err != nil {
		t.Fatalf("second voter: %v", err)
	}
	if err := store.PutBallot(ctx, PollBallot{PollID: id, VoterID: "u1", Number: 2, CastAt: time.Unix(1030, 0)}); err != nil {
		t.Fatalf("moved ballot: %v", err)
	}

	ballots, err := store.ListPollBallots(ctx, id)
	if err != nil {
		t.Fatalf("list ballots: %v", err)
	}
	if len(ballots) != 2 {
		t.Fatalf("expected one ballot per voter, got %+v", ballots)
	}
	moved, err := store.GetBallot(ctx, id, "u1")
	if err != nil {
		t.Fatalf("get ballot: %v", err)
	}
	if moved.Number != 2 || !moved.CastAt.Equal(time.Unix(1030, 0)) {
		t.Fatalf("expected ballot to move to option 2, got %+v", moved)
	}
	if _, err := store.GetBallot(ctx, id, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing ballot, got %v", err)
	}
}

func TestDeletePollRemovesChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := insertTestPoll(t, store, time.Unix(1000, 0))
	if err := store.PutBallot(ctx, PollBallot{PollID: id, VoterID: "u1", Number: 0, CastAt: time.Unix(1010, 0)}); err != nil {
		t.Fatalf("ballot: %v", err)
	}

	if err := store.DeletePoll(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetPoll(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected poll to be gone, got %v", err)
	}
	options, _ := store.ListPollOptions(ctx, id)
	ballots, _ := store.ListPollBallots(ctx, id)
	if len(options) != 0 || len(ballots) != 0 {
		t.Fatalf("expected children removed, got %d options %d ballots", len(options), len(ballots))
	}
	if err := store.DeletePoll(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
