package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func insertTestCase(t *testing.T, store *Store) int64 {
	t.Helper()
	id, err := store.InsertCase(context.Background(), ReportCase{
		VoteChannelID:    "mod",
		VoteMessageID:    "vote-1",
		SuspectChannelID: "general",
		SuspectMessageID: "msg-1",
		SuspectID:        "suspect",
		ReporterID:       "reporter",
		Content:          "hello",
		SuspectSentAt:    time.Unix(50, 0),
		CreatedAt:        time.Unix(60, 0),
		ModeratorsOnline: 9,
		Delete:           Track{Required: 3},
		Silence:          Track{Required: 3},
		Block:            Track{Required: 3},
	})
	if err != nil {
		t.Fatalf("insert case: %v", err)
	}
	return id
}

func TestCaseLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := insertTestCase(t, store)

	byVote, err := store.GetCaseByVoteMessage(ctx, "vote-1")
	if err != nil || byVote.ID != id {
		t.Fatalf("by vote message: %+v %v", byVote, err)
	}
	bySuspect, err := store.GetCaseBySuspectMessage(ctx, "msg-1")
	if err != nil || bySuspect.ID != id || bySuspect.Delete.Required != 3 {
		t.Fatalf("by suspect message: %+v %v", bySuspect, err)
	}
	if _, err := store.GetCase(ctx, id+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVotesAreUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := insertTestCase(t, store)

	vote := Vote{CaseID: id, VoterID: "mod1", Action: ActionDeleteMessage, CreatedAt: time.Unix(70, 0)}
	inserted, err := store.InsertVote(ctx, vote)
	if err != nil || !inserted {
		t.Fatalf("first insert: %v %v", inserted, err)
	}
	inserted, err = store.InsertVote(ctx, vote)
	if err != nil || inserted {
		t.Fatalf("duplicate insert must be ignored: %v %v", inserted, err)
	}
	vote.Action = ActionBlockReporter
	if _, err := store.InsertVote(ctx, vote); err != nil {
		t.Fatalf("other action: %v", err)
	}

	count, err := store.CountVotes(ctx, id, ActionDeleteMessage)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 delete vote, got %d %v", count, err)
	}
	votes, err := store.ListVotes(ctx, id)
	if err != nil || len(votes) != 2 {
		t.Fatalf("expected 2 votes, got %d %v", len(votes), err)
	}

	deleted, err := store.DeleteVote(ctx, id, "mod1", ActionDeleteMessage)
	if err != nil || !deleted {
		t.Fatalf("delete vote: %v %v", deleted, err)
	}
	deleted, err = store.DeleteVote(ctx, id, "mod1", ActionDeleteMessage)
	if err != nil || deleted {
		t.Fatalf("second delete must report nothing: %v %v", deleted, err)
	}
}

func TestUpdateCaseTrack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := insertTestCase(t, store)

	if err := store.UpdateCaseTrack(ctx, id, ActionSilenceSuspect, Track{Votes: 2, Resolved: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.IncrementUselessClicks(ctx, id); err != nil {
		t.Fatalf("useless clicks: %v", err)
	}
	got, err := store.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Silence.Votes != 2 || !got.Silence.Resolved || got.Silence.Required != 3 {
		t.Fatalf("unexpected silence track: %+v", got.Silence)
	}
	if got.Delete.Votes != 0 || got.Delete.Resolved {
		t.Fatalf("other tracks must be untouched: %+v", got.Delete)
	}
	if got.UselessClicks != 1 {
		t.Fatalf("expected 1 useless click, got %d", got.UselessClicks)
	}
	if err := store.UpdateCaseTrack(ctx, id, Action("bogus"), Track{}); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestMessageEditHistoryOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := insertTestCase(t, store)

	_ = store.AppendMessageEdit(ctx, MessageEdit{CaseID: id, Content: "second", EditedAt: time.Unix(200, 0)})
	_ = store.AppendMessageEdit(ctx, MessageEdit{CaseID: id, Content: "first", EditedAt: time.Unix(100, 0)})
	_ = store.AppendMessageEdit(ctx, MessageEdit{CaseID: id, Content: "", EditedAt: time.Unix(300, 0)})

	edits, err := store.ListMessageEdits(ctx, id)
	if err != nil {
		t.Fatalf("list edits: %v", err)
	}
	if len(edits) != 3 || edits[0].Content != "first" || !edits[2].Deleted() {
		t.Fatalf("unexpected history: %+v", edits)
	}
}
