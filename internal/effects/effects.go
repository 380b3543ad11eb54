package effects

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDeleteMessage        Kind = "delete_message"
	KindGrantRole            Kind = "grant_role"
	KindRevokeRole           Kind = "revoke_role"
	KindRenderCaseUpdate     Kind = "render_case_update"
	KindRenderGiveawayUpdate Kind = "render_giveaway_update"
	KindRenderPollUpdate     Kind = "render_poll_update"
	KindAnnounceWinners      Kind = "announce_winners"
)

// Effect is a request for the presentation layer to change something outside the database.
type Effect struct {
	ID         string
	Kind       Kind
	GuildID    string
	ChannelID  string
	MessageID  string
	UserID     string
	RoleID     string
	CaseID     int64
	GiveawayID int64
	PollID     int64
	Winners    []string
	Prize      string
}

func DeleteMessage(channelID, messageID string) Effect {
	return Effect{ID: uuid.NewString(), Kind: KindDeleteMessage, ChannelID: channelID, MessageID: messageID}
}

func GrantRole(guildID, userID, roleID string) Effect {
	return Effect{ID: uuid.NewString(), Kind: KindGrantRole, GuildID: guildID, UserID: userID, RoleID: roleID}
}

func RevokeRole(guildID, userID, roleID string) Effect {
	return Effect{ID: uuid.NewString(), Kind: KindRevokeRole, GuildID: guildID, UserID: userID, RoleID: roleID}
}

func RenderCaseUpdate(caseID int64) Effect {
	return Effect{ID: uuid.NewString(), Kind: KindRenderCaseUpdate, CaseID: caseID}
}

func RenderGiveawayUpdate(giveawayID int64) Effect {
	return Effect{ID: uuid.NewString(), Kind: KindRenderGiveawayUpdate, GiveawayID: giveawayID}
}

func RenderPollUpdate(pollID int64) Effect {
	return Effect{ID: uuid.NewString(), Kind: KindRenderPollUpdate, PollID: pollID}
}

// AnnounceWinners with no winners announces that nobody won.
func AnnounceWinners(channelID string, winners []string, prize string) Effect {
	return Effect{
		ID:        uuid.NewString(),
		Kind:      KindAnnounceWinners,
		ChannelID: channelID,
		Winners:   append([]string(nil), winners...),
		Prize:     prize,
	}
}

// Target describes what the effect acts on, for logs.
func (e Effect) Target() string {
	switch e.Kind {
	case KindDeleteMessage:
		return e.ChannelID + "/" + e.MessageID
	case KindGrantRole, KindRevokeRole:
		return e.UserID + "@" + e.RoleID
	case KindRenderCaseUpdate:
		return "case:" + strconv.FormatInt(e.CaseID, 10)
	case KindRenderGiveawayUpdate:
		return "giveaway:" + strconv.FormatInt(e.GiveawayID, 10)
	case KindRenderPollUpdate:
		return "poll:" + strconv.FormatInt(e.PollID, 10)
	case KindAnnounceWinners:
		return e.ChannelID + ":" + strings.Join(e.Winners, ",")
	default:
		return ""
	}
}

type Executor interface {
	Execute(ctx context.Context, effect Effect) error
}

// Reporter receives the outcome of every executed effect.
type Reporter interface {
	Report(ctx context.Context, effect Effect, err error)
}

type Result struct {
	Effect Effect
	Err    error
}

// Run executes effects in order. A failure is reported and does not stop the remaining effects.
func Run(ctx context.Context, executor Executor, reporter Reporter, list []Effect) []Result {
	results := make([]Result, 0, len(list))
	for _, effect := range list {
		err := executor.Execute(ctx, effect)
		if reporter != nil {
			reporter.Report(ctx, effect, err)
		}
		results = append(results, Result{Effect: effect, Err: err})
	}
	return results
}

// Failed returns the results that ended in error.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if result.Err != nil {
			out = append(out, result)
		}
	}
	return out
}
