package httpapi

import (
	"time"

	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/storage"
)

type giveawayResponse struct {
	ID         int64     `json:"id"`
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	Prize      string    `json:"prize"`
	MaxWinners int       `json:"max_winners"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Completed  bool      `json:"completed"`
	Winners    []string  `json:"winners"`
}

func newGiveawayResponse(entry giveaway.Entry) giveawayResponse {
	g := entry.Giveaway
	winners := entry.Winners
	if winners == nil {
		winners = []string{}
	}
	return giveawayResponse{
		ID:         g.ID,
		ChannelID:  g.ChannelID,
		MessageID:  g.MessageID,
		Prize:      g.Prize,
		MaxWinners: g.MaxWinners,
		StartTime:  g.StartTime.UTC(),
		EndTime:    g.EndTime.UTC(),
		Completed:  g.Completed,
		Winners:    winners,
	}
}

type trackResponse struct {
	Votes    int  `json:"votes"`
	Required int  `json:"required"`
	Resolved bool `json:"resolved"`
	Moot     bool `json:"moot"`
}

type voteResponse struct {
	VoterID   string    `json:"voter_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

type editResponse struct {
	Content  string    `json:"content"`
	Deleted  bool      `json:"deleted"`
	EditedAt time.Time `json:"edited_at"`
}

type caseResponse struct {
	ID               int64                    `json:"id"`
	State            string                   `json:"state"`
	SuspectID        string                   `json:"suspect_id"`
	ReporterID       string                   `json:"reporter_id"`
	SuspectMessageID string                   `json:"suspect_message_id"`
	Content          string                   `json:"content"`
	CreatedAt        time.Time                `json:"created_at"`
	ModeratorsOnline int                      `json:"moderators_online"`
	UselessClicks    int                      `json:"useless_clicks"`
	MessageDeleted   bool                     `json:"message_deleted"`
	Tracks           map[string]trackResponse `json:"tracks"`
	Votes            []voteResponse           `json:"votes"`
	Edits            []editResponse           `json:"edits"`
}

func newCaseResponse(snapshot moderation.Snapshot) caseResponse {
	c := snapshot.Case
	resp := caseResponse{
		ID:               c.ID,
		State:            string(snapshot.State),
		SuspectID:        c.SuspectID,
		ReporterID:       c.ReporterID,
		SuspectMessageID: c.SuspectMessageID,
		Content:          c.Content,
		CreatedAt:        c.CreatedAt.UTC(),
		ModeratorsOnline: c.ModeratorsOnline,
		UselessClicks:    c.UselessClicks,
		MessageDeleted:   c.MessageDeleted,
		Tracks:           make(map[string]trackResponse, len(storage.Actions)),
		Votes:            make([]voteResponse, 0, len(snapshot.Votes)),
		Edits:            make([]editResponse, 0, len(snapshot.Edits)),
	}
	for _, action := range storage.Actions {
		track := c.Track(action)
		resp.Tracks[string(action)] = trackResponse{
			Votes:    track.Votes,
			Required: track.Required,
			Resolved: track.Resolved,
			Moot:     moderation.Moot(c, action),
		}
	}
	for _, vote := range snapshot.Votes {
		resp.Votes = append(resp.Votes, voteResponse{VoterID: vote.VoterID, Action: string(vote.Action), CreatedAt: vote.CreatedAt.UTC()})
	}
	for _, edit := range snapshot.Edits {
		resp.Edits = append(resp.Edits, editResponse{Content: edit.Content, Deleted: edit.Deleted(), EditedAt: edit.EditedAt.UTC()})
	}
	return resp
}

type effectResponse struct {
	EffectID  string    `json:"effect_id"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newEffectResponse(entry storage.EffectLog) effectResponse {
	return effectResponse{
		EffectID:  entry.EffectID,
		Kind:      entry.Kind,
		Target:    entry.Target,
		Status:    entry.Status,
		Error:     entry.Error,
		CreatedAt: entry.CreatedAt,
	}
}
