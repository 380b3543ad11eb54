package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"council-bot/internal/config"
	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/modules/poll"
	"council-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBot() *Bot {
	cfg := config.DefaultConfig()
	cfg.GuildID = "guild"
	return &Bot{cfg: cfg}
}

func testCase() storage.ReportCase {
	return storage.ReportCase{
		ID:               7,
		VoteChannelID:    "mod",
		SuspectChannelID: "general",
		SuspectMessageID: "msg",
		SuspectID:        "suspect",
		ReporterID:       "reporter",
		Content:          "bad words",
		SuspectSentAt:    time.Unix(1_700_000_000, 0),
		ModeratorsOnline: 4,
		Delete:           storage.Track{Votes: 1, Required: 2},
		Silence:          storage.Track{Votes: 2, Required: 2, Resolved: true},
		Block:            storage.Track{Required: 2},
	}
}

func TestCaseEmbedsShowTracksAndRevisions(t *testing.T) {
	b := testBot()
	c := testCase()
	snapshot := moderation.Snapshot{
		Case:  c,
		State: moderation.StateOpen,
		Votes: []storage.Vote{
			{CaseID: 7, VoterID: "m1", Action: storage.ActionDeleteMessage},
			{CaseID: 7, VoterID: "m1", Action: storage.ActionSilenceSuspect},
			{CaseID: 7, VoterID: "m2", Action: storage.ActionSilenceSuspect},
		},
		Edits: []storage.MessageEdit{
			{CaseID: 7, Content: "less bad words", EditedAt: time.Unix(1_700_000_060, 0)},
			{CaseID: 7, Content: "", EditedAt: time.Unix(1_700_000_120, 0)},
		},
	}

	embeds := b.caseEmbeds("en", snapshot)
	require.Len(t, embeds, 3)

	header := embeds[0]
	assert.Equal(t, "Message reported!", header.Title)
	assert.Contains(t, header.Description, "bad words")
	require.Len(t, header.Fields, 7)
	assert.Equal(t, "4", header.Fields[0].Value)
	assert.Equal(t, "For deletion 1/2", header.Fields[4].Name)
	assert.Equal(t, "<@m1>", header.Fields[4].Value)
	assert.Equal(t, "For silencing 2/2", header.Fields[5].Name)
	assert.Equal(t, "<@m1>\n<@m2>", header.Fields[5].Value)
	assert.Equal(t, "-", header.Fields[6].Value)

	assert.Equal(t, "Message edited", embeds[1].Title)
	assert.Contains(t, embeds[1].Description, "less bad words")
	assert.Equal(t, "Message deleted", embeds[2].Title)
}

func TestCaseEmbedsKeepNewestRevisions(t *testing.T) {
	b := testBot()
	snapshot := moderation.Snapshot{Case: testCase(), State: moderation.StateOpen}
	for i := 0; i < 15; i++ {
		snapshot.Edits = append(snapshot.Edits, storage.MessageEdit{Content: fmt.Sprintf("rev %d", i), EditedAt: time.Unix(int64(i), 0)})
	}

	embeds := b.caseEmbeds("en", snapshot)
	require.Len(t, embeds, maxEmbeds)
	assert.Contains(t, embeds[1].Description, "rev 6")
	assert.Contains(t, embeds[maxEmbeds-1].Description, "rev 14")
}

func TestCaseEmbedsStayWithinMessageLimit(t *testing.T) {
	b := testBot()
	c := testCase()
	c.Content = strings.Repeat("a", 1500)
	snapshot := moderation.Snapshot{Case: c, State: moderation.StateOpen}
	for i := 0; i < 9; i++ {
		snapshot.Edits = append(snapshot.Edits, storage.MessageEdit{
			Content:  fmt.Sprintf("%d%s", i, strings.Repeat("b", 1500)),
			EditedAt: time.Unix(int64(i), 0),
		})
	}

	embeds := b.caseEmbeds("en", snapshot)
	total := 0
	for _, embed := range embeds {
		total += embedLength(embed)
	}
	assert.LessOrEqual(t, total, maxEmbedChars)
	require.Greater(t, len(embeds), 1, "some revisions still fit")
	assert.True(t, strings.HasPrefix(strings.TrimPrefix(embeds[len(embeds)-1].Description, "New content:\n```\n"), "8"),
		"the newest revision is kept: %q", embeds[len(embeds)-1].Description[:40])
}

func TestCodeBlockCutsWholeCharacters(t *testing.T) {
	block := codeBlock(strings.Repeat("ä", maxContentLength+5))
	assert.True(t, utf8.ValidString(block))
	assert.Equal(t, maxContentLength, strings.Count(block, "ä"))
	assert.Contains(t, block, "…")

	assert.Equal(t, "```\nlyhyt```", codeBlock("lyhyt"))
}

func TestCaseEmbedsResolvedAndTranslated(t *testing.T) {
	b := testBot()
	c := testCase()
	c.Content = strings.Repeat("x", 2*maxContentLength) + "```"
	embeds := b.caseEmbeds("fi", moderation.Snapshot{Case: c, State: moderation.StateResolved})

	assert.True(t, strings.HasPrefix(embeds[0].Title, "Viestistä on tehty ilmoitus!"))
	assert.Equal(t, colorCaseDone, embeds[0].Color)
	assert.Less(t, len(embeds[0].Description), maxContentLength+100)
	// Falls back to English for keys without a translation.
	assert.Equal(t, "Giveaway not found", b.t("fi", "giveaway_not_found"))
	assert.Equal(t, "missing_key", b.t("en", "missing_key"))
}

func TestCaseComponentsDisableSettledTracks(t *testing.T) {
	b := testBot()
	c := testCase()

	rows := b.caseComponents("en", c)
	require.Len(t, rows, 2)
	row := rows[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 4)
	assert.False(t, row.Components[0].(discordgo.Button).Disabled)
	assert.True(t, row.Components[1].(discordgo.Button).Disabled)
	assert.False(t, row.Components[2].(discordgo.Button).Disabled)
	link := row.Components[3].(discordgo.Button)
	assert.Equal(t, "https://discord.com/channels/guild/general/msg", link.URL)

	undo := rows[1].(discordgo.ActionsRow)
	require.Len(t, undo.Components, 3)
	first := undo.Components[0].(discordgo.Button)
	assert.Equal(t, "Undo: Delete message", first.Label)
	assert.Equal(t, "case_retract_delete_message", first.CustomID)
	assert.True(t, undo.Components[1].(discordgo.Button).Disabled)

	c.MessageDeleted = true
	row = b.caseComponents("en", c)[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 3, "no link once the message is gone")
	assert.True(t, row.Components[0].(discordgo.Button).Disabled, "delete track is moot")
}

func TestParseCaseButton(t *testing.T) {
	action, retract, ok := parseCaseButton("case_vote_silence_suspect")
	assert.True(t, ok)
	assert.False(t, retract)
	assert.Equal(t, moderation.ActionSilenceSuspect, action)

	action, retract, ok = parseCaseButton("case_retract_block_reporter")
	assert.True(t, ok)
	assert.True(t, retract)
	assert.Equal(t, moderation.ActionBlockReporter, action)

	_, _, ok = parseCaseButton("case_vote_ban_everyone")
	assert.False(t, ok)
	_, _, ok = parseCaseButton(listNextID)
	assert.False(t, ok)
}

func TestGiveawayRendering(t *testing.T) {
	b := testBot()
	g := storage.Giveaway{ID: 3, Prize: "Sticker", MaxWinners: 2, EndTime: time.Unix(1_700_000_000, 0)}

	embed := b.giveawayEmbed("en", g, nil)
	assert.Equal(t, "2 winners", embed.Description)
	assert.Equal(t, "ID: 3 | ends at", embed.Footer.Text)

	g.Completed = true
	assert.Equal(t, "Winners: Nobody", b.giveawayEmbed("en", g, nil).Description)
	assert.Equal(t, "Winners: <@a>, <@b>", b.giveawayEmbed("en", g, []string{"a", "b"}).Description)
	assert.Equal(t, "ID: ? | ends at", b.giveawayEmbed("en", storage.Giveaway{}, nil).Footer.Text)

	assert.Equal(t, ":pensive: **Nobody** won **Sticker**", b.announcement("en", nil, "Sticker"))
	assert.Equal(t, ":tada: <@a> won **Sticker**!", b.announcement("en", []string{"a"}, "Sticker"))
}

func TestListRendering(t *testing.T) {
	b := testBot()
	empty := giveaway.Page{}
	embeds := b.listEmbeds("en", empty)
	require.Len(t, embeds, 1)
	assert.Equal(t, "No giveaways yet", embeds[0].Title)

	page := giveaway.Page{
		Entries: []giveaway.Entry{{Giveaway: storage.Giveaway{ID: 11, Prize: "Hat"}, Winners: []string{"w"}}},
		Offset:  10,
		Total:   11,
		HasPrev: true,
	}
	embeds = b.listEmbeds("en", page)
	require.Len(t, embeds, 1)
	assert.Equal(t, "Giveaway #11", embeds[0].Title)
	assert.Contains(t, embeds[0].Description, "<@w>")

	row := b.listComponents("en", page)[0].(discordgo.ActionsRow)
	assert.False(t, row.Components[0].(discordgo.Button).Disabled)
	assert.True(t, row.Components[1].(discordgo.Button).Disabled)
}

func TestCollectEntrantsPagesAndSkipsBots(t *testing.T) {
	var afters []string
	fetch := func(after string) ([]*discordgo.User, error) {
		afters = append(afters, after)
		start := 0
		if after != "" {
			fmt.Sscanf(after, "u%d", &start)
			start++
		}
		var users []*discordgo.User
		for i := start; i < 250 && len(users) < reactionPageSize; i++ {
			users = append(users, &discordgo.User{ID: fmt.Sprintf("u%d", i), Bot: i%50 == 0})
		}
		return users, nil
	}

	ids, err := collectEntrants(context.Background(), fetch)
	require.NoError(t, err)
	assert.Len(t, ids, 245)
	assert.Equal(t, []string{"", "u99", "u199"}, afters)
	assert.NotContains(t, ids, "u0")
}

func TestCollectEntrantsStopsOnError(t *testing.T) {
	_, err := collectEntrants(context.Background(), func(string) ([]*discordgo.User, error) {
		return nil, errors.New("rate limited")
	})
	assert.EqualError(t, err, "rate limited")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = collectEntrants(ctx, func(string) ([]*discordgo.User, error) { return nil, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountModerators(t *testing.T) {
	members := []*discordgo.Member{
		{User: &discordgo.User{ID: "mod-online"}},
		{User: &discordgo.User{ID: "mod-offline"}},
		{User: &discordgo.User{ID: "member-online"}},
		{User: &discordgo.User{ID: "bot", Bot: true}},
		nil,
	}
	present := map[string]bool{"mod-online": true, "member-online": true, "bot": true}
	view := map[string]bool{"mod-online": true, "mod-offline": true, "bot": true}

	count, err := countModerators(context.Background(), members,
		func(id string) bool { return present[id] },
		func(id string) bool { return view[id] })
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testPollSnapshot(ended bool) poll.Snapshot {
	return poll.Snapshot{
		Poll: storage.Poll{
			ID:        3,
			ChannelID: "general",
			MessageID: "pollmsg",
			AuthorID:  "author",
			Title:     "Lunch?",
			EndTime:   time.Unix(1_700_000_600, 0),
			Ended:     ended,
		},
		Options: []poll.Option{
			{Number: 0, Label: "pizza", Votes: 2},
			{Number: 1, Label: "sushi", Votes: 0},
		},
		Total: 2,
	}
}

func TestPollEmbedsShowCounts(t *testing.T) {
	b := testBot()

	embeds := b.pollEmbeds("en", testPollSnapshot(false))
	require.Len(t, embeds, 1)
	assert.Equal(t, "Vote: Lunch?", embeds[0].Title)
	assert.Equal(t, "pizza: 2\nsushi: 0", embeds[0].Description)
	assert.Equal(t, "<@author>", embeds[0].Fields[0].Value)
	assert.Equal(t, "2", embeds[0].Fields[1].Value)

	components := b.pollComponents(testPollSnapshot(false))
	require.Len(t, components, 1)
	row := components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 2)
	assert.Equal(t, "poll_vote_1", row.Components[1].(discordgo.Button).CustomID)
	assert.Equal(t, "sushi", row.Components[1].(discordgo.Button).Label)
}

func TestEndedPollHasNoButtons(t *testing.T) {
	b := testBot()
	snapshot := testPollSnapshot(true)

	embeds := b.pollEmbeds("en", snapshot)
	require.Len(t, embeds, 2)
	assert.Equal(t, "Vote has ended!", embeds[1].Description)
	assert.Equal(t, "pizza: 2\nsushi: 0", embeds[0].Description, "final tally stays visible")
	assert.Empty(t, b.pollComponents(snapshot))
}

func TestParsePollButton(t *testing.T) {
	number, ok := parsePollButton("poll_vote_4")
	assert.True(t, ok)
	assert.Equal(t, 4, number)

	for _, id := range []string{"poll_vote_", "poll_vote_x", "poll_vote_-1", "case_vote_delete_message"} {
		_, ok := parsePollButton(id)
		assert.False(t, ok, id)
	}
}
