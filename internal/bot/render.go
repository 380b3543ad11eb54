package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/modules/poll"
	"council-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

const (
	caseVotePrefix    = "case_vote_"
	caseRetractPrefix = "case_retract_"
	pollVotePrefix    = "poll_vote_"
	listPrevID        = "giveaway_list_prev"
	listNextID        = "giveaway_list_next"
	maxEmbeds         = 10
	maxContentLength  = 1000
	maxFieldLength    = 256
	colorCaseOpen     = 0xED4245
	colorCaseDone     = 0x57F287
	colorPollOpen     = 0x1F8B4C
	colorPollEnded    = 0x57F287
)

// Discord rejects messages whose embeds hold more characters than this in total.
const maxEmbedChars = 6000

func messageLink(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

func timestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// truncate cuts s to at most n characters without splitting one.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "…"
		}
		count++
	}
	return s
}

func codeBlock(content string) string {
	content = truncate(content, maxContentLength)
	content = strings.ReplaceAll(content, "```", "'''")
	return "```\n" + content + "```"
}

func mentions(ids []string, empty string) string {
	if len(ids) == 0 {
		return empty
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "<@"+id+">")
	}
	return strings.Join(parts, ", ")
}

// caseEmbeds renders the case header followed by its revisions. Only the newest revisions fit.
func (b *Bot) caseEmbeds(lang string, snapshot moderation.Snapshot) []*discordgo.MessageEmbed {
	c := snapshot.Case
	voters := make(map[storage.Action][]string, len(storage.Actions))
	for _, vote := range snapshot.Votes {
		voters[vote.Action] = append(voters[vote.Action], vote.VoterID)
	}

	color := colorCaseOpen
	title := b.t(lang, "case_title")
	if snapshot.State == moderation.StateResolved {
		color = colorCaseDone
		title += " · " + b.t(lang, "case_resolved")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: b.t(lang, "field_moderators_online"), Value: strconv.Itoa(c.ModeratorsOnline), Inline: true},
		{Name: b.t(lang, "field_channel"), Value: "<#" + c.SuspectChannelID + ">", Inline: true},
		{Name: b.t(lang, "field_author"), Value: "<@" + c.SuspectID + ">", Inline: true},
		{Name: b.t(lang, "field_reporter"), Value: "<@" + c.ReporterID + ">", Inline: true},
	}
	for _, action := range storage.Actions {
		track := c.Track(action)
		lines := "-"
		if ids := voters[action]; len(ids) > 0 {
			lines = truncate("<@"+strings.Join(ids, ">\n<@")+">", maxFieldLength)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("%s %d/%d", b.t(lang, "track_"+string(action)), track.Votes, track.Required),
			Value:  lines,
			Inline: true,
		})
	}

	embeds := []*discordgo.MessageEmbed{{
		Title:       title,
		Description: b.t(lang, "case_content") + "\n" + codeBlock(c.Content),
		Color:       color,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: b.t(lang, "case_sent_at")},
		Timestamp:   c.SuspectSentAt.UTC().Format(time.RFC3339),
	}}

	var revisions []*discordgo.MessageEmbed
	for _, edit := range snapshot.Edits {
		if edit.Deleted() {
			revisions = append(revisions, &discordgo.MessageEmbed{
				Title:     b.t(lang, "case_deleted"),
				Footer:    &discordgo.MessageEmbedFooter{Text: b.t(lang, "case_deleted_at")},
				Timestamp: edit.EditedAt.UTC().Format(time.RFC3339),
			})
			break
		}
		revisions = append(revisions, &discordgo.MessageEmbed{
			Title:       b.t(lang, "case_edited"),
			Description: b.t(lang, "case_new_content") + "\n" + codeBlock(edit.Content),
			Footer:      &discordgo.MessageEmbedFooter{Text: b.t(lang, "case_edited_at")},
			Timestamp:   edit.EditedAt.UTC().Format(time.RFC3339),
		})
	}

	// Keep the newest revisions that fit next to the header.
	budget := maxEmbedChars - embedLength(embeds[0])
	kept := 0
	for i := len(revisions) - 1; i >= 0 && kept < maxEmbeds-1; i-- {
		size := embedLength(revisions[i])
		if size > budget {
			break
		}
		budget -= size
		kept++
	}
	return append(embeds, revisions[len(revisions)-kept:]...)
}

// embedLength counts the characters Discord charges against the per-message embed limit.
func embedLength(embed *discordgo.MessageEmbed) int {
	n := utf8.RuneCountInString(embed.Title) + utf8.RuneCountInString(embed.Description)
	if embed.Footer != nil {
		n += utf8.RuneCountInString(embed.Footer.Text)
	}
	if embed.Author != nil {
		n += utf8.RuneCountInString(embed.Author.Name)
	}
	for _, field := range embed.Fields {
		n += utf8.RuneCountInString(field.Name) + utf8.RuneCountInString(field.Value)
	}
	return n
}

// caseComponents renders a vote row and an undo row. Buttons of tracks that can no longer fire are disabled.
func (b *Bot) caseComponents(lang string, c storage.ReportCase) []discordgo.MessageComponent {
	votes := make([]discordgo.MessageComponent, 0, len(storage.Actions)+1)
	undos := make([]discordgo.MessageComponent, 0, len(storage.Actions))
	for _, action := range storage.Actions {
		settled := c.Track(action).Resolved || moderation.Moot(c, action)
		style := discordgo.DangerButton
		if action == storage.ActionDeleteMessage {
			style = discordgo.SecondaryButton
		}
		label := b.t(lang, "button_"+string(action))
		votes = append(votes, discordgo.Button{
			Label:    label,
			Style:    style,
			CustomID: caseVotePrefix + string(action),
			Disabled: settled,
		})
		undos = append(undos, discordgo.Button{
			Label:    fmt.Sprintf(b.t(lang, "button_retract"), label),
			Style:    discordgo.SecondaryButton,
			CustomID: caseRetractPrefix + string(action),
			Disabled: settled,
		})
	}
	if !c.MessageDeleted {
		votes = append(votes, discordgo.Button{
			Label: b.t(lang, "button_show_message"),
			Style: discordgo.LinkButton,
			URL:   messageLink(b.cfg.GuildID, c.SuspectChannelID, c.SuspectMessageID),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: votes},
		discordgo.ActionsRow{Components: undos},
	}
}

// parseCaseButton splits a case button id into its kind and action.
func parseCaseButton(customID string) (action moderation.Action, retract bool, ok bool) {
	raw, found := strings.CutPrefix(customID, caseVotePrefix)
	if !found {
		raw, found = strings.CutPrefix(customID, caseRetractPrefix)
		retract = true
	}
	if !found {
		return "", false, false
	}
	action = moderation.Action(raw)
	return action, retract, action.Valid()
}

func (b *Bot) giveawayEmbed(lang string, g storage.Giveaway, winners []string) *discordgo.MessageEmbed {
	id := "?"
	if g.ID > 0 {
		id = strconv.FormatInt(g.ID, 10)
	}
	description := fmt.Sprintf(b.t(lang, "giveaway_winner_count"), g.MaxWinners)
	if g.Completed {
		description = fmt.Sprintf(b.t(lang, "giveaway_winners"), mentions(winners, b.t(lang, "giveaway_nobody")))
	}
	return &discordgo.MessageEmbed{
		Title:       g.Prize,
		Description: description,
		Color:       b.cfg.EmbedColors.Action,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf(b.t(lang, "giveaway_footer"), id)},
		Timestamp:   g.EndTime.UTC().Format(time.RFC3339),
	}
}

func (b *Bot) announcement(lang string, winners []string, prize string) string {
	if len(winners) == 0 {
		return fmt.Sprintf(b.t(lang, "giveaway_announce_none"), prize)
	}
	return fmt.Sprintf(b.t(lang, "giveaway_announce"), mentions(winners, ""), prize)
}

func (b *Bot) listEmbeds(lang string, page giveaway.Page) []*discordgo.MessageEmbed {
	if len(page.Entries) == 0 {
		return []*discordgo.MessageEmbed{{Title: b.t(lang, "giveaway_list_empty"), Color: b.cfg.EmbedColors.Action}}
	}
	embeds := make([]*discordgo.MessageEmbed, 0, len(page.Entries))
	for _, entry := range page.Entries {
		g := entry.Giveaway
		embeds = append(embeds, &discordgo.MessageEmbed{
			Title: fmt.Sprintf(b.t(lang, "giveaway_list_title"), g.ID),
			Description: fmt.Sprintf(b.t(lang, "giveaway_list_entry"),
				g.Prize,
				mentions(entry.Winners, "-"),
				timestamp(g.EndTime, "f")),
			Color: b.cfg.EmbedColors.Action,
		})
	}
	return embeds
}

func (b *Bot) listComponents(lang string, page giveaway.Page) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: b.t(lang, "button_prev"), Style: discordgo.SecondaryButton, CustomID: listPrevID, Disabled: !page.HasPrev},
		discordgo.Button{Label: b.t(lang, "button_next"), Style: discordgo.SecondaryButton, CustomID: listNextID, Disabled: !page.HasNext},
	}}}
}

// pollEmbeds shows every option with its ballot count. An ended poll gets a closing notice.
func (b *Bot) pollEmbeds(lang string, snapshot poll.Snapshot) []*discordgo.MessageEmbed {
	p := snapshot.Poll
	lines := make([]string, 0, len(snapshot.Options))
	for _, option := range snapshot.Options {
		lines = append(lines, fmt.Sprintf("%s: %d", option.Label, option.Votes))
	}
	footer := b.t(lang, "poll_ends_at")
	if p.Ended {
		footer = b.t(lang, "poll_ended_at")
	}
	embeds := []*discordgo.MessageEmbed{{
		Title:       fmt.Sprintf(b.t(lang, "poll_title"), p.Title),
		Description: strings.Join(lines, "\n"),
		Color:       colorPollOpen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: b.t(lang, "poll_author"), Value: "<@" + p.AuthorID + ">", Inline: true},
			{Name: b.t(lang, "poll_total"), Value: strconv.Itoa(snapshot.Total), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp: p.EndTime.UTC().Format(time.RFC3339),
	}}
	if p.Ended {
		embeds = append(embeds, &discordgo.MessageEmbed{Description: b.t(lang, "poll_ended"), Color: colorPollEnded})
	}
	return embeds
}

// pollComponents has one button per option while the poll is open and none after.
func (b *Bot) pollComponents(snapshot poll.Snapshot) []discordgo.MessageComponent {
	if snapshot.Poll.Ended {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(snapshot.Options))
	for _, option := range snapshot.Options {
		buttons = append(buttons, discordgo.Button{
			Label:    option.Label,
			Style:    discordgo.PrimaryButton,
			CustomID: pollVotePrefix + strconv.Itoa(option.Number),
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func parsePollButton(customID string) (int, bool) {
	raw, found := strings.CutPrefix(customID, pollVotePrefix)
	if !found {
		return 0, false
	}
	number, err := strconv.Atoi(raw)
	if err != nil || number < 0 {
		return 0, false
	}
	return number, true
}
