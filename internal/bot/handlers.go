package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"council-bot/internal/modules/activity"
	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/modules/poll"
	"council-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.track(func(ctx context.Context) {
		switch interaction.Type {
		case discordgo.InteractionApplicationCommand:
			b.handleCommand(ctx, session, interaction)
		case discordgo.InteractionMessageComponent:
			b.handleComponent(ctx, session, interaction)
		}
	})
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	lang := b.lang()
	if interaction.GuildID != b.cfg.GuildID {
		b.respondEmbed(session, interaction, b.commandEmbed("Council", b.t(lang, "error_only_guild"), b.cfg.EmbedColors.Error, nil), true)
		return
	}

	data := interaction.ApplicationCommandData()
	switch data.Name {
	case reportCommandName:
		b.handleReport(ctx, session, interaction)
	case "giveaway":
		b.handleGiveawayCommand(ctx, session, interaction, data.Options)
	case "poll":
		b.handlePoll(ctx, session, interaction, data.Options)
	case "unsilence":
		b.handleUnsilence(ctx, session, interaction, data.Options)
	case "activity":
		b.handleActivity(ctx, session, interaction, data.Options)
	default:
		b.respond(session, interaction, b.t(lang, "error_unknown"), true)
	}
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	customID := interaction.MessageComponentData().CustomID
	switch {
	case customID == listPrevID || customID == listNextID:
		b.handleListPage(ctx, session, interaction, customID == listNextID)
	default:
		if action, retract, ok := parseCaseButton(customID); ok {
			b.handleVoteButton(ctx, session, interaction, action, retract)
			return
		}
		if number, ok := parsePollButton(customID); ok {
			b.handlePollButton(ctx, session, interaction, number)
		}
	}
}

func (b *Bot) handleReport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	lang := b.lang()
	data := interaction.ApplicationCommandData()
	reporter := interactionUser(interaction)
	var target *discordgo.Message
	if data.Resolved != nil {
		target = data.Resolved.Messages[data.TargetID]
	}
	if reporter == nil || target == nil || target.Author == nil {
		b.respond(session, interaction, b.t(lang, "error_failed"), true)
		return
	}

	blocked := interaction.Member != nil && slices.Contains(interaction.Member.Roles, b.cfg.Moderation.NoReportsRoleID)
	transition, err := b.moderation.OpenCase(ctx, moderation.Report{
		ReporterID:       reporter.ID,
		ReporterBlocked:  blocked,
		SuspectID:        target.Author.ID,
		SuspectChannelID: target.ChannelID,
		SuspectMessageID: target.ID,
		Content:          target.Content,
		SuspectSentAt:    target.Timestamp,
	})
	switch {
	case errors.Is(err, moderation.ErrReporterBlocked):
		b.logger.Info("skipping blocked reporter", zap.String("reporter_id", reporter.ID))
		b.respond(session, interaction, b.t(lang, "report_blocked"), true)
		return
	case errors.Is(err, moderation.ErrAlreadyReported):
		b.respond(session, interaction, b.t(lang, "report_already"), true)
		return
	case errors.Is(err, moderation.ErrRateLimited):
		b.respond(session, interaction, b.t(lang, "report_rate_limited"), true)
		return
	case err != nil:
		b.logger.Error("open case failed", zap.String("message_id", target.ID), zap.Error(err))
		b.respond(session, interaction, b.t(lang, "error_failed"), true)
		return
	}

	reply := b.t(lang, "report_sent")
	if b.isModerator(session, reporter.ID) {
		reply = fmt.Sprintf(b.t(lang, "report_sent_mod"), b.cfg.Moderation.ChannelID)
	}
	b.respond(session, interaction, reply, true)

	b.apply(ctx, transition.Effects)
	b.notifySuspect(session, transition.Case)
}

// handleVoteButton casts or withdraws the clicking moderator's ballot. Repeated presses are no-ops decided
// under the case lock.
func (b *Bot) handleVoteButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, action moderation.Action, retract bool) {
	lang := b.lang()
	voter := interactionUser(interaction)
	if voter == nil || interaction.Message == nil {
		return
	}
	c, err := b.moderation.CaseByVoteMessage(ctx, interaction.Message.ID)
	if err != nil {
		if !errors.Is(err, moderation.ErrNotFound) {
			b.logger.Warn("case lookup failed", zap.String("message_id", interaction.Message.ID), zap.Error(err))
		}
		b.respond(session, interaction, b.t(lang, "vote_not_case"), true)
		return
	}
	b.deferUpdate(session, interaction)

	var transition moderation.Transition
	if retract {
		transition, err = b.moderation.HandleRetract(ctx, c.ID, voter.ID, action)
	} else {
		transition, err = b.moderation.HandleVote(ctx, c.ID, voter.ID, action)
	}
	if err != nil {
		b.logger.Warn("vote failed",
			zap.Int64("case_id", c.ID),
			zap.String("action", string(action)),
			zap.Bool("retract", retract),
			zap.Error(err))
		return
	}
	b.apply(ctx, transition.Effects)
}

func (b *Bot) handleGiveawayCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang()
	if len(options) == 0 {
		b.respond(session, interaction, b.t(lang, "error_unknown"), true)
		return
	}
	sub := options[0]
	args := optionMap(sub.Options)

	switch sub.Name {
	case "start":
		b.handleGiveawayStart(ctx, session, interaction, args)
	case "list":
		b.handleGiveawayList(ctx, session, interaction)
	case "reroll":
		result, err := b.giveaways.Reroll(ctx, intOption(args, "id", 0))
		if err != nil {
			b.respond(session, interaction, b.giveawayError(lang, err), true)
			return
		}
		b.respond(session, interaction, b.t(lang, "giveaway_rerolled"), true)
		b.apply(ctx, result.Effects)
	case "edit":
		field := giveaway.Field(stringOption(args, "field", ""))
		value := intOption(args, "value", 0)
		result, err := b.giveaways.Edit(ctx, intOption(args, "id", 0), field, int(value))
		if err != nil {
			b.respond(session, interaction, b.giveawayError(lang, err), true)
			return
		}
		reply := fmt.Sprintf(b.t(lang, "giveaway_edit_winners"), value)
		if field == giveaway.FieldDuration {
			reply = fmt.Sprintf(b.t(lang, "giveaway_edit_duration"), value)
		}
		b.respond(session, interaction, reply, true)
		b.apply(ctx, result.Effects)
	case "end":
		result, err := b.giveaways.End(ctx, intOption(args, "id", 0))
		if err != nil {
			b.respond(session, interaction, b.giveawayError(lang, err), true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf(b.t(lang, "giveaway_ended"), result.Giveaway.ChannelID), true)
		b.apply(ctx, result.Effects)
	case "delete":
		result, err := b.giveaways.Delete(ctx, intOption(args, "id", 0))
		if err != nil {
			b.respond(session, interaction, b.giveawayError(lang, err), true)
			return
		}
		b.respond(session, interaction, b.t(lang, "giveaway_deleted"), true)
		b.apply(ctx, result.Effects)
	default:
		b.respond(session, interaction, b.t(lang, "error_unknown"), true)
	}
}

// handleGiveawayStart posts the announcement first so the giveaway can be stored with its message.
func (b *Bot) handleGiveawayStart(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, args map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang()
	channelID := interaction.ChannelID
	if opt, ok := args["channel"]; ok {
		channelID = opt.ChannelValue(nil).ID
	}
	duration := int(intOption(args, "duration", int64(b.cfg.Giveaway.DefaultDurationSeconds)))
	winners := int(intOption(args, "winners", int64(b.cfg.Giveaway.DefaultWinners)))
	prize := stringOption(args, "prize", b.cfg.Giveaway.DefaultPrize)
	if duration < 1 || winners < 1 {
		b.respond(session, interaction, b.t(lang, "giveaway_invalid_value"), true)
		return
	}

	draft := storage.Giveaway{Prize: prize, MaxWinners: winners, EndTime: time.Now().Add(time.Duration(duration) * time.Second)}
	msg, err := session.ChannelMessageSendEmbed(channelID, b.giveawayEmbed(lang, draft, nil))
	if err != nil {
		b.logger.Warn("giveaway announcement failed", zap.String("channel_id", channelID), zap.Error(err))
		b.respond(session, interaction, b.t(lang, "giveaway_start_failed"), true)
		return
	}
	if err := session.MessageReactionAdd(channelID, msg.ID, b.cfg.Giveaway.ReactionEmoji); err != nil {
		b.logger.Warn("giveaway reaction failed", zap.String("message_id", msg.ID), zap.Error(err))
	}

	result, err := b.giveaways.Start(ctx, giveaway.StartRequest{
		ChannelID:       channelID,
		MessageID:       msg.ID,
		DurationSeconds: duration,
		MaxWinners:      winners,
		Prize:           prize,
	})
	if err != nil {
		b.logger.Error("giveaway start failed", zap.Error(err))
		_ = session.ChannelMessageDelete(channelID, msg.ID)
		b.respond(session, interaction, b.t(lang, "giveaway_start_failed"), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf(b.t(lang, "giveaway_started"), channelID), true)
	b.apply(ctx, result.Effects)
}

func (b *Bot) handleGiveawayList(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	lang := b.lang()
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	b.cursor.Set(user.ID, 0)
	page, err := b.giveaways.List(ctx, 0)
	if err != nil {
		b.logger.Warn("giveaway list failed", zap.Error(err))
		b.respond(session, interaction, b.t(lang, "error_failed"), true)
		return
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     b.listEmbeds(lang, page),
			Components: b.listComponents(lang, page),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) handleListPage(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, next bool) {
	lang := b.lang()
	user := interactionUser(interaction)
	if user == nil {
		return
	}

	var offset int
	if next {
		current, err := b.giveaways.List(ctx, b.cursor.Get(user.ID))
		if err != nil {
			b.logger.Warn("giveaway list failed", zap.Error(err))
			return
		}
		offset = b.cursor.Next(user.ID, current.Total)
	} else {
		offset = b.cursor.Prev(user.ID)
	}

	page, err := b.giveaways.List(ctx, offset)
	if err != nil {
		b.logger.Warn("giveaway list failed", zap.Error(err))
		return
	}
	embeds := b.listEmbeds(lang, page)
	components := b.listComponents(lang, page)
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: components,
		},
	})
}

// handlePoll posts a placeholder first so the poll can be stored with its message. A poll whose
// first render fails is dropped together with the placeholder.
func (b *Bot) handlePoll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang()
	author := interactionUser(interaction)
	if author == nil || b.polls == nil {
		b.respond(session, interaction, b.t(lang, "error_unknown"), true)
		return
	}
	args := optionMap(options)
	choices, err := poll.ParseOptions(stringOption(args, "options", ""))
	if err != nil {
		b.respond(session, interaction, b.pollError(lang, err), true)
		return
	}
	duration := int(intOption(args, "duration", int64(b.cfg.Poll.DefaultDurationSeconds)))
	if duration < 1 {
		b.respond(session, interaction, b.t(lang, "poll_invalid_duration"), true)
		return
	}

	channelID := interaction.ChannelID
	msg, err := session.ChannelMessageSend(channelID, b.t(lang, "poll_placeholder"))
	if err != nil {
		b.logger.Warn("poll message failed", zap.String("channel_id", channelID), zap.Error(err))
		b.respond(session, interaction, b.t(lang, "poll_start_failed"), true)
		return
	}

	result, err := b.polls.Create(ctx, poll.CreateRequest{
		ChannelID:       channelID,
		MessageID:       msg.ID,
		AuthorID:        author.ID,
		Title:           stringOption(args, "title", ""),
		Options:         choices,
		DurationSeconds: duration,
	})
	if err != nil {
		_ = session.ChannelMessageDelete(channelID, msg.ID)
		b.respond(session, interaction, b.pollError(lang, err), true)
		return
	}
	if failed := b.apply(ctx, result.Effects); len(failed) > 0 {
		if err := b.polls.Delete(ctx, result.Poll.ID); err != nil {
			b.logger.Warn("drop unrendered poll failed", zap.Int64("poll_id", result.Poll.ID), zap.Error(err))
		}
		_ = session.ChannelMessageDelete(channelID, msg.ID)
		b.respond(session, interaction, b.t(lang, "poll_start_failed"), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf(b.t(lang, "poll_created"), channelID), true)
}

func (b *Bot) handlePollButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, number int) {
	lang := b.lang()
	voter := interactionUser(interaction)
	if voter == nil || interaction.Message == nil || b.polls == nil {
		return
	}
	p, err := b.polls.ByMessage(ctx, interaction.Message.ID)
	if err != nil {
		b.respond(session, interaction, b.pollError(lang, err), true)
		return
	}
	result, err := b.polls.Vote(ctx, p.ID, voter.ID, number)
	if err != nil {
		b.respond(session, interaction, b.pollError(lang, err), true)
		return
	}
	b.deferUpdate(session, interaction)
	b.apply(ctx, result.Effects)
}

func (b *Bot) handleUnsilence(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang()
	opt, ok := optionMap(options)["user"]
	if !ok {
		b.respond(session, interaction, b.t(lang, "error_unknown"), true)
		return
	}
	userID := opt.UserValue(nil).ID
	transition, err := b.moderation.Unsilence(ctx, userID)
	if err != nil {
		b.logger.Warn("unsilence failed", zap.String("user_id", userID), zap.Error(err))
		b.respond(session, interaction, b.t(lang, "error_failed"), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf(b.t(lang, "unsilence_done"), userID), true)
	b.apply(ctx, transition.Effects)
}

func (b *Bot) handleActivity(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang()
	if b.activity == nil {
		b.respond(session, interaction, b.t(lang, "error_unknown"), true)
		return
	}
	day := stringOption(optionMap(options), "day", activity.Day(time.Now()))
	report, err := b.activity.Report(ctx, day, 5)
	if err != nil {
		b.logger.Warn("activity report failed", zap.String("day", day), zap.Error(err))
		b.respond(session, interaction, b.t(lang, "error_failed"), true)
		return
	}

	top := b.t(lang, "activity_none")
	if len(report.Top) > 0 {
		top = ""
		for i, stat := range report.Top {
			top += fmt.Sprintf("%d. <@%s> (%d)\n", i+1, stat.UserID, stat.Count)
		}
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: b.t(lang, "activity_total"), Value: fmt.Sprintf("%d", report.Total), Inline: true},
		{Name: b.t(lang, "activity_top"), Value: top},
	}
	b.respondEmbed(session, interaction, b.commandEmbed(fmt.Sprintf(b.t(lang, "activity_title"), report.Day), "", b.cfg.EmbedColors.Action, fields), true)
}

func (b *Bot) giveawayError(lang string, err error) string {
	switch {
	case errors.Is(err, giveaway.ErrNotFound):
		return b.t(lang, "giveaway_not_found")
	case errors.Is(err, giveaway.ErrAlreadyEnded):
		return b.t(lang, "giveaway_already_ended")
	case errors.Is(err, giveaway.ErrCompleted):
		return b.t(lang, "giveaway_completed")
	case errors.Is(err, giveaway.ErrInvalidDuration), errors.Is(err, giveaway.ErrInvalidWinners):
		return b.t(lang, "giveaway_invalid_value")
	case errors.Is(err, giveaway.ErrUnknownField):
		return b.t(lang, "error_unknown")
	default:
		b.logger.Error("giveaway command failed", zap.Error(err))
		return b.t(lang, "error_failed")
	}
}

func (b *Bot) pollError(lang string, err error) string {
	switch {
	case errors.Is(err, poll.ErrNotFound):
		return b.t(lang, "poll_not_found")
	case errors.Is(err, poll.ErrEnded):
		return b.t(lang, "poll_closed")
	case errors.Is(err, poll.ErrTooFewOptions):
		return b.t(lang, "poll_too_few")
	case errors.Is(err, poll.ErrTooManyOptions):
		return b.t(lang, "poll_too_many")
	case errors.Is(err, poll.ErrInvalidDuration):
		return b.t(lang, "poll_invalid_duration")
	case errors.Is(err, poll.ErrUnknownOption):
		return b.t(lang, "error_unknown")
	default:
		b.logger.Error("poll command failed", zap.Error(err))
		return b.t(lang, "error_failed")
	}
}

func (b *Bot) isModerator(session *discordgo.Session, userID string) bool {
	perms, err := session.State.UserChannelPermissions(userID, b.cfg.Moderation.ChannelID)
	return err == nil && perms&discordgo.PermissionViewChannel != 0
}

// notifySuspect tells the author of a reported message about the report. Closed DMs are ignored.
func (b *Bot) notifySuspect(session *discordgo.Session, c storage.ReportCase) {
	if c.SuspectID == "" {
		return
	}
	channel, err := session.UserChannelCreate(c.SuspectID)
	if err != nil {
		b.logger.Debug("suspect dm unavailable", zap.String("user_id", c.SuspectID), zap.Error(err))
		return
	}
	_, err = session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: b.t(b.lang(), "report_dm"),
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label: b.t(b.lang(), "button_show_message"),
				Style: discordgo.LinkButton,
				URL:   messageLink(b.cfg.GuildID, c.SuspectChannelID, c.SuspectMessageID),
			},
		}}},
	})
	if err != nil {
		b.logger.Debug("suspect dm failed", zap.String("user_id", c.SuspectID), zap.Error(err))
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) deferUpdate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return out
}

func intOption(args map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, fallback int64) int64 {
	if opt, ok := args[name]; ok {
		return opt.IntValue()
	}
	return fallback
}

func stringOption(args map[string]*discordgo.ApplicationCommandInteractionDataOption, name, fallback string) string {
	if opt, ok := args[name]; ok && opt.StringValue() != "" {
		return opt.StringValue()
	}
	return fallback
}
