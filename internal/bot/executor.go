package bot

import (
	"context"
	"fmt"

	"council-bot/internal/effects"
	"council-bot/internal/lock"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Execute applies one effect against Discord.
func (b *Bot) Execute(ctx context.Context, effect effects.Effect) error {
	opt := discordgo.WithContext(ctx)
	switch effect.Kind {
	case effects.KindDeleteMessage:
		err := b.session.ChannelMessageDelete(effect.ChannelID, effect.MessageID, opt)
		if isUnknownMessage(err) {
			b.logger.Debug("message already gone", zap.String("message_id", effect.MessageID))
			return nil
		}
		return err
	case effects.KindGrantRole:
		if effect.RoleID == "" {
			return fmt.Errorf("grant role to %s: no role configured", effect.UserID)
		}
		return b.session.GuildMemberRoleAdd(effect.GuildID, effect.UserID, effect.RoleID, opt)
	case effects.KindRevokeRole:
		if effect.RoleID == "" {
			return fmt.Errorf("revoke role from %s: no role configured", effect.UserID)
		}
		return b.session.GuildMemberRoleRemove(effect.GuildID, effect.UserID, effect.RoleID, opt)
	case effects.KindRenderCaseUpdate:
		return b.renderCase(ctx, effect.CaseID)
	case effects.KindRenderGiveawayUpdate:
		return b.renderGiveaway(ctx, effect.GiveawayID)
	case effects.KindRenderPollUpdate:
		return b.renderPoll(ctx, effect.PollID)
	case effects.KindAnnounceWinners:
		_, err := b.session.ChannelMessageSend(effect.ChannelID, b.announcement(b.lang(), effect.Winners, effect.Prize), opt)
		return err
	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}

// renderCase creates the vote message on first render and edits it afterwards.
func (b *Bot) renderCase(ctx context.Context, caseID int64) error {
	unlock, err := b.renders.Lock(ctx, "render:"+lock.CaseKey(caseID))
	if err != nil {
		return err
	}
	defer unlock()

	snapshot, err := b.moderation.Snapshot(ctx, caseID)
	if err != nil {
		return err
	}
	lang := b.lang()
	embeds := b.caseEmbeds(lang, snapshot)
	components := b.caseComponents(lang, snapshot.Case)
	c := snapshot.Case

	if c.VoteMessageID == "" {
		msg, err := b.session.ChannelMessageSendComplex(c.VoteChannelID, &discordgo.MessageSend{
			Embeds:     embeds,
			Components: components,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		return b.moderation.AttachVoteMessage(ctx, caseID, msg.ID)
	}

	_, err = b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    c.VoteChannelID,
		ID:         c.VoteMessageID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) renderGiveaway(ctx context.Context, giveawayID int64) error {
	entry, err := b.giveaways.Get(ctx, giveawayID)
	if err != nil {
		return err
	}
	embeds := []*discordgo.MessageEmbed{b.giveawayEmbed(b.lang(), entry.Giveaway, entry.Winners)}
	_, err = b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: entry.Giveaway.ChannelID,
		ID:      entry.Giveaway.MessageID,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) renderPoll(ctx context.Context, pollID int64) error {
	unlock, err := b.renders.Lock(ctx, "render:"+lock.PollKey(pollID))
	if err != nil {
		return err
	}
	defer unlock()

	snapshot, err := b.polls.Snapshot(ctx, pollID)
	if err != nil {
		return err
	}
	lang := b.lang()
	content := ""
	embeds := b.pollEmbeds(lang, snapshot)
	components := b.pollComponents(snapshot)
	_, err = b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    snapshot.Poll.ChannelID,
		ID:         snapshot.Poll.MessageID,
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}
