package bot

import (
	"context"
	"fmt"

	"council-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

const reactionPageSize = 100

// Pool answers the candidate questions the domain asks about live guild state.
type Pool struct {
	session   *discordgo.Session
	guildID   string
	channelID string
	emoji     string
}

func NewPool(session *discordgo.Session, guildID, moderationChannelID, reactionEmoji string) *Pool {
	return &Pool{session: session, guildID: guildID, channelID: moderationChannelID, emoji: reactionEmoji}
}

// Entrants lists the users who reacted to the giveaway message with the giveaway emoji, bots excluded.
func (p *Pool) Entrants(ctx context.Context, g storage.Giveaway) ([]string, error) {
	return collectEntrants(ctx, func(after string) ([]*discordgo.User, error) {
		return p.session.MessageReactions(g.ChannelID, g.MessageID, p.emoji, reactionPageSize, "", after, discordgo.WithContext(ctx))
	})
}

// OnlineModerators counts present, non-bot members who can view the moderation channel.
func (p *Pool) OnlineModerators(ctx context.Context) (int, error) {
	guild, err := p.session.State.Guild(p.guildID)
	if err != nil {
		return 0, fmt.Errorf("guild %s not in state: %w", p.guildID, err)
	}
	return countModerators(ctx, guild.Members,
		func(userID string) bool {
			presence, err := p.session.State.Presence(p.guildID, userID)
			return err == nil && presence.Status != discordgo.StatusOffline
		},
		func(userID string) bool {
			perms, err := p.session.State.UserChannelPermissions(userID, p.channelID)
			return err == nil && perms&discordgo.PermissionViewChannel != 0
		})
}

func collectEntrants(ctx context.Context, fetch func(after string) ([]*discordgo.User, error)) ([]string, error) {
	var (
		out   []string
		after string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		users, err := fetch(after)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if user == nil || user.Bot {
				continue
			}
			out = append(out, user.ID)
		}
		if len(users) < reactionPageSize {
			return out, nil
		}
		after = users[len(users)-1].ID
	}
}

func countModerators(ctx context.Context, members []*discordgo.Member, present, canView func(userID string) bool) (int, error) {
	count := 0
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if member == nil || member.User == nil || member.User.Bot {
			continue
		}
		if present(member.User.ID) && canView(member.User.ID) {
			count++
		}
	}
	return count, nil
}
