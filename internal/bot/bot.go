package bot

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"council-bot/internal/config"
	"council-bot/internal/effects"
	"council-bot/internal/lock"
	"council-bot/internal/modules/activity"
	"council-bot/internal/modules/audit"
	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/modules/poll"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Services are the domain components the bot presents.
type Services struct {
	Moderation *moderation.Service
	Giveaways  *giveaway.Manager
	Polls      *poll.Service
	Activity   *activity.Service
	Audit      *audit.Logger
}

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	session    *discordgo.Session
	moderation *moderation.Service
	giveaways  *giveaway.Manager
	polls      *poll.Service
	activity   *activity.Service
	audit      *audit.Logger
	cursor     *giveaway.Cursor
	renders    *lock.Keyed
	inflight   sync.WaitGroup
}

func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	session.State.TrackPresences = true
	session.State.TrackMembers = true
	session.State.MaxMessageCount = 0

	return session, nil
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, services Services) *Bot {
	return &Bot{
		cfg:        cfg,
		logger:     logger,
		session:    session,
		moderation: services.Moderation,
		giveaways:  services.Giveaways,
		polls:      services.Polls,
		activity:   services.Activity,
		audit:      services.Audit,
		cursor:     giveaway.NewCursor(),
		renders:    lock.NewKeyed(),
	}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

// Close stops receiving events, then waits for in-flight handlers until ctx ends.
// REST calls keep working after the gateway is closed, so running handlers can finish their effects.
func (b *Bot) Close(ctx context.Context) {
	if b.session != nil {
		_ = b.session.Close()
	}
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("shutdown with handlers still running")
	}
	if b.cursor != nil {
		b.cursor.Reset()
	}
}

// track runs fn as an in-flight handler on a context that outlives shutdown signals.
func (b *Bot) track(fn func(ctx context.Context)) {
	b.inflight.Add(1)
	defer b.inflight.Done()
	fn(context.Background())
}

// apply executes the effects of a finished transition and returns the failed ones. Failures are reported, never retried.
func (b *Bot) apply(ctx context.Context, list []effects.Effect) []effects.Result {
	if len(list) == 0 {
		return nil
	}
	var reporter effects.Reporter
	if b.audit != nil {
		reporter = b.audit
	}
	failed := effects.Failed(effects.Run(context.WithoutCancel(ctx), b, reporter, list))
	if reporter == nil {
		for _, result := range failed {
			b.logger.Warn("effect failed",
				zap.String("effect", string(result.Effect.Kind)),
				zap.String("target", result.Effect.Target()),
				zap.Error(result.Err))
		}
	}
	return failed
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID != b.cfg.GuildID {
		return
	}
	if b.activity == nil {
		return
	}
	b.track(func(ctx context.Context) {
		if err := b.activity.RecordMessage(ctx, msg.Author.ID, msg.Timestamp); err != nil {
			b.logger.Warn("record activity failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		}
	})
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, msg *discordgo.MessageUpdate) {
	// Embed unfurls arrive as partial updates without an author.
	if msg.Author == nil || msg.GuildID != b.cfg.GuildID {
		return
	}
	editedAt := time.Now()
	if msg.EditedTimestamp != nil {
		editedAt = *msg.EditedTimestamp
	}
	b.track(func(ctx context.Context) {
		transition, err := b.moderation.HandleEdit(ctx, msg.ID, msg.Content, editedAt)
		if err != nil {
			b.logger.Warn("record edit failed", zap.String("message_id", msg.ID), zap.Error(err))
			return
		}
		b.apply(ctx, transition.Effects)
	})
}

func (b *Bot) onMessageDelete(session *discordgo.Session, msg *discordgo.MessageDelete) {
	if msg.GuildID != b.cfg.GuildID {
		return
	}
	b.track(func(ctx context.Context) {
		transition, err := b.moderation.HandleDelete(ctx, msg.ID, time.Now())
		if err != nil {
			b.logger.Warn("record delete failed", zap.String("message_id", msg.ID), zap.Error(err))
			return
		}
		b.apply(ctx, transition.Effects)
	})
}

// onGuildMemberAdd restores the silenced role for members who left while silenced.
func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil || event.GuildID != b.cfg.GuildID {
		return
	}
	b.track(func(ctx context.Context) {
		silenced, err := b.moderation.IsSilenced(ctx, event.User.ID)
		if err != nil {
			b.logger.Warn("silenced lookup failed", zap.String("user_id", event.User.ID), zap.Error(err))
			return
		}
		if silenced {
			b.apply(ctx, []effects.Effect{effects.GrantRole(b.cfg.GuildID, event.User.ID, b.cfg.Moderation.SilencedRoleID)})
		}
	})
}

func (b *Bot) onGuildMemberUpdate(session *discordgo.Session, event *discordgo.GuildMemberUpdate) {
	if event.Member == nil || event.User == nil || event.GuildID != b.cfg.GuildID || b.cfg.Moderation.SilencedRoleID == "" {
		return
	}
	silenced := slices.Contains(event.Roles, b.cfg.Moderation.SilencedRoleID)
	if event.BeforeUpdate != nil && slices.Contains(event.BeforeUpdate.Roles, b.cfg.Moderation.SilencedRoleID) == silenced {
		return
	}
	b.track(func(ctx context.Context) {
		if err := b.moderation.SyncSilenced(ctx, event.User.ID, silenced); err != nil {
			b.logger.Warn("silenced sync failed", zap.String("user_id", event.User.ID), zap.Error(err))
		}
	})
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
}
