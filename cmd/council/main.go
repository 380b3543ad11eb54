package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"council-bot/internal/bot"
	"council-bot/internal/config"
	"council-bot/internal/httpapi"
	"council-bot/internal/lock"
	"council-bot/internal/modules/activity"
	"council-bot/internal/modules/audit"
	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/modules/poll"
	"council-bot/internal/storage"
	"council-bot/internal/sweeper"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
	_ = logger.Sync()
}

// run owns every resource it opens and releases them before returning.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := storage.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	locker, closeLocker, err := buildLocker(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("lock init: %w", err)
	}
	defer closeLocker()

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("discord session init: %w", err)
	}
	pool := bot.NewPool(session, cfg.GuildID, cfg.Moderation.ChannelID, cfg.Giveaway.ReactionEmoji)

	auditLogger := audit.NewLogger(store, logger.Named("effects"))
	moderationSvc := moderation.New(moderation.Config{
		GuildID:         cfg.GuildID,
		ChannelID:       cfg.Moderation.ChannelID,
		SilencedRoleID:  cfg.Moderation.SilencedRoleID,
		NoReportsRoleID: cfg.Moderation.NoReportsRoleID,
		ReportLimit:     cfg.Moderation.ReportLimit,
		ReportWindow:    time.Duration(cfg.Moderation.ReportWindowSeconds) * time.Second,
	}, store, locker, pool, logger.Named("moderation"))
	giveaways := giveaway.New(store, locker, pool, logger.Named("giveaway"))
	polls := poll.New(store, locker, logger.Named("poll"))

	var activitySvc *activity.Service
	if cfg.Activity.Enabled {
		activitySvc = activity.New(activity.Config{
			GuildID:     cfg.GuildID,
			ChannelID:   cfg.Activity.ChannelID,
			AwardRoleID: cfg.Activity.AwardRoleID,
			AwardHour:   cfg.Activity.AwardHour,
			Excluded:    cfg.Activity.ExcludedUsers,
		}, store, logger.Named("activity"))
	}

	botSvc := bot.New(cfg, logger.Named("bot"), session, bot.Services{
		Moderation: moderationSvc,
		Giveaways:  giveaways,
		Polls:      polls,
		Activity:   activitySvc,
		Audit:      auditLogger,
	})
	if err := botSvc.Start(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		botSvc.Close(shutdownCtx)
		return fmt.Errorf("bot start: %w", err)
	}
	logger.Info("bot started", zap.String("guild_id", cfg.GuildID))

	sweepInterval := time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second
	tasks := []sweeper.Task{
		sweeper.GiveawayTask(sweepInterval, giveaways, botSvc, auditLogger, logger.Named("sweeper")),
		sweeper.PollTask(sweepInterval, polls, botSvc, auditLogger, logger.Named("sweeper")),
	}
	if activitySvc != nil {
		tasks = append(tasks, sweeper.ActivityTask(time.Duration(cfg.Activity.CheckIntervalSeconds)*time.Second, activitySvc, botSvc, auditLogger))
	}
	sweep := sweeper.New(logger.Named("sweeper"), tasks...)
	sweep.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	var server *http.Server
	if cfg.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		handler := httpapi.NewHandler(store, giveaways, moderationSvc, logger.Named("http"))
		server = &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Router(), ReadHeaderTimeout: 5 * time.Second}
		group.Go(func() error {
			logger.Info("http api enabled", zap.String("addr", cfg.HTTP.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sweep.Stop()
		botSvc.Close(shutdownCtx)
		if server != nil {
			return server.Shutdown(shutdownCtx)
		}
		return nil
	})

	return group.Wait()
}

// buildLocker picks redis locks when an address is configured. The returned func closes the redis client.
func buildLocker(ctx context.Context, cfg config.Config, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return lock.NewKeyed(), func() {}, nil
	}
	client, err := lock.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis entity locks", zap.String("addr", cfg.Redis.Addr))
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	return lock.NewRedis(client, lock.RedisConfig{TTL: time.Duration(cfg.Redis.LockTTLSeconds) * time.Second}), closeClient, nil
}
