package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string           `yaml:"discord_token"`
	GuildID         string           `yaml:"guild_id"`
	LogLevel        string           `yaml:"log_level"`
	DefaultLanguage string           `yaml:"default_language"`
	Database        DatabaseConfig   `yaml:"database"`
	Moderation      ModerationConfig `yaml:"moderation"`
	Giveaway        GiveawayConfig   `yaml:"giveaway"`
	Poll            PollConfig       `yaml:"poll"`
	Sweeper         SweeperConfig    `yaml:"sweeper"`
	Activity        ActivityConfig   `yaml:"activity"`
	HTTP            HTTPConfig       `yaml:"http"`
	Redis           RedisConfig      `yaml:"redis"`
	EmbedColors     EmbedColors      `yaml:"embed_colors"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ModerationConfig struct {
	ChannelID           string `yaml:"channel_id"`
	SilencedRoleID      string `yaml:"silenced_role_id"`
	NoReportsRoleID     string `yaml:"no_reports_role_id"`
	ReportLimit         int    `yaml:"report_limit"`
	ReportWindowSeconds int    `yaml:"report_window_seconds"`
}

type GiveawayConfig struct {
	ReactionEmoji          string `yaml:"reaction_emoji"`
	DefaultDurationSeconds int    `yaml:"default_duration_seconds"`
	DefaultWinners         int    `yaml:"default_winners"`
	DefaultPrize           string `yaml:"default_prize"`
}

type PollConfig struct {
	DefaultDurationSeconds int `yaml:"default_duration_seconds"`
}

type SweeperConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type ActivityConfig struct {
	Enabled              bool     `yaml:"enabled"`
	ChannelID            string   `yaml:"channel_id"`
	AwardRoleID          string   `yaml:"award_role_id"`
	AwardHour            int      `yaml:"award_hour"`
	CheckIntervalSeconds int      `yaml:"check_interval_seconds"`
	ExcludedUsers        []string `yaml:"excluded_users"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		DefaultLanguage: "en",
		Database:        DatabaseConfig{Driver: "sqlite", DSN: "/data/council.db"},
		Moderation:      ModerationConfig{ReportLimit: 5, ReportWindowSeconds: 600},
		Giveaway: GiveawayConfig{
			ReactionEmoji:          "🎉",
			DefaultDurationSeconds: 3600,
			DefaultWinners:         1,
			DefaultPrize:           "Nothing :(",
		},
		Poll:     PollConfig{DefaultDurationSeconds: 3600},
		Sweeper:  SweeperConfig{IntervalSeconds: 30},
		Activity: ActivityConfig{Enabled: false, AwardHour: 0, CheckIntervalSeconds: 600},
		HTTP:     HTTPConfig{Enabled: false, Addr: ":8080"},
		Redis:    RedisConfig{LockTTLSeconds: 30},
		EmbedColors: EmbedColors{
			Action:  0x5865F2,
			Warning: 0xF59E0B,
			Error:   0xEF4444,
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.GuildID == "" {
		errs = append(errs, errors.New("GUILD_ID is required"))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "pgx":
	default:
		errs = append(errs, errors.New("DATABASE_DRIVER must be sqlite or postgres"))
	}
	if c.Activity.AwardHour < 0 || c.Activity.AwardHour > 23 {
		errs = append(errs, errors.New("ACTIVITY_AWARD_HOUR must be between 0 and 23"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLanguage = envString("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.Moderation.ChannelID = envString("MODERATION_CHANNEL_ID", cfg.Moderation.ChannelID)
	cfg.Moderation.SilencedRoleID = envString("SILENCED_ROLE_ID", cfg.Moderation.SilencedRoleID)
	cfg.Moderation.NoReportsRoleID = envString("NO_REPORTS_ROLE_ID", cfg.Moderation.NoReportsRoleID)
	cfg.Moderation.ReportLimit = envInt("REPORT_LIMIT", cfg.Moderation.ReportLimit)
	cfg.Moderation.ReportWindowSeconds = envInt("REPORT_WINDOW_SECONDS", cfg.Moderation.ReportWindowSeconds)
	cfg.Giveaway.ReactionEmoji = envString("GIVEAWAY_REACTION_EMOJI", cfg.Giveaway.ReactionEmoji)
	cfg.Giveaway.DefaultDurationSeconds = envInt("GIVEAWAY_DEFAULT_DURATION", cfg.Giveaway.DefaultDurationSeconds)
	cfg.Giveaway.DefaultWinners = envInt("GIVEAWAY_DEFAULT_WINNERS", cfg.Giveaway.DefaultWinners)
	cfg.Giveaway.DefaultPrize = envString("GIVEAWAY_DEFAULT_PRIZE", cfg.Giveaway.DefaultPrize)
	cfg.Poll.DefaultDurationSeconds = envInt("POLL_DEFAULT_DURATION", cfg.Poll.DefaultDurationSeconds)
	cfg.Sweeper.IntervalSeconds = envInt("SWEEPER_INTERVAL_SECONDS", cfg.Sweeper.IntervalSeconds)
	cfg.Activity.Enabled = envBool("ACTIVITY_ENABLED", cfg.Activity.Enabled)
	cfg.Activity.ChannelID = envString("ACTIVITY_CHANNEL_ID", cfg.Activity.ChannelID)
	cfg.Activity.AwardRoleID = envString("ACTIVITY_AWARD_ROLE_ID", cfg.Activity.AwardRoleID)
	cfg.Activity.AwardHour = envInt("ACTIVITY_AWARD_HOUR", cfg.Activity.AwardHour)
	cfg.Activity.ExcludedUsers = envList("ACTIVITY_EXCLUDED_USERS", cfg.Activity.ExcludedUsers)
	cfg.HTTP.Enabled = envBool("HTTP_ENABLED", cfg.HTTP.Enabled)
	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.LockTTLSeconds = envInt("REDIS_LOCK_TTL_SECONDS", cfg.Redis.LockTTLSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
