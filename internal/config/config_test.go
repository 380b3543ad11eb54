package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
discord_token: file-token
guild_id: g1
database:
  driver: postgres
  dsn: postgres://localhost/council
giveaway:
  default_prize: Sticker
moderation:
  channel_id: mod
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("SWEEPER_INTERVAL_SECONDS", "15")
	t.Setenv("POLL_DEFAULT_DURATION", "120")
	t.Setenv("ACTIVITY_EXCLUDED_USERS", "u1, u2,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "env-token" {
		t.Fatalf("expected env override, got %q", cfg.DiscordToken)
	}
	if cfg.Database.Driver != "postgres" || cfg.Moderation.ChannelID != "mod" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.Giveaway.DefaultPrize != "Sticker" || cfg.Giveaway.DefaultWinners != 1 || cfg.Giveaway.ReactionEmoji != "🎉" {
		t.Fatalf("expected defaults merged with file, got %+v", cfg.Giveaway)
	}
	if cfg.Sweeper.IntervalSeconds != 15 {
		t.Fatalf("expected interval 15, got %d", cfg.Sweeper.IntervalSeconds)
	}
	if cfg.Poll.DefaultDurationSeconds != 120 {
		t.Fatalf("expected poll duration 120, got %d", cfg.Poll.DefaultDurationSeconds)
	}
	if len(cfg.Activity.ExcludedUsers) != 2 || cfg.Activity.ExcludedUsers[1] != "u2" {
		t.Fatalf("unexpected excluded users: %v", cfg.Activity.ExcludedUsers)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("GUILD_ID", "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "DISCORD_TOKEN is required") || !strings.Contains(err.Error(), "GUILD_ID is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscordToken = "t"
	cfg.GuildID = "g"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Database.Driver = "mysql"
	cfg.Activity.AwardHour = 24
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_DRIVER") || !strings.Contains(err.Error(), "ACTIVITY_AWARD_HOUR") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger("DEBUG")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level enabled")
	}

	logger, err = BuildLogger("nonsense")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("expected info level fallback")
	}
}
