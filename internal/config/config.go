// Package config loads the bot's configuration from a .env file (when
// present) and environment variables, and resolves Google credentials
// through an ordered provider chain.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Discord  DiscordConfig
	Drive    DriveConfig
	Workflow WorkflowConfig
	Audit    AuditConfig
	Ops      OpsConfig
	Log      LogConfig
}

type DiscordConfig struct {
	Token        string
	GuildID      string
	AllowedRoles []string
}

type DriveConfig struct {
	FolderID string
	// Credentials is the resolved service-account blob; CredentialsSource
	// names the provider that supplied it.
	Credentials       []byte
	CredentialsSource string
}

type WorkflowConfig struct {
	// WebhookURL is the internal path to the engine; ExternalURL is the
	// externally-routed path used for the single fallback attempt.
	WebhookURL  string
	ExternalURL string
}

type AuditConfig struct {
	WebhookURL string
	Token      string
}

type OpsConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Ops: OpsConfig{Port: 4200},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration: defaults, then a .env file when one exists in
// the working directory, then environment variables. Google credentials
// come from the provider chain in credentials.go.
func Load() (Config, error) {
	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()
	return loadWith(os.Getenv, os.ReadFile)
}

func loadWith(env func(string) string, readFile func(string) ([]byte, error)) (Config, error) {
	cfg := defaults()
	applyEnv(&cfg, env)

	if cfg.Discord.Token == "" {
		return Config{}, fmt.Errorf("missing required config: Discord bot token. Set BOT_TOKEN")
	}
	if cfg.Workflow.WebhookURL == "" {
		return Config{}, fmt.Errorf("missing required config: workflow webhook URL. Set N8N_WEBHOOK_URL")
	}
	if cfg.Drive.FolderID == "" {
		return Config{}, fmt.Errorf("missing required config: Drive folder. Set GOOGLE_DRIVE_FOLDER_ID")
	}

	creds, source, err := resolveCredentials(env, readFile)
	if err != nil {
		return Config{}, fmt.Errorf("resolving Google credentials: %w", err)
	}
	cfg.Drive.Credentials = creds
	cfg.Drive.CredentialsSource = source

	return cfg, nil
}

func applyEnv(cfg *Config, env func(string) string) {
	for _, s := range specs {
		v := env(s.env)
		if v == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kInt:
			if i, err := strconv.Atoi(v); err == nil {
				s.apply(cfg, i)
			}
		case kList:
			s.apply(cfg, splitList(v))
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
