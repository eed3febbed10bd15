package config

import (
	"fmt"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "discord.token", typ: kString, env: "BOT_TOKEN", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Discord.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Discord.Token },
	},
	{
		key: "discord.guild_id", typ: kString, env: "GUILD_ID",
		apply:   func(cfg *Config, v any) { cfg.Discord.GuildID = v.(string) },
		extract: func(cfg Config) any { return cfg.Discord.GuildID },
	},
	{
		key: "discord.allowed_roles", typ: kList, env: "ALLOWED_ROLES",
		apply:   func(cfg *Config, v any) { cfg.Discord.AllowedRoles = v.([]string) },
		extract: func(cfg Config) any { return cfg.Discord.AllowedRoles },
	},
	{
		key: "drive.folder_id", typ: kString, env: "GOOGLE_DRIVE_FOLDER_ID",
		apply:   func(cfg *Config, v any) { cfg.Drive.FolderID = v.(string) },
		extract: func(cfg Config) any { return cfg.Drive.FolderID },
	},
	{
		key: "workflow.webhook_url", typ: kString, env: "N8N_WEBHOOK_URL",
		apply:   func(cfg *Config, v any) { cfg.Workflow.WebhookURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Workflow.WebhookURL },
	},
	{
		key: "workflow.external_url", typ: kString, env: "N8N_EXTERNAL_URL",
		apply:   func(cfg *Config, v any) { cfg.Workflow.ExternalURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Workflow.ExternalURL },
	},
	{
		key: "audit.webhook_url", typ: kString, env: "AUDIT_WEBHOOK_URL",
		apply:   func(cfg *Config, v any) { cfg.Audit.WebhookURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Audit.WebhookURL },
	},
	{
		key: "audit.token", typ: kString, env: "AUDIT_WEBHOOK_TOKEN", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Audit.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Audit.Token },
	},
	{
		key: "ops.port", typ: kInt, env: "MEETSUM_OPS_PORT",
		apply:   func(cfg *Config, v any) { cfg.Ops.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Ops.Port },
	},
	{
		key: "log.level", typ: kString, env: "LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  formatValue(s.extract(cfg)),
		})
	}
	return result
}

func formatValue(v any) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprintf("%v", v)
}
