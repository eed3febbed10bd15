package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/kalambet/meetsum/internal/bot"
	"github.com/kalambet/meetsum/internal/catalog"
	"github.com/kalambet/meetsum/internal/config"
	"github.com/kalambet/meetsum/internal/workflow"
)

const checkTimeout = 15 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to Drive and the workflow engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		printStep("checking Google Drive access...")
		files := catalog.New(catalog.Config{
			Credentials: cfg.Drive.Credentials,
			FolderID:    cfg.Drive.FolderID,
		})
		defer files.Close()
		if err := files.Health(ctx); err != nil {
			printError("Drive: %v", err)
		} else {
			printSuccess("Drive reachable (credentials via %s)", cfg.Drive.CredentialsSource)
		}

		printStep("checking workflow engine...")
		trigger := workflow.New(cfg.Workflow.WebhookURL, cfg.Workflow.ExternalURL, nil)
		if err := trigger.Probe(ctx); err != nil {
			printError("workflow engine: %v", err)
		} else {
			printSuccess("workflow engine reachable")
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the /summarize command with Discord",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		session, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("creating discord session: %w", err)
		}
		me, err := session.User("@me")
		if err != nil {
			return fmt.Errorf("looking up bot identity: %w", err)
		}
		if err := bot.RegisterCommands(session, me.ID, cfg.Discord.GuildID); err != nil {
			return err
		}
		printSuccess("slash command registered for guild %s", cfg.Discord.GuildID)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved non-secret configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			printStatus(info.Key, "%s (%s)", info.Value, info.EnvVar)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the meetsum version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "meetsum %s\n", version)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
