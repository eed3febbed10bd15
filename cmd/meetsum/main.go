package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "meetsum",
	Short: "Discord bot that turns meeting recordings into channel summaries",
	Long: `meetsum connects a Discord server to a summarization workflow:
users pick a meeting recording from a shared Drive folder and the bot
relays the generated summary back to the channel.

Run with no arguments to start the bot in the foreground.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
