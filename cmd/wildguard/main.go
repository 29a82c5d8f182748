package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wildguard-ai/wildguard/internal/cli"
	"github.com/wildguard-ai/wildguard/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "wildguard",
		Short: "WildGuard CLI - wilderness survival assistant",
		Long: `WildGuard CLI talks to a running WildGuard chat server.

Environment variables:
  WILDGUARD_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.SendCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.ResetCmd())
	rootCmd.AddCommand(client.StatusCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
