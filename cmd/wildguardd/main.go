package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wildguard-ai/wildguard/internal/cli"
	"github.com/wildguard-ai/wildguard/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wildguardd",
		Short: "WildGuard daemon and admin CLI",
		Long:  "WildGuard daemon for running the chat server and managing the knowledge base",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.KBCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
