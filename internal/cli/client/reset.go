package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

func ResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the conversation",
		Long:  "Clear the conversation history and start a fresh inference session",
		RunE:  runReset,
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Post("/chat/reset", nil); err != nil {
		return err
	}

	fmt.Println("Conversation reset.")
	return nil
}
