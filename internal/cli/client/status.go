package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func StatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server and conversation status",
		RunE:  runStatus,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Get("/health"); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	state, err := getState(api)
	if err != nil {
		return err
	}

	outputFormat, _ := cmd.Flags().GetString("output")
	if outputFormat == "json" {
		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Server: ok")
	fmt.Printf("Loading: %t\n", state.Loading)
	fmt.Printf("Typing: %t\n", state.Typing)
	fmt.Printf("Messages: %d\n", state.MessageCount)
	return nil
}
