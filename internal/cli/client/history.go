package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the conversation history",
		Long:  "Fetch and print every message in the current conversation",
		RunE:  runHistory,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	messages, err := listMessages(api, 50)
	if err != nil {
		return err
	}

	outputFormat, _ := cmd.Flags().GetString("output")
	if outputFormat == "json" {
		out, err := json.MarshalIndent(messages, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	for _, m := range messages {
		printMessage(m)
	}
	return nil
}
