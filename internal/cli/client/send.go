package client

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func SendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Long:  "Send a single message to the assistant, wait for the answer, and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSend,
	}

	cmd.Flags().Duration("timeout", 2*time.Minute, "How long to wait for the reply")

	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	result, err := sendMessage(api, text)
	if err != nil {
		return err
	}

	afterID := 0
	if result.Message != nil {
		afterID = result.Message.ID
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	replies, err := waitForReply(api, afterID, timeout)
	if err != nil {
		return err
	}

	answered := false
	for _, m := range replies {
		if m.Author == "assistant" {
			fmt.Println(m.Text)
			answered = true
		}
	}
	if !answered {
		fmt.Fprintln(os.Stderr, "no reply received")
	}
	return nil
}
