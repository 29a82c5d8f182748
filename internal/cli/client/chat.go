package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Message mirrors the server's chat message payload.
type Message struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// ChatState mirrors the server's conversation state payload.
type ChatState struct {
	Loading      bool `json:"loading"`
	Typing       bool `json:"typing"`
	MessageCount int  `json:"message_count"`
}

type messagePage struct {
	Items   []Message `json:"items"`
	Cursor  string    `json:"cursor,omitempty"`
	HasMore bool      `json:"has_more"`
}

type sendResult struct {
	Typing  bool     `json:"typing"`
	Message *Message `json:"message,omitempty"`
}

func getState(api *APIClient) (*ChatState, error) {
	resp, err := api.Get("/chat/state")
	if err != nil {
		return nil, err
	}
	var state ChatState
	if err := json.Unmarshal(resp.Data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	return &state, nil
}

// listMessages fetches the full history, following pagination cursors.
func listMessages(api *APIClient, limit int) ([]Message, error) {
	var all []Message
	cursor := ""
	for {
		path := "/chat/messages?limit=" + strconv.Itoa(limit)
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}

		resp, err := api.Get(path)
		if err != nil {
			return nil, err
		}

		var page messagePage
		if err := json.Unmarshal(resp.Data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse messages: %w", err)
		}

		all = append(all, page.Items...)
		if !page.HasMore {
			return all, nil
		}
		cursor = page.Cursor
	}
}

func sendMessage(api *APIClient, text string) (*sendResult, error) {
	resp, err := api.Post("/chat/messages", map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	var result sendResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse send result: %w", err)
	}
	return &result, nil
}

// waitForReply polls until the assistant is done typing, then returns every
// message appended after afterID.
func waitForReply(api *APIClient, afterID int, timeout time.Duration) ([]Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		state, err := getState(api)
		if err != nil {
			return nil, err
		}
		if !state.Typing {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for a reply")
		}
		time.Sleep(500 * time.Millisecond)
	}

	messages, err := listMessages(api, 50)
	if err != nil {
		return nil, err
	}

	var fresh []Message
	for _, m := range messages {
		if m.ID > afterID {
			fresh = append(fresh, m)
		}
	}
	return fresh, nil
}

func printMessage(m Message) {
	prefix := "WildGuard"
	if m.Author == "user" {
		prefix = "You"
	}
	fmt.Printf("%s: %s\n", prefix, m.Text)
}

func ChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Open an interactive chat with the WildGuard assistant. Type 'exit' to quit.",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	// Show the history so reconnecting picks up where the conversation left off.
	messages, err := listMessages(api, 50)
	if err != nil {
		return err
	}
	for _, m := range messages {
		printMessage(m)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := sendMessage(api, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		afterID := 0
		if result.Message != nil {
			afterID = result.Message.ID
		}

		replies, err := waitForReply(api, afterID, 2*time.Minute)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		for _, m := range replies {
			if m.Author == "assistant" {
				printMessage(m)
			}
		}
	}

	return scanner.Err()
}
