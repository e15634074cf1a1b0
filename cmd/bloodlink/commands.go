package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rkarthik/bloodlink/internal/config"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant a question",
	Long: `Ask the assistant a question about blood orders, usage or billing.

Examples:
  bloodlink chat --user u042 "how many orders were approved this month?"
  bloodlink chat --user u042 --session 2025-06-20 "and last month?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		company, _ := cmd.Flags().GetString("company")
		session, _ := cmd.Flags().GetString("session")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"user_id": user,
			"message": strings.Join(args, " "),
		}
		if company != "" {
			req["company_id"] = company
		}
		if session != "" {
			req["session_id"] = session
		}

		resp, err := client.post(cmd.Context(), "/ai_assistant/chat", req)
		if err != nil {
			return err
		}

		var result struct {
			SessionID      string `json:"session_id"`
			Response       string `json:"response"`
			ConversationID string `json:"conversation_id"`
			CreatedAt      string `json:"created_at"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		printStatus("Session", "%s", result.SessionID)
		printStatus("Conversation", "%s", result.ConversationID)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("user", "", "acting user id (required)")
	chatCmd.Flags().String("company", "", "acting user's company id")
	chatCmd.Flags().String("session", "", "session id (default: today's session)")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai_assistant/get_session_list", map[string]any{
			"user_id": user,
		})
		if err != nil {
			return err
		}

		var result struct {
			Sessions []string `json:"sessions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		for _, s := range result.Sessions {
			fmt.Println(s)
		}
		return nil
	},
}

func init() {
	sessionsCmd.Flags().String("user", "", "acting user id (required)")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show messages of a chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		session, _ := cmd.Flags().GetString("session")
		if user == "" || session == "" {
			return fmt.Errorf("--user and --session are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai_assistant/get_session_messages", map[string]any{
			"user_id":    user,
			"session_id": session,
		})
		if err != nil {
			return err
		}

		var result struct {
			Messages []struct {
				Role           string `json:"role"`
				Content        string `json:"content"`
				ConversationID string `json:"conversation_id"`
				CreatedAt      string `json:"created_at"`
				Feedback       *bool  `json:"feedback"`
			} `json:"messages"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Messages) == 0 {
			fmt.Println("No messages found.")
			return nil
		}
		for _, m := range result.Messages {
			label := m.Role
			if m.Role == "assistant" {
				label = colorize(colorCyan, m.Role)
			} else {
				label = colorize(colorBold, label)
			}
			fmt.Printf("%s  %s  %s\n", m.CreatedAt, label, truncate(m.Content, 200))
			if m.Feedback != nil {
				mark := "disliked"
				if *m.Feedback {
					mark = "liked"
				}
				fmt.Printf("          (%s, conversation %s)\n", mark, m.ConversationID)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("user", "", "acting user id (required)")
	historyCmd.Flags().String("session", "", "session id (required)")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <conversation-id> <0|1>",
	Short: "Rate an assistant reply",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		session, _ := cmd.Flags().GetString("session")
		if user == "" || session == "" {
			return fmt.Errorf("--user and --session are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai_assistant/feedback", map[string]any{
			"user_id":         user,
			"session_id":      session,
			"conversation_id": args[0],
			"feedback":        args[1],
		})
		if err != nil {
			return err
		}

		var result struct {
			Response     string `json:"response"`
			UpdatedCount int64  `json:"updated_count"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s (%d messages updated)", result.Response, result.UpdatedCount)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().String("user", "", "acting user id (required)")
	feedbackCmd.Flags().String("session", "", "session id (required)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
