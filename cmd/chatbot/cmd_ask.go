package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatbot/internal/session"
	"chatbot/internal/store"
	"chatbot/internal/types"

	"github.com/spf13/cobra"
)

var askSession string

// askCmd processes a single message
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the response as JSON",
	Long: `Processes one message against a stored session (or a new one) and
prints the response, including follow-ups and UI hints.

Example:
  chatbot ask "do you install wifi in warehouses?"
  chatbot ask --session 6f1c... "how much would that cost"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session ID to continue (default: new session)")
}

// askResult is the JSON printed by ask.
type askResult struct {
	SessionID    string            `json:"session_id"`
	Turn         int               `json:"turn"`
	Response     types.BotResponse `json:"response"`
	QuickReplies []string          `json:"quick_replies,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	message := joinArgs(args)

	st, err := openStore(appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := engineOptions(appCfg)
	if err != nil {
		return err
	}
	if askSession != "" {
		rec, err := st.Load(ctx, askSession)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %q not found", askSession)
		}
		if err != nil {
			return err
		}
		opts = append(opts, session.WithContext(rec.Context))
	}

	engine := session.New(opts...)
	resp := engine.ProcessMessage(message)
	snapshot := engine.Context()

	if _, err := store.Checkpoint(ctx, st, snapshot); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	turn := store.TurnRecord{
		SessionID: snapshot.SessionID,
		Turn:      snapshot.UserTurns,
		User:      message,
		Response:  resp,
		CreatedAt: time.Now(),
	}
	if err := st.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	result := askResult{SessionID: snapshot.SessionID, Turn: snapshot.UserTurns, Response: resp}
	if resp.ShouldShowQuickReplies {
		result.QuickReplies = engine.QuickReplies()
	}
	return printJSON(cmd, result)
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
