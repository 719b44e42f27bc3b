package main

import (
	"errors"
	"fmt"
	"strings"

	"chatbot/internal/store"

	"github.com/spf13/cobra"
)

// =============================================================================
// SESSION MANAGEMENT COMMANDS
// =============================================================================

// sessionsCmd manages stored sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `List, inspect, and delete sessions saved by chat, ask, and replay.

Subcommands:
  list     - List all saved sessions
  show     - Print a session's context and transcript
  delete   - Delete a session`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session's context and transcript as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore(appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.List(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No saved sessions found.")
		return nil
	}

	fmt.Fprintln(out, "Saved Sessions")
	fmt.Fprintln(out, strings.Repeat("─", 70))
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-36s  %3d turns  %-9s  %s\n", s.SessionID, s.UserTurns, s.Stage, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(out, strings.Repeat("─", 70))
	fmt.Fprintf(out, "Total: %d sessions\n", len(sessions))
	return nil
}

// sessionView is the JSON printed by sessions show.
type sessionView struct {
	Record *store.Record      `json:"record"`
	Turns  []store.TurnRecord `json:"turns"`
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	st, err := openStore(appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Load(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session %q not found", args[0])
	}
	if err != nil {
		return err
	}
	turns, err := st.Turns(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, sessionView{Record: rec, Turns: turns})
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore(appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(cmdContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}
