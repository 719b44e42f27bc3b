package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatbot/cmd/chatbot/chat"
	"chatbot/cmd/chatbot/ui"
	"chatbot/internal/logging"
	"chatbot/internal/session"
	"chatbot/internal/store"
	"chatbot/internal/ux"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var resumeID string

// chatCmd starts the interactive interface
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	Long: `Opens a full-screen chat. Replies appear after a simulated typing
delay and follow-up questions arrive as separate messages.

Every turn is saved to the configured store; use --resume to continue a
saved session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&resumeID, "resume", "", "Session ID to resume")
	rootCmd.Flags().StringVar(&resumeID, "resume", "", "Session ID to resume")
}

func runChat(cmd *cobra.Command, args []string) error {
	st, err := openStore(appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := engineOptions(appCfg)
	if err != nil {
		return err
	}

	if resumeID != "" {
		rec, err := st.Load(cmdContext(cmd), resumeID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %q not found (see 'chatbot sessions list')", resumeID)
		}
		if err != nil {
			return err
		}
		opts = append(opts, session.WithContext(rec.Context))
	}

	model := chat.New(chat.Config{
		Engine:    session.New(opts...),
		Simulator: ux.NewSimulator(ux.TimingFromConfig(appCfg), nil),
		Store:     st,
		Styles:    ui.DefaultStyles(),
	})

	logging.CLI("Starting chat (store=%s)", appCfg.Store.Driver)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmdContext(cmd)))
	final, runErr := p.Run()
	if fm, ok := final.(chat.Model); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fm.Save(ctx); err != nil {
			logging.Get(logging.CategoryCLI).Error("final save failed: %v", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return runErr
}
