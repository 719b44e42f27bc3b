package main

import (
	"fmt"
	"time"

	"chatbot/internal/session"
	"chatbot/internal/store"

	"github.com/spf13/cobra"
)

var (
	replayParallel int
	replaySave     bool
)

// replayCmd runs scripted conversations
var replayCmd = &cobra.Command{
	Use:   "replay [scripts.yaml]",
	Short: "Replay scripted conversations and print the transcripts",
	Long: `Runs every script in the file on its own engine, concurrently, and
prints the transcripts as JSON. Scripts with a seed replay identically.

Script file layout:
  scripts:
    - name: wifi-lead
      seed: 42
      messages: ["hello", "our wifi keeps dropping", "how much?"]`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVarP(&replayParallel, "parallel", "p", 4, "Scripts to run at once (0 = unbounded)")
	replayCmd.Flags().BoolVar(&replaySave, "save", false, "Save replayed sessions and transcripts to the store")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	scripts, err := session.LoadScripts(args[0])
	if err != nil {
		return err
	}
	opts, err := engineOptions(appCfg)
	if err != nil {
		return err
	}
	transcripts, err := session.Replay(ctx, scripts, replayParallel, opts...)
	if err != nil {
		return err
	}

	if replaySave {
		st, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer st.Close()

		now := time.Now()
		for _, t := range transcripts {
			if _, err := store.Checkpoint(ctx, st, t.Final); err != nil {
				return fmt.Errorf("failed to save %s: %w", t.Name, err)
			}
			for i, turn := range t.Turns {
				rec := store.TurnRecord{SessionID: t.SessionID, Turn: i + 1, User: turn.User, Response: turn.Response, CreatedAt: now}
				if err := st.AppendTurn(ctx, rec); err != nil {
					return fmt.Errorf("failed to save %s transcript: %w", t.Name, err)
				}
			}
		}
	}

	return printJSON(cmd, transcripts)
}
