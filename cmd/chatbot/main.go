package main

import (
	"context"
	"fmt"
	"os"

	"chatbot/internal/articulation"
	"chatbot/internal/config"
	"chatbot/internal/logging"
	"chatbot/internal/session"
	"chatbot/internal/store"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE
	appCfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "chatbot - rule-based conversational assistant",
	Long: `chatbot answers business inquiries with a deterministic rule-based
dialogue engine: keyword intent detection, lexicon sentiment, weighted
response selection, and simulated typing delays.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		appCfg = cfg

		opts := cfg.Logging.Options()
		if verbose {
			opts.Level = "debug"
			opts.DebugMode = true
		}
		// The TUI owns the terminal; without a log dir it logs nowhere.
		if isInteractive(cmd) && opts.Dir == "" {
			logging.SetRoot(nil, opts)
			return nil
		}
		return logging.Initialize(opts)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "chatbot.yaml", "Config file (missing file = defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(chatCmd, askCmd, replayCmd, sessionsCmd, timingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isInteractive(cmd *cobra.Command) bool {
	return cmd.Name() == "chatbot" || cmd.Name() == "chat"
}

// cmdContext tolerates commands invoked directly without Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// engineOptions builds session options from the loaded config, including
// an optional knowledge override file.
func engineOptions(cfg *config.Config) ([]session.Option, error) {
	opts := []session.Option{session.WithConfig(cfg)}
	if cfg.Engine.KnowledgePath != "" {
		k, err := articulation.LoadKnowledge(cfg.Engine.KnowledgePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithKnowledge(k))
	}
	return opts, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	s, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	return s, nil
}
