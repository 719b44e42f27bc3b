package main

import (
	"fmt"

	"chatbot/internal/types"
	"chatbot/internal/ux"

	"github.com/spf13/cobra"
)

var (
	timingSeed  uint64
	timingChunk string
)

// timingCmd shows simulated delays for a piece of text
var timingCmd = &cobra.Command{
	Use:   "timing [text]",
	Short: "Print the simulated delays a host would use for a reply",
	Long: `Shows typing, thinking, reading, and follow-up delays for the given
text using the configured timing section, plus a progressive-reveal plan.

Example:
  chatbot timing --seed 7 "Thanks for reaching out. How many users are on site?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTiming,
}

func init() {
	timingCmd.Flags().Uint64Var(&timingSeed, "seed", 0, "Random seed (0 = clock)")
	timingCmd.Flags().StringVar(&timingChunk, "chunk", string(ux.ChunkSentence), "Progressive reveal unit: sentence or paragraph")
}

func runTiming(cmd *cobra.Command, args []string) error {
	mode := ux.ChunkMode(timingChunk)
	if mode != ux.ChunkSentence && mode != ux.ChunkParagraph {
		return fmt.Errorf("invalid --chunk %q (sentence or paragraph)", timingChunk)
	}

	text := joinArgs(args)
	sim := ux.NewSimulator(ux.TimingFromConfig(appCfg), types.NewRandomSource(timingSeed))
	length := len([]rune(text))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Characters:   %d\n", length)
	fmt.Fprintf(out, "Thinking:     %v\n", sim.ThinkingDelay())
	fmt.Fprintf(out, "Typing:       %v\n", sim.TypingDelay(length))
	fmt.Fprintf(out, "Reading:      %v\n", sim.ReadingTime(length))
	fmt.Fprintf(out, "Follow-up:    %v\n", sim.FollowUpDelay())
	fmt.Fprintln(out, "Progressive:")
	for i, c := range sim.ProgressiveDelays(text, mode) {
		fmt.Fprintf(out, "  %d. +%-8v %s\n", i+1, c.Delay, c.Text)
	}
	return nil
}
