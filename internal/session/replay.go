package session

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// =============================================================================
// SCRIPTED REPLAY
// =============================================================================
// Replay drives scripted conversations through independent engines, which
// makes transcripts reproducible for a given seed and clock.

// Script is one scripted conversation.
type Script struct {
	Name     string   `yaml:"name"`
	Seed     uint64   `yaml:"seed"`
	Messages []string `yaml:"messages"`
}

// ScriptFile is the on-disk layout of a replay file.
type ScriptFile struct {
	Scripts []Script `yaml:"scripts"`
}

// Turn pairs a user message with the engine's response.
type Turn struct {
	User     string            `json:"user"`
	Response types.BotResponse `json:"response"`
}

// Transcript is the replayed result of one script.
type Transcript struct {
	Name      string                    `json:"name"`
	SessionID string                    `json:"session_id"`
	Turns     []Turn                    `json:"turns"`
	Final     types.ConversationContext `json:"final_context"`
}

// LoadScripts reads a replay file.
func LoadScripts(path string) ([]Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scripts: %w", err)
	}
	var f ScriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scripts %s: %w", path, err)
	}
	for i, s := range f.Scripts {
		if s.Name == "" {
			f.Scripts[i].Name = fmt.Sprintf("script-%d", i+1)
		}
	}
	return f.Scripts, nil
}

// Replay runs each script on its own engine, at most parallel at a time
// (parallel <= 0 means unbounded). Scripts with a non-zero seed get a seeded
// random source; opts apply to every engine and must not carry a shared
// random source, since engines run concurrently. Transcripts keep script order.
func Replay(ctx context.Context, scripts []Script, parallel int, opts ...Option) ([]Transcript, error) {
	timer := logging.StartTimer(logging.CategorySession, "Replay")
	defer timer.Stop()

	out := make([]Transcript, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	for i, script := range scripts {
		g.Go(func() error {
			engineOpts := opts
			if script.Seed != 0 {
				engineOpts = append(append([]Option{}, opts...), WithSeed(script.Seed))
			}
			engine := New(engineOpts...)

			t := Transcript{Name: script.Name, SessionID: engine.SessionID(), Turns: make([]Turn, 0, len(script.Messages))}
			for _, msg := range script.Messages {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("replay %s: %w", script.Name, err)
				}
				t.Turns = append(t.Turns, Turn{User: msg, Response: engine.ProcessMessage(msg)})
			}
			t.Final = engine.Context()
			out[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	logging.Session("Replayed %d scripts", len(scripts))
	return out, nil
}
