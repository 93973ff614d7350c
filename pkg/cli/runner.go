package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/input"
)

// RuntimeError wraps runtime errors to distinguish them from usage errors
type RuntimeError struct {
	Err error
}

func (e RuntimeError) Error() string {
	return e.Err.Error()
}

func (e RuntimeError) Unwrap() error {
	return e.Err
}

// Conversation is what the chat loop talks to.
type Conversation interface {
	Ask(ctx context.Context, question string) (*agent.Result, error)
	// Reset clears the document pool and the conversation memory.
	Reset(ctx context.Context) error
	// NewSession starts a new stored session and clears the memory.
	NewSession(ctx context.Context) error
}

// Config holds configuration for running the assistant in CLI mode
type Config struct {
	AppName string
	Library string
	// HideTrace suppresses the reasoning steps, which are otherwise printed
	// after each answer unless they were already streamed.
	HideTrace bool
	Streamed  bool
	// History, when set, records every question and serves /history and !N.
	History History
}

// History is the store of previously asked questions.
type History interface {
	Add(question string) error
	Recent(n int) []string
	Get(i int) (string, bool)
	Len() int
}

const historyShown = 20

// Ask runs a single question and prints its outcome.
func Ask(ctx context.Context, out *Printer, cfg Config, conv Conversation, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("question is empty")
	}

	res, err := conv.Ask(ctx, question)
	if res != nil && !cfg.HideTrace && !cfg.Streamed {
		out.PrintTrace(res.Trace)
	}
	if err != nil {
		if res == nil {
			out.PrintError(err)
		} else {
			out.PrintResult(res)
		}
		// Wrap runtime errors to prevent duplicate error messages and usage display
		return RuntimeError{Err: err}
	}
	out.PrintResult(res)
	return nil
}

// Run reads questions from rd until /exit or end of input. A failed question
// is reported and the loop goes on; only cancellation stops it early.
func Run(ctx context.Context, out *Printer, cfg Config, conv Conversation, rd io.Reader) error {
	reader := bufio.NewReader(rd)

	out.PrintWelcomeMessage(cfg.AppName, cfg.Library)
	first := true
	for {
		if !first {
			out.Println()
		}
		first = false
		out.Print("> ")

		line, err := input.ReadLine(ctx, reader)
		if errors.Is(err, io.EOF) {
			out.Println()
			return nil
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "!") && cfg.History != nil {
			recalled, err := recall(cfg.History, text)
			if err != nil {
				out.PrintError(err)
				continue
			}
			text = recalled
			out.Println(text)
		}

		handled, exit, err := runUserCommand(ctx, out, cfg, conv, text)
		if err != nil {
			out.PrintError(err)
			continue
		}
		if exit {
			return nil
		}
		if handled {
			continue
		}

		if cfg.History != nil {
			if err := cfg.History.Add(text); err != nil {
				slog.Warn("Failed to save question history", "error", err)
			}
		}
		if err := Ask(ctx, out, cfg, conv, text); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// runUserCommand handles the built-in slash commands.
func runUserCommand(ctx context.Context, out *Printer, cfg Config, conv Conversation, text string) (handled, exit bool, err error) {
	switch text {
	case "/exit", "/quit":
		return true, true, nil
	case "/reset":
		if err := conv.Reset(ctx); err != nil {
			return true, false, fmt.Errorf("resetting context: %w", err)
		}
		out.Println("Context cleared.")
		return true, false, nil
	case "/new":
		if err := conv.NewSession(ctx); err != nil {
			return true, false, fmt.Errorf("starting session: %w", err)
		}
		out.Println("Started a new session.")
		return true, false, nil
	case "/history":
		if cfg.History == nil || cfg.History.Len() == 0 {
			out.Println("No questions yet.")
			return true, false, nil
		}
		recent := cfg.History.Recent(historyShown)
		first := cfg.History.Len() - len(recent) + 1
		for i, q := range recent {
			out.Printf("%4d  %s\n", first+i, q)
		}
		return true, false, nil
	}
	if strings.HasPrefix(text, "/") {
		return true, false, fmt.Errorf("unknown command %s", text)
	}
	return false, false, nil
}

// recall resolves "!N" to the N-th stored question and "!!" to the last one.
func recall(h History, text string) (string, error) {
	ref := strings.TrimPrefix(text, "!")
	n := h.Len()
	if ref != "!" {
		var err error
		if n, err = strconv.Atoi(ref); err != nil {
			return "", fmt.Errorf("invalid history reference %s", text)
		}
	}
	q, ok := h.Get(n)
	if !ok {
		return "", fmt.Errorf("no question %s in history", text)
	}
	return q, nil
}
