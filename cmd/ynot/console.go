package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"ynot/internal/domain"
)

type toggler interface {
	Toggle(ctx context.Context) domain.Status
}

type submitter interface {
	Submit(ctx context.Context, text string) domain.DispatchOutcome
}

// runConsole reads commands from in until /quit or cancellation. Once in is
// exhausted it keeps waiting, so voice listening outlives a closed stdin.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, mic toggler, commands submitter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return err
					}
				case <-ctx.Done():
					return nil
				}
				<-ctx.Done()
				return nil
			}
			switch text := strings.TrimSpace(line); text {
			case "":
			case "/quit":
				return nil
			case "/mic":
				fmt.Fprintln(out, statusLine(mic.Toggle(ctx)))
			default:
				commands.Submit(ctx, text)
			}
		}
	}
}

func statusLine(status domain.Status) string {
	switch {
	case status.Unsupported:
		return "[mic unavailable] " + status.Message
	case status.Listening:
		return "[mic on] " + status.Message
	case status.Message != "":
		return "[mic off] " + status.Message
	default:
		return "[mic off]"
	}
}

func formatOutcome(outcome domain.DispatchOutcome) string {
	line := fmt.Sprintf("[%s/%s] %s", outcome.Intent, outcome.Status, outcome.Utterance)
	if outcome.Parameter != "" {
		line += " (" + outcome.Parameter + ")"
	}
	return line
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
