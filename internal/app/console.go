package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// console prints session events for the person at the terminal.
type console struct {
	mu      sync.Mutex
	w       io.Writer
	speaker string
}

func newConsole(w io.Writer) *console { return &console{w: w} }

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLine()
	fmt.Fprintf(c.w, format+"\n", args...)
}

// failure prints message, with a retry hint when err says a retry can help.
func (c *console) failure(message string, err error) {
	var e *types.Error
	if errors.As(err, &e) && e.Retryable() {
		c.printf("error: %s (type t to try again)", message)
		return
	}
	c.printf("error: %s", message)
}

// fragment prints streamed speech, starting a new line when the speaker
// changes.
func (c *console) fragment(speaker, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speaker != speaker {
		c.endLine()
		fmt.Fprintf(c.w, "%s: ", speaker)
		c.speaker = speaker
	}
	fmt.Fprint(c.w, text)
}

// endLine terminates an open speech line. Caller holds c.mu.
func (c *console) endLine() {
	if c.speaker != "" {
		fmt.Fprintln(c.w)
		c.speaker = ""
	}
}

const help = `commands:
  t, toggle   start or stop the interview
  s, status   show status and counters
  q, quit     stop and exit`

// commandLoop reads commands until quit, EOF or cancellation. Without an HTTP
// server EOF quits; with one the host keeps serving until ctx is done.
func (a *App) commandLoop(ctx context.Context) error {
	if a.input == nil {
		<-ctx.Done()
		return nil
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.input)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("console input failed", "err", err)
		}
	}()

	a.console.printf("%s", help)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if a.cfg.Server.ListenAddr == "" {
					return errQuit
				}
				<-ctx.Done()
				return nil
			}
			if err := a.command(ctx, strings.TrimSpace(line)); err != nil {
				return err
			}
		}
	}
}

func (a *App) command(ctx context.Context, cmd string) error {
	switch strings.ToLower(cmd) {
	case "t", "toggle":
		if err := a.session.Toggle(ctx); err != nil {
			slog.Debug("toggle failed", "err", err)
		}
	case "s", "status":
		a.printStatus()
	case "q", "quit", "exit":
		return errQuit
	case "":
	default:
		a.console.printf("unknown command %q\n%s", cmd, help)
	}
	return nil
}

func (a *App) printStatus() {
	s := a.session
	st := s.Stats()
	line := fmt.Sprintf("status: %s", s.Status())
	if err := s.ConnectionError(); err != nil {
		line += fmt.Sprintf(" (last error: %v)", err)
	}
	if s.IsStreaming() {
		line += fmt.Sprintf(" | session %s | elapsed %s | audio %d | images %d | gated %d | dropped %d",
			st.SessionID, st.Elapsed.Round(time.Second),
			st.AudioChunksSent, st.ImageChunksSent, st.FramesGated, st.ChunksDropped)
	}
	a.console.printf("%s", line)
}
