package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/events"
	"github.com/go-go-golems/webchat-embed/pkg/session"
	"github.com/go-go-golems/webchat-embed/pkg/transcript"
	"github.com/go-go-golems/webchat-embed/pkg/widget"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// linePrinter writes every message of the transcript exactly once, and each
// distinct session error once.
type linePrinter struct {
	mu       sync.Mutex
	out      io.Writer
	botName  string
	snapshot func() widget.Snapshot
	printed  int
	lastErr  string
}

// sync prints what was appended since the last call. The snapshot is taken
// under the printer lock so callers on different goroutines never interleave.
func (p *linePrinter) sync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snapshot()
	if len(s.Messages) < p.printed {
		if len(s.Messages) > 0 {
			return
		}
		// the transcript was dropped
		p.printed = 0
	}
	for _, m := range s.Messages[p.printed:] {
		_, _ = fmt.Fprintln(p.out, transcript.Plain(m, p.botName))
	}
	p.printed = len(s.Messages)
	if s.SessionError != "" && s.SessionError != p.lastErr {
		_, _ = fmt.Fprintln(p.out, "! "+s.SessionError)
		p.lastErr = s.SessionError
	}
}

// runHeadless opens the widget and feeds it one message per input line, once
// the replies to the previous line are shown. ":q" quits; a bare number picks
// that quick reply.
func runHeadless(ctx context.Context, a *app, in io.Reader, out io.Writer, drainWait time.Duration) error {
	w := a.widget
	printer := &linePrinter{out: out, botName: w.Config().Name, snapshot: w.Snapshot}

	consumer := events.NewConsumer(a.topic, a.bus.Subscriber, func(events.Event, events.Cursor) {
		printer.sync()
	})
	if err := consumer.Start(ctx); err != nil {
		return errors.Wrap(err, "subscribe to widget events")
	}
	defer func() {
		consumer.Stop()
		<-consumer.Done()
	}()

	w.Mount()
	if err := w.Open(ctx); err != nil {
		log.Debug().Err(err).Msg("initial session fetch failed")
	}
	printer.sync()

	lines := make(chan string)
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
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("reading input")
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			line = strings.TrimSpace(line)
			if line == ":q" {
				break loop
			}
			if line == "" {
				continue
			}
			// replies to the previous line come first
			waitIdle(ctx, w, drainWait)
			text := pickSuggestion(w.Snapshot(), line)
			if err := sendLine(ctx, w, text); err != nil {
				return err
			}
			printer.sync()
		}
	}

	waitIdle(ctx, w, drainWait)
	printer.sync()
	return nil
}

// pickSuggestion maps "2" to the second quick reply when one is offered.
func pickSuggestion(s widget.Snapshot, line string) string {
	n, err := strconv.Atoi(line)
	if err != nil {
		return line
	}
	bar := s.View().Suggestions
	if bar == nil || n < 1 || n > len(bar.Suggestions) {
		return line
	}
	return bar.Suggestions[n-1]
}

func sendLine(ctx context.Context, w *widget.Widget, text string) error {
	err := w.Send(ctx, text)
	if !errors.Is(err, session.ErrNotReady) {
		return err
	}
	// one manual retry per line, the way reopening the panel would
	if err := w.EnsureSession(ctx); err != nil {
		return nil
	}
	return w.Send(ctx, text)
}

func waitIdle(ctx context.Context, w *widget.Widget, limit time.Duration) {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for w.Snapshot().Typing {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Warn().Dur("waited", limit).Msg("replies still pending")
			return
		case <-tick.C:
		}
	}
}
