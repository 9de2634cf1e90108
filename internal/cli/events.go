package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/mirrorme/internal/behavior"
	"github.com/runnerr0/mirrorme/internal/control"
)

type eventsJSON struct {
	Count  int              `json:"count"`
	Total  int              `json:"total"`
	Source string           `json:"source"`
	Events []behavior.Event `json:"events"`
}

// Execute implements the go-flags Commander interface for EventsCommand.
// The running daemon is asked first; without one the database is read
// directly.
func (c *EventsCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	ctx := context.Background()
	events, err := newDaemonClient(cfg).Events(ctx)
	source := "daemon"
	if errors.Is(err, control.ErrUnavailable) {
		store, db, openErr := openStore(ctx, cfg)
		if openErr != nil {
			return openErr
		}
		defer db.Close()
		defer store.Close()
		events, err = store.LoadEvents(ctx)
		source = "database"
	}
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	return c.print(events, source)
}

func (c *EventsCommand) filter(events []behavior.Event) []behavior.Event {
	out := make([]behavior.Event, 0, len(events))
	for _, e := range events {
		if c.Type != "" && string(e.BehaviorType) != c.Type {
			continue
		}
		if c.Category != "" && string(e.Category) != c.Category {
			continue
		}
		out = append(out, e)
	}
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[len(out)-c.Limit:]
	}
	return out
}

func (c *EventsCommand) print(all []behavior.Event, source string) error {
	events := c.filter(all)

	if wantJSON(c.globals) {
		return printJSON(eventsJSON{Count: len(events), Total: len(all), Source: source, Events: events})
	}

	if len(events) == 0 {
		fmt.Println("No queued events.")
		return nil
	}
	if source != "daemon" {
		fmt.Fprintln(os.Stderr, "Note: daemon not running, reading the database directly.")
	}
	fmt.Printf("Showing %d of %d queued events\n\n", len(events), len(all))
	for _, e := range events {
		fmt.Printf("%s  %-14s %-13s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.BehaviorType, e.Category, summary(e))
	}
	return nil
}

// summary is a one-line description of what the event captured.
func summary(e behavior.Event) string {
	var parts []string
	if e.SessionDuration != nil {
		parts = append(parts, (time.Duration(*e.SessionDuration) * time.Second).String())
	}
	if e.Author != "" {
		parts = append(parts, "@"+e.Author)
	}
	if e.Channel != "" {
		parts = append(parts, e.Channel)
	}
	switch {
	case len(e.Keywords) > 0:
		parts = append(parts, strings.Join(e.Keywords, ", "))
	case e.Content != "":
		parts = append(parts, truncate(e.Content, 60))
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
