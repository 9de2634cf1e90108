package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/mirrorme/internal/control"
)

// Execute implements the go-flags Commander interface for TrackingCommand.
func (c *TrackingCommand) Execute(args []string) error {
	enabled, err := parseOnOff(c.Args.State)
	if err != nil {
		return err
	}
	d, err := connectDaemon(c.globals)
	if err != nil {
		return err
	}
	return c.executeWith(d, enabled)
}

func (c *TrackingCommand) executeWith(d daemon, enabled bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), daemonTimeout)
	defer cancel()

	if _, err := d.Do(ctx, control.Request{Action: control.ActionToggleTracking, Enabled: &enabled}); err != nil {
		return fmt.Errorf("toggle tracking: %w", err)
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]bool{"tracking_enabled": enabled})
	}
	fmt.Printf("Tracking %s.\n", onOff(enabled))
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
