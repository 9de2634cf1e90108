package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/mirrorme/internal/control"
)

// Execute implements the go-flags Commander interface for AuthCommand.
func (c *AuthCommand) Execute(args []string) error {
	token, err := c.resolveToken()
	if err != nil {
		return err
	}
	d, err := connectDaemon(c.globals)
	if err != nil {
		return err
	}
	return c.executeWith(d, token)
}

// resolveToken returns nil for --logout and the token otherwise.
func (c *AuthCommand) resolveToken() (*string, error) {
	switch {
	case c.Logout && c.Token != "":
		return nil, fmt.Errorf("--token and --logout are mutually exclusive")
	case c.Logout:
		return nil, nil
	case c.Token == "":
		return nil, fmt.Errorf("one of --token or --logout is required")
	case c.Token != "-":
		return &c.Token, nil
	}

	in := c.in
	if in == nil {
		in = os.Stdin
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return nil, fmt.Errorf("empty token on stdin")
	}
	return &token, nil
}

func (c *AuthCommand) executeWith(d daemon, token *string) error {
	ctx, cancel := context.WithTimeout(context.Background(), daemonTimeout)
	defer cancel()

	if _, err := d.Do(ctx, control.Request{Action: control.ActionSetAuthToken, Token: token}); err != nil {
		return fmt.Errorf("set auth token: %w", err)
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]bool{"authenticated": token != nil})
	}
	if token == nil {
		fmt.Println("Logged out. Sync disabled.")
	} else {
		fmt.Println("Token stored. Sync enabled.")
	}
	return nil
}
