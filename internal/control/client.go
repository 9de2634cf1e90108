package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/runnerr0/mirrorme/internal/background"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

var (
	// ErrUnavailable is returned when no daemon answers at the base URL.
	ErrUnavailable = errors.New("daemon not reachable")
	// ErrUnauthorized is returned when the daemon rejects the control token.
	ErrUnauthorized = errors.New("daemon rejected the control token")
)

// Client talks to a running daemon.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client presenting token in TokenHeader.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Do posts req and returns the daemon's reply. A reply with Success unset is
// returned as an error.
func (c *Client) Do(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+MessagesPath, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var reply Reply
	if err := c.roundTrip(httpReq, &reply); err != nil {
		return Reply{}, err
	}
	if !reply.Success {
		return reply, fmt.Errorf("%s: %s", req.Action, reply.Error)
	}
	return reply, nil
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+StatusPath, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build request: %w", err)
	}
	var st Status
	if err := c.roundTrip(httpReq, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Events returns the queued events.
func (c *Client) Events(ctx context.Context) ([]behavior.Event, error) {
	reply, err := c.Do(ctx, Request{Action: ActionGetBehaviorData})
	if err != nil {
		return nil, err
	}
	events := []behavior.Event{}
	if len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	}
	return events, nil
}

// State returns the coordinator state summary.
func (c *Client) State(ctx context.Context) (background.StateView, error) {
	reply, err := c.Do(ctx, Request{Action: ActionGetState})
	if err != nil {
		return background.StateView{}, err
	}
	var view background.StateView
	if err := json.Unmarshal(reply.Data, &view); err != nil {
		return background.StateView{}, fmt.Errorf("decode state: %w", err)
	}
	return view, nil
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	req.Header.Set(TokenHeader, c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrUnavailable, c.base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("daemon returned %d: %w", resp.StatusCode, err)
	}
	return nil
}
