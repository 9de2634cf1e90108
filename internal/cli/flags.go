package cli

import (
	"database/sql"
	"io"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// CollectCommand runs the daemon: coordinator, control endpoint and browser host.
type CollectCommand struct {
	NoBrowser  bool   `long:"no-browser" description:"Serve the control endpoint only; do not attach to a browser"`
	ControlURL string `long:"control-url" description:"DevTools URL of a running browser (overrides config)"`
	Port       int    `long:"port" description:"Override daemon port"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows buffer statistics and daemon state.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// EventsCommand lists queued events.
type EventsCommand struct {
	Limit    int    `long:"limit" description:"Maximum events to print (0 for all)" default:"20"`
	Type     string `long:"type" description:"Only events of this behavior type"`
	Category string `long:"category" description:"Only events in this category"`

	globals *GlobalFlags
	version string
}

// ClearCommand deletes every queued event with a safety confirmation.
type ClearCommand struct {
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB   // injectable for testing; nil means open the configured DB
	in      io.Reader // confirmation input; nil means os.Stdin
}

// TrackingCommand turns capture on or off.
type TrackingCommand struct {
	Args struct {
		State string `positional-arg-name:"on|off"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// AuthCommand stores or removes the ingestion token.
type AuthCommand struct {
	Token  string `long:"token" description:"Ingestion token; \"-\" reads it from stdin"`
	Logout bool   `long:"logout" description:"Forget the stored token and stop syncing"`

	globals *GlobalFlags
	version string
	in      io.Reader
}

// SyncCommand triggers an upload of the queue.
type SyncCommand struct {
	globals *GlobalFlags
	version string
}

// ClassifyCommand runs the local text analysis on a snippet or URL.
type ClassifyCommand struct {
	URL string `long:"url" description:"Classify a URL: category and keywords"`

	globals *GlobalFlags
	version string
}
