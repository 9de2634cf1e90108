package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Collect  *CollectCommand
	Status   *StatusCommand
	Events   *EventsCommand
	Clear    *ClearCommand
	Tracking *TrackingCommand
	Auth     *AuthCommand
	Sync     *SyncCommand
	Classify *ClassifyCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "mirrorme"
	parser.LongDescription = "Local browsing-behavior capture with batched upload to a personal ingestion endpoint."

	cmds := &commands{
		Collect:  &CollectCommand{globals: &globals, version: version},
		Status:   &StatusCommand{globals: &globals, version: version},
		Events:   &EventsCommand{globals: &globals, version: version},
		Clear:    &ClearCommand{globals: &globals, version: version},
		Tracking: &TrackingCommand{globals: &globals, version: version},
		Auth:     &AuthCommand{globals: &globals, version: version},
		Sync:     &SyncCommand{globals: &globals, version: version},
		Classify: &ClassifyCommand{globals: &globals, version: version},
	}

	parser.AddCommand("collect", "Start the capture daemon", "Start the capture daemon: control endpoint, browser attachment and periodic sync.", cmds.Collect)
	parser.AddCommand("status", "Show buffer statistics", "Show queued-event statistics, last sync and daemon state.", cmds.Status)
	parser.AddCommand("events", "List queued events", "List events waiting for upload, newest last.", cmds.Events)
	parser.AddCommand("clear", "Delete all queued events", "Delete every queued event. Destructive operation with safety prompt.", cmds.Clear)
	parser.AddCommand("tracking", "Turn capture on or off", "Turn behavior capture on or off in the running daemon.", cmds.Tracking)
	parser.AddCommand("auth", "Set or remove the ingestion token", "Store the ingestion token (enables sync) or log out.", cmds.Auth)
	parser.AddCommand("sync", "Upload queued events now", "Ask the running daemon to upload the queue immediately.", cmds.Sync)
	parser.AddCommand("classify", "Run local text analysis", "Print sentiment, political tilt and keywords for text, or category and keywords for a URL.", cmds.Classify)

	return parser, &globals, cmds
}

// Run is the main entry point for the mirrorme CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("mirrorme %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
