// Command mirrorme captures browsing behavior locally and uploads it in
// batches to a personal ingestion endpoint.
package main

import (
	"os"

	"github.com/runnerr0/mirrorme/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// The go-flags parser already printed the error.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
