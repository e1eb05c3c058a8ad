// Command gatekeeper is the release-gate decision engine's entry point:
// a single binary wrapping the G0-G4 supervisor, the run-directory
// garbage collector, the migration comparator, the state-machine
// replayer, and the chaos harness behind one cobra command tree.
package main

import (
	"os"

	"github.com/marcohefti/releasegate/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
