// Command hdlenv bootstraps and maintains Hdl21 development workspaces.
// All behavior lives in internal/cli; this file only carries the
// build-time identification that release builds inject via ldflags.
package main

import "github.com/fennec-eda/hdlenv/internal/cli"

// Overwritten by -ldflags "-X main.version=... -X main.commit=... -X main.date=..."
// on release builds. The defaults identify a local development build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
