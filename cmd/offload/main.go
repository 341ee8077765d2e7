package main

import "github.com/offloadhq/offload/internal/cmd"

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "HEAD"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
