package main

import (
	"os"

	"ytdle/internal/cli"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
