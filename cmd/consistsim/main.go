// Command consistsim drives a consist from scenario files or from host calls
// read on stdin.
package main

import (
	"fmt"
	"os"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
