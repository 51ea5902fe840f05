// Command botguard runs the admission, retry and caching front of a
// multi-tenant sales bot behind an HTTP API.
package main

import (
	"os"
)

// Set by the linker: -ldflags "-X main.version=v1.2.3 -X main.commit=abc123".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
