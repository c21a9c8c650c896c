// Command casboard serves and prints CAS dashboard pages: fully drained
// collections with every reference rendered as a human-readable label.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
