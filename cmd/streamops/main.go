// Command streamops is the primary entrypoint: watcher, dispatcher, rule
// engine, guardrail sampler, and API server, all wired in internal/app.
package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/streamops-go/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
