// Command streamopsd is an alias entrypoint kept for parity with the
// prior daemon layout; it mounts the same command tree as streamops.
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
