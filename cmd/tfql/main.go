// Command tfql parses, validates and compiles typed filter conditions and
// runs them against a transcript store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tfql/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.Reported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
