// Command flowquery is the FlowQuery CLI: run, lex, and parse pipelines from
// the command line (spec.md §1.4, a thin wrapper over pkg/flowquery).
package main

import (
	"os"

	"github.com/flowquery-lang/flowquery/cmd/flowquery/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
