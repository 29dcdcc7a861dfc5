package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "flowquery",
	Short: "FlowQuery pipeline query engine",
	Long: `flowquery is a Go implementation of the FlowQuery pipeline query language.

FlowQuery is a declarative query language for data-processing pipelines:
  - LOAD from JSON/CSV/text sources or in-language async providers
  - WITH/UNWIND/CALL stages for binding and sequence expansion
  - WHERE filtering and LIMIT bounding
  - RETURN projections with aggregate functions (sum, avg, count, collect, ...)

This is a single-pipeline query engine, not a general scripting language.`,
	Version: Version,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
