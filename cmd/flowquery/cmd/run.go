package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flowquery-lang/flowquery/internal/value"
	"github.com/flowquery-lang/flowquery/pkg/flowquery"
	"github.com/spf13/cobra"
)

var (
	evalExpr string
	trace    bool
	maxRows  int
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a FlowQuery pipeline",
	Long: `Execute a FlowQuery pipeline from a file, inline expression, or stdin.

Examples:
  # Run a query file
  flowquery run query.fq

  # Evaluate an inline query
  flowquery run -e "RETURN 1 + 1 AS answer"

  # Run with an execution trace
  flowquery run --trace query.fq`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "evaluate inline source instead of reading from a file")
	runCmd.Flags().BoolVar(&trace, "trace", false, "trace each operation invocation to stderr (for debugging)")
	runCmd.Flags().IntVar(&maxRows, "max-rows", -1, "stop after this many result rows (-1: unbounded beyond any LIMIT in the query)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	source, filename, err := readSource(evalExpr, args)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	opts := []flowquery.Option{flowquery.WithFile(filename)}
	if maxRows >= 0 {
		opts = append(opts, flowquery.WithMaxRows(maxRows))
	}
	if trace {
		opts = append(opts, flowquery.WithTrace(os.Stderr))
	}

	runner, err := flowquery.New(source, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, flowquery.FormatError(err, true))
		return fmt.Errorf("parsing failed")
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Running %s...\n", filename)
	}

	if err := runner.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, flowquery.FormatError(err, true))
		return fmt.Errorf("execution failed")
	}

	fmt.Println(value.CanonicalJSON(value.Array(runner.Results())))
	return nil
}

// readSource determines the query source and a display name for it, following
// the teacher's run command's file/-e/stdin precedence.
func readSource(evalExpr string, args []string) (source, filename string, err error) {
	switch {
	case evalExpr != "":
		return evalExpr, "<eval>", nil
	case len(args) == 1:
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), args[0], nil
	default:
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(content), "<stdin>", nil
	}
}
