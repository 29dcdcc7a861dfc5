package cmd

import (
	"fmt"
	"os"

	"github.com/flowquery-lang/flowquery/internal/ast"
	"github.com/flowquery-lang/flowquery/internal/parser"
	"github.com/flowquery-lang/flowquery/pkg/flowquery"
	"github.com/spf13/cobra"
)

var parseDumpAST bool

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a FlowQuery pipeline and display its operation chain",
	Long: `Parse FlowQuery source and display the resulting operation chain.

If no file is provided, reads from stdin.
Use -e to parse a single inline source from the command line.
Use --dump-ast to show the chain as a tree of operation/expression types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "parse inline source instead of reading from a file")
	parseCmd.Flags().BoolVar(&parseDumpAST, "dump-ast", false, "dump the operation chain as a tree")
}

func runParse(cmd *cobra.Command, args []string) error {
	source, filename, err := readSource(evalExpr, args)
	if err != nil {
		return err
	}

	prog, perr := parser.ParseFile(source, filename, flowquery.DefaultRegistry)
	if perr != nil {
		fmt.Fprintln(os.Stderr, flowquery.FormatError(perr, true))
		return fmt.Errorf("parsing failed")
	}

	if parseDumpAST {
		fmt.Println("Operation chain:")
		fmt.Println("================")
		for op := prog.First; op != nil; op = op.Next() {
			dumpOperation(op, 0)
		}
	} else {
		fmt.Println(prog.String())
	}

	return nil
}

func dumpOperation(op ast.Operation, indent int) {
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	fmt.Printf("%s%T: %s\n", prefix, op, op.String())
}
