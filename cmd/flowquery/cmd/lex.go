package cmd

import (
	"fmt"

	"github.com/flowquery-lang/flowquery/internal/lexer"
	"github.com/flowquery-lang/flowquery/internal/token"
	"github.com/spf13/cobra"
)

var (
	showPos    bool
	showType   bool
	onlyErrors bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a FlowQuery source and print the resulting tokens",
	Long: `Tokenize (lex) a FlowQuery source and print the resulting tokens.

This command is useful for debugging the lexer and understanding how
FlowQuery source is tokenized.

Examples:
  # Tokenize a query file
  flowquery lex query.fq

  # Tokenize an inline source
  flowquery lex -e "RETURN 1 + 1 AS answer"

  # Show token kinds and positions
  flowquery lex --show-type --show-pos query.fq

  # Show only illegal tokens
  flowquery lex --only-errors query.fq`,
	Args: cobra.MaximumNArgs(1),
	RunE: lexSource,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "tokenize inline source instead of reading from a file")
	lexCmd.Flags().BoolVar(&showPos, "show-pos", false, "show token positions (line:column)")
	lexCmd.Flags().BoolVar(&showType, "show-type", false, "show token kind names")
	lexCmd.Flags().BoolVar(&onlyErrors, "only-errors", false, "show only illegal tokens")
}

func lexSource(cmd *cobra.Command, args []string) error {
	source, filename, err := readSource(evalExpr, args)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		fmt.Printf("Tokenizing: %s\n", filename)
		fmt.Printf("Input length: %d bytes\n", len(source))
		fmt.Println("---")
	}

	l := lexer.New(source)

	tokenCount := 0
	errorCount := 0

	for {
		tok := l.NextToken()

		if onlyErrors && tok.Kind != token.ILLEGAL {
			if tok.Kind == token.EOF {
				break
			}
			continue
		}

		tokenCount++
		if tok.Kind == token.ILLEGAL {
			errorCount++
		}

		printToken(tok)

		if tok.Kind == token.EOF {
			break
		}
	}

	if verbose {
		fmt.Println("---")
		fmt.Printf("Total tokens: %d\n", tokenCount)
		if errorCount > 0 {
			fmt.Printf("Errors: %d\n", errorCount)
		}
	}

	if onlyErrors && errorCount > 0 {
		return fmt.Errorf("found %d illegal token(s)", errorCount)
	}

	return nil
}

func printToken(tok token.Token) {
	var output string

	if showType {
		output = fmt.Sprintf("[%-16s]", tok.Kind)
	}

	switch {
	case tok.Kind == token.EOF:
		output += " EOF"
	case tok.Kind == token.ILLEGAL:
		output += fmt.Sprintf(" ILLEGAL: %q", tok.Literal)
	case tok.Literal == "":
		output += fmt.Sprintf(" %s", tok.Kind)
	default:
		output += fmt.Sprintf(" %q", tok.Literal)
	}

	if showPos {
		output += fmt.Sprintf(" @%d:%d", tok.Pos.Line, tok.Pos.Column)
	}

	fmt.Println(output)
}
