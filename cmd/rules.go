package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2tiles-go/internal/rules"
)

var dumpDNF bool

var rulesCmd = &cobra.Command{
	Use:   "rules <rules file>",
	Short: "Check a rule file and print its structure",
	Long: `Rules parses a rule file, reports syntax errors with their position
and prints the parsed statements per block. With --dnf each expression is
also simplified to disjunctive normal form.`,
	Args: cobra.ExactArgs(1),
	Run:  runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().BoolVar(&dumpDNF, "dnf", false, "Print each expression in disjunctive normal form")
}

func runRules(cmd *cobra.Command, args []string) {
	text, err := os.ReadFile(args[0])
	if err != nil {
		exitWithError("failed to read rule file", err)
	}
	ruleSet, err := rules.Parse(string(text))
	if err != nil {
		exitWithError("failed to parse rule file", err)
	}

	printBlock("Areas", ruleSet.Areas)
	printBlock("Nodes", ruleSet.Nodes)
	printBlock("Ways", ruleSet.Ways)
}

func printBlock(name string, branches []rules.Branch) {
	fmt.Printf("[%s] %d statements\n", name, len(branches))
	for _, b := range branches {
		fmt.Printf("  %d: %s\n", b.ID, b.Expr.String())
		if !dumpDNF {
			continue
		}
		simplified := rules.Simplify(rules.FromExpr(b.Expr))
		clauses, err := rules.CompileDNF(simplified)
		if err != nil {
			exitWithError("failed to compile DNF", err)
		}
		for _, clause := range clauses {
			fmt.Printf("     | ")
			for i, atom := range clause {
				if i > 0 {
					fmt.Printf(" & ")
				}
				if atom.Not {
					fmt.Printf("!")
				}
				if atom.HasValue {
					fmt.Printf("%s=%s", atom.Key, atom.Value)
				} else {
					fmt.Printf("%s", atom.Key)
				}
			}
			fmt.Println()
		}
	}
}
