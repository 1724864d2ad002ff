package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var intentsLimit int

var intentsCmd = &cobra.Command{
	Use:   "intents [intent]",
	Short: "List dataset intents with sample queries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIntents,
}

func init() {
	intentsCmd.Flags().IntVarP(&intentsLimit, "limit", "n", 5, "sample queries per intent")
}

func runIntents(cmd *cobra.Command, args []string) error {
	deps.corpus.Load(cmd.Context())
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		name := args[0]
		response, ok := deps.corpus.ResponseForIntent(name)
		if !ok {
			return fmt.Errorf("unknown intent %q", name)
		}
		fmt.Fprintf(out, "%s\n\nResponse:\n  %s\n\nSample queries:\n", name, response)
		for _, q := range deps.corpus.SampleQueries(name, intentsLimit) {
			fmt.Fprintf(out, "  - %s\n", q)
		}
		return nil
	}

	intents := deps.corpus.Intents()
	if len(intents) == 0 {
		fmt.Fprintln(out, "No dataset loaded.")
		return nil
	}
	for _, name := range intents {
		fmt.Fprintf(out, "%s (%d entries)\n", name, len(deps.corpus.ForIntent(name)))
		for _, q := range deps.corpus.SampleQueries(name, intentsLimit) {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}
