package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the chatbot one question",
	Example: `  barangay ask "How do I get a barangay clearance?"
  barangay ask --memory office hours`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	reply, err := deps.chat.Respond(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Response)
	if verbose {
		fmt.Fprintf(out, "\n[intent=%s source=%s stage=%s]\n", reply.Intent, reply.Source, reply.Stage)
	}
	return nil
}
