package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/intent"
	"barangay-helpdesk/internal/usecase"
)

var chatName string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the helpdesk bot; type /agent to reach staff",
	Long: `Starts an interactive chat. Questions are answered by the bot until you
type /agent, which opens a conversation for barangay staff. The session
returns to the bot once staff end it.

Commands: /agent, /quit. With --memory, /staff claim, /staff say <text>
and /staff end act as the built-in desk officer.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "", "your name, shown to staff")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	printer := newTranscriptPrinter(out, domain.SenderVisitor)
	coord, err := usecase.NewCoordinator(deps.chat, deps.handoff,
		usecase.WithPollInterval(cfg.PollInterval),
		usecase.WithCoordinatorLogger(logger),
		usecase.WithTranscriptListener(printer.print),
		usecase.WithModeListener(func(m usecase.Mode) {
			switch m {
			case usecase.ModeLiveWithStaff:
				fmt.Fprintln(out, "-- you are now chatting with barangay staff --")
			case usecase.ModeBot:
				printer.reset()
				fmt.Fprintln(out, "-- back to the AI assistant --")
			}
		}),
	)
	if err != nil {
		return err
	}
	defer coord.Close()

	fmt.Fprintf(out, "bot> %s\n", intent.GreetingResponse)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/agent":
			requestAgent(ctx, coord, in, out)
		case strings.HasPrefix(line, "/staff"):
			if !inMemory {
				fmt.Fprintln(out, "/staff commands need --memory")
				continue
			}
			deskCommand(ctx, coord.ConversationID(), strings.TrimSpace(strings.TrimPrefix(line, "/staff")), out)
		default:
			reply, err := coord.Handle(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "bot> %s\n", visitorError(err))
				continue
			}
			if reply.Source != usecase.SourceRelayed {
				fmt.Fprintf(out, "bot> %s\n", reply.Response)
			}
		}
	}
	return in.Err()
}

func requestAgent(ctx context.Context, coord *usecase.Coordinator, in *bufio.Scanner, out io.Writer) {
	name := chatName
	if name == "" {
		fmt.Fprint(out, "Your name: ")
		if !in.Scan() {
			return
		}
		name = in.Text()
	}
	if _, err := coord.RequestAgent(ctx, name); err != nil {
		logger.Warn("agent request failed", "err", err)
		if usecase.CodeOf(err) == usecase.ErrorConflict {
			fmt.Fprintln(out, "bot> You are already connected with our staff.")
			return
		}
		fmt.Fprintf(out, "bot> %s\n", usecase.AgentFailureText)
		return
	}
	chatName = name
	fmt.Fprintf(out, "bot> %s\n", usecase.AgentConnectedText)
}

// deskCommand lets a --memory session play the staff side.
func deskCommand(ctx context.Context, conversationID, command string, out io.Writer) {
	if conversationID == "" {
		fmt.Fprintln(out, "no open conversation; type /agent first")
		return
	}
	verb, rest, _ := strings.Cut(command, " ")
	var err error
	switch verb {
	case "claim":
		err = deps.staff.Claim(ctx, conversationID, deskOfficer)
	case "say":
		_, err = deps.staff.SendStaffMessage(ctx, conversationID, rest, deskOfficer)
	case "end":
		err = deps.staff.EndSession(ctx, conversationID, deskOfficer)
	default:
		err = errors.New("usage: /staff claim | /staff say <text> | /staff end")
	}
	if err != nil {
		fmt.Fprintf(out, "staff: %v\n", err)
	}
}

func visitorError(err error) string {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		switch ue.Reason {
		case "empty_message":
			return "Please type a message."
		case "message_too_long":
			return fmt.Sprintf("Please keep messages under %d characters.", cfg.MaxMessageLength)
		case "conversation_done":
			return "This staff session has ended."
		}
	}
	return usecase.TechnicalIssueText
}
