package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"barangay-helpdesk/internal/domain"
)

var (
	consoleStaffID string

	addID    string
	addName  string
	addEmail string
	addRole  string
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Staff console and directory",
}

var staffConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Work the live-chat queue as a staff member",
	Long: `Interactive staff console. Commands:

  list              unassigned conversations
  mine              conversations assigned to you
  recent [n]        most recently active conversations
  claim <id>        take a conversation
  unclaim <id>      return a conversation to the queue
  open <id>         follow a conversation's messages
  say <text>        message the open conversation
  end               end the open conversation's session
  quit

The console works against the DynamoDB table (STATE_TABLE). A --memory store
lives only inside one process, so with --memory use the /staff commands of
"barangay chat" instead.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

var staffAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a staff directory entry",
	Example: `  barangay staff add --id u-123 --name "Ana Reyes" --email ana@example.ph --role staff`,
	Args:  cobra.NoArgs,
	RunE:  runStaffAdd,
}

func init() {
	staffConsoleCmd.Flags().StringVar(&consoleStaffID, "staff-id", "", "your staff id")

	staffAddCmd.Flags().StringVar(&addID, "id", "", "staff id")
	staffAddCmd.Flags().StringVar(&addName, "name", "", "display name")
	staffAddCmd.Flags().StringVar(&addEmail, "email", "", "email address")
	staffAddCmd.Flags().StringVar(&addRole, "role", string(domain.RoleStaff), "admin, staff or moderator")
	_ = staffAddCmd.MarkFlagRequired("id")

	staffCmd.AddCommand(staffConsoleCmd)
	staffCmd.AddCommand(staffAddCmd)
}

func runStaffAdd(cmd *cobra.Command, args []string) error {
	role := domain.Role(addRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", addRole)
	}
	staff := domain.Staff{ID: addID, DisplayName: addName, Email: addEmail, Role: role}
	if err := deps.backend.PutStaff(cmd.Context(), staff); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", staff.Name(), staff.Role)
	return nil
}

// console holds the state of one staff console session.
type console struct {
	ctx   context.Context
	out   io.Writer
	staff domain.Staff

	mu       sync.Mutex
	openID   string
	stopOpen func()
}

func runConsole(cmd *cobra.Command, args []string) error {
	if inMemory {
		return errors.New("staff console cannot use --memory; use /staff commands in \"barangay chat --memory\"")
	}
	ctx := cmd.Context()
	staff, err := deps.staff.Authorize(ctx, consoleStaffID)
	if err != nil {
		return err
	}

	c := &console{ctx: ctx, out: cmd.OutOrStdout(), staff: staff}
	defer c.close()

	waiting := -1
	stopQueue := deps.staff.WatchUnassigned(ctx, func(convs []domain.Conversation) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(convs) != waiting {
			waiting = len(convs)
			fmt.Fprintf(c.out, "-- %d conversation(s) waiting --\n", waiting)
		}
	})
	defer stopQueue()

	fmt.Fprintf(c.out, "signed in as %s (%s)\n", staff.Name(), staff.Role)
	in := bufio.NewScanner(cmd.InOrStdin())
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		if verb == "quit" || verb == "exit" {
			return nil
		}
		if err := c.run(verb, strings.TrimSpace(rest)); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
	return in.Err()
}

func (c *console) run(verb, arg string) error {
	switch verb {
	case "list":
		c.printConversations(deps.staff.ListUnassigned(c.ctx))
	case "mine":
		c.printConversations(deps.staff.ListAssignedTo(c.ctx, c.staff.ID))
	case "recent":
		limit := cfg.RecentLimit
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return fmt.Errorf("recent: invalid count %q", arg)
			}
			limit = n
		}
		c.printConversations(deps.staff.RecentConversations(c.ctx, limit))
	case "claim":
		if err := deps.staff.Claim(c.ctx, arg, c.staff); err != nil {
			return err
		}
		c.open(arg)
	case "unclaim":
		return deps.staff.Unclaim(c.ctx, arg, c.staff)
	case "open":
		if arg == "" {
			return errors.New("usage: open <id>")
		}
		c.open(arg)
	case "say":
		id := c.current()
		if id == "" {
			return errors.New("no open conversation")
		}
		_, err := deps.staff.SendStaffMessage(c.ctx, id, arg, c.staff)
		return err
	case "end":
		id := c.current()
		if id == "" {
			return errors.New("no open conversation")
		}
		return deps.staff.EndSession(c.ctx, id, c.staff)
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
	return nil
}

func (c *console) open(id string) {
	c.mu.Lock()
	stop := c.stopOpen
	c.openID, c.stopOpen = id, nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}

	fmt.Fprintf(c.out, "-- conversation %s --\n", id)
	printer := newTranscriptPrinter(c.out, "")
	stop = deps.staff.SubscribeMessages(c.ctx, id, c.staff.ID, printer.print)

	c.mu.Lock()
	c.stopOpen = stop
	c.mu.Unlock()
}

func (c *console) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openID
}

func (c *console) close() {
	c.mu.Lock()
	stop := c.stopOpen
	c.stopOpen = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *console) printConversations(convs []domain.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(c.out, "(none)")
		return
	}
	for _, conv := range convs {
		assignee := "unassigned"
		if !conv.Unassigned() {
			assignee = conv.AssignedStaffID
		}
		fmt.Fprintf(c.out, "%s  %-8s %-12s %-20s %s\n",
			conv.ID, conv.Status, assignee, conv.VisitorDisplayName, conv.LastMessage)
	}
}
