package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"barangay-helpdesk/internal/config"
	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/usecase"
)

const waitFor, tick = 2 * time.Second, 5 * time.Millisecond

// lockedBuffer is written to by listener goroutines and the command loop.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// useMemoryApp installs an in-memory app in the command globals.
func useMemoryApp(t *testing.T) {
	t.Helper()
	prevCfg, prevLogger, prevDeps, prevMemory := cfg, logger, deps, inMemory
	t.Cleanup(func() { cfg, logger, deps, inMemory = prevCfg, prevLogger, prevDeps, prevMemory })

	var err error
	cfg, err = config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	logger = slog.New(slog.DiscardHandler)
	deps, err = buildApp(context.Background(), cfg, logger, true)
	require.NoError(t, err)
	inMemory = true
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	prevName, prevMemory, prevStaffID := chatName, inMemory, consoleStaffID
	t.Cleanup(func() {
		chatName, inMemory, consoleStaffID = prevName, prevMemory, prevStaffID
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
	})
	t.Setenv("LOG_LEVEL", "error")

	out := &lockedBuffer{}
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(out)
	err := Execute()
	return out.String(), err
}

func TestChat_InMemoryHandoff(t *testing.T) {
	script := strings.Join([]string{
		"/agent",
		"/staff claim",
		"I need a barangay clearance",
		"/staff say Please bring a valid ID",
		"/staff end",
		"/quit",
		"ignored after quit",
	}, "\n")

	out, err := execute(t, script, "chat", "--memory", "--name", "Juan")
	require.NoError(t, err)
	require.Contains(t, out, usecase.AgentConnectedText)
	require.NotContains(t, out, "staff:")

	ctx := context.Background()
	convs, err := deps.backend.QueryConversations(ctx, domain.ConversationFilter{})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	conv := convs[0]
	require.Equal(t, "Juan", conv.VisitorDisplayName)
	require.Equal(t, domain.StatusDone, conv.Status)
	require.Equal(t, deskOfficer.ID, conv.AssignedStaffID)

	msgs, err := deps.backend.ListMessages(ctx, conv.ID, domain.OrderBySentAt)
	require.NoError(t, err)
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	require.Contains(t, texts, "I need a barangay clearance")
	require.Contains(t, texts, "Please bring a valid ID")
	require.NotContains(t, texts, "ignored after quit")
	require.True(t, usecase.SessionEnded(msgs))
}

func TestChat_BotAnswersWithoutHandoff(t *testing.T) {
	out, err := execute(t, "hello\n\n/staff claim\n", "chat", "--memory")
	require.NoError(t, err)
	require.Contains(t, out, "How can I assist you today?")
	require.Contains(t, out, "no open conversation")

	convs, err := deps.backend.QueryConversations(context.Background(), domain.ConversationFilter{})
	require.NoError(t, err)
	require.Empty(t, convs)
}

func TestStaffConsole_RejectsMemory(t *testing.T) {
	_, err := execute(t, "", "staff", "console", "--memory")
	require.ErrorContains(t, err, "--memory")
}

func TestStaffAdd_ValidatesRole(t *testing.T) {
	_, err := execute(t, "", "staff", "add", "--memory", "--id", "u-1", "--role", "mayor")
	require.ErrorContains(t, err, "unknown role")

	out, err := execute(t, "", "staff", "add", "--memory", "--id", "u-2", "--name", "Ana Reyes", "--role", "moderator")
	require.NoError(t, err)
	require.Equal(t, "saved Ana Reyes (moderator)\n", out)

	staff, err := deps.backend.GetStaff(context.Background(), "u-2")
	require.NoError(t, err)
	require.Equal(t, domain.RoleModerator, staff.Role)
}

func TestDeskCommand(t *testing.T) {
	useMemoryApp(t)
	ctx := context.Background()
	conv, err := deps.handoff.OpenConversation(ctx, "Maria")
	require.NoError(t, err)

	tests := []struct {
		name    string
		convID  string
		command string
		want    string
	}{
		{name: "no conversation", convID: "", command: "claim", want: "no open conversation; type /agent first\n"},
		{name: "unknown verb", convID: conv.ID, command: "dance", want: "staff: usage: /staff claim | /staff say <text> | /staff end\n"},
		{name: "claim", convID: conv.ID, command: "claim", want: ""},
		{name: "claim twice", convID: conv.ID, command: "claim", want: "staff: "},
		{name: "say", convID: conv.ID, command: "say Good morning", want: ""},
		{name: "end", convID: conv.ID, command: "end", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			deskCommand(ctx, tt.convID, tt.command, &out)
			if tt.want == "" {
				require.Empty(t, out.String())
				return
			}
			require.True(t, strings.HasPrefix(out.String(), tt.want), out.String())
		})
	}

	got, err := deps.backend.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, got.Status)
}

func TestVisitorError(t *testing.T) {
	useMemoryApp(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "empty", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, want: "Please type a message."},
		{name: "too long", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "message_too_long"}, want: "Please keep messages under 500 characters."},
		{name: "done", err: &usecase.Error{Code: usecase.ErrorConversationClosed, Reason: "conversation_done"}, want: "This staff session has ended."},
		{name: "other", err: context.DeadlineExceeded, want: usecase.TechnicalIssueText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, visitorError(tt.err))
		})
	}
}

func TestConsoleRun(t *testing.T) {
	useMemoryApp(t)
	ctx := context.Background()
	conv, err := deps.handoff.OpenConversation(ctx, "Pedro")
	require.NoError(t, err)

	out := &lockedBuffer{}
	c := &console{ctx: ctx, out: out, staff: deskOfficer}
	t.Cleanup(c.close)

	require.NoError(t, c.run("list", ""))
	require.Contains(t, out.String(), conv.ID)
	require.Contains(t, out.String(), "Pedro")

	require.ErrorContains(t, c.run("say", "hello"), "no open conversation")
	require.ErrorContains(t, c.run("end", ""), "no open conversation")
	require.ErrorContains(t, c.run("open", ""), "usage")
	require.ErrorContains(t, c.run("recent", "zero"), "invalid count")
	require.ErrorContains(t, c.run("shout", ""), "unknown command")

	require.NoError(t, c.run("claim", conv.ID))
	require.Equal(t, conv.ID, c.current())
	require.Equal(t, usecase.ErrorConflict, usecase.CodeOf(c.run("claim", conv.ID)))

	require.NoError(t, c.run("mine", ""))
	require.NoError(t, c.run("say", "Hi Pedro"))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Desk Officer> Hi Pedro")
	}, waitFor, tick)

	require.NoError(t, c.run("recent", "1"))
	require.NoError(t, c.run("unclaim", conv.ID))
	require.NoError(t, c.run("end", ""))

	got, err := deps.backend.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, got.Status)
}
