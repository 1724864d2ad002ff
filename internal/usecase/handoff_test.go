package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/memstore"
)

func TestOpenConversation_CreatesPendingUnassigned(t *testing.T) {
	store := newStore()
	h := newHandoff(t, store)

	conv, err := h.OpenConversation(context.Background(), "  Juan  ")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	require.Equal(t, "Juan", conv.VisitorDisplayName)
	require.Equal(t, domain.StatusPending, conv.Status)
	require.True(t, conv.Unassigned())
	require.False(t, conv.CreatedAt.IsZero())

	msgs, err := h.Transcript(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, AgentRequestText, msgs[0].Text)
	require.Equal(t, domain.SenderVisitor, msgs[0].SenderRole)
	require.False(t, msgs[0].IsStaffMessage)
}

func TestOpenConversation_RequiresName(t *testing.T) {
	_, err := newHandoff(t, newStore()).OpenConversation(context.Background(), " ")
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
}

func TestSendVisitorMessage_ActivatesConversation(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	h := newHandoff(t, store)
	conv, err := h.OpenConversation(ctx, "Juan")
	require.NoError(t, err)

	sent, err := h.SendVisitorMessage(ctx, VisitorMessage{ConversationID: conv.ID, VisitorName: "Juan", Text: "I need a permit"})
	require.NoError(t, err)
	require.False(t, sent.SentAt.IsZero())

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, got.Status)
	require.Equal(t, "I need a permit", got.LastMessage)
	require.Equal(t, sent.SentAt, got.LastMessageAt)
}

func TestSendVisitorMessage_Errors(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	h := newHandoff(t, store)

	_, err := h.SendVisitorMessage(ctx, VisitorMessage{ConversationID: "", Text: "hi"})
	require.Equal(t, ErrorInvalidInput, CodeOf(err))

	_, err = h.SendVisitorMessage(ctx, VisitorMessage{ConversationID: "missing", Text: "hi"})
	require.Equal(t, ErrorNotFound, CodeOf(err))

	conv, err := h.OpenConversation(ctx, "Juan")
	require.NoError(t, err)
	require.NoError(t, newStaffService(t, store).EndSession(ctx, conv.ID, staffAna))

	_, err = h.SendVisitorMessage(ctx, VisitorMessage{ConversationID: conv.ID, Text: "still there?"})
	require.Equal(t, ErrorConversationClosed, CodeOf(err))
}

func TestTranscript_FallsBackWithoutOrderedIndex(t *testing.T) {
	ctx := context.Background()
	store := newStore(memstore.WithoutOrderedIndex())
	h := newHandoff(t, store)
	conv, err := h.OpenConversation(ctx, "Juan")
	require.NoError(t, err)
	_, err = h.SendVisitorMessage(ctx, VisitorMessage{ConversationID: conv.ID, Text: "second"})
	require.NoError(t, err)

	msgs, err := h.Transcript(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "second", msgs[1].Text)
}

func TestSessionEnded(t *testing.T) {
	require.False(t, SessionEnded(nil))

	end := domain.ChatMessage{Text: domain.SessionEndedNotice, SenderRole: domain.SenderSystem}
	require.True(t, SessionEnded([]domain.ChatMessage{{Text: "hi"}, end}))
	require.False(t, SessionEnded([]domain.ChatMessage{end, {Text: "hi"}}))

	byStaff := domain.ChatMessage{Text: domain.SessionEndedMarker, SenderRole: domain.SenderStaff, IsStaffMessage: true}
	require.True(t, SessionEnded([]domain.ChatMessage{byStaff}))

	quoted := domain.ChatMessage{Text: "they said: " + domain.SessionEndedMarker, SenderRole: domain.SenderVisitor}
	require.False(t, SessionEnded([]domain.ChatMessage{end, quoted}))
	require.False(t, SessionEnded([]domain.ChatMessage{quoted}))
}
