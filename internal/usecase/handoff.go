package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"barangay-helpdesk/internal/domain"
)

const (
	// AgentRequestText opens every hand-off conversation.
	AgentRequestText = "Visitor requested to chat with an agent"

	AgentConnectedText = "Great! I've connected you with our staff team. They'll be with you shortly to help with your inquiry."
	AgentFailureText   = "Sorry, I couldn't connect you with our staff right now. Please try again later or visit our office."
	TechnicalIssueText = "I apologize, but I'm experiencing some technical difficulties. Please try again in a moment."

	maxVisitorName = 80
)

// VisitorMessage is a visitor turn inside a hand-off conversation.
type VisitorMessage struct {
	ConversationID string
	VisitorName    string
	Text           string
}

// HandoffService performs the visitor-side writes of a staff hand-off.
type HandoffService struct {
	store         ConversationStore
	maxMessageLen int
	logger        *slog.Logger
}

func NewHandoffService(store ConversationStore, maxMessageLen int, logger *slog.Logger) (*HandoffService, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HandoffService{store: store, maxMessageLen: maxMessageLen, logger: logger}, nil
}

// OpenConversation creates a pending, unassigned conversation together with
// the visitor's opening request.
func (s *HandoffService) OpenConversation(ctx context.Context, visitorName string) (domain.Conversation, error) {
	name := strings.TrimSpace(visitorName)
	if name == "" {
		return domain.Conversation{}, newError(ErrorInvalidInput, "missing_visitor_name", nil)
	}
	if len([]rune(name)) > maxVisitorName {
		return domain.Conversation{}, newError(ErrorInvalidInput, "visitor_name_too_long", nil)
	}

	conv := domain.Conversation{
		ID:                 newUUID(),
		VisitorDisplayName: name,
		Status:             domain.StatusPending,
		LastMessage:        AgentRequestText,
	}
	opening := domain.ChatMessage{
		ID:                newUUID(),
		ConversationID:    conv.ID,
		Text:              AgentRequestText,
		SenderRole:        domain.SenderVisitor,
		SenderID:          domain.VisitorSenderID,
		SenderDisplayName: name,
	}
	created, err := s.store.CreateConversation(ctx, conv, opening)
	if err != nil {
		return domain.Conversation{}, storeError("conversation_create_error", err)
	}
	s.logger.Info("hand-off requested", "conversationId", created.ID)
	return created, nil
}

// SendVisitorMessage appends a visitor turn and marks the conversation active.
func (s *HandoffService) SendVisitorMessage(ctx context.Context, in VisitorMessage) (domain.ChatMessage, error) {
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		return domain.ChatMessage{}, newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	text, err := validateText(in.Text, s.maxMessageLen)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	name := strings.TrimSpace(in.VisitorName)
	if name == "" {
		name = "Anonymous"
	}

	msg, err := s.store.AppendMessage(ctx, domain.ChatMessage{
		ID:                newUUID(),
		ConversationID:    convID,
		Text:              text,
		SenderRole:        domain.SenderVisitor,
		SenderID:          domain.VisitorSenderID,
		SenderDisplayName: name,
	})
	if err != nil {
		return domain.ChatMessage{}, storeError("message_write_error", err)
	}
	return msg, nil
}

// Transcript returns every message of the conversation in sentAt order. Read
// failures are logged and yield an empty transcript.
func (s *HandoffService) Transcript(ctx context.Context, conversationID string) ([]domain.ChatMessage, error) {
	convID := strings.TrimSpace(conversationID)
	if convID == "" {
		return nil, newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	msgs, err := fetchTranscript(ctx, s.store, convID)
	if err != nil {
		s.logger.Warn("transcript read failed", "conversationId", convID, "err", err)
		return []domain.ChatMessage{}, nil
	}
	return msgs, nil
}

// SessionEnded reports whether the newest message carries the end marker.
func SessionEnded(msgs []domain.ChatMessage) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].EndsSession()
}

var newUUID = func() string {
	return uuid.Must(uuid.NewV7()).String()
}
