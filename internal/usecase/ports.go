package usecase

import (
	"context"

	"barangay-helpdesk/internal/domain"
)

// ConversationStore is the persistence collaborator shared by the visitor and
// staff sides. Implementations stamp all timestamps themselves. Subscribe
// methods deliver full snapshots asynchronously until the returned function
// is called or ctx ends; onError is called at most once and ends the feed.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv domain.Conversation, opening domain.ChatMessage) (domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	QueryConversations(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error)
	SubscribeConversations(ctx context.Context, filter domain.ConversationFilter, onChange func([]domain.Conversation), onError func(error)) (func(), error)

	// AppendMessage stores msg and marks the conversation active. It fails
	// with domain.ErrConversationClosed once the conversation is done.
	AppendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	ListMessages(ctx context.Context, conversationID string, order domain.MessageOrder) ([]domain.ChatMessage, error)
	SubscribeMessages(ctx context.Context, conversationID string, order domain.MessageOrder, onChange func([]domain.ChatMessage), onError func(error)) (func(), error)

	// AssignConversation succeeds only while the conversation is unassigned
	// and not done, otherwise domain.ErrAlreadyAssigned or
	// domain.ErrConversationClosed. notice is stored in the same write.
	AssignConversation(ctx context.Context, id string, staff domain.Staff, notice domain.ChatMessage) error
	UnassignConversation(ctx context.Context, id string) error
	// CloseConversation marks the conversation done and stores notice with it.
	CloseConversation(ctx context.Context, id string, notice domain.ChatMessage) error
}

// StaffDirectory resolves authenticated account ids to staff profiles.
type StaffDirectory interface {
	GetStaff(ctx context.Context, id string) (domain.Staff, error)
}
