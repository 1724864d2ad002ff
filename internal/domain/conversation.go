package domain

import "time"

// ConversationStatus is the hand-off lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusPending ConversationStatus = "pending"
	StatusActive  ConversationStatus = "active"
	StatusDone    ConversationStatus = "done"
)

// SessionEndedMarker is appended by staff when a session ends. Visitor clients
// watch for it to drop back to the bot.
const SessionEndedMarker = "Session ended by staff"

// SessionEndedNotice is the full text of the message carrying SessionEndedMarker.
const SessionEndedNotice = SessionEndedMarker + ". You can now continue chatting with our AI assistant."

// Conversation is a visitor's request for live staff help.
type Conversation struct {
	ID                 string             `json:"id"`
	VisitorDisplayName string             `json:"visitorDisplayName"`
	Status             ConversationStatus `json:"status"`
	AssignedStaffID    string             `json:"assignedStaffId,omitempty"`
	AssignedStaffName  string             `json:"assignedStaffName,omitempty"`
	AssignedAt         time.Time          `json:"assignedAt,omitzero"`
	LastMessage        string             `json:"lastMessage"`
	LastMessageAt      time.Time          `json:"lastMessageAt"`
	LastStaffMessage   string             `json:"lastStaffMessage,omitempty"`
	LastStaffMessageAt time.Time          `json:"lastStaffMessageAt,omitzero"`
	CreatedAt          time.Time          `json:"createdAt"`
	ResolvedAt         time.Time          `json:"resolvedAt,omitzero"`
	ResolvedBy         string             `json:"resolvedBy,omitempty"`
}

// Unassigned reports whether no staff member currently holds the conversation.
func (c Conversation) Unassigned() bool { return c.AssignedStaffID == "" }

// Done reports whether the session is final.
func (c Conversation) Done() bool { return c.Status == StatusDone }

// ConversationFilter selects conversations by assignment. The zero value
// selects every conversation.
type ConversationFilter struct {
	Unassigned bool
	AssignedTo string
}

// Matches reports whether conv satisfies the filter.
func (f ConversationFilter) Matches(conv Conversation) bool {
	switch {
	case f.Unassigned:
		return conv.Unassigned()
	case f.AssignedTo != "":
		return conv.AssignedStaffID == f.AssignedTo
	default:
		return true
	}
}
