package domain

import (
	"strings"
	"time"
)

// SenderRole identifies who wrote a ChatMessage.
type SenderRole string

const (
	SenderVisitor SenderRole = "visitor"
	SenderStaff   SenderRole = "staff"
	SenderSystem  SenderRole = "system"
)

// Well-known sender ids for messages not written by a staff account.
const (
	VisitorSenderID = "visitor"
	SystemSenderID  = "system"
)

// MessageOrder selects how a message query is sorted by the store.
type MessageOrder int

const (
	// Unordered returns messages in whatever order the store yields them.
	Unordered MessageOrder = iota
	// OrderBySentAt sorts ascending on sentAt. Stores may not support it.
	OrderBySentAt
)

// ChatMessage is one immutable turn of a conversation.
type ChatMessage struct {
	ID                string     `json:"id"`
	ConversationID    string     `json:"conversationId"`
	Text              string     `json:"text"`
	SenderRole        SenderRole `json:"senderRole"`
	SenderID          string     `json:"senderId"`
	SenderDisplayName string     `json:"senderDisplayName,omitempty"`
	SentAt            time.Time  `json:"sentAt"`
	IsStaffMessage    bool       `json:"isStaffMessage"`
}

// EndsSession reports whether the message is a staff or system message
// carrying the session-ended marker. Visitors cannot end a session.
func (m ChatMessage) EndsSession() bool {
	if m.SenderRole != SenderSystem && !m.IsStaffMessage {
		return false
	}
	return strings.Contains(m.Text, SessionEndedMarker)
}
