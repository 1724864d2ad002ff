package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"barangay-helpdesk/internal/domain"
)

const DefaultRecentLimit = 10

// StaffService is the support-console side of a hand-off.
type StaffService struct {
	store         ConversationStore
	directory     StaffDirectory
	maxMessageLen int
	logger        *slog.Logger
}

func NewStaffService(store ConversationStore, directory StaffDirectory, maxMessageLen int, logger *slog.Logger) (*StaffService, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: staff directory must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StaffService{
		store:         store,
		directory:     directory,
		maxMessageLen: maxMessageLen,
		logger:        logger,
	}, nil
}

// Authorize resolves staffID to a profile allowed to work live chats.
func (s *StaffService) Authorize(ctx context.Context, staffID string) (domain.Staff, error) {
	id := strings.TrimSpace(staffID)
	if id == "" {
		return domain.Staff{}, newError(ErrorForbidden, "missing_staff_id", nil)
	}
	staff, err := s.directory.GetStaff(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrStaffNotFound) {
			return domain.Staff{}, newError(ErrorForbidden, "staff_not_found", err)
		}
		return domain.Staff{}, newError(ErrorInternal, "staff_lookup_error", err)
	}
	if !staff.CanUseConsole() {
		return domain.Staff{}, newError(ErrorForbidden, "role_not_allowed", nil)
	}
	return staff, nil
}

// ListUnassigned returns the waiting queue, newest request first. Done
// conversations never wait.
func (s *StaffService) ListUnassigned(ctx context.Context) []domain.Conversation {
	convs, err := s.store.QueryConversations(ctx, domain.ConversationFilter{Unassigned: true})
	if err != nil {
		s.logger.Warn("unassigned query failed", "err", err)
		return []domain.Conversation{}
	}
	return sortByCreated(waiting(convs))
}

// ListAssignedTo returns the conversations held by staffID, most recently
// active first.
func (s *StaffService) ListAssignedTo(ctx context.Context, staffID string) []domain.Conversation {
	convs, err := s.store.QueryConversations(ctx, domain.ConversationFilter{AssignedTo: staffID})
	if err != nil {
		s.logger.Warn("assigned query failed", "staffId", staffID, "err", err)
		return []domain.Conversation{}
	}
	return sortByActivity(convs)
}

// RecentConversations returns up to limit conversations of any state, most
// recently active first.
func (s *StaffService) RecentConversations(ctx context.Context, limit int) []domain.Conversation {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	convs, err := s.store.QueryConversations(ctx, domain.ConversationFilter{})
	if err != nil {
		s.logger.Warn("recent query failed", "err", err)
		return []domain.Conversation{}
	}
	convs = sortByActivity(convs)
	if len(convs) > limit {
		convs = convs[:limit]
	}
	return convs
}

// WatchUnassigned streams the waiting queue until the returned function is
// called. Feed failures deliver an empty list.
func (s *StaffService) WatchUnassigned(ctx context.Context, onChange func([]domain.Conversation)) func() {
	return s.watchConversations(ctx, domain.ConversationFilter{Unassigned: true}, func(convs []domain.Conversation) {
		onChange(sortByCreated(waiting(convs)))
	})
}

// WatchAssignedTo streams the conversations held by staffID.
func (s *StaffService) WatchAssignedTo(ctx context.Context, staffID string, onChange func([]domain.Conversation)) func() {
	return s.watchConversations(ctx, domain.ConversationFilter{AssignedTo: staffID}, func(convs []domain.Conversation) {
		onChange(sortByActivity(convs))
	})
}

func (s *StaffService) watchConversations(ctx context.Context, filter domain.ConversationFilter, deliver func([]domain.Conversation)) func() {
	onError := func(err error) {
		s.logger.Warn("conversation feed failed", "err", err)
		deliver([]domain.Conversation{})
	}
	unsub, err := s.store.SubscribeConversations(ctx, filter, deliver, onError)
	if err != nil {
		onError(err)
		return func() {}
	}
	return unsub
}

// Claim assigns the conversation to staff. Exactly one of several concurrent
// claims succeeds; the rest fail with ErrorConflict.
func (s *StaffService) Claim(ctx context.Context, conversationID string, staff domain.Staff) error {
	convID, err := s.checkStaff(conversationID, staff)
	if err != nil {
		return err
	}
	notice := domain.ChatMessage{
		ID:                newUUID(),
		ConversationID:    convID,
		Text:              fmt.Sprintf("Conversation assigned to %s. You are now connected with a staff member.", staff.Name()),
		SenderRole:        domain.SenderSystem,
		SenderID:          domain.SystemSenderID,
		SenderDisplayName: "System",
	}
	if err := s.store.AssignConversation(ctx, convID, staff, notice); err != nil {
		return storeError("assign_error", err)
	}
	s.logger.Info("conversation claimed", "conversationId", convID, "staffId", staff.ID)
	return nil
}

// Unclaim returns the conversation to the waiting queue.
func (s *StaffService) Unclaim(ctx context.Context, conversationID string, staff domain.Staff) error {
	convID, err := s.checkStaff(conversationID, staff)
	if err != nil {
		return err
	}
	if err := s.store.UnassignConversation(ctx, convID); err != nil {
		return storeError("unassign_error", err)
	}
	s.logger.Info("conversation released", "conversationId", convID, "staffId", staff.ID)
	return nil
}

// SendStaffMessage appends a staff reply. Writes to a done conversation fail
// with ErrorConversationClosed.
func (s *StaffService) SendStaffMessage(ctx context.Context, conversationID, text string, staff domain.Staff) (domain.ChatMessage, error) {
	convID, err := s.checkStaff(conversationID, staff)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	body, err := validateText(text, s.maxMessageLen)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg, err := s.store.AppendMessage(ctx, domain.ChatMessage{
		ID:                newUUID(),
		ConversationID:    convID,
		Text:              body,
		SenderRole:        domain.SenderStaff,
		SenderID:          staff.ID,
		SenderDisplayName: staff.Name(),
		IsStaffMessage:    true,
	})
	if err != nil {
		return domain.ChatMessage{}, storeError("message_write_error", err)
	}
	return msg, nil
}

// EndSession marks the conversation done and posts the end-of-session marker
// the visitor widget watches for.
func (s *StaffService) EndSession(ctx context.Context, conversationID string, staff domain.Staff) error {
	convID, err := s.checkStaff(conversationID, staff)
	if err != nil {
		return err
	}
	notice := domain.ChatMessage{
		ID:                newUUID(),
		ConversationID:    convID,
		Text:              domain.SessionEndedNotice,
		SenderRole:        domain.SenderSystem,
		SenderID:          domain.SystemSenderID,
		SenderDisplayName: "System",
	}
	if err := s.store.CloseConversation(ctx, convID, notice); err != nil {
		return storeError("close_error", err)
	}
	s.logger.Info("session ended", "conversationId", convID, "staffId", staff.ID)
	return nil
}

// Messages returns the transcript as seen by staffID.
func (s *StaffService) Messages(ctx context.Context, conversationID, staffID string) []domain.ChatMessage {
	msgs, err := fetchTranscript(ctx, s.store, conversationID)
	if err != nil {
		s.logger.Warn("transcript read failed", "conversationId", conversationID, "err", err)
		return []domain.ChatMessage{}
	}
	return VisibleTo(staffID, msgs)
}

// SubscribeMessages streams the transcript as seen by staffID.
func (s *StaffService) SubscribeMessages(ctx context.Context, conversationID, staffID string, onMessages func([]domain.ChatMessage)) func() {
	return watchTranscript(ctx, s.store, conversationID, func(msgs []domain.ChatMessage) {
		onMessages(VisibleTo(staffID, msgs))
	}, s.logger)
}

// VisibleTo drops staff messages written by anyone other than staffID.
// Visitor and system messages are always kept.
func VisibleTo(staffID string, msgs []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.IsStaffMessage && m.SenderID != staffID {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *StaffService) checkStaff(conversationID string, staff domain.Staff) (string, error) {
	if staff.ID == "" || !staff.CanUseConsole() {
		return "", newError(ErrorForbidden, "role_not_allowed", nil)
	}
	convID := strings.TrimSpace(conversationID)
	if convID == "" {
		return "", newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	return convID, nil
}

func waiting(convs []domain.Conversation) []domain.Conversation {
	return slices.DeleteFunc(slices.Clone(convs), domain.Conversation.Done)
}

func sortByCreated(convs []domain.Conversation) []domain.Conversation {
	out := slices.Clone(convs)
	if out == nil {
		out = []domain.Conversation{}
	}
	slices.SortStableFunc(out, func(a, b domain.Conversation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func sortByActivity(convs []domain.Conversation) []domain.Conversation {
	out := slices.Clone(convs)
	if out == nil {
		out = []domain.Conversation{}
	}
	slices.SortStableFunc(out, func(a, b domain.Conversation) int {
		return cmp.Or(b.LastMessageAt.Compare(a.LastMessageAt), b.CreatedAt.Compare(a.CreatedAt))
	})
	return out
}
