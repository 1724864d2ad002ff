// Package memstore is an in-process ConversationStore and StaffDirectory with
// push subscriptions. It backs the local CLI and the usecase tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"barangay-helpdesk/internal/domain"
)

type Store struct {
	now          func() time.Time
	orderedIndex bool
	subErr       error

	mu            sync.Mutex
	conversations map[string]domain.Conversation
	created       []string
	messages      map[string][]domain.ChatMessage
	staff         map[string]domain.Staff
	subs          map[*subscription]struct{}
	paused        bool
}

type Option func(*Store)

// WithClock replaces time.Now for server-side timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithoutOrderedIndex makes every sentAt-ordered message query fail with
// domain.ErrOrderedQueryUnavailable.
func WithoutOrderedIndex() Option {
	return func(s *Store) { s.orderedIndex = false }
}

// WithSubscriptionError makes every subscription fail with err after it
// starts.
func WithSubscriptionError(err error) Option {
	return func(s *Store) { s.subErr = err }
}

func WithStaff(staff ...domain.Staff) Option {
	return func(s *Store) {
		for _, st := range staff {
			s.staff[st.ID] = st
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		orderedIndex:  true,
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.ChatMessage),
		staff:         make(map[string]domain.Staff),
		subs:          make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CreateConversation(_ context.Context, conv domain.Conversation, opening domain.ChatMessage) (domain.Conversation, error) {
	if conv.ID == "" {
		return domain.Conversation{}, errors.New("memstore: conversation id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return domain.Conversation{}, fmt.Errorf("memstore: conversation %s already exists", conv.ID)
	}
	now := s.now().UTC()
	conv.Status = domain.StatusPending
	conv.AssignedStaffID, conv.AssignedStaffName = "", ""
	conv.CreatedAt = now
	conv.LastMessageAt = now
	if opening.ID != "" {
		opening.ConversationID = conv.ID
		opening.SentAt = now
		conv.LastMessage = opening.Text
		s.messages[conv.ID] = append(s.messages[conv.ID], opening)
	}
	s.conversations[conv.ID] = conv
	s.created = append(s.created, conv.ID)
	s.notifyLocked()
	return conv, nil
}

func (s *Store) GetConversation(_ context.Context, id string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return domain.Conversation{}, domain.ErrNotFound
	}
	return conv, nil
}

func (s *Store) QueryConversations(_ context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationsLocked(filter), nil
}

func (s *Store) SubscribeConversations(ctx context.Context, filter domain.ConversationFilter, onChange func([]domain.Conversation), onError func(error)) (func(), error) {
	return s.subscribe(ctx, func() error {
		if s.subErr != nil {
			onError(s.subErr)
			return s.subErr
		}
		s.mu.Lock()
		convs := s.conversationsLocked(filter)
		s.mu.Unlock()
		onChange(convs)
		return nil
	}), nil
}

func (s *Store) AppendMessage(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.openLocked(msg.ConversationID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	conv.Status = domain.StatusActive
	msg = s.appendLocked(&conv, msg)
	s.conversations[conv.ID] = conv
	s.notifyLocked()
	return msg, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, order domain.MessageOrder) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked(conversationID, order)
}

func (s *Store) SubscribeMessages(ctx context.Context, conversationID string, order domain.MessageOrder, onChange func([]domain.ChatMessage), onError func(error)) (func(), error) {
	return s.subscribe(ctx, func() error {
		if s.subErr != nil {
			onError(s.subErr)
			return s.subErr
		}
		s.mu.Lock()
		msgs, err := s.messagesLocked(conversationID, order)
		s.mu.Unlock()
		if err != nil {
			onError(err)
			return err
		}
		onChange(msgs)
		return nil
	}), nil
}

func (s *Store) AssignConversation(_ context.Context, id string, staff domain.Staff, notice domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.openLocked(id)
	if err != nil {
		return err
	}
	if !conv.Unassigned() {
		return domain.ErrAlreadyAssigned
	}
	conv.AssignedStaffID = staff.ID
	conv.AssignedStaffName = staff.Name()
	conv.AssignedAt = s.now().UTC()
	conv.Status = domain.StatusActive
	if notice.ID != "" {
		notice.ConversationID = id
		s.appendLocked(&conv, notice)
	}
	s.conversations[id] = conv
	s.notifyLocked()
	return nil
}

func (s *Store) UnassignConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.openLocked(id)
	if err != nil {
		return err
	}
	conv.AssignedStaffID, conv.AssignedStaffName = "", ""
	conv.AssignedAt = time.Time{}
	conv.Status = domain.StatusPending
	s.conversations[id] = conv
	s.notifyLocked()
	return nil
}

func (s *Store) CloseConversation(_ context.Context, id string, notice domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.openLocked(id)
	if err != nil {
		return err
	}
	conv.Status = domain.StatusDone
	conv.ResolvedAt = s.now().UTC()
	conv.ResolvedBy = "staff"
	if notice.ID != "" {
		notice.ConversationID = id
		s.appendLocked(&conv, notice)
	}
	s.conversations[id] = conv
	s.notifyLocked()
	return nil
}

func (s *Store) GetStaff(_ context.Context, id string) (domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[id]
	if !ok {
		return domain.Staff{}, domain.ErrStaffNotFound
	}
	return st, nil
}

func (s *Store) PutStaff(_ context.Context, staff domain.Staff) error {
	if staff.ID == "" {
		return errors.New("memstore: staff id must not be empty")
	}
	if !staff.Role.Valid() {
		return fmt.Errorf("memstore: unknown role %q", staff.Role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[staff.ID] = staff
	return nil
}

// PauseNotifications stops waking subscribers. Writes still apply.
func (s *Store) PauseNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// ResumeNotifications wakes every subscriber with the current state.
func (s *Store) ResumeNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.notifyLocked()
}

func (s *Store) openLocked(id string) (domain.Conversation, error) {
	conv, ok := s.conversations[id]
	if !ok {
		return domain.Conversation{}, domain.ErrNotFound
	}
	if conv.Done() {
		return domain.Conversation{}, domain.ErrConversationClosed
	}
	return conv, nil
}

func (s *Store) appendLocked(conv *domain.Conversation, msg domain.ChatMessage) domain.ChatMessage {
	msg.SentAt = s.now().UTC()
	conv.LastMessage = msg.Text
	conv.LastMessageAt = msg.SentAt
	if msg.IsStaffMessage {
		conv.LastStaffMessage = msg.Text
		conv.LastStaffMessageAt = msg.SentAt
	}
	s.messages[conv.ID] = append(s.messages[conv.ID], msg)
	return msg
}

func (s *Store) conversationsLocked(filter domain.ConversationFilter) []domain.Conversation {
	out := []domain.Conversation{}
	for _, id := range s.created {
		if conv := s.conversations[id]; filter.Matches(conv) {
			out = append(out, conv)
		}
	}
	return out
}

func (s *Store) messagesLocked(conversationID string, order domain.MessageOrder) ([]domain.ChatMessage, error) {
	msgs := slices.Clone(s.messages[conversationID])
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	if order == domain.OrderBySentAt {
		if !s.orderedIndex {
			return nil, domain.ErrOrderedQueryUnavailable
		}
		slices.SortStableFunc(msgs, func(a, b domain.ChatMessage) int {
			return a.SentAt.Compare(b.SentAt)
		})
	}
	return msgs, nil
}
