package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"barangay-helpdesk/internal/domain"
)

// sortMessages returns msgs ordered by SentAt. Equal timestamps keep the
// order the store delivered them in.
func sortMessages(msgs []domain.ChatMessage) []domain.ChatMessage {
	out := slices.Clone(msgs)
	if out == nil {
		out = []domain.ChatMessage{}
	}
	slices.SortStableFunc(out, func(a, b domain.ChatMessage) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return out
}

// fetchTranscript reads a transcript once. An empty or failed ordered read
// is retried unordered and sorted locally.
func fetchTranscript(ctx context.Context, store ConversationStore, conversationID string) ([]domain.ChatMessage, error) {
	msgs, err := store.ListMessages(ctx, conversationID, domain.OrderBySentAt)
	if err == nil && len(msgs) > 0 {
		return sortMessages(msgs), nil
	}
	msgs, err = store.ListMessages(ctx, conversationID, domain.Unordered)
	if err != nil {
		return nil, err
	}
	return sortMessages(msgs), nil
}

// transcriptFeed keeps one live message subscription for a conversation,
// switching to the unordered query once if the ordered one fails.
type transcriptFeed struct {
	store   ConversationStore
	convID  string
	deliver func([]domain.ChatMessage)
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	unsubs   []func()
	fellBack bool
}

// watchTranscript streams sorted transcript snapshots to deliver until the
// returned stop function is called or ctx ends. Subscription failures are
// logged and delivered as an empty transcript.
func watchTranscript(ctx context.Context, store ConversationStore, conversationID string, deliver func([]domain.ChatMessage), logger *slog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	f := &transcriptFeed{
		store:   store,
		convID:  conversationID,
		deliver: deliver,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	unsub, err := store.SubscribeMessages(ctx, conversationID, domain.OrderBySentAt, f.emit, f.orderedFailed)
	if err != nil {
		f.orderedFailed(err)
		return f.stop
	}
	f.keep(unsub)
	return f.stop
}

func (f *transcriptFeed) emit(msgs []domain.ChatMessage) {
	if f.ctx.Err() != nil {
		return
	}
	f.deliver(sortMessages(msgs))
}

func (f *transcriptFeed) orderedFailed(err error) {
	f.logger.Warn("ordered message feed unavailable, falling back", "conversationId", f.convID, "err", err)

	f.mu.Lock()
	if f.fellBack || f.ctx.Err() != nil {
		f.mu.Unlock()
		return
	}
	f.fellBack = true
	f.mu.Unlock()

	unsub, err := f.store.SubscribeMessages(f.ctx, f.convID, domain.Unordered, f.emit, f.failed)
	if err != nil {
		f.failed(err)
		return
	}
	f.keep(unsub)
}

func (f *transcriptFeed) failed(err error) {
	if f.ctx.Err() != nil {
		return
	}
	f.logger.Warn("message feed failed", "conversationId", f.convID, "err", err)
	f.deliver([]domain.ChatMessage{})
}

func (f *transcriptFeed) keep(unsub func()) {
	f.mu.Lock()
	if f.ctx.Err() != nil {
		f.mu.Unlock()
		unsub()
		return
	}
	f.unsubs = append(f.unsubs, unsub)
	f.mu.Unlock()
}

func (f *transcriptFeed) stop() {
	f.cancel()
	f.mu.Lock()
	unsubs := f.unsubs
	f.unsubs = nil
	f.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

type snapshotSource int

const (
	fromFeed snapshotSource = iota
	fromPoll
)

// reconciler decides whether a transcript snapshot is new. Feed snapshots
// apply whenever the message identities change. Poll snapshots apply only
// when the message count differs from the last applied one.
type reconciler struct {
	applied bool
	ids     []string
}

func (r *reconciler) apply(msgs []domain.ChatMessage, src snapshotSource) bool {
	if r.applied && src == fromPoll && len(msgs) == len(r.ids) {
		return false
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	if r.applied && slices.Equal(ids, r.ids) {
		return false
	}
	r.applied = true
	r.ids = ids
	return true
}
