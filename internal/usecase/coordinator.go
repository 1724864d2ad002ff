package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"barangay-helpdesk/internal/domain"
)

// Mode is the visitor widget's conversational state.
type Mode int

const (
	ModeBot Mode = iota
	ModeAwaitingStaff
	ModeLiveWithStaff
)

func (m Mode) String() string {
	switch m {
	case ModeBot:
		return "bot"
	case ModeAwaitingStaff:
		return "awaiting_staff"
	case ModeLiveWithStaff:
		return "live_with_staff"
	default:
		return "unknown"
	}
}

const DefaultPollInterval = 3 * time.Second

// Responder produces bot replies while no staff session is open.
type Responder interface {
	Respond(ctx context.Context, utterance string) (Reply, error)
}

// Coordinator drives one visitor's widget: bot replies, the staff hand-off,
// and the return to the bot once staff end the session. A live transcript
// feed and a periodic poll both feed the same reconciliation step.
type Coordinator struct {
	bot          Responder
	handoff      *HandoffService
	pollInterval time.Duration
	logger       *slog.Logger
	onTranscript func([]domain.ChatMessage)
	onMode       func(Mode)

	mu          sync.Mutex
	mode        Mode
	connecting  bool
	closed      bool
	convID      string
	visitorName string
	recon       reconciler
	cancelFeed  context.CancelFunc
	stopWatch   func()

	events   []coordinatorEvent
	draining bool

	wg sync.WaitGroup
}

type coordinatorEvent struct {
	transcript  []domain.ChatMessage
	hasMessages bool
	mode        Mode
	modeChanged bool
}

type CoordinatorOption func(*Coordinator)

func WithPollInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTranscriptListener receives every applied transcript snapshot, sorted
// by sentAt. Calls are serialized. Listeners must not call Close.
func WithTranscriptListener(fn func([]domain.ChatMessage)) CoordinatorOption {
	return func(c *Coordinator) { c.onTranscript = fn }
}

// WithModeListener receives every mode transition. Calls are serialized with
// transcript deliveries.
func WithModeListener(fn func(Mode)) CoordinatorOption {
	return func(c *Coordinator) { c.onMode = fn }
}

func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewCoordinator(bot Responder, handoff *HandoffService, opts ...CoordinatorOption) (*Coordinator, error) {
	if bot == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if handoff == nil {
		return nil, errors.New("usecase: handoff service must not be nil")
	}
	c := &Coordinator{
		bot:          bot,
		handoff:      handoff,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ConversationID is empty unless a hand-off is open.
func (c *Coordinator) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convID
}

// RequestAgent opens a hand-off conversation for visitorName and starts
// watching it. Only one hand-off may be open at a time.
func (c *Coordinator) RequestAgent(ctx context.Context, visitorName string) (string, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return "", newError(ErrorConflict, "coordinator_closed", nil)
	case c.convID != "" || c.connecting:
		c.mu.Unlock()
		return "", newError(ErrorConflict, "conversation_open", nil)
	}
	c.connecting = true
	c.mu.Unlock()

	conv, err := c.handoff.OpenConversation(ctx, visitorName)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("hand-off request failed", "err", err)
		return "", err
	}
	if c.closed {
		c.mu.Unlock()
		return "", newError(ErrorConflict, "coordinator_closed", nil)
	}
	c.convID = conv.ID
	c.visitorName = conv.VisitorDisplayName
	c.recon = reconciler{}
	c.mode = ModeAwaitingStaff
	drain := c.queueLocked(coordinatorEvent{mode: ModeAwaitingStaff, modeChanged: true})
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFeed = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	if drain {
		c.drain()
	}
	go c.poll(ctx, conv.ID)
	c.watch(ctx, conv.ID)
	return conv.ID, nil
}

// SendVisitorMessage writes a visitor turn to an open hand-off.
func (c *Coordinator) SendVisitorMessage(ctx context.Context, conversationID, text string) (domain.ChatMessage, error) {
	c.mu.Lock()
	name := ""
	if conversationID == c.convID {
		name = c.visitorName
	}
	c.mu.Unlock()

	msg, err := c.handoff.SendVisitorMessage(ctx, VisitorMessage{
		ConversationID: conversationID,
		VisitorName:    name,
		Text:           text,
	})
	if CodeOf(err) == ErrorConversationClosed {
		c.endSession(conversationID)
	}
	return msg, err
}

// Handle routes one visitor utterance: to staff while a hand-off is open,
// otherwise to the bot.
func (c *Coordinator) Handle(ctx context.Context, text string) (Reply, error) {
	id := c.ConversationID()
	if id == "" {
		return c.bot.Respond(ctx, text)
	}
	if _, err := c.SendVisitorMessage(ctx, id, text); err != nil {
		return Reply{}, err
	}
	return Reply{Source: SourceRelayed}, nil
}

// Subscribe streams sorted transcript snapshots of any conversation to
// onMessages until the returned function is called or ctx ends.
func (c *Coordinator) Subscribe(ctx context.Context, conversationID string, onMessages func([]domain.ChatMessage)) func() {
	return watchTranscript(ctx, c.handoff.store, strings.TrimSpace(conversationID), onMessages, c.logger)
}

// Close stops the live feed and poller and waits for them to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mode = ModeBot
	stop := c.detachLocked()
	c.mu.Unlock()

	stop()
	c.wg.Wait()
}

func (c *Coordinator) watch(ctx context.Context, id string) {
	stop := watchTranscript(ctx, c.handoff.store, id, func(msgs []domain.ChatMessage) {
		c.reconcile(id, msgs, fromFeed)
	}, c.logger)

	c.mu.Lock()
	if c.convID != id || ctx.Err() != nil {
		c.mu.Unlock()
		stop()
		return
	}
	c.stopWatch = stop
	c.mu.Unlock()
}

func (c *Coordinator) poll(ctx context.Context, id string) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		msgs, err := fetchTranscript(ctx, c.handoff.store, id)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("transcript poll failed", "conversationId", id, "err", err)
			}
			continue
		}
		c.reconcile(id, msgs, fromPoll)
	}
}

func (c *Coordinator) reconcile(id string, msgs []domain.ChatMessage, src snapshotSource) {
	c.mu.Lock()
	if c.convID != id || !c.recon.apply(msgs, src) {
		c.mu.Unlock()
		return
	}

	ev := coordinatorEvent{transcript: msgs, hasMessages: true}
	stop := func() {}
	switch {
	case SessionEnded(msgs):
		stop = c.detachLocked()
		ev.mode, ev.modeChanged = ModeBot, c.mode != ModeBot
		c.mode = ModeBot
	case c.mode == ModeAwaitingStaff && staffJoined(msgs):
		ev.mode, ev.modeChanged = ModeLiveWithStaff, true
		c.mode = ModeLiveWithStaff
	}
	drain := c.queueLocked(ev)
	c.mu.Unlock()

	if drain {
		c.drain()
	}
	stop()
}

// endSession returns to the bot when a write reveals the session is over.
func (c *Coordinator) endSession(id string) {
	c.mu.Lock()
	if c.convID != id {
		c.mu.Unlock()
		return
	}
	stop := c.detachLocked()
	changed := c.mode != ModeBot
	c.mode = ModeBot
	drain := c.queueLocked(coordinatorEvent{mode: ModeBot, modeChanged: changed})
	c.mu.Unlock()

	if drain {
		c.drain()
	}
	stop()
}

// detachLocked forgets the open conversation and returns the function that
// releases its feed and poller. Callers run it without holding mu.
func (c *Coordinator) detachLocked() func() {
	cancel, stopWatch := c.cancelFeed, c.stopWatch
	c.cancelFeed, c.stopWatch = nil, nil
	c.convID = ""
	c.visitorName = ""
	c.recon = reconciler{}
	return func() {
		if cancel != nil {
			cancel()
		}
		if stopWatch != nil {
			stopWatch()
		}
	}
}

// queueLocked appends ev and reports whether the caller must drain.
func (c *Coordinator) queueLocked(ev coordinatorEvent) bool {
	if !ev.hasMessages && !ev.modeChanged {
		return false
	}
	c.events = append(c.events, ev)
	if c.draining {
		return false
	}
	c.draining = true
	return true
}

func (c *Coordinator) drain() {
	for {
		c.mu.Lock()
		if len(c.events) == 0 {
			c.draining = false
			c.mu.Unlock()
			return
		}
		ev := c.events[0]
		c.events = c.events[1:]
		c.mu.Unlock()

		if ev.hasMessages && c.onTranscript != nil {
			c.onTranscript(ev.transcript)
		}
		if ev.modeChanged && c.onMode != nil {
			c.onMode(ev.mode)
		}
	}
}

func staffJoined(msgs []domain.ChatMessage) bool {
	for _, m := range msgs {
		if m.IsStaffMessage || m.SenderRole == domain.SenderStaff || m.SenderRole == domain.SenderSystem {
			return true
		}
	}
	return false
}
