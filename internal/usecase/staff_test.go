package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/memstore"
)

func openConversation(t *testing.T, store *memstore.Store, name string) domain.Conversation {
	t.Helper()
	conv, err := newHandoff(t, store).OpenConversation(context.Background(), name)
	require.NoError(t, err)
	return conv
}

func TestAuthorize(t *testing.T) {
	svc := newStaffService(t, newStore())
	ctx := context.Background()

	got, err := svc.Authorize(ctx, staffAna.ID)
	require.NoError(t, err)
	require.Equal(t, staffAna, got)

	_, err = svc.Authorize(ctx, staffBen.ID)
	require.NoError(t, err)

	_, err = svc.Authorize(ctx, adminCris.ID)
	require.Equal(t, ErrorForbidden, CodeOf(err))

	_, err = svc.Authorize(ctx, "stranger")
	require.Equal(t, ErrorForbidden, CodeOf(err))

	_, err = svc.Authorize(ctx, "")
	require.Equal(t, ErrorForbidden, CodeOf(err))
}

func TestClaim_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)
	conv := openConversation(t, store, "Juan")

	claimants := []domain.Staff{staffAna, staffBen}
	errs := make([]error, len(claimants))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, st := range claimants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = svc.Claim(ctx, conv.ID, st)
		}()
	}
	close(start)
	wg.Wait()

	var winner domain.Staff
	conflicts := 0
	for i, err := range errs {
		if err == nil {
			winner = claimants[i]
			continue
		}
		require.Equal(t, ErrorConflict, CodeOf(err))
		conflicts++
	}
	require.Equal(t, 1, conflicts)

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, winner.ID, got.AssignedStaffID)
	require.Equal(t, winner.DisplayName, got.AssignedStaffName)

	msgs, err := store.ListMessages(ctx, conv.ID, domain.OrderBySentAt)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "only the winning claim posts a notice")
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)
	conv := openConversation(t, store, "Juan")
	require.Equal(t, domain.StatusPending, conv.Status)
	require.Empty(t, conv.AssignedStaffID)

	require.NoError(t, svc.Claim(ctx, conv.ID, staffAna))
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, got.Status)
	require.Equal(t, staffAna.ID, got.AssignedStaffID)
	require.False(t, got.AssignedAt.IsZero())

	require.NoError(t, svc.Unclaim(ctx, conv.ID, staffAna))
	got, err = store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Empty(t, got.AssignedStaffID)

	require.NoError(t, svc.Claim(ctx, conv.ID, staffBen))
	require.NoError(t, svc.EndSession(ctx, conv.ID, staffBen))
	got, err = store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, got.Status)
	require.Equal(t, staffBen.ID, got.AssignedStaffID)
	require.False(t, got.ResolvedAt.IsZero())
	require.Equal(t, "staff", got.ResolvedBy)

	require.Equal(t, ErrorConversationClosed, CodeOf(svc.Claim(ctx, conv.ID, staffAna)))
	require.Equal(t, ErrorConversationClosed, CodeOf(svc.Unclaim(ctx, conv.ID, staffBen)))
	require.Equal(t, ErrorConversationClosed, CodeOf(svc.EndSession(ctx, conv.ID, staffBen)))
	_, err = svc.SendStaffMessage(ctx, conv.ID, "one more thing", staffBen)
	require.Equal(t, ErrorConversationClosed, CodeOf(err))

	after, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, got, after)

	msgs := svc.Messages(ctx, conv.ID, staffBen.ID)
	require.NotEmpty(t, msgs, "history stays readable")
}

func TestEndSession_PostsMarker(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)
	conv := openConversation(t, store, "Juan")
	require.NoError(t, svc.Claim(ctx, conv.ID, staffAna))
	require.NoError(t, svc.EndSession(ctx, conv.ID, staffAna))

	msgs := svc.Messages(ctx, conv.ID, staffBen.ID)
	require.True(t, SessionEnded(msgs))
	require.Contains(t, msgs[len(msgs)-1].Text, domain.SessionEndedMarker)
}

func TestStaffWrites_ValidateCaller(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)
	conv := openConversation(t, store, "Juan")

	require.Equal(t, ErrorForbidden, CodeOf(svc.Claim(ctx, conv.ID, adminCris)))
	require.Equal(t, ErrorInvalidInput, CodeOf(svc.Claim(ctx, " ", staffAna)))
	require.Equal(t, ErrorNotFound, CodeOf(svc.Claim(ctx, "missing", staffAna)))

	_, err := svc.SendStaffMessage(ctx, conv.ID, "", staffAna)
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
}

func TestMessages_StaffSeeOnlyTheirOwnReplies(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)
	h := newHandoff(t, store)
	conv := openConversation(t, store, "Juan")

	require.NoError(t, svc.Claim(ctx, conv.ID, staffAna))
	_, err := svc.SendStaffMessage(ctx, conv.ID, "from ana", staffAna)
	require.NoError(t, err)
	require.NoError(t, svc.Unclaim(ctx, conv.ID, staffAna))
	require.NoError(t, svc.Claim(ctx, conv.ID, staffBen))
	_, err = svc.SendStaffMessage(ctx, conv.ID, "from ben", staffBen)
	require.NoError(t, err)
	_, err = h.SendVisitorMessage(ctx, VisitorMessage{ConversationID: conv.ID, Text: "thanks"})
	require.NoError(t, err)

	texts := func(msgs []domain.ChatMessage) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.Text
		}
		return out
	}

	ben := texts(svc.Messages(ctx, conv.ID, staffBen.ID))
	require.Contains(t, ben, "from ben")
	require.NotContains(t, ben, "from ana")
	require.Contains(t, ben, AgentRequestText)
	require.Contains(t, ben, "thanks")

	ana := texts(svc.Messages(ctx, conv.ID, staffAna.ID))
	require.Contains(t, ana, "from ana")
	require.NotContains(t, ana, "from ben")
	require.Len(t, ana, len(ben))
}

func TestVisibleTo(t *testing.T) {
	msgs := []domain.ChatMessage{
		{ID: "v", SenderRole: domain.SenderVisitor, SenderID: domain.VisitorSenderID},
		{ID: "a", SenderRole: domain.SenderStaff, SenderID: "ana", IsStaffMessage: true},
		{ID: "s", SenderRole: domain.SenderSystem, SenderID: domain.SystemSenderID},
		{ID: "b", SenderRole: domain.SenderStaff, SenderID: "ben", IsStaffMessage: true},
	}
	if diff := cmp.Diff(msgs[:3], VisibleTo("ana", msgs)); diff != "" {
		t.Errorf("VisibleTo(ana) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.ChatMessage{msgs[0], msgs[2], msgs[3]}, VisibleTo("ben", msgs)); diff != "" {
		t.Errorf("VisibleTo(ben) mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, VisibleTo("ana", nil))
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)
	first := openConversation(t, store, "First")
	second := openConversation(t, store, "Second")
	third := openConversation(t, store, "Third")
	closed := openConversation(t, store, "Closed")
	require.NoError(t, svc.EndSession(ctx, closed.ID, staffAna))

	ids := func(convs []domain.Conversation) []string {
		out := make([]string, len(convs))
		for i, c := range convs {
			out[i] = c.ID
		}
		return out
	}

	require.Equal(t, []string{third.ID, second.ID, first.ID}, ids(svc.ListUnassigned(ctx)))

	require.NoError(t, svc.Claim(ctx, first.ID, staffAna))
	require.NoError(t, svc.Claim(ctx, second.ID, staffAna))
	_, err := svc.SendStaffMessage(ctx, first.ID, "latest", staffAna)
	require.NoError(t, err)

	require.Equal(t, []string{first.ID, second.ID}, ids(svc.ListAssignedTo(ctx, staffAna.ID)))
	require.Empty(t, svc.ListAssignedTo(ctx, staffBen.ID))
	require.Equal(t, []string{third.ID}, ids(svc.ListUnassigned(ctx)))

	require.Equal(t, []string{first.ID, second.ID}, ids(svc.RecentConversations(ctx, 2)))
	require.Len(t, svc.RecentConversations(ctx, 0), 4)
}

func TestWatchUnassigned(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	svc := newStaffService(t, store)

	var mu sync.Mutex
	var latest []domain.Conversation
	stop := svc.WatchUnassigned(ctx, func(convs []domain.Conversation) {
		mu.Lock()
		defer mu.Unlock()
		latest = convs
	})
	defer stop()
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		if latest == nil {
			return -1
		}
		return len(latest)
	}

	require.Eventually(t, func() bool { return count() == 0 }, waitFor, tick)
	conv := openConversation(t, store, "Juan")
	require.Eventually(t, func() bool { return count() == 1 }, waitFor, tick)
	require.NoError(t, svc.Claim(ctx, conv.ID, staffAna))
	require.Eventually(t, func() bool { return count() == 0 }, waitFor, tick)
}

func TestWatchAssignedTo_FailureDeliversEmpty(t *testing.T) {
	store := newStore(memstore.WithSubscriptionError(errors.New("feed down")))
	svc := newStaffService(t, store)

	got := make(chan []domain.Conversation, 1)
	stop := svc.WatchAssignedTo(context.Background(), staffAna.ID, func(convs []domain.Conversation) {
		select {
		case got <- convs:
		default:
		}
	})
	defer stop()

	select {
	case convs := <-got:
		require.NotNil(t, convs)
		require.Empty(t, convs)
	case <-timeAfter(t):
		t.Fatal("no delivery after feed failure")
	}
}

func TestSubscribeMessages_FiltersPerStaff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newStore()
	svc := newStaffService(t, store)
	conv := openConversation(t, store, "Juan")
	require.NoError(t, svc.Claim(ctx, conv.ID, staffAna))
	_, err := svc.SendStaffMessage(ctx, conv.ID, "from ana", staffAna)
	require.NoError(t, err)

	rec := &recorder{}
	stop := svc.SubscribeMessages(ctx, conv.ID, staffBen.ID, rec.onTranscript)
	defer stop()

	require.Eventually(t, func() bool { return len(rec.Last()) == 2 }, waitFor, tick)
	for _, m := range rec.Last() {
		require.NotEqual(t, "from ana", m.Text)
	}
}
