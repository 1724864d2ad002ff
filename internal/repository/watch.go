package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"barangay-helpdesk/internal/domain"
)

// watch turns a one-shot read into a change feed. The first read runs
// synchronously so a failing query is reported to the caller; later reads run
// every interval and call onChange only when the fingerprint moves. A failed
// later read ends the feed through onError.
func watch[T any](ctx context.Context, interval time.Duration, fetch func(context.Context) (T, error), fingerprint func(T) string, onChange func(T), onError func(error)) (func(), error) {
	first, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if ctx.Err() != nil {
			return
		}
		last := fingerprint(first)
		onChange(first)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			next, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					onError(err)
				}
				return
			}
			if fp := fingerprint(next); fp != last {
				last = fp
				onChange(next)
			}
		}
	}()
	return cancel, nil
}

func messagesFingerprint(msgs []domain.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.ID)
		b.WriteByte(';')
	}
	return b.String()
}

func conversationsFingerprint(convs []domain.Conversation) string {
	var b strings.Builder
	for _, c := range convs {
		fmt.Fprintf(&b, "%s|%s|%s|%d;", c.ID, c.Status, c.AssignedStaffID, c.LastMessageAt.UnixNano())
	}
	return b.String()
}
