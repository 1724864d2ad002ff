package cli

import (
	"fmt"
	"io"
	"sync"

	"barangay-helpdesk/internal/domain"
)

// transcriptPrinter prints each message of a transcript once.
type transcriptPrinter struct {
	out      io.Writer
	hideRole domain.SenderRole

	mu   sync.Mutex
	seen map[string]bool
}

func newTranscriptPrinter(out io.Writer, hideRole domain.SenderRole) *transcriptPrinter {
	return &transcriptPrinter{out: out, hideRole: hideRole, seen: make(map[string]bool)}
}

func (p *transcriptPrinter) print(msgs []domain.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		if m.SenderRole == p.hideRole {
			continue
		}
		fmt.Fprintf(p.out, "%s %s> %s\n", m.SentAt.Local().Format("15:04"), label(m), m.Text)
	}
}

func (p *transcriptPrinter) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.seen)
}

func label(m domain.ChatMessage) string {
	switch {
	case m.SenderRole == domain.SenderSystem:
		return "system"
	case m.SenderDisplayName != "":
		return m.SenderDisplayName
	default:
		return string(m.SenderRole)
	}
}
