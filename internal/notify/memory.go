package notify

import (
	"context"
	"sync"

	"github.com/brandpulse/scout/internal/scrape"
)

// MemoryNotifier records broadcasts for inspection in tests.
type MemoryNotifier struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemoryNotifier returns an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Broadcast records the update.
func (n *MemoryNotifier) Broadcast(_ context.Context, jobID, ownerID string, status scrape.JobStatus, progress int, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{
		JobID:    jobID,
		OwnerID:  ownerID,
		Status:   status,
		Progress: progress,
		Message:  message,
	})
	return nil
}

// Messages returns the recorded broadcasts.
func (n *MemoryNotifier) Messages() []Message {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}
