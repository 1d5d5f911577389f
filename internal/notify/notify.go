// Package notify delivers live job updates to interested clients. Broadcasts
// are best effort; execution never depends on delivery.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/scrape"
)

// Message is the wire payload for one job update.
type Message struct {
	JobID     string           `json:"job_id"`
	OwnerID   string           `json:"owner_id,omitempty"`
	Status    scrape.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// LogNotifier implements scrape.Notifier by writing updates to the service
// log. It is the default when no transport is configured.
type LogNotifier struct {
	logger *zap.Logger
	clock  scrape.Clock
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logger *zap.Logger, clock scrape.Clock) *LogNotifier {
	return &LogNotifier{logger: logger, clock: clock}
}

// Broadcast logs the update.
func (n *LogNotifier) Broadcast(_ context.Context, jobID, ownerID string, status scrape.JobStatus, progress int, message string) error {
	n.logger.Info("job update",
		zap.String("job_id", jobID),
		zap.String("owner_id", ownerID),
		zap.String("status", string(status)),
		zap.Int("progress", progress),
		zap.String("message", message),
		zap.Time("timestamp", n.clock.Now()),
	)
	return nil
}
