package bus

import (
	"context"

	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

// Bus fans SSE messages across server instances. Every API node publishes;
// every node forwards received messages into its local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
