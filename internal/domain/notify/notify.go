package notify

import (
	"context"

	"github.com/google/uuid"
)

// Pusher delivers best-effort push notifications. Delivery is not required
// for correctness; the pull-based state query on reconnect is authoritative.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, title, body string)
}
