package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogPusher is the default pusher when no provider is configured. Delivery
// is best-effort anyway; logging keeps the notification path observable.
type LogPusher struct {
	logger zerolog.Logger
}

func NewLogPusher(logger zerolog.Logger) *LogPusher {
	return &LogPusher{logger: logger.With().Str("component", "push").Logger()}
}

func (p *LogPusher) Push(ctx context.Context, userID uuid.UUID, title, body string) {
	p.logger.Info().
		Str("user_id", userID.String()).
		Str("title", title).
		Str("body", body).
		Msg("push notification")
}
