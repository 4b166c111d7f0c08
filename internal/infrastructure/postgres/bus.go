package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Bus relays fan-out payloads between instances over LISTEN/NOTIFY. Each
// message carries its origin so an instance never re-delivers its own.
type Bus struct {
	pool    *pgxpool.Pool
	channel string
	origin  string
	logger  zerolog.Logger
}

type envelope struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func NewBus(pool *pgxpool.Pool, channel, origin string, logger zerolog.Logger) *Bus {
	return &Bus{
		pool:    pool,
		channel: channel,
		origin:  origin,
		logger:  logger.With().Str("component", "bus").Str("channel", channel).Logger(),
	}
}

// Publish sends one payload to every listening instance.
func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	raw, err := json.Marshal(envelope{Origin: b.origin, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal bus envelope: %w", err)
	}
	_, err = b.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, b.channel, string(raw))
	return err
}

// Run listens until ctx is cancelled, invoking handler for every payload
// published by another instance. Connection failures back off and retry.
func (b *Bus) Run(ctx context.Context, handler func(payload []byte)) {
	for {
		if err := b.listen(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn().Err(err).Msg("listen loop failed; reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (b *Bus) listen(ctx context.Context, handler func(payload []byte)) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`LISTEN %q`, b.channel)); err != nil {
		return err
	}
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal([]byte(notification.Payload), &env); err != nil {
			b.logger.Warn().Err(err).Msg("dropping malformed bus payload")
			continue
		}
		if env.Origin == b.origin {
			continue
		}
		handler(env.Data)
	}
}
