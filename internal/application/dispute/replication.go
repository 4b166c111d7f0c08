package dispute

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// ChangePublisher relays store change events to peer instances.
type ChangePublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// ChangeRelay returns a store change hook that broadcasts every mutation so
// peers can refresh their own tables from the shared checkpoint rows.
// Publishing is best-effort and never blocks the mutating action.
func ChangeRelay(pub ChangePublisher, logger zerolog.Logger) func(ChangeEvent) {
	log := logger.With().Str("component", "change-relay").Logger()
	return func(ev ChangeEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("marshal change event")
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pub.Publish(ctx, payload); err != nil {
				log.Warn().Err(err).Str("couple_id", ev.CoupleID).Msg("change publish failed")
			}
		}()
	}
}

// HandleRemoteChange applies one peer-published store change payload.
func (s *Service) HandleRemoteChange(payload []byte) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Warn().Err(err).Msg("dropping malformed change event")
		return
	}
	s.ApplyRemoteChange(context.Background(), ev)
}

// ApplyRemoteChange reconciles the local table with a mutation performed on
// another instance. Upserts re-read the checkpoint row; deletes evict the
// local copy. Neither republishes, so events never echo between peers.
func (s *Service) ApplyRemoteChange(ctx context.Context, ev ChangeEvent) {
	unlock := s.lockCouple(ev.CoupleID)
	defer unlock()

	switch ev.Kind {
	case ChangeDelete:
		sess := s.store.GetByCouple(ev.CoupleID)
		if sess == nil || sess.SessionID != ev.SessionID {
			return
		}
		s.sched.CancelAll(ev.SessionID)
		s.store.Evict(ev.CoupleID)
		s.logger.Info().Str("session_id", ev.SessionID.String()).Msg("session evicted on peer delete")
	case ChangeUpsert:
		if s.checkpoints == nil {
			return
		}
		cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		sess, err := s.checkpoints.Load(cctx, ev.SessionID)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", ev.SessionID.String()).Msg("change hydrate failed")
			return
		}
		if sess == nil {
			return
		}
		s.sched.CancelAll(sess.SessionID)
		s.store.Hydrate(sess)
		s.armPhaseTimer(sess)
	}
}
