package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appDispute "github.com/accord-app/accord/internal/application/dispute"
	"github.com/accord-app/accord/internal/domain/dispute"
	"github.com/accord-app/accord/internal/domain/identity"
	"github.com/accord-app/accord/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	disputeSvc *appDispute.Service
	hub        *sse.Hub
	verifier   identity.Verifier
	cluster    ClusterManager
	limiter    *rateLimiter
	logger     zerolog.Logger
}

// NewServer builds the handler set. cluster may be nil on single-node
// deployments.
func NewServer(
	disputeSvc *appDispute.Service,
	hub *sse.Hub,
	verifier identity.Verifier,
	cluster ClusterManager,
	ratePerMinute int,
	logger zerolog.Logger,
) *Server {
	return &Server{
		disputeSvc: disputeSvc,
		hub:        hub,
		verifier:   verifier,
		cluster:    cluster,
		limiter:    newRateLimiter(ratePerMinute, time.Minute),
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router: one route per orchestrator action.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1/disputes", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.rateLimit)

		r.Post("/serve", s.serve)
		r.Post("/accept", s.accept)
		r.Post("/dismiss", s.dismiss)
		r.Post("/cancel", s.cancel)
		r.Post("/evidence", s.submitEvidence)
		r.Post("/settlement/request", s.requestSettlement)
		r.Post("/settlement/accept", s.acceptSettlement)
		r.Post("/settlement/decline", s.declineSettlement)
		r.Post("/priming/complete", s.markPrimingComplete)
		r.Post("/joint/ready", s.markJointReady)
		r.Post("/resolution/pick", s.submitResolutionPick)
		r.Post("/resolution/accept-partner", s.acceptPartnerResolution)
		r.Post("/resolution/hybrid", s.requestHybridResolution)
		r.Post("/verdict/accept", s.acceptVerdict)
		r.Post("/verdict/addendum", s.submitAddendum)
		r.Get("/state", s.state)
		r.Post("/recover", s.recover)
		r.Get("/stream", s.stream)
	})

	// Operator surface; raft membership changes, not user traffic.
	r.Post("/v1/cluster/join", s.joinCluster)

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondOutcome maps orchestrator results and errors onto the wire.
func (s *Server) respondOutcome(w http.ResponseWriter, state *dispute.UserState, err error) {
	if err == nil {
		respondJSON(w, http.StatusOK, state)
		return
	}
	status, code := statusFor(err)
	respondError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, dispute.ErrNoActiveSession):
		return http.StatusNotFound, "NO_ACTIVE_SESSION"
	case errors.Is(err, dispute.ErrNotParticipant):
		return http.StatusForbidden, "NOT_PARTICIPANT"
	case errors.Is(err, dispute.ErrSessionExists):
		return http.StatusConflict, "SESSION_EXISTS"
	case errors.Is(err, dispute.ErrPhaseMismatch):
		return http.StatusConflict, "PHASE_MISMATCH"
	case errors.Is(err, dispute.ErrAlreadySubmitted):
		return http.StatusConflict, "ALREADY_SUBMITTED"
	case errors.Is(err, dispute.ErrMismatchLocked):
		return http.StatusConflict, "MISMATCH_LOCKED"
	case errors.Is(err, dispute.ErrFinalized):
		return http.StatusConflict, "ALREADY_FINALIZED"
	case errors.Is(err, dispute.ErrHybridPending):
		return http.StatusConflict, "HYBRID_PENDING"
	case errors.Is(err, dispute.ErrNoMismatch):
		return http.StatusConflict, "NO_MISMATCH"
	case errors.Is(err, dispute.ErrNoPartnerPick):
		return http.StatusConflict, "NO_PARTNER_PICK"
	case errors.Is(err, dispute.ErrNoSettlement):
		return http.StatusConflict, "NO_SETTLEMENT"
	case errors.Is(err, dispute.ErrSettlementSelf):
		return http.StatusConflict, "SETTLEMENT_SELF"
	case errors.Is(err, dispute.ErrUnknownResolution):
		return http.StatusBadRequest, "UNKNOWN_RESOLUTION"
	case errors.Is(err, dispute.ErrAddendumLimit):
		return http.StatusConflict, "ADDENDUM_LIMIT"
	case errors.Is(err, dispute.ErrUsageLimited):
		return http.StatusPaymentRequired, "USAGE_LIMITED"
	case errors.Is(err, dispute.ErrLockBusy):
		return http.StatusServiceUnavailable, "BUSY"
	}
	return http.StatusBadRequest, "INVALID_PARAM"
}
