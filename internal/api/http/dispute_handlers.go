package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type serveRequest struct {
	PartnerID uuid.UUID `json:"partnerId"`
}

type evidenceRequest struct {
	Evidence string `json:"evidence"`
	Feelings string `json:"feelings,omitempty"`
	Needs    string `json:"needs,omitempty"`
}

type pickRequest struct {
	ResolutionID string `json:"resolutionId"`
}

type addendumRequest struct {
	Text string `json:"text"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r.Context())
	var req serveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	state, err := s.disputeSvc.Serve(r.Context(), userID, req.PartnerID)
	s.respondOutcome(w, state, err)
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.Accept(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) dismiss(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.Dismiss(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.Cancel(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) submitEvidence(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r.Context())
	var req evidenceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	state, err := s.disputeSvc.SubmitEvidence(r.Context(), userID, req.Evidence, req.Feelings, req.Needs)
	s.respondOutcome(w, state, err)
}

func (s *Server) requestSettlement(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.RequestSettlement(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) acceptSettlement(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.AcceptSettlement(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) declineSettlement(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.DeclineSettlement(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) markPrimingComplete(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.MarkPrimingComplete(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) markJointReady(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.MarkJointReady(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) submitResolutionPick(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r.Context())
	var req pickRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.ResolutionID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "resolutionId is required")
		return
	}
	state, err := s.disputeSvc.SubmitResolutionPick(r.Context(), userID, req.ResolutionID)
	s.respondOutcome(w, state, err)
}

func (s *Server) acceptPartnerResolution(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.AcceptPartnerResolution(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) requestHybridResolution(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.RequestHybridResolution(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) acceptVerdict(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.AcceptVerdict(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) submitAddendum(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r.Context())
	var req addendumRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	state, err := s.disputeSvc.SubmitAddendum(r.Context(), userID, req.Text)
	s.respondOutcome(w, state, err)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.StateForUser(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

func (s *Server) recover(w http.ResponseWriter, r *http.Request) {
	state, err := s.disputeSvc.RecoverFromDatabase(r.Context(), authUserID(r.Context()))
	s.respondOutcome(w, state, err)
}

// stream is the live state feed: an SSE connection that starts with the
// caller's current projection and then receives every fan-out.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	client := s.hub.Register(userID)
	defer s.hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	if state, err := s.disputeSvc.StateForUser(r.Context(), userID); err == nil {
		s.writeEvent(w, flusher, state)
	}

	ctx := r.Context()
	for {
		select {
		case payload, open := <-client.Messages:
			if !open {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}
