package httpapi

import (
	"context"
	"net/http"
)

// ClusterManager is the raft membership surface exposed for operators.
// Absent on single-node deployments.
type ClusterManager interface {
	AddVoter(ctx context.Context, nodeID, raftAddr string) error
	IsLeader() bool
}

type joinClusterRequest struct {
	NodeID   string `json:"nodeId"`
	RaftAddr string `json:"raftAddr"`
}

// joinCluster admits a new voter. Only the leader may change membership;
// followers answer 503 so the joiner can retry against another peer.
func (s *Server) joinCluster(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusNotFound, "NOT_CLUSTERED", "this instance runs single-node")
		return
	}
	var req joinClusterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.NodeID == "" || req.RaftAddr == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "nodeId and raftAddr are required")
		return
	}
	if !s.cluster.IsLeader() {
		respondError(w, http.StatusServiceUnavailable, "NOT_LEADER", "join requests must reach the leader")
		return
	}
	if err := s.cluster.AddVoter(r.Context(), req.NodeID, req.RaftAddr); err != nil {
		s.logger.Error().Err(err).Str("node_id", req.NodeID).Msg("add voter failed")
		respondError(w, http.StatusInternalServerError, "JOIN_FAILED", err.Error())
		return
	}
	s.logger.Info().Str("node_id", req.NodeID).Str("raft_addr", req.RaftAddr).Msg("voter admitted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}
