package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	opAssign  = "ASSIGN"
	opRelease = "RELEASE"
)

// command is one replicated ownership change.
type command struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	NodeID    string `json:"nodeId,omitempty"`
}

// Assignments is the deterministic session-ownership table replicated
// through raft. Ownership decides which instance fires a session's timers.
type Assignments struct {
	mu      sync.RWMutex
	byID    map[string]string
	applied int
}

func NewAssignments() *Assignments {
	return &Assignments{byID: make(map[string]string)}
}

// Apply mutates the table with one command. Commands are idempotent.
func (a *Assignments) Apply(cmd command) error {
	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return errors.New("session_id is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch cmd.Op {
	case opAssign:
		nodeID := strings.TrimSpace(cmd.NodeID)
		if nodeID == "" {
			return errors.New("node_id is required")
		}
		a.byID[sessionID] = nodeID
	case opRelease:
		delete(a.byID, sessionID)
	default:
		return fmt.Errorf("unsupported op: %s", cmd.Op)
	}
	a.applied++
	return nil
}

// OwnerOf returns the owning node id, or empty when unassigned.
func (a *Assignments) OwnerOf(sessionID string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.byID[sessionID]
}

// Len reports the number of assigned sessions.
func (a *Assignments) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}

type assignmentsSnapshot struct {
	ByID map[string]string `json:"byId"`
}

// Marshal serializes the current table.
func (a *Assignments) Marshal() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := assignmentsSnapshot{ByID: make(map[string]string, len(a.byID))}
	for k, v := range a.byID {
		snap.ByID[k] = v
	}
	return json.Marshal(snap)
}

// Unmarshal restores the table from a snapshot payload.
func (a *Assignments) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty snapshot")
	}
	var snap assignmentsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.ByID == nil {
		snap.ByID = make(map[string]string)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID = snap.ByID
	return nil
}
