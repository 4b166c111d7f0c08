package dispute

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimerKind names the one deferred callback each phase (and the settlement
// side-channel) owns.
type TimerKind string

const (
	TimerPending    TimerKind = "PENDING"
	TimerEvidence   TimerKind = "EVIDENCE"
	TimerAnalyzing  TimerKind = "ANALYZING"
	TimerPriming    TimerKind = "PRIMING"
	TimerJoint      TimerKind = "JOINT_READY"
	TimerResolution TimerKind = "RESOLUTION"
	TimerVerdict    TimerKind = "VERDICT"
	TimerSettlement TimerKind = "SETTLEMENT"
	TimerCleanup    TimerKind = "CLEANUP"
)

// Scheduler owns all per-session timers, indexed by session id, so
// cancellation is a registry lookup rather than an entity field access.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uuid.UUID]map[TimerKind]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[uuid.UUID]map[TimerKind]*time.Timer)}
}

// Schedule arms one timer, replacing any existing timer of the same kind.
func (sc *Scheduler) Schedule(sessionID uuid.UUID, kind TimerKind, d time.Duration, fn func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	byKind, ok := sc.timers[sessionID]
	if !ok {
		byKind = make(map[TimerKind]*time.Timer)
		sc.timers[sessionID] = byKind
	}
	if existing, ok := byKind[kind]; ok {
		existing.Stop()
	}
	byKind[kind] = time.AfterFunc(d, func() {
		sc.forget(sessionID, kind)
		fn()
	})
}

// Cancel stops one timer if armed.
func (sc *Scheduler) Cancel(sessionID uuid.UUID, kind TimerKind) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	byKind, ok := sc.timers[sessionID]
	if !ok {
		return
	}
	if t, ok := byKind[kind]; ok {
		t.Stop()
		delete(byKind, kind)
	}
	if len(byKind) == 0 {
		delete(sc.timers, sessionID)
	}
}

// CancelAll stops every outstanding timer for a session. Terminal actions
// call this first, before any asynchronous I/O.
func (sc *Scheduler) CancelAll(sessionID uuid.UUID) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, t := range sc.timers[sessionID] {
		t.Stop()
	}
	delete(sc.timers, sessionID)
}

// Stop cancels everything; used on shutdown.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, byKind := range sc.timers {
		for _, t := range byKind {
			t.Stop()
		}
	}
	sc.timers = make(map[uuid.UUID]map[TimerKind]*time.Timer)
}

// Armed reports whether a timer of the given kind is outstanding.
func (sc *Scheduler) Armed(sessionID uuid.UUID, kind TimerKind) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.timers[sessionID][kind]
	return ok
}

func (sc *Scheduler) forget(sessionID uuid.UUID, kind TimerKind) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	byKind, ok := sc.timers[sessionID]
	if !ok {
		return
	}
	delete(byKind, kind)
	if len(byKind) == 0 {
		delete(sc.timers, sessionID)
	}
}
