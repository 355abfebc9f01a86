package session

import (
	"context"
	"sync"
	"time"

	"github.com/foxseedlab/minutagen/internal/realtime"
	"github.com/foxseedlab/minutagen/internal/transcriber"
)

type State int

const (
	StateActive State = iota
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// liveSession is the state of one transcription attempt for one connection.
// mu guards state and is never held across upstream calls; writeMu
// serializes stream writes; emitMu serializes relays so that no event leaves
// the session once it is DONE.
type liveSession struct {
	id           string
	connectionID string
	startedAt    time.Time
	stream       transcriber.Stream
	transcript   *Accumulator
	ctx          context.Context
	cancel       context.CancelFunc
	stopCh       chan struct{}

	mu         sync.Mutex
	state      State
	stopReason string

	writeMu sync.Mutex
	emitMu  sync.Mutex
}

func newLiveSession(ctx context.Context, cancel context.CancelFunc, id, connectionID string, stream transcriber.Stream) *liveSession {
	return &liveSession{
		id:           id,
		connectionID: connectionID,
		startedAt:    time.Now(),
		stream:       stream,
		transcript:   NewAccumulator(),
		ctx:          ctx,
		cancel:       cancel,
		stopCh:       make(chan struct{}),
		state:        StateActive,
	}
}

func (s *liveSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *liveSession) StopReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopReason
}

// write forwards audio while the session is ACTIVE. It reports false when the
// chunk was dropped. A write blocked upstream returns once the session context
// is cancelled; it never delays stop or terminate.
func (s *liveSession) write(chunk []byte) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.State() != StateActive {
		return false, nil
	}
	return true, s.stream.Write(chunk)
}

// requestStop moves ACTIVE to FINALIZING and signals the session worker.
func (s *liveSession) requestStop(reason string) bool {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false
	}
	s.state = StateFinalizing
	s.stopReason = reason
	s.mu.Unlock()
	close(s.stopCh)
	return true
}

// terminate moves the session to DONE without relaying anything and cancels
// its context. It waits for an in-flight relay to finish but never for an
// in-flight write.
func (s *liveSession) terminate() bool {
	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return false
	}
	s.state = StateDone
	s.mu.Unlock()

	s.emitMu.Lock()
	s.cancel()
	s.emitMu.Unlock()
	return true
}

// relay sends event to the session's connection unless the session is DONE.
// With closing set the session becomes DONE in the same step, so at most one
// terminal event is relayed.
func (s *liveSession) relay(pub realtime.Publisher, event realtime.Event, closing bool) (bool, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return false, nil
	}
	if closing {
		s.state = StateDone
	}
	s.mu.Unlock()

	return true, pub.Send(s.connectionID, event)
}
