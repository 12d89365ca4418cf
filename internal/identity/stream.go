package identity

import (
	"context"
	"sync"
	"time"
)

// Phase is the authentication phase of a session.
type Phase int

const (
	// PhaseUnknown is the initial phase, before the session has resolved.
	// Consumers must not act on a stream still in this phase.
	PhaseUnknown Phase = iota
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is one transition on the identity stream. UserID names the identity
// the transition concerns: the user who signed in, or the one who signed out.
type State struct {
	Phase  Phase     `json:"phase"`
	UserID string    `json:"userId,omitempty"`
	At     time.Time `json:"at"`
}

// Stream fan-outs identity state transitions to all active subscribers.
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]chan State
	next    int
	current State
}

// NewStream initialises a stream in the Unknown phase.
func NewStream() *Stream {
	return &Stream{
		subs:    make(map[int]chan State),
		current: State{Phase: PhaseUnknown},
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// transitions. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish records the transition and fan-outs it to all subscribers. The
// sends happen under the read lock: unsubscription closes channels under the
// write lock, so a send can never race a close.
func (s *Stream) Publish(st State) {
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Current returns the most recent transition, or the Unknown state if none
// has been published yet.
func (s *Stream) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
