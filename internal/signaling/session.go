// ABOUTME: Session table tracking matched member-agent pairings and their lifecycle
// ABOUTME: States run Assigned -> InCall -> Ended; Ended sessions leave the table

package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of one member-agent pairing.
type SessionState int

const (
	// StateAssigned means the agent has been notified but no negotiation
	// payload has been exchanged yet.
	StateAssigned SessionState = iota

	// StateInCall means at least one offer or answer has passed between
	// the pair.
	StateInCall

	// StateEnded is terminal. Ended sessions are removed from the table
	// once reconciled, so the state is only observed on the returned copy.
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateAssigned:
		return "assigned"
	case StateInCall:
		return "in_call"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session is one matched member-agent pairing.
type Session struct {
	ID        string
	Member    string
	Agent     string
	State     SessionState
	CreatedAt time.Time
}

// Peer returns the other participant of the session, or "" if the given
// identity is not part of it.
func (s *Session) Peer(identity string) string {
	switch identity {
	case s.Member:
		return s.Agent
	case s.Agent:
		return s.Member
	}
	return ""
}

// Sessions tracks all live sessions, indexed by both participants.
// A participant belongs to at most one live session at a time.
type Sessions struct {
	mu       sync.Mutex
	byMember map[string]*Session
	byAgent  map[string]*Session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{
		byMember: make(map[string]*Session),
		byAgent:  make(map[string]*Session),
	}
}

// Create starts a new session in Assigned state. Any live session either
// participant is still indexed under is evicted first, so the two index
// maps can never disagree about which session an identity belongs to.
func (t *Sessions) Create(member, agent string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evict(member)
	t.evict(agent)

	sess := &Session{
		ID:        uuid.New().String(),
		Member:    member,
		Agent:     agent,
		State:     StateAssigned,
		CreatedAt: time.Now(),
	}
	t.byMember[member] = sess
	t.byAgent[agent] = sess
	return sess
}

// ByParticipant returns a copy of the live session the identity belongs to.
func (t *Sessions) ByParticipant(identity string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess := t.lookup(identity)
	if sess == nil {
		return Session{}, false
	}
	return *sess, true
}

// MarkInCall promotes the session between the two identities from Assigned
// to InCall. It is a no-op unless the identities are the two sides of one
// live session, so stray relays between unrelated parties change nothing.
func (t *Sessions) MarkInCall(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess := t.lookup(a)
	if sess == nil || sess.Peer(a) != b {
		return
	}
	if sess.State == StateAssigned {
		sess.State = StateInCall
	}
}

// End terminates the live session the identity belongs to and removes it
// from the table. The returned copy has State set to Ended.
func (t *Sessions) End(identity string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess := t.lookup(identity)
	if sess == nil {
		return Session{}, false
	}
	delete(t.byMember, sess.Member)
	delete(t.byAgent, sess.Agent)
	sess.State = StateEnded
	return *sess, true
}

// Len returns the number of live sessions.
func (t *Sessions) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byMember)
}

// evict drops the live session an identity belongs to, removing both
// index entries. Must be called with the mutex held.
func (t *Sessions) evict(identity string) {
	sess := t.lookup(identity)
	if sess == nil {
		return
	}
	delete(t.byMember, sess.Member)
	delete(t.byAgent, sess.Agent)
}

// lookup must be called with the mutex held.
func (t *Sessions) lookup(identity string) *Session {
	if sess, ok := t.byMember[identity]; ok {
		return sess
	}
	if sess, ok := t.byAgent[identity]; ok {
		return sess
	}
	return nil
}
