// ABOUTME: Directory interface and data types for agent availability and member cases
// ABOUTME: Defines AgentRecord, CaseRecord structs and the Directory interface

package directory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrNoAgentAvailable is returned by ReserveAvailableAgent when no agent
// is currently online and available.
var ErrNoAgentAvailable = errors.New("no agent available")

// AgentRecord holds the availability flags for one agent identity.
// Invariant: Available implies Online.
type AgentRecord struct {
	Identity  string
	Online    bool
	Available bool
	UpdatedAt time.Time
}

// CaseRecord holds the verification outcome for one member case.
type CaseRecord struct {
	MemberNo         int64
	Status           string
	AssignedOperator string
	LastUpdatedAt    time.Time
}

// CaseEvent is one entry in the case audit trail. Every status write appends
// an event, so repeated updates to the same case are reconstructable.
type CaseEvent struct {
	ID       string
	MemberNo int64
	Status   string
	Operator string
	At       time.Time
}

// Directory defines the availability-store operations the signaling core
// depends on. The store's schema and engine are owned by this package; the
// core only sees these methods.
type Directory interface {
	// ReserveAvailableAgent atomically selects one online+available agent
	// and marks it unavailable, returning its identity. Selection among
	// multiple available agents is non-deterministic (first row returned
	// by the store). Returns ErrNoAgentAvailable if no agent qualifies.
	ReserveAvailableAgent(ctx context.Context) (string, error)

	// RegisterAgent marks an agent online and available, creating the
	// record if it does not exist. Called when an agent announces itself.
	RegisterAgent(ctx context.Context, agentID string) error

	// SetOnlineAvailable sets both flags for an existing agent. Identities
	// without a record (members) are silently skipped; the reconciler
	// treats that as the normal case, not an error.
	SetOnlineAvailable(ctx context.Context, agentID string, online, available bool) error

	// SetAvailable updates the available flag for an existing agent.
	// Setting available=true is a no-op for agents that are offline, which
	// keeps the available-implies-online invariant when a reservation is
	// reverted after the agent already disconnected.
	SetAvailable(ctx context.Context, agentID string, available bool) error

	// GetAgent returns the record for one agent identity.
	// Returns ErrNotFound if the agent has never been seen.
	GetAgent(ctx context.Context, agentID string) (*AgentRecord, error)

	// UpdateCaseStatus writes the verification outcome for a member case
	// (idempotent overwrite of the status field) and appends an audit event.
	UpdateCaseStatus(ctx context.Context, memberNo int64, status, operator string) error

	// GetCase returns the case record for a member number.
	// Returns ErrNotFound if no status has ever been written for it.
	GetCase(ctx context.Context, memberNo int64) (*CaseRecord, error)

	// ListCaseEvents returns the audit trail for a member case, oldest first.
	ListCaseEvents(ctx context.Context, memberNo int64, limit int) ([]*CaseEvent, error)

	// Close releases any resources held by the directory
	Close() error
}
