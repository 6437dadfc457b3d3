// ABOUTME: Mock Directory implementation for testing
// ABOUTME: Allows tests to run without SQLite

package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockDirectory is an in-memory Directory implementation for testing.
type MockDirectory struct {
	mu     sync.Mutex
	agents map[string]*AgentRecord // keyed by identity
	cases  map[int64]*CaseRecord   // keyed by member number
	events map[int64][]*CaseEvent  // keyed by member number

	// ReserveErr, when set, is returned by ReserveAvailableAgent to
	// simulate a directory outage.
	ReserveErr error

	// RegisterErr, when set, is returned by RegisterAgent.
	RegisterErr error

	// UpdateCaseErr, when set, is returned by UpdateCaseStatus.
	UpdateCaseErr error

	// reserveOrder records identities in insertion order so reservation is
	// deterministic in tests even though the contract does not promise it.
	reserveOrder []string
}

// NewMockDirectory creates a new MockDirectory.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{
		agents: make(map[string]*AgentRecord),
		cases:  make(map[int64]*CaseRecord),
		events: make(map[int64][]*CaseEvent),
	}
}

// ReserveAvailableAgent picks the first online+available agent in insertion
// order and marks it unavailable.
func (m *MockDirectory) ReserveAvailableAgent(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReserveErr != nil {
		return "", m.ReserveErr
	}

	for _, id := range m.reserveOrder {
		rec := m.agents[id]
		if rec != nil && rec.Online && rec.Available {
			rec.Available = false
			rec.UpdatedAt = time.Now()
			return id, nil
		}
	}
	return "", ErrNoAgentAvailable
}

// RegisterAgent marks an agent online and available, creating the record if needed.
func (m *MockDirectory) RegisterAgent(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RegisterErr != nil {
		return m.RegisterErr
	}

	rec, ok := m.agents[agentID]
	if !ok {
		rec = &AgentRecord{Identity: agentID}
		m.agents[agentID] = rec
		m.reserveOrder = append(m.reserveOrder, agentID)
	}
	rec.Online = true
	rec.Available = true
	rec.UpdatedAt = time.Now()
	return nil
}

// SetOnlineAvailable sets both flags for an existing agent. Identities
// without a record are silently skipped, mirroring the SQLite behavior.
func (m *MockDirectory) SetOnlineAvailable(ctx context.Context, agentID string, online, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.agents[agentID]
	if !ok {
		return nil
	}
	rec.Online = online
	rec.Available = available
	rec.UpdatedAt = time.Now()
	return nil
}

// SetAvailable updates the available flag. Mirrors the SQLite behavior:
// available=true is a no-op for offline agents.
func (m *MockDirectory) SetAvailable(ctx context.Context, agentID string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.agents[agentID]
	if !ok {
		return nil
	}
	if available && !rec.Online {
		return nil
	}
	rec.Available = available
	rec.UpdatedAt = time.Now()
	return nil
}

// GetAgent returns a copy of the agent record.
func (m *MockDirectory) GetAgent(ctx context.Context, agentID string) (*AgentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *rec
	return &result, nil
}

// UpdateCaseStatus overwrites the case record and appends an audit event.
func (m *MockDirectory) UpdateCaseStatus(ctx context.Context, memberNo int64, status, operator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateCaseErr != nil {
		return m.UpdateCaseErr
	}

	now := time.Now()
	m.cases[memberNo] = &CaseRecord{
		MemberNo:         memberNo,
		Status:           status,
		AssignedOperator: operator,
		LastUpdatedAt:    now,
	}
	m.events[memberNo] = append(m.events[memberNo], &CaseEvent{
		ID:       uuid.New().String(),
		MemberNo: memberNo,
		Status:   status,
		Operator: operator,
		At:       now,
	})
	return nil
}

// GetCase returns a copy of the case record.
func (m *MockDirectory) GetCase(ctx context.Context, memberNo int64) (*CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.cases[memberNo]
	if !ok {
		return nil, ErrNotFound
	}
	result := *rec
	return &result, nil
}

// ListCaseEvents returns the audit trail for a member case, oldest first.
func (m *MockDirectory) ListCaseEvents(ctx context.Context, memberNo int64, limit int) ([]*CaseEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	events := m.events[memberNo]
	if len(events) > limit {
		events = events[:limit]
	}

	result := make([]*CaseEvent, len(events))
	for i, ev := range events {
		copied := *ev
		result[i] = &copied
	}
	return result, nil
}

// Close is a no-op for the mock.
func (m *MockDirectory) Close() error { return nil }
