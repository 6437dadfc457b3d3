// ABOUTME: Tests for SQLite directory implementation
// ABOUTME: Covers agent flag updates, atomic reservation, and case records

package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestDirectory(t *testing.T) *SQLiteDirectory {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	dir, err := NewSQLiteDirectory(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteDirectory failed: %v", err)
	}
	t.Cleanup(func() { dir.Close() })
	return dir
}

func TestNewSQLiteDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	dir, err := NewSQLiteDirectory(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteDirectory failed: %v", err)
	}
	defer dir.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteDirectory_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	dir, err := NewSQLiteDirectory(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteDirectory failed: %v", err)
	}
	defer dir.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestRegisterAgent_CreatesAndUpdates(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.RegisterAgent(ctx, "agent-1"); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	rec, err := dir.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if !rec.Online || !rec.Available {
		t.Errorf("agent flags = online:%v available:%v, want both true", rec.Online, rec.Available)
	}

	// Disconnect clears both flags
	if err := dir.SetOnlineAvailable(ctx, "agent-1", false, false); err != nil {
		t.Fatalf("SetOnlineAvailable failed: %v", err)
	}

	rec, err = dir.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if rec.Online || rec.Available {
		t.Errorf("agent flags = online:%v available:%v, want both false", rec.Online, rec.Available)
	}
}

func TestSetOnlineAvailable_UnknownIdentityIsNoop(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	// Members have no directory record; disconnect cleanup must not create one.
	if err := dir.SetOnlineAvailable(ctx, "member-77", false, false); err != nil {
		t.Fatalf("SetOnlineAvailable failed: %v", err)
	}

	_, err := dir.GetAgent(ctx, "member-77")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAgent error = %v, want ErrNotFound", err)
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.GetAgent(context.Background(), "never-seen")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAgent error = %v, want ErrNotFound", err)
	}
}

func TestReserveAvailableAgent(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.RegisterAgent(ctx, "agent-1"); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	identity, err := dir.ReserveAvailableAgent(ctx)
	if err != nil {
		t.Fatalf("ReserveAvailableAgent failed: %v", err)
	}
	if identity != "agent-1" {
		t.Errorf("reserved %q, want agent-1", identity)
	}

	// Reserved agent is no longer available
	rec, err := dir.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if rec.Available {
		t.Error("agent still available after reservation")
	}
	if !rec.Online {
		t.Error("agent went offline after reservation")
	}

	// Second reservation finds no one
	_, err = dir.ReserveAvailableAgent(ctx)
	if !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("ReserveAvailableAgent error = %v, want ErrNoAgentAvailable", err)
	}
}

func TestReserveAvailableAgent_Empty(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.ReserveAvailableAgent(context.Background())
	if !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("ReserveAvailableAgent error = %v, want ErrNoAgentAvailable", err)
	}
}

func TestReserveAvailableAgent_SkipsOffline(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	// Online but not available
	if err := dir.RegisterAgent(ctx, "agent-busy"); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if err := dir.SetAvailable(ctx, "agent-busy", false); err != nil {
		t.Fatalf("SetAvailable failed: %v", err)
	}
	// Offline entirely
	if err := dir.RegisterAgent(ctx, "agent-gone"); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if err := dir.SetOnlineAvailable(ctx, "agent-gone", false, false); err != nil {
		t.Fatalf("SetOnlineAvailable failed: %v", err)
	}

	_, err := dir.ReserveAvailableAgent(ctx)
	if !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("ReserveAvailableAgent error = %v, want ErrNoAgentAvailable", err)
	}
}

// The reservation must behave as one atomic read-and-reserve: N concurrent
// reservations against one available agent yield exactly one winner.
func TestReserveAvailableAgent_Concurrent(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.RegisterAgent(ctx, "agent-1"); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := dir.ReserveAvailableAgent(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNoAgentAvailable):
		default:
			t.Errorf("unexpected reservation error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("got %d successful reservations, want exactly 1", wins)
	}
}

func TestSetAvailable_RevertRequiresOnline(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.RegisterAgent(ctx, "agent-1"); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if _, err := dir.ReserveAvailableAgent(ctx); err != nil {
		t.Fatalf("ReserveAvailableAgent failed: %v", err)
	}

	// Revert while online restores availability
	if err := dir.SetAvailable(ctx, "agent-1", true); err != nil {
		t.Fatalf("SetAvailable failed: %v", err)
	}
	rec, err := dir.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if !rec.Available {
		t.Error("agent not available after revert")
	}

	// Revert after disconnect must not resurrect availability
	if err := dir.SetOnlineAvailable(ctx, "agent-1", false, false); err != nil {
		t.Fatalf("SetOnlineAvailable failed: %v", err)
	}
	if err := dir.SetAvailable(ctx, "agent-1", true); err != nil {
		t.Fatalf("SetAvailable failed: %v", err)
	}
	rec, err = dir.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if rec.Available {
		t.Error("offline agent became available")
	}
}

func TestUpdateCaseStatus_Idempotent(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.UpdateCaseStatus(ctx, 42, "approved", "agent-1"); err != nil {
		t.Fatalf("UpdateCaseStatus failed: %v", err)
	}
	if err := dir.UpdateCaseStatus(ctx, 42, "approved", "agent-1"); err != nil {
		t.Fatalf("UpdateCaseStatus (repeat) failed: %v", err)
	}

	rec, err := dir.GetCase(ctx, 42)
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if rec.Status != "approved" {
		t.Errorf("case status = %q, want approved", rec.Status)
	}
	if rec.AssignedOperator != "agent-1" {
		t.Errorf("assigned operator = %q, want agent-1", rec.AssignedOperator)
	}

	// The case record is overwritten, not duplicated, but each write is audited
	events, err := dir.ListCaseEvents(ctx, 42, 0)
	if err != nil {
		t.Fatalf("ListCaseEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d case events, want 2", len(events))
	}
}

func TestUpdateCaseStatus_Overwrite(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.UpdateCaseStatus(ctx, 7, "pending", "agent-1"); err != nil {
		t.Fatalf("UpdateCaseStatus failed: %v", err)
	}
	if err := dir.UpdateCaseStatus(ctx, 7, "rejected", "agent-2"); err != nil {
		t.Fatalf("UpdateCaseStatus failed: %v", err)
	}

	rec, err := dir.GetCase(ctx, 7)
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if rec.Status != "rejected" {
		t.Errorf("case status = %q, want rejected", rec.Status)
	}
	if rec.AssignedOperator != "agent-2" {
		t.Errorf("assigned operator = %q, want agent-2", rec.AssignedOperator)
	}
}

func TestGetCase_NotFound(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.GetCase(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCase error = %v, want ErrNotFound", err)
	}
}
