// Package directory persists agent availability flags and member case
// records for kyc-gateway.
//
// # Agent availability
//
// Each agent identity carries two flags: online and available, with the
// invariant that available implies online. The signaling core mutates them
// at four points: agent registration (both true), call assignment
// (available false), call end (available true), and disconnect (both false).
//
// The one load-bearing operation is ReserveAvailableAgent: selecting an
// available agent and marking it busy happens as a single conditional
// UPDATE ... RETURNING statement, so two concurrent call requests can never
// be assigned the same agent.
//
// # Member cases
//
// Case records store the verification outcome (status, assigned operator,
// timestamp) keyed by member number. Status writes are idempotent
// overwrites; every write also appends to an append-only case_events audit
// trail.
//
// # Implementations
//
// SQLiteDirectory is the production implementation (modernc.org/sqlite,
// WAL mode). MockDirectory is an in-memory implementation for tests.
package directory
