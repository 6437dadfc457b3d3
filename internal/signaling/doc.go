// Package signaling implements the kyc-gateway core: matching members to
// available agents and relaying WebRTC negotiation payloads between them.
//
// # Model
//
// Each participant holds one persistent message channel and announces
// itself with a store_user message. A member's request_kyc_call either
// reserves an agent through the directory (atomically, so concurrent
// requests never share an agent) and creates a session, or parks the
// member in the waiting queue. Once paired, create_offer, create_answer
// and ice_candidate messages are forwarded verbatim to the identity named
// in their target field; media itself flows peer to peer.
//
// # Ownership
//
// The Hub owns the connection registry, waiting queue, and session table;
// each is internally synchronized, so message handlers for different
// connections may run in parallel. The transport owns the connections and
// their teardown, and reports closures via HandleDisconnect, which removes
// the registry entry, marks the directory record offline, ends any session
// the identity was part of, and notifies the surviving peer.
//
// # Failure policy
//
// No failure while processing one message ever terminates the connection
// handler. Malformed messages are dropped and logged. Directory failures
// are transient: local state is not mutated on the assumption a failed
// write succeeded, and call requests degrade to a waiting notification.
// Relay messages addressed to a disconnected identity are silently dropped.
package signaling
