// ABOUTME: Central coordinator for connected participants: matching, relay, and cleanup
// ABOUTME: Dispatches incoming messages and reconciles directory state on disconnect

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/misba031998/instantvideokyc/internal/directory"
)

// AuthorizedConn is implemented by transports that authenticated the
// handshake. AuthSubject returns the identity the credential was issued
// for and AuthRole the role it was minted with; both are "" when the
// endpoint runs open or the credential predates role claims.
type AuthorizedConn interface {
	AuthSubject() string
	AuthRole() string
}

// Hub coordinates all connected participants. It owns the connection
// registry, the waiting queue, and the session table; the transport owns
// the connections themselves and calls HandleMessage and HandleDisconnect
// from each connection's read loop. Handlers for different connections run
// concurrently; only directory calls block.
type Hub struct {
	directory directory.Directory
	registry  *Registry
	queue     *WaitQueue
	sessions  *Sessions
	metrics   *Metrics
	logger    *slog.Logger

	queryTimeout time.Duration
}

// NewHub creates a Hub backed by the given directory.
func NewHub(dir directory.Directory, logger *slog.Logger, queryTimeout time.Duration) *Hub {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Hub{
		directory:    dir,
		registry:     NewRegistry(),
		queue:        NewWaitQueue(),
		sessions:     NewSessions(),
		metrics:      NewMetrics(),
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// Metrics returns the hub's counter registry.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// ConnectedCount returns the number of registered participants.
func (h *Hub) ConnectedCount() int {
	return h.registry.Len()
}

// WaitingCount returns the number of members waiting for an agent.
func (h *Hub) WaitingCount() int {
	return h.queue.Len()
}

// ActiveSessions returns the number of live sessions.
func (h *Hub) ActiveSessions() int {
	return h.sessions.Len()
}

// HandleMessage processes one incoming message from a connection.
// Failures never propagate: a bad message is dropped and logged, and the
// connection keeps processing subsequent messages.
func (h *Hub) HandleMessage(conn Conn, data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		h.metrics.Inc(MetricMalformed)
		h.logger.Warn("dropping malformed message", "error", err)
		return
	}

	switch env.Type {
	case TypeStoreUser:
		h.handleStoreUser(conn, env)
	case TypeRequestKYCCall:
		h.requestCall(conn, env.UserID)
	case TypeCreateOffer, TypeCreateAnswer, TypeICECandidate:
		h.relay(conn, env)
	case TypeKYCStatusUpdate:
		h.handleStatusUpdate(env)
	case TypeCallEnded:
		h.handleCallEnded(env)
	}
}

// HandleDisconnect reconciles state after a connection closes: the registry
// entry goes away, the identity leaves the waiting queue, its directory
// record (if it has one) is marked offline, and any session it was part of
// ends with the peer notified.
func (h *Hub) HandleDisconnect(conn Conn) {
	identity, ok := h.registry.RemoveByConn(conn)
	if !ok {
		// Never announced itself, or already replaced by a reconnect.
		return
	}

	h.metrics.Inc(MetricDisconnects)
	h.logger.Info("participant disconnected", "identity", identity)

	h.queue.Remove(identity)

	// Members have no directory record; the update affects zero rows then.
	ctx, cancel := h.dirCtx()
	err := h.directory.SetOnlineAvailable(ctx, identity, false, false)
	cancel()
	if err != nil {
		h.metrics.Inc(MetricDirectoryErrors)
		h.logger.Error("failed to mark identity offline", "identity", identity, "error", err)
	}

	sess, ok := h.sessions.End(identity)
	if !ok {
		return
	}
	h.metrics.Inc(MetricCallsEnded)

	peer := sess.Peer(identity)
	if peerConn, ok := h.registry.Lookup(peer); ok {
		h.notify(peerConn, Notification{Type: string(TypeCallEnded)})
	}

	// If the member dropped mid-call, the surviving agent goes back into
	// the pool and may pick up a waiting member.
	if peer == sess.Agent {
		ctx, cancel := h.dirCtx()
		err := h.directory.SetAvailable(ctx, sess.Agent, true)
		cancel()
		if err != nil {
			h.metrics.Inc(MetricDirectoryErrors)
			h.logger.Error("failed to restore agent availability", "agent", sess.Agent, "error", err)
			return
		}
		h.drainQueue()
	}
}

func (h *Hub) handleStoreUser(conn Conn, env *Envelope) {
	if ac, ok := conn.(AuthorizedConn); ok {
		subject := ac.AuthSubject()
		if subject != "" && env.Role != RoleMember {
			if env.Name != subject {
				h.logger.Warn("store_user identity does not match credential",
					"name", env.Name,
					"subject", subject,
				)
				return
			}
			if role := ac.AuthRole(); role != "" && role != env.Role {
				h.logger.Warn("store_user role does not match credential",
					"name", env.Name,
					"role", env.Role,
					"token_role", role,
				)
				return
			}
		}
	}

	h.registry.Register(env.Name, conn)
	h.logger.Info("participant registered", "identity", env.Name, "role", env.Role, "connected", h.registry.Len())

	if env.Role != RoleAgent {
		return
	}

	// An agent reconnecting mid-call keeps its reservation; resetting
	// available here would let a second member win an agent that is
	// already paired.
	if sess, ok := h.sessions.ByParticipant(env.Name); ok {
		h.logger.Info("agent reconnected mid-session, keeping reservation",
			"agent", env.Name,
			"session_id", sess.ID,
		)
		return
	}

	ctx, cancel := h.dirCtx()
	err := h.directory.RegisterAgent(ctx, env.Name)
	cancel()
	if err != nil {
		h.metrics.Inc(MetricDirectoryErrors)
		h.logger.Error("failed to register agent in directory", "agent", env.Name, "error", err)
		return
	}

	// A fresh agent in the pool may unblock the oldest waiting member.
	h.drainQueue()
}

// requestCall reserves an agent for the member and creates a session, or
// parks the member in the waiting queue. A participant belongs to at most
// one live session at a time: repeat requests while a session is live are
// dropped before any agent is reserved.
func (h *Hub) requestCall(requester Conn, memberID string) {
	if sess, ok := h.sessions.ByParticipant(memberID); ok {
		h.logger.Warn("ignoring call request from participant already in a session",
			"member", memberID,
			"session_id", sess.ID,
		)
		return
	}

	ctx, cancel := h.dirCtx()
	agentID, err := h.directory.ReserveAvailableAgent(ctx)
	cancel()

	if errors.Is(err, directory.ErrNoAgentAvailable) {
		h.queue.Enqueue(memberID)
		h.metrics.Inc(MetricCallsWaiting)
		h.logger.Info("no agent available, member queued", "member", memberID, "waiting", h.queue.Len())
		h.notify(requester, Notification{Type: TypeWaiting})
		return
	}
	if err != nil {
		// Transient directory failure: no local state changes, the member
		// just sees waiting and can retry.
		h.metrics.Inc(MetricDirectoryErrors)
		h.logger.Error("agent reservation failed", "member", memberID, "error", err)
		h.notify(requester, Notification{Type: TypeWaiting})
		return
	}

	agentConn, ok := h.registry.Lookup(agentID)
	if !ok {
		// The directory said available but the socket is gone. Revert the
		// reservation so the agent is not stuck unavailable forever.
		h.metrics.Inc(MetricStaleReservations)
		h.logger.Warn("reserved agent has no live connection, reverting", "agent", agentID)

		ctx, cancel := h.dirCtx()
		if err := h.directory.SetAvailable(ctx, agentID, true); err != nil {
			h.metrics.Inc(MetricDirectoryErrors)
			h.logger.Error("failed to revert stale reservation", "agent", agentID, "error", err)
		}
		cancel()

		h.queue.Enqueue(memberID)
		h.metrics.Inc(MetricCallsWaiting)
		h.notify(requester, Notification{Type: TypeWaiting})
		return
	}

	sess := h.sessions.Create(memberID, agentID)
	h.metrics.Inc(MetricCallsMatched)
	h.logger.Info("call matched",
		"session_id", sess.ID,
		"member", memberID,
		"agent", agentID,
	)

	h.notify(agentConn, Notification{Type: TypeIncomingCall, UserID: memberID})
	h.notify(requester, Notification{Type: TypeAgentAssigned, AgentName: agentID})
}

// relay forwards a negotiation payload verbatim to the addressed peer.
// Unknown targets are dropped silently: peers disconnect mid-negotiation
// and WebRTC retries at the application layer.
func (h *Hub) relay(sender Conn, env *Envelope) {
	target, ok := h.registry.Lookup(env.Target)
	if !ok {
		h.metrics.Inc(MetricRelayDropped)
		h.logger.Debug("relay target not connected", "type", env.Type, "target", env.Target)
		return
	}

	if env.Type == TypeCreateOffer || env.Type == TypeCreateAnswer {
		if senderID, ok := h.registry.IdentityOf(sender); ok {
			h.sessions.MarkInCall(senderID, env.Target)
		}
	}

	if err := target.Send(env.Raw); err != nil {
		h.metrics.Inc(MetricRelayDropped)
		h.logger.Warn("relay send failed", "type", env.Type, "target", env.Target, "error", err)
		return
	}
	h.metrics.Inc(MetricRelayForwarded)
}

func (h *Hub) handleStatusUpdate(env *Envelope) {
	memberNo, err := env.MemberID.Int64()
	if err != nil {
		// validate() already checked this; belt for direct callers.
		h.metrics.Inc(MetricMalformed)
		return
	}

	ctx, cancel := h.dirCtx()
	err = h.directory.UpdateCaseStatus(ctx, memberNo, env.Status, env.AgentID)
	cancel()
	if err != nil {
		// Best effort: the operator can resend, the overwrite is idempotent.
		h.metrics.Inc(MetricDirectoryErrors)
		h.logger.Error("case status update failed", "member_no", memberNo, "status", env.Status, "error", err)
		return
	}

	h.logger.Info("case status updated", "member_no", memberNo, "status", env.Status, "operator", env.AgentID)

	if env.UserName == "" {
		return
	}
	if conn, ok := h.registry.Lookup(env.UserName); ok {
		h.notify(conn, Notification{Type: TypeKYCResult, Status: env.Status})
	}
}

func (h *Hub) handleCallEnded(env *Envelope) {
	agentID := env.EndedBy()

	sess, ended := h.sessions.End(agentID)
	if !ended && env.Target != "" {
		// Admin-initiated teardown may name only the member.
		sess, ended = h.sessions.End(env.Target)
	}
	if ended {
		h.metrics.Inc(MetricCallsEnded)
		h.logger.Info("call ended", "session_id", sess.ID, "member", sess.Member, "agent", sess.Agent)
	}

	memberID := env.Target
	if ended {
		memberID = sess.Member
	}
	if memberID != "" {
		if conn, ok := h.registry.Lookup(memberID); ok {
			h.notify(conn, Notification{Type: string(TypeCallEnded)})
		}
	}

	ctx, cancel := h.dirCtx()
	err := h.directory.SetAvailable(ctx, agentID, true)
	cancel()
	if err != nil {
		h.metrics.Inc(MetricDirectoryErrors)
		h.logger.Error("failed to restore agent availability", "agent", agentID, "error", err)
		return
	}

	h.drainQueue()
}

// drainQueue gives the oldest waiting member with a live connection another
// shot at matching. Called on every transition that puts an agent back into
// the pool. Members whose connection is gone are discarded as they surface.
func (h *Hub) drainQueue() {
	for {
		memberID, ok := h.queue.Dequeue()
		if !ok {
			return
		}
		conn, ok := h.registry.Lookup(memberID)
		if !ok {
			continue
		}
		h.requestCall(conn, memberID)
		return
	}
}

func (h *Hub) notify(conn Conn, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to encode notification", "type", n.Type, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		h.logger.Warn("notification send failed", "type", n.Type, "error", err)
	}
}

func (h *Hub) dirCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.queryTimeout)
}
