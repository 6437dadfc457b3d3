// ABOUTME: Wire message types and parsing for the signaling protocol
// ABOUTME: Covers client requests, relay payloads, and server notifications

package signaling

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates incoming messages.
type MessageType string

// Client-to-server message types.
const (
	TypeStoreUser       MessageType = "store_user"
	TypeRequestKYCCall  MessageType = "request_kyc_call"
	TypeCreateOffer     MessageType = "create_offer"
	TypeCreateAnswer    MessageType = "create_answer"
	TypeICECandidate    MessageType = "ice_candidate"
	TypeKYCStatusUpdate MessageType = "kyc_status_update"
	TypeCallEnded       MessageType = "call_ended"
)

// Server-to-client notification types.
const (
	TypeWaiting       = "waiting"
	TypeIncomingCall  = "incoming_call"
	TypeAgentAssigned = "agent_assigned"
	TypeKYCResult     = "kyc_result"
)

// Participant roles accepted in store_user.
const (
	RoleMember = "member"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

// Envelope is the decoded form of an incoming message. Raw holds the exact
// bytes received so relay types can be forwarded verbatim, unknown fields
// included.
type Envelope struct {
	Type MessageType `json:"type"`

	// store_user
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`

	// request_kyc_call / incoming_call
	UserID string `json:"userId,omitempty"`

	// relay types and call_ended
	Target string `json:"target,omitempty"`

	// kyc_status_update
	Status   string      `json:"status,omitempty"`
	MemberID json.Number `json:"memberId,omitempty"`
	AgentID  string      `json:"agentId,omitempty"`
	UserName string      `json:"userName,omitempty"`

	// call_ended carries the agent identity as agentName or name,
	// depending on the client generation.
	AgentName string `json:"agentName,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// EndedBy returns the agent identity a call_ended message was sent under.
func (e *Envelope) EndedBy() string {
	if e.AgentName != "" {
		return e.AgentName
	}
	return e.Name
}

// ParseEnvelope decodes and validates one incoming message.
// Relay payloads are intentionally not schema-checked beyond the target
// field: their contents (SDP, ICE candidates) belong to the peers.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	env.Raw = data

	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) validate() error {
	switch e.Type {
	case TypeStoreUser:
		if e.Name == "" {
			return fmt.Errorf("store_user message missing name")
		}
		switch e.Role {
		case RoleMember, RoleAgent, RoleAdmin:
		default:
			return fmt.Errorf("store_user message has role %q", e.Role)
		}
	case TypeRequestKYCCall:
		if e.UserID == "" {
			return fmt.Errorf("request_kyc_call message missing userId")
		}
	case TypeCreateOffer, TypeCreateAnswer, TypeICECandidate:
		if e.Target == "" {
			return fmt.Errorf("%s message missing target", e.Type)
		}
	case TypeKYCStatusUpdate:
		if e.Status == "" {
			return fmt.Errorf("kyc_status_update message missing status")
		}
		if e.MemberID == "" {
			return fmt.Errorf("kyc_status_update message missing memberId")
		}
		if _, err := e.MemberID.Int64(); err != nil {
			return fmt.Errorf("kyc_status_update message has non-numeric memberId %q", e.MemberID)
		}
	case TypeCallEnded:
		if e.EndedBy() == "" {
			return fmt.Errorf("call_ended message missing agentName")
		}
	default:
		return fmt.Errorf("unsupported message type %q", e.Type)
	}
	return nil
}

// Notification is the shape of every server-to-client message.
type Notification struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	AgentName string `json:"agentName,omitempty"`
	Status    string `json:"status,omitempty"`
}
