// ABOUTME: Tests for wire message parsing and validation
// ABOUTME: Covers required fields per type and verbatim raw preservation

package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope_StoreUser(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"store_user","name":"agent-1","role":"agent"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStoreUser, env.Type)
	assert.Equal(t, "agent-1", env.Name)
	assert.Equal(t, RoleAgent, env.Role)
}

func TestParseEnvelope_RelayKeepsRawVerbatim(t *testing.T) {
	// Relay payloads carry fields the gateway does not model (SDP bodies,
	// ICE fields); forwarding must preserve them byte for byte.
	raw := `{"type":"create_offer","target":"agent-1","sdp":{"type":"offer","sdp":"v=0..."},"extra":42}`

	env, err := ParseEnvelope([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, TypeCreateOffer, env.Type)
	assert.Equal(t, "agent-1", env.Target)
	assert.Equal(t, raw, string(env.Raw))
}

func TestParseEnvelope_KYCStatusUpdate(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"kyc_status_update","status":"approved","memberId":42,"agentId":"agent-1","userName":"member-9"}`))
	require.NoError(t, err)

	memberNo, err := env.MemberID.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), memberNo)
	assert.Equal(t, "approved", env.Status)
	assert.Equal(t, "member-9", env.UserName)
}

func TestParseEnvelope_CallEnded_NameVariants(t *testing.T) {
	// Older clients send name, newer ones agentName.
	env, err := ParseEnvelope([]byte(`{"type":"call_ended","name":"agent-1","target":"member-9"}`))
	require.NoError(t, err)
	assert.Equal(t, "agent-1", env.EndedBy())

	env, err = ParseEnvelope([]byte(`{"type":"call_ended","agentName":"agent-2","target":"member-9"}`))
	require.NoError(t, err)
	assert.Equal(t, "agent-2", env.EndedBy())
}

func TestParseEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"unknown type", `{"type":"subscribe"}`},
		{"missing type", `{"name":"x"}`},
		{"store_user missing name", `{"type":"store_user","role":"agent"}`},
		{"store_user bad role", `{"type":"store_user","name":"x","role":"bot"}`},
		{"request missing userId", `{"type":"request_kyc_call"}`},
		{"offer missing target", `{"type":"create_offer","sdp":{}}`},
		{"answer missing target", `{"type":"create_answer"}`},
		{"candidate missing target", `{"type":"ice_candidate"}`},
		{"status missing status", `{"type":"kyc_status_update","memberId":1}`},
		{"status missing memberId", `{"type":"kyc_status_update","status":"approved"}`},
		{"status non-numeric memberId", `{"type":"kyc_status_update","status":"approved","memberId":"abc"}`},
		{"call_ended missing agent", `{"type":"call_ended","target":"member-9"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
