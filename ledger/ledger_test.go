package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashvikram30/decentralized-canva-sub000/config"
)

func testCredential(t *testing.T) *ec.PrivateKey {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

// --- BuildApproval tests ---

func TestBuildApproval(t *testing.T) {
	approval, err := BuildApproval(&ApprovalParams{
		Identity:   "alice",
		PolicyID:   "pol123",
		Credential: testCredential(t),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, approval.RawTx)
	assert.Len(t, approval.TxID, 32)
	assert.NotEmpty(t, approval.Signature)
	assert.Len(t, approval.PubKey, 33)
	assert.Len(t, approval.Nonce, 16)
}

func TestBuildApproval_NonceFreshness(t *testing.T) {
	cred := testCredential(t)
	params := &ApprovalParams{Identity: "alice", PolicyID: "pol123", Credential: cred}

	a1, err := BuildApproval(params)
	require.NoError(t, err)
	a2, err := BuildApproval(params)
	require.NoError(t, err)

	// Same inputs must never produce a replayable transaction.
	assert.NotEqual(t, a1.Nonce, a2.Nonce)
	assert.NotEqual(t, a1.RawTx, a2.RawTx)
}

func TestBuildApproval_ObjectID(t *testing.T) {
	cred := testCredential(t)

	with, err := BuildApproval(&ApprovalParams{
		Identity:   "alice",
		PolicyID:   "pol123",
		Credential: cred,
		ObjectID:   "0xfeedface",
	})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(with.RawTx, []byte("0xfeedface")),
		"the oracle object id must appear as a script push")

	without, err := BuildApproval(&ApprovalParams{
		Identity:   "alice",
		PolicyID:   "pol123",
		Credential: cred,
	})
	require.NoError(t, err)
	assert.False(t, bytes.Contains(without.RawTx, []byte("0xfeedface")))
}

func TestBuildApproval_Validation(t *testing.T) {
	cred := testCredential(t)
	tests := []struct {
		name   string
		params *ApprovalParams
	}{
		{"nil params", nil},
		{"nil credential", &ApprovalParams{Identity: "alice", PolicyID: "p"}},
		{"empty identity", &ApprovalParams{PolicyID: "p", Credential: cred}},
		{"empty policy", &ApprovalParams{Identity: "alice", Credential: cred}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildApproval(tc.params)
			assert.ErrorIs(t, err, ErrNilParam)
		})
	}
}

// --- TxApprover tests ---

func TestTxApprover_Approve(t *testing.T) {
	svc := &MockService{
		SubmitTxFn: func(ctx context.Context, rawTxHex string) (string, error) {
			assert.NotEmpty(t, rawTxHex)
			return "txid1", nil
		},
		GetTxStatusFn: func(ctx context.Context, txid string) (*TxStatus, error) {
			assert.Equal(t, "txid1", txid)
			return &TxStatus{Accepted: true}, nil
		},
	}
	approver := &TxApprover{Svc: svc, Credential: testCredential(t)}

	approval, err := approver.Approve(context.Background(), "alice", "pol123")
	require.NoError(t, err)
	assert.NotEmpty(t, approval.RawTx)
}

func TestTxApprover_Rejected(t *testing.T) {
	svc := &MockService{
		SubmitTxFn: func(ctx context.Context, rawTxHex string) (string, error) {
			return "txid1", nil
		},
		GetTxStatusFn: func(ctx context.Context, txid string) (*TxStatus, error) {
			return &TxStatus{Accepted: false, Reason: "identity not in policy"}, nil
		},
	}
	approver := &TxApprover{Svc: svc, Credential: testCredential(t)}

	_, err := approver.Approve(context.Background(), "mallory", "pol123")
	assert.ErrorIs(t, err, ErrApprovalRejected)
}

func TestTxApprover_SubmitFailure(t *testing.T) {
	svc := &MockService{
		SubmitTxFn: func(ctx context.Context, rawTxHex string) (string, error) {
			return "", ErrConnectionFailed
		},
	}
	approver := &TxApprover{Svc: svc, Credential: testCredential(t)}

	_, err := approver.Approve(context.Background(), "alice", "pol123")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

// stubResolver serves canned TXT answers for object-id discovery.
type stubResolver struct {
	txt    []string
	txtErr error
}

func (s *stubResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return "", nil, nil
}

func (s *stubResolver) LookupTXT(name string) ([]string, error) {
	return s.txt, s.txtErr
}

func TestNewTxApproverFromConfig_ExplicitObject(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OracleObject = "0xabc"

	approver, err := NewTxApproverFromConfig(cfg, testCredential(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", approver.ObjectID)
}

func TestNewTxApproverFromConfig_DiscoveredObject(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OracleDomain = "example.com"

	resolver := &stubResolver{txt: []string{"v=spf1 -all", "sealobj=0xdef456"}}
	approver, err := NewTxApproverFromConfig(cfg, testCredential(t), resolver)
	require.NoError(t, err)
	assert.Equal(t, "0xdef456", approver.ObjectID)
}

func TestNewTxApproverFromConfig_DiscoveryFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OracleDomain = "example.com"

	resolver := &stubResolver{txtErr: errors.New("SERVFAIL")}
	_, err := NewTxApproverFromConfig(cfg, testCredential(t), resolver)
	assert.Error(t, err)
}

// --- RPCClient tests ---

func newRPCServer(t *testing.T, handler func(method string, params []interface{}) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"id": req.ID, "result": result, "error": rpcErr}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestRPCClient_SubmitTx(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		assert.Equal(t, "submittransaction", method)
		require.Len(t, params, 1)
		return "abc123", nil
	})
	defer srv.Close()

	client := NewRPCClient(config.RPCConfig{URL: srv.URL})
	txid, err := client.SubmitTx(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "abc123", txid)
}

func TestRPCClient_Rejection(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -403, Message: "seal_approve assert failed"}
	})
	defer srv.Close()

	client := NewRPCClient(config.RPCConfig{URL: srv.URL})
	_, err := client.SubmitTx(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrApprovalRejected)
}

func TestRPCClient_GetTxStatus(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		assert.Equal(t, "gettransactionstatus", method)
		return map[string]interface{}{"accepted": true, "block_height": 42}, nil
	})
	defer srv.Close()

	client := NewRPCClient(config.RPCConfig{URL: srv.URL})
	status, err := client.GetTxStatus(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, status.Accepted)
	assert.Equal(t, uint64(42), status.BlockHeight)
}

func TestRPCClient_ConnectionFailed(t *testing.T) {
	client := NewRPCClient(config.RPCConfig{URL: "http://127.0.0.1:1"})
	_, err := client.SubmitTx(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}
