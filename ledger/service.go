// Package ledger consumes the on-chain authorization oracle. Decryption under
// a policy requires a transaction invoking the external program's
// seal_approve entry point; the ledger is treated as an opaque "did this
// succeed" boolean plus transaction bytes. Consensus is out of scope.
package ledger

import "context"

// Service is the ledger interaction contract. The threshold encryption
// adapter submits approval transactions through it before any key server
// releases a share.
type Service interface {
	// SubmitTx submits a raw transaction hex and returns the txid.
	SubmitTx(ctx context.Context, rawTxHex string) (string, error)

	// GetTxStatus returns the acceptance status of a submitted transaction.
	GetTxStatus(ctx context.Context, txid string) (*TxStatus, error)
}

// TxStatus is the outcome of a submitted transaction.
type TxStatus struct {
	Accepted    bool   `json:"accepted"`
	BlockHeight uint64 `json:"block_height"`
	Reason      string `json:"reason,omitempty"`
}

// MockService is a test double for Service.
// All function fields must be set before the corresponding method is called.
type MockService struct {
	SubmitTxFn    func(ctx context.Context, rawTxHex string) (string, error)
	GetTxStatusFn func(ctx context.Context, txid string) (*TxStatus, error)
}

func (m *MockService) SubmitTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.SubmitTxFn(ctx, rawTxHex)
}

func (m *MockService) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	return m.GetTxStatusFn(ctx, txid)
}
