package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/yashvikram30/decentralized-canva-sub000/config"
	"github.com/yashvikram30/decentralized-canva-sub000/discovery"
	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

// SealFlagBytes is the approval protocol flag: "seal" in ASCII.
var SealFlagBytes = []byte{0x73, 0x65, 0x61, 0x6c}

const (
	// ApproveOp is the entry-point selector embedded in the approval output.
	ApproveOp = "approve"

	// approvalNonceLen is the length of the per-approval randomizer. It makes
	// each approval transaction unique so an observer cannot replay one.
	approvalNonceLen = 16
)

// Approval is a built and signed seal_approve transaction, ready for
// submission. The signature is detached: it covers the SHA256 digest of the
// raw transaction and is presented to key servers alongside it.
type Approval struct {
	RawTx     []byte // serialized approval transaction
	TxID      []byte // transaction ID (32 bytes)
	Signature []byte // DER signature over SHA256(RawTx)
	PubKey    []byte // compressed public key of the signer (33 bytes)
	Nonce     []byte // per-approval randomizer
}

// ApprovalParams holds inputs for building a seal_approve transaction.
type ApprovalParams struct {
	Identity   policy.Identity
	PolicyID   policy.PolicyID
	Credential *ec.PrivateKey

	// ObjectID addresses the on-chain authorization program. Optional for
	// deployments whose node binds a single program.
	ObjectID string
}

// BuildApproval constructs and signs a seal_approve transaction.
//
// The transaction carries a single OP_FALSE OP_RETURN output with pushes:
//
//	pushdata[0]: "seal"
//	pushdata[1]: "approve"
//	pushdata[2]: identity
//	pushdata[3]: policy id
//	pushdata[4]: nonce (16 bytes)
//	pushdata[5]: oracle object id (only when configured)
//
// The external program evaluates the pushes against the on-chain policy
// object; the node accepts or rejects the transaction accordingly.
func BuildApproval(params *ApprovalParams) (*Approval, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params", ErrNilParam)
	}
	if params.Credential == nil {
		return nil, fmt.Errorf("%w: credential", ErrNilParam)
	}
	if params.Identity == "" {
		return nil, fmt.Errorf("%w: identity", ErrNilParam)
	}
	if params.PolicyID == "" {
		return nil, fmt.Errorf("%w: policy id", ErrNilParam)
	}

	nonce := make([]byte, approvalNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("ledger: generate nonce: %w", err)
	}

	s, err := buildApprovalScript(params.Identity, params.PolicyID, nonce, params.ObjectID)
	if err != nil {
		return nil, err
	}

	sdkTx := transaction.NewTransaction()
	sdkTx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      0,
		LockingScript: s,
	})

	rawTx := sdkTx.Bytes()
	digest := bsvhash.Sha256(rawTx)

	sig, err := params.Credential.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("ledger: sign approval: %w", err)
	}

	return &Approval{
		RawTx:     rawTx,
		TxID:      sdkTx.TxID().CloneBytes(),
		Signature: sig.Serialize(),
		PubKey:    params.Credential.PubKey().Compressed(),
		Nonce:     nonce,
	}, nil
}

// buildApprovalScript creates the OP_FALSE OP_RETURN approval script.
func buildApprovalScript(identity policy.Identity, policyID policy.PolicyID, nonce []byte, objectID string) (*script.Script, error) {
	s := &script.Script{}
	*s = append(*s, script.Op0, script.OpRETURN)
	pushes := [][]byte{
		SealFlagBytes,
		[]byte(ApproveOp),
		[]byte(identity),
		[]byte(policyID),
		nonce,
	}
	if objectID != "" {
		pushes = append(pushes, []byte(objectID))
	}
	for _, push := range pushes {
		if err := s.AppendPushData(push); err != nil {
			return nil, fmt.Errorf("%w: push data: %w", ErrScriptBuild, err)
		}
	}
	return s, nil
}

// Approver obtains on-chain approval for an identity to decrypt under a
// policy. Implementations must report denial distinctly from unavailability.
type Approver interface {
	Approve(ctx context.Context, identity policy.Identity, policyID policy.PolicyID) (*Approval, error)
}

// TxApprover is the production Approver: it builds a seal_approve
// transaction, submits it through a Service, and confirms acceptance.
type TxApprover struct {
	Svc        Service
	Credential *ec.PrivateKey

	// ObjectID is the on-chain authorization program the approvals address.
	ObjectID string
}

// Compile-time interface check.
var _ Approver = (*TxApprover)(nil)

// NewTxApproverFromConfig creates a TxApprover against the configured ledger
// RPC endpoint. The oracle object id is taken from cfg.OracleObject; when
// unset it is discovered through the "sealobj=" TXT record of
// cfg.OracleDomain. A nil resolver selects a DNSSEC-validating resolver
// against cfg.DNSSECUpstream.
func NewTxApproverFromConfig(cfg *config.Config, credential *ec.PrivateKey, resolver discovery.DNSResolver) (*TxApprover, error) {
	objectID := cfg.OracleObject
	if objectID == "" && cfg.OracleDomain != "" {
		if resolver == nil {
			resolver = discovery.NewDNSSECResolver(cfg.DNSSECUpstream)
		}
		resolved, err := discovery.ResolveObjectID(cfg.OracleDomain, resolver)
		if err != nil {
			return nil, fmt.Errorf("ledger: oracle object discovery: %w", err)
		}
		objectID = resolved
	}
	return &TxApprover{
		Svc:        NewRPCClient(cfg.Ledger),
		Credential: credential,
		ObjectID:   objectID,
	}, nil
}

// Approve builds, signs, submits, and confirms a seal_approve transaction.
// A node-side rejection surfaces as ErrApprovalRejected; transport failures
// surface as ErrConnectionFailed so callers can classify transient states.
func (a *TxApprover) Approve(ctx context.Context, identity policy.Identity, policyID policy.PolicyID) (*Approval, error) {
	approval, err := BuildApproval(&ApprovalParams{
		Identity:   identity,
		PolicyID:   policyID,
		Credential: a.Credential,
		ObjectID:   a.ObjectID,
	})
	if err != nil {
		return nil, err
	}

	txid, err := a.Svc.SubmitTx(ctx, hex.EncodeToString(approval.RawTx))
	if err != nil {
		return nil, err
	}

	status, err := a.Svc.GetTxStatus(ctx, txid)
	if err != nil {
		return nil, err
	}
	if !status.Accepted {
		return nil, fmt.Errorf("%w: %s", ErrApprovalRejected, status.Reason)
	}

	return approval, nil
}
