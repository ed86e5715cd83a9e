package ledger

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the ledger node.
	ErrConnectionFailed = errors.New("ledger: connection failed")

	// ErrInvalidResponse indicates the node returned a malformed response.
	ErrInvalidResponse = errors.New("ledger: invalid response")

	// ErrApprovalRejected indicates the seal_approve entry point rejected the
	// transaction: the identity is not authorized for the policy.
	ErrApprovalRejected = errors.New("ledger: approval rejected")

	// ErrNilParam indicates a required parameter was nil or empty.
	ErrNilParam = errors.New("ledger: nil parameter")

	// ErrScriptBuild indicates approval script construction failed.
	ErrScriptBuild = errors.New("ledger: script build failed")
)
