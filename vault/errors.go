package vault

import "errors"

var (
	// ErrDocumentNotFound indicates no document exists under the given id.
	ErrDocumentNotFound = errors.New("vault: document not found")

	// ErrInvalidDocument indicates the document body is empty or not valid
	// JSON.
	ErrInvalidDocument = errors.New("vault: invalid document")

	// ErrAccessDenied indicates the identity lacks the permission an
	// operation requires.
	ErrAccessDenied = errors.New("vault: access denied")

	// ErrInsufficientPermission indicates an operation reserved for policy
	// admins was attempted without admin rights. Publish and delete report
	// this rather than plain denial so callers can prompt for escalation.
	ErrInsufficientPermission = errors.New("vault: insufficient permission")

	// ErrNotPublished indicates the document has no public blob.
	ErrNotPublished = errors.New("vault: document not published")

	// ErrNilParam indicates a required parameter was nil or empty.
	ErrNilParam = errors.New("vault: nil parameter")
)
