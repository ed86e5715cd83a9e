package version

import "errors"

var (
	// ErrVersionNotFound indicates no record exists under the requested
	// document and version number.
	ErrVersionNotFound = errors.New("version: version not found")

	// ErrHistoryEmpty indicates the document has no recorded versions.
	ErrHistoryEmpty = errors.New("version: history empty")

	// ErrLastVersion indicates a prune would delete the only remaining
	// version. The latest version is always retained.
	ErrLastVersion = errors.New("version: refusing to prune last version")

	// ErrInvalidRecord indicates a record missing payload or author.
	ErrInvalidRecord = errors.New("version: invalid record")

	// ErrNilParam indicates a required parameter was nil or empty.
	ErrNilParam = errors.New("version: nil parameter")
)
