package blobnet

import "errors"

var (
	// ErrInvalidPayload indicates an empty or malformed payload was offered
	// for storage.
	ErrInvalidPayload = errors.New("blobnet: invalid payload")

	// ErrBlobNotFound indicates no blob exists under the requested id.
	ErrBlobNotFound = errors.New("blobnet: blob not found")

	// ErrBlobCorrupted indicates retrieved bytes failed structural validation.
	ErrBlobCorrupted = errors.New("blobnet: blob corrupted")

	// ErrCorruptedEncryptedRecord indicates a record claims to be encrypted
	// but carries no decryptable ciphertext. It is reported distinctly so the
	// condition is not misdiagnosed as a plaintext record.
	ErrCorruptedEncryptedRecord = errors.New("blobnet: corrupted encrypted record")

	// ErrStorageUnavailable indicates the storage network stayed unreachable
	// after the retry budget was spent.
	ErrStorageUnavailable = errors.New("blobnet: storage unavailable")

	// ErrTimeout indicates the operation's deadline elapsed. Reported
	// distinctly from ErrStorageUnavailable: the network may be fine and
	// merely slow.
	ErrTimeout = errors.New("blobnet: operation timed out")

	// ErrTransient marks failures worth retrying, such as a blob the network
	// has not yet registered or one whose registration already expired.
	ErrTransient = errors.New("blobnet: transient failure")

	// ErrUnsupportedCompression indicates an unknown compression scheme tag.
	ErrUnsupportedCompression = errors.New("blobnet: unsupported compression scheme")
)
