package dist

import "errors"

var (
	// ErrTransfer marks network and transport failures.
	ErrTransfer = errors.New("transfer failed")
	// ErrParse marks malformed manifests.
	ErrParse = errors.New("malformed manifest")
	// ErrSchema marks manifests with an unsupported schema version.
	ErrSchema = errors.New("unsupported manifest schema")
	// ErrIntegrity marks checksum mismatches between fetched bytes and declared hashes.
	ErrIntegrity = errors.New("integrity check failed")
)
