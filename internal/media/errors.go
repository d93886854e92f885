package media

import "errors"

// Error kinds reported by a run. Per-file kinds end up in a Failed outcome and
// never stop the batch; only ErrScanRootInaccessible aborts a run.
var (
	ErrScanPermissionDenied     = errors.New("permission denied while scanning")
	ErrScanRootInaccessible     = errors.New("root directory is not accessible")
	ErrProbeFailed              = errors.New("probe failed")
	ErrDecodeFailed             = errors.New("decode failed")
	ErrEncodeFailed             = errors.New("encode failed")
	ErrRenameCollisionExhausted = errors.New("no free sequential name found")
	ErrFilesystemPermission     = errors.New("filesystem permission error")
)
