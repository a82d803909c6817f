package file

import "errors"

// Plugin-level failure causes. The dispatcher wraps them as OPERATION_FAILED.
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrIOFailure       = errors.New("i/o failure")
	ErrNetworkFailure  = errors.New("network failure")
	ErrInvalidArgument = errors.New("invalid argument")
)
