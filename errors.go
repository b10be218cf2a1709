package chatcore

import "errors"

// Common errors shared by the chat core packages.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrInvalidRole      = errors.New("invalid message role")
	ErrMisplacedSystem  = errors.New("system message must be the first and only system message")
)
