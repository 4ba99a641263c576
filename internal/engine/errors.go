package engine

import "errors"

var (
	// ErrConnection means the engine control socket could not be reached.
	ErrConnection = errors.New("container engine unreachable")
	// ErrPermission means the process may not use the control socket.
	ErrPermission = errors.New("permission denied on container engine socket")
	// ErrNotFound means the container disappeared between two calls.
	ErrNotFound = errors.New("container not found")
	// ErrEngine means the engine reported a fault executing a request.
	ErrEngine = errors.New("container engine error")
)

// Transient reports whether err is a per-container condition that should
// be skipped rather than surfaced.
func Transient(err error) bool {
	return errors.Is(err, ErrNotFound)
}
