package docker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"dockmon/internal/engine"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/client"
)

// classify maps a Docker SDK error onto the engine sentinel errors while
// keeping the underlying error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%w: %w", engine.ErrNotFound, err)
	case isPermissionDenied(err):
		return fmt.Errorf("%w: %w", engine.ErrPermission, err)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%w: %w", engine.ErrConnection, err)
	default:
		return fmt.Errorf("%w: %w", engine.ErrEngine, err)
	}
}

// isPermissionDenied detects EACCES on the control socket. The SDK reports
// it as a connection failure, so the message is checked as well.
func isPermissionDenied(err error) bool {
	if errors.Is(err, fs.ErrPermission) || errdefs.IsPermissionDenied(err) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "permission denied")
}
