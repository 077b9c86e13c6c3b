// Package retryable is the single classification of transport-level faults
// shared by the meeting coordinator and the provisioning worker. The
// coordinator re-raises exactly the errors this package accepts; the worker
// retries exactly the same set, so the two can never drift apart.
package retryable

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"

	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// IsRetryable reports whether err is a transient infrastructure fault that a
// job scheduler may retry with backoff. Business-level failures (AppError)
// are never retryable: they are terminal until re-attempted deliberately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// A connection dropped mid-response surfaces as an unexpected EOF from
	// the HTTP transport.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsRetryable(urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return IsRetryable(opErr.Err)
	}

	return false
}
