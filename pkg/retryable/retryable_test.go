package retryable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/bookline/videomeet/pkg/errors"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", timeoutErr{}, true},
		{"wrapped net timeout", fmt.Errorf("calling provider: %w", timeoutErr{}), true},
		{"connection reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"url error wrapping reset", &url.Error{Op: "Post", URL: "https://api.zoom.us", Err: syscall.ECONNRESET}, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"plain error", errors.New("bad payload"), false},
		{"context cancelled", context.Canceled, false},
		{"app error", apperrors.NewExternalError(apperrors.CodeCreateFailed, "rejected", nil), false},
		{"app error wrapping timeout", apperrors.NewExternalError(apperrors.CodeRefreshFailed, "refresh", timeoutErr{}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsRetryable_DeadlineFromHTTPClient(t *testing.T) {
	// The shape net/http produces when a request deadline fires.
	err := &url.Error{Op: "Get", URL: "https://api.zoom.us", Err: context.DeadlineExceeded}
	assert.True(t, IsRetryable(err))
}
