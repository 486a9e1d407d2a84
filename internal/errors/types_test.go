package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(&TransientError{Err: fmt.Errorf("rate limited"), StatusCode: 429}))
	assert.False(t, IsTransient(&PermanentError{Err: fmt.Errorf("bad key"), StatusCode: 401}))
	assert.False(t, IsTransient(nil))

	// Wrapped typed errors keep their classification.
	wrapped := fmt.Errorf("call failed: %w", &TransientError{Err: fmt.Errorf("busy")})
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransientHTTPStatusInMessage(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("request failed with status 503")))
	assert.True(t, IsTransient(fmt.Errorf("HTTP 429 too many requests")))
	assert.False(t, IsTransient(fmt.Errorf("request failed with status 404")))
	assert.False(t, IsTransient(fmt.Errorf("request failed with status 400")))
}

func TestIsTransientNetworkPatterns(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: connection refused")))
	assert.True(t, IsTransient(fmt.Errorf("read: connection reset by peer")))
	assert.False(t, IsTransient(fmt.Errorf("something else entirely")))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("tool not found")))
	assert.True(t, IsPermanent(fmt.Errorf("401 unauthorized")))
	assert.False(t, IsPermanent(&TransientError{Err: fmt.Errorf("throttled")}))
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeCancelled, GetErrorType(context.Canceled))
	assert.Equal(t, ErrorTypeTransient, GetErrorType(&TransientError{Err: fmt.Errorf("x")}))
	assert.Equal(t, ErrorTypePermanent, GetErrorType(fmt.Errorf("unclassified")))
	assert.Equal(t, ErrorTypePermanent, GetErrorType(nil))
}

func TestInvariant(t *testing.T) {
	err := Invariant("phase went backward: %s", "gathering")
	assert.True(t, IsInvariant(err))
	assert.Contains(t, err.Error(), "invariant violation")
	assert.False(t, IsInvariant(fmt.Errorf("plain")))
}
