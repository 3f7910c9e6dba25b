package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeMatchIgnoresPayload(t *testing.T) {
	a := New(ErrorTypeNetwork, 0, "connection reset")
	b := New(ErrorTypeNetwork, 42, "something else entirely")

	assert.True(t, ErrorTypeNetwork.Match(a))
	assert.True(t, ErrorTypeNetwork.Match(b))
	assert.False(t, ErrorTypeTimeout.Match(a))
}

func TestErrorTypeMatchWrapped(t *testing.T) {
	err := fmt.Errorf("fetching: %w", New(ErrorTypeRateLimit, 429, "slow down"))

	assert.True(t, ErrorTypeRateLimit.Match(err))
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.False(t, ErrorTypeRateLimit.Match(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := Wrap(ErrorTypeNetwork, 0, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "network error (code 0): dial tcp: refused", err.Error())
}

func TestParseErrorType(t *testing.T) {
	tests := []struct {
		in      string
		want    ErrorType
		wantErr bool
	}{
		{"network", ErrorTypeNetwork, false},
		{"RATE_LIMIT", ErrorTypeRateLimit, false},
		{"rate-limit", ErrorTypeRateLimit, false},
		{" exit_status ", ErrorTypeExitStatus, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseErrorType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}

func TestConfigurationError(t *testing.T) {
	err := fmt.Errorf("building policy: %w", NewConfigurationError("retry", "only one of %s and %s may be set", "if_errors", "if_not_errors"))

	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "`retry`")
	assert.False(t, IsConfigurationError(stderrors.New("x")))
}
