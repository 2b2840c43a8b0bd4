package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{
			name: "bucket only",
			err:  &ProviderError{Op: "ListFolder", Provider: ProviderS3Compat, Bucket: "b", Err: ErrBucketNotFound},
			want: "s3compat ListFolder: b: bucket not found",
		},
		{
			name: "with key and cause",
			err:  &ProviderError{Op: "Upload", Provider: ProviderS3Compat, Bucket: "b", Key: "k", Err: ErrUpload, Cause: errors.New("boom")},
			want: "s3compat Upload: b/k: upload failed: boom",
		},
		{
			name: "backend document",
			err: &ProviderError{Op: "Delete", Provider: ProviderS3Compat, Bucket: "b", Key: "k", Err: ErrAccessDenied,
				Code: "AccessDenied", Message: "Access Denied", RequestID: "R1", Cause: errors.New("ignored")},
			want: "s3compat Delete: b/k: access denied (AccessDenied: Access Denied, request id R1)",
		},
		{
			name: "no request id",
			err:  &ProviderError{Op: "Copy", Provider: ProviderS3Compat, Err: ErrCopy, Code: "InternalError", Message: "oops"},
			want: "s3compat Copy: copy failed (InternalError: oops)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &ProviderError{Op: "Download", Err: errors.Join(ErrDownload, ErrNotFound), Cause: cause}

	assert.ErrorIs(t, err, ErrDownload)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConflict)

	assert.Empty(t, (&ProviderError{}).Unwrap())
}

func TestIsHelpers(t *testing.T) {
	wrap := func(sentinel error) error {
		return fmt.Errorf("outer: %w", &ProviderError{Op: "Op", Err: sentinel})
	}

	tests := []struct {
		name  string
		check func(error) bool
		hit   error
	}{
		{"not found", IsNotFound, ErrNotFound},
		{"conflict", IsConflict, ErrConflict},
		{"access denied", IsAccessDenied, ErrAccessDenied},
		{"bucket not found", IsBucketNotFound, ErrBucketNotFound},
		{"invalid credentials", IsInvalidCredentials, ErrInvalidCredentials},
		{"unavailable", IsProviderUnavailable, ErrProviderUnavailable},
		{"throttled", IsThrottled, ErrThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(wrap(tt.hit)))
			assert.True(t, tt.check(tt.hit))
			assert.False(t, tt.check(wrap(ErrInvalidPath)))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"retryable", &ProviderError{Retryable: true}, true},
		{"wrapped retryable", fmt.Errorf("ctx: %w", &ProviderError{Retryable: true}), true},
		{"not retryable", &ProviderError{Err: ErrNotFound}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestProviderType_String(t *testing.T) {
	assert.Equal(t, "s3compat", ProviderS3Compat.String())
}
