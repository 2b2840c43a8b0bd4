package s3compat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3compat/pkg/provider"
)

func errorBody(code, message string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>%s</Message><Resource>/bucket/key</Resource><RequestId>DOCREQ</RequestId></Error>`, code, message))
}

func testProvider() *Provider {
	return &Provider{cfg: Config{Bucket: "bucket"}}
}

func TestWrapError_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      []error
		notWant   []error
		retryable bool
		status    int
		code      string
	}{
		{
			name:   "no such key",
			err:    &StatusError{StatusCode: 404, Body: errorBody("NoSuchKey", "The specified key does not exist.")},
			want:   []error{provider.ErrNotFound},
			status: 404,
			code:   "NoSuchKey",
		},
		{
			name:   "bodiless head 404",
			err:    &StatusError{StatusCode: 404},
			want:   []error{provider.ErrNotFound},
			status: 404,
			code:   "NotFound",
		},
		{
			name:    "no such bucket",
			err:     &StatusError{StatusCode: 404, Body: errorBody("NoSuchBucket", "The specified bucket does not exist")},
			want:    []error{provider.ErrBucketNotFound},
			notWant: []error{provider.ErrNotFound},
			status:  404,
			code:    "NoSuchBucket",
		},
		{
			name:    "access denied",
			err:     &StatusError{StatusCode: 403, Body: errorBody("AccessDenied", "Access Denied")},
			want:    []error{provider.ErrAuth, provider.ErrAccessDenied},
			notWant: []error{provider.ErrExpiredRequest},
			status:  403,
			code:    "AccessDenied",
		},
		{
			name:      "expired presigned url",
			err:       &StatusError{StatusCode: 403, Body: errorBody("AccessDenied", "Request has expired")},
			want:      []error{provider.ErrAuth, provider.ErrExpiredRequest},
			notWant:   []error{provider.ErrAccessDenied},
			retryable: true,
			status:    403,
			code:      "AccessDenied",
		},
		{
			name:      "request time skewed",
			err:       &StatusError{StatusCode: 403, Body: errorBody("RequestTimeTooSkewed", "The difference between the request time and the current time is too large.")},
			want:      []error{provider.ErrAuth, provider.ErrExpiredRequest},
			retryable: true,
			status:    403,
			code:      "RequestTimeTooSkewed",
		},
		{
			name:   "signature mismatch",
			err:    &StatusError{StatusCode: 403, Body: errorBody("SignatureDoesNotMatch", "The request signature we calculated does not match")},
			want:   []error{provider.ErrAuth, provider.ErrInvalidCredentials},
			status: 403,
			code:   "SignatureDoesNotMatch",
		},
		{
			name:   "bodiless head 403",
			err:    &StatusError{StatusCode: 403},
			want:   []error{provider.ErrAuth, provider.ErrAccessDenied},
			status: 403,
			code:   "Forbidden",
		},
		{
			name:      "slow down",
			err:       &StatusError{StatusCode: 503, Body: errorBody("SlowDown", "Please reduce your request rate.")},
			want:      []error{provider.ErrThrottled},
			retryable: true,
			status:    503,
			code:      "SlowDown",
		},
		{
			name:      "internal error",
			err:       &StatusError{StatusCode: 500, Body: errorBody("InternalError", "We encountered an internal error.")},
			want:      []error{provider.ErrProviderUnavailable},
			retryable: true,
			status:    500,
			code:      "InternalError",
		},
		{
			name:      "unknown 502",
			err:       &StatusError{StatusCode: 502, Body: []byte("<html>bad gateway</html>")},
			want:      []error{provider.ErrProviderUnavailable},
			retryable: true,
			status:    502,
		},
		{
			name:   "precondition failed",
			err:    &StatusError{StatusCode: 412, Body: errorBody("PreconditionFailed", "At least one of the preconditions you specified did not hold.")},
			want:   []error{provider.ErrConflict},
			status: 412,
			code:   "PreconditionFailed",
		},
		{
			name:      "transport failure",
			err:       &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			want:      []error{provider.ErrProviderUnavailable},
			retryable: true,
		},
		{
			name: "malformed response",
			err:  &MalformedResponseError{ResponseKind: KindBucketListing, Reason: "empty body"},
			want: []error{provider.ErrMalformedResponse},
		},
		{
			name:    "local integrity failure",
			err:     clientError("checksum mismatch"),
			notWant: []error{provider.ErrProviderUnavailable},
		},
		{
			name:    "cancelled",
			err:     context.Canceled,
			want:    []error{context.Canceled},
			notWant: []error{provider.ErrProviderUnavailable},
		},
	}

	p := testProvider()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.wrapError("Download", "key", nil, tt.err)
			require.Error(t, err)

			var pe *provider.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "Download", pe.Op)
			assert.Equal(t, provider.ProviderS3Compat, pe.Provider)
			assert.Equal(t, "bucket", pe.Bucket)
			assert.Equal(t, "key", pe.Key)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.Equal(t, tt.retryable, provider.IsRetryable(err))
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.code, pe.Code)

			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
			for _, notWant := range tt.notWant {
				assert.NotErrorIs(t, err, notWant)
			}
		})
	}
}

func TestWrapError_DocumentFields(t *testing.T) {
	p := testProvider()
	err := p.wrapError("Download", "key", provider.ErrDownload,
		&StatusError{StatusCode: 404, RequestID: "HDRREQ", Body: errorBody("NoSuchKey", "The specified key does not exist.")})

	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "The specified key does not exist.", pe.Message)
	assert.Equal(t, "/bucket/key", pe.Resource)
	assert.Equal(t, "DOCREQ", pe.RequestID, "the document request id wins over the header")
	assert.ErrorIs(t, err, provider.ErrDownload)
	assert.ErrorIs(t, err, provider.ErrNotFound)

	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NoSuchKey", apiErr.ErrorCode())
	assert.Equal(t, smithy.FaultClient, apiErr.ErrorFault())

	assert.Equal(t,
		"s3compat Download: bucket/key: download failed: object not found (NoSuchKey: The specified key does not exist., request id DOCREQ)",
		err.Error())
}

func TestWrapError_Relabel(t *testing.T) {
	p := testProvider()
	inner := p.opError("ListFolder", "a/", provider.ErrNotFound)

	err := p.wrapError("Delete", "a/", provider.ErrDelete, inner)

	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Delete", pe.Op)
	assert.ErrorIs(t, err, provider.ErrDelete)
	assert.ErrorIs(t, err, provider.ErrNotFound)
	assert.Equal(t, "s3compat Delete: bucket/a/: delete failed: object not found", err.Error())

	// The inner error is not modified.
	assert.Equal(t, "s3compat ListFolder: bucket/a/: object not found", inner.Error())
}

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, testProvider().wrapError("Delete", "k", provider.ErrDelete, nil))
}

func TestOpError(t *testing.T) {
	p := testProvider()

	err := p.opError("Upload", "a.txt", provider.ErrUpload, provider.ErrInvalidPath)
	assert.ErrorIs(t, err, provider.ErrUpload)
	assert.ErrorIs(t, err, provider.ErrInvalidPath)
	assert.False(t, provider.IsRetryable(err))
	assert.Equal(t, "s3compat Upload: bucket/a.txt: upload failed: invalid path", err.Error())
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bodiless 404", &StatusError{StatusCode: 404}, true},
		{"no such key", &StatusError{StatusCode: 404, Body: errorBody("NoSuchKey", "")}, true},
		{"no such bucket", &StatusError{StatusCode: 404, Body: errorBody("NoSuchBucket", "")}, false},
		{"503", &StatusError{StatusCode: 503}, false},
		{"transport", errors.New("connection reset"), false},
		{"wrapped 404", fmt.Errorf("head: %w", &StatusError{StatusCode: 404}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{StatusCode: 503}
	assert.Equal(t, "unexpected status 503 Service Unavailable", err.Error())
}
