package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
//
// A *ProviderError unwraps to one or more of these (the taxonomy) and to the
// underlying cause, so callers can test with errors.Is for either.
var (
	// ErrNotFound indicates the requested object or folder does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrConflict indicates an ambiguous namespace state, e.g. a key and a
	// same-named prefix both exist, or a folder being created already exists.
	ErrConflict = errors.New("namespace conflict")

	// ErrInvalidPath indicates a path that can never be resolved.
	ErrInvalidPath = errors.New("invalid path")

	// ErrMalformedResponse indicates an unparseable backend payload.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrAuth indicates a signature or credential rejection.
	ErrAuth = errors.New("authentication failed")

	// ErrExpiredRequest indicates the signed URL expired before the backend
	// processed it. Always reported together with ErrAuth and is retryable.
	ErrExpiredRequest = errors.New("request expired")

	// ErrUpload indicates an integrity mismatch or part failure during upload.
	ErrUpload = errors.New("upload failed")

	// ErrDownload indicates a download could not be started.
	ErrDownload = errors.New("download failed")

	// ErrDelete indicates a delete operation failed.
	ErrDelete = errors.New("delete failed")

	// ErrCopy indicates a copy (or the copy half of a move) failed.
	ErrCopy = errors.New("copy failed")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "Download", "Upload").
	Op string

	// Provider is the provider type (e.g., "s3compat").
	Provider ProviderType

	// Bucket is the bucket name, if applicable.
	Bucket string

	// Key is the object key, if applicable.
	Key string

	// StatusCode is the HTTP status returned by the backend, zero if no
	// response was received.
	StatusCode int

	// Code, Message, Resource and RequestID are copied from the backend
	// error document when one was returned.
	Code      string
	Message   string
	Resource  string
	RequestID string

	// Retryable reports whether repeating the request may succeed
	// (transport failures, 5xx, throttling, expired signatures).
	Retryable bool

	// Err is the taxonomy error (one of the sentinels above, possibly joined).
	Err error

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	switch {
	case e.Key != "":
		msg += fmt.Sprintf(": %s/%s", e.Bucket, e.Key)
	case e.Bucket != "":
		msg += ": " + e.Bucket
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" (%s: %s", e.Code, e.Message)
		if e.RequestID != "" {
			msg += ", request id " + e.RequestID
		}
		msg += ")"
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the taxonomy error and the cause for errors.Is/As support.
func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates an ambiguous file/folder collision.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound returns true if the error indicates the bucket does not exist.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsProviderUnavailable returns true if the error indicates the provider service is unavailable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsRetryable returns true if any ProviderError in the chain is marked retryable.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
