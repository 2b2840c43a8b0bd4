package s3compat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/3leaps/s3compat/pkg/provider"
)

// StatusError is a non-success HTTP response from the backend. Body holds at
// most maxErrorBody bytes of the response.
type StatusError struct {
	StatusCode int
	RequestID  string
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

const maxErrorBody = 64 << 10

// clientError is a failure detected locally, without a backend response.
type clientError string

func (e clientError) Error() string { return string(e) }

// taxonomy is a set of provider sentinels reported together, e.g. ErrDownload
// and ErrNotFound.
type taxonomy []error

func (t taxonomy) Error() string {
	parts := make([]string, 0, len(t))
	for _, err := range t {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, ": ")
}

func (t taxonomy) Unwrap() []error { return t }

// classification is the result of mapping a backend failure.
type classification struct {
	sentinels []error
	retryable bool
	apiErr    *smithy.GenericAPIError
	status    int
	requestID string
	resource  string
}

// wrapError converts a request failure into a *provider.ProviderError. opErr
// is the operation-level sentinel (ErrDownload, ErrUpload, ...) or nil.
func (p *Provider) wrapError(op, key string, opErr, err error) error {
	if err == nil {
		return nil
	}

	var existing *provider.ProviderError
	if errors.As(err, &existing) {
		// Re-label an inner failure for the public operation.
		cp := *existing
		cp.Op = op
		if key != "" {
			cp.Key = key
		}
		if opErr != nil && !errors.Is(existing, opErr) {
			cp.Err = prepend(opErr, existing.Err)
		}
		return &cp
	}

	c := classify(err)
	wrapped := &provider.ProviderError{
		Op:         op,
		Provider:   provider.ProviderS3Compat,
		Bucket:     p.cfg.Bucket,
		Key:        key,
		StatusCode: c.status,
		RequestID:  c.requestID,
		Resource:   c.resource,
		Retryable:  c.retryable,
		Cause:      err,
	}
	if c.apiErr != nil {
		wrapped.Code = c.apiErr.Code
		wrapped.Message = c.apiErr.Message
		wrapped.Cause = c.apiErr
	}

	sentinels := c.sentinels
	if opErr != nil {
		sentinels = append([]error{opErr}, sentinels...)
	}
	switch len(sentinels) {
	case 0:
		wrapped.Err = err
		if c.apiErr == nil {
			wrapped.Cause = nil
		}
	case 1:
		wrapped.Err = sentinels[0]
	default:
		wrapped.Err = taxonomy(sentinels)
	}
	return wrapped
}

func prepend(first, rest error) error {
	if rest == nil {
		return first
	}
	if t, ok := rest.(taxonomy); ok {
		return append(taxonomy{first}, t...)
	}
	return taxonomy{first, rest}
}

// classify maps a failure onto the provider taxonomy.
func classify(err error) classification {
	var (
		status *StatusError
		local  clientError
	)
	switch {
	case errors.As(err, &status):
		return classifyStatus(status)
	case errors.As(err, &local):
		return classification{}
	case errMalformed(err):
		return classification{sentinels: []error{provider.ErrMalformedResponse}}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return classification{}
	default:
		// Transport failure: no response was received.
		return classification{sentinels: []error{provider.ErrProviderUnavailable}, retryable: true}
	}
}

func classifyStatus(se *StatusError) classification {
	c := classification{status: se.StatusCode, requestID: se.RequestID}

	code, message := "", ""
	if len(se.Body) > 0 && IsErrorDocument(se.Body) {
		if doc, err := ParseError(se.Body); err == nil {
			code, message = doc.Code, doc.Message
			c.resource = doc.Resource
			if doc.RequestID != "" {
				c.requestID = doc.RequestID
			}
		}
	}
	if code == "" {
		// HEAD responses carry no body.
		code = statusCode(se.StatusCode)
		message = http.StatusText(se.StatusCode)
	}

	fault := smithy.FaultClient
	if se.StatusCode >= 500 {
		fault = smithy.FaultServer
	}
	if code != "" {
		c.apiErr = &smithy.GenericAPIError{Code: code, Message: message, Fault: fault}
	}

	c.sentinels, c.retryable = classifyCode(code, message, se.StatusCode)
	return c
}

// classifyCode maps an S3 error code (or vendor equivalent) to sentinels.
// Unknown codes fall back to the HTTP status.
func classifyCode(code, message string, status int) ([]error, bool) {
	switch code {
	case "NoSuchKey", "NotFound", "NoSuchVersion", "NoSuchUpload":
		return []error{provider.ErrNotFound}, false
	case "NoSuchBucket":
		return []error{provider.ErrBucketNotFound}, false
	case "ExpiredToken", "RequestExpired", "RequestTimeTooSkewed", "TokenRefreshRequired":
		return []error{provider.ErrAuth, provider.ErrExpiredRequest}, true
	case "AccessDenied", "Forbidden":
		// Presigned URL expiry is reported as AccessDenied.
		if isExpiredMessage(message) {
			return []error{provider.ErrAuth, provider.ErrExpiredRequest}, true
		}
		return []error{provider.ErrAuth, provider.ErrAccessDenied}, false
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidToken", "Unauthorized":
		return []error{provider.ErrAuth, provider.ErrInvalidCredentials}, false
	case "SlowDown", "Throttling", "RequestLimitExceeded", "TooManyRequests":
		return []error{provider.ErrThrottled}, true
	case "ServiceUnavailable", "InternalError", "InternalServerError":
		return []error{provider.ErrProviderUnavailable}, true
	}

	switch {
	case status == http.StatusNotFound:
		return []error{provider.ErrNotFound}, false
	case status == http.StatusForbidden:
		return []error{provider.ErrAuth, provider.ErrAccessDenied}, false
	case status == http.StatusUnauthorized:
		return []error{provider.ErrAuth, provider.ErrInvalidCredentials}, false
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return []error{provider.ErrConflict}, false
	case status == http.StatusTooManyRequests:
		return []error{provider.ErrThrottled}, true
	case status >= 500:
		return []error{provider.ErrProviderUnavailable}, true
	}
	return nil, false
}

func isExpiredMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "expired")
}

// statusCode synthesizes an error code for bodiless responses.
func statusCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusTooManyRequests:
		return "TooManyRequests"
	case http.StatusServiceUnavailable:
		return "ServiceUnavailable"
	case http.StatusInternalServerError:
		return "InternalError"
	}
	return ""
}

// isNotFound reports whether a raw request failure means the key or prefix is
// absent. A missing bucket is not absence.
func isNotFound(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		return false
	}
	return errorCode(se) != "NoSuchBucket"
}

func errorCode(se *StatusError) string {
	if len(se.Body) > 0 && IsErrorDocument(se.Body) {
		if doc, err := ParseError(se.Body); err == nil {
			return doc.Code
		}
	}
	return statusCode(se.StatusCode)
}

// opError builds a ProviderError for failures detected client-side.
func (p *Provider) opError(op, key string, sentinels ...error) error {
	pe := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderS3Compat,
		Bucket:   p.cfg.Bucket,
		Key:      key,
	}
	if len(sentinels) == 1 {
		pe.Err = sentinels[0]
	} else {
		pe.Err = taxonomy(sentinels)
	}
	return pe
}
