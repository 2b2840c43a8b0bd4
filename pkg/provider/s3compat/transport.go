package s3compat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// request is one signed backend call.
type request struct {
	// op names the S3 API action for logs and metrics (e.g. "HeadObject").
	op     string
	method string
	key    string
	query  url.Values

	// responseHeaders become response-* query overrides.
	responseHeaders map[string]string

	// signed headers are covered by the signature; header is sent as-is.
	signed http.Header
	header http.Header

	// body is nil for requests without a payload.
	body []byte
}

// send signs and executes r. A non-2xx answer is returned as *StatusError with
// the response body already drained and closed; otherwise the caller owns
// resp.Body.
func (p *Provider) send(ctx context.Context, r request) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	signed, err := p.signer.Presign(ctx, SignRequest{
		Method:          r.method,
		Key:             r.key,
		Query:           r.query,
		ResponseHeaders: r.responseHeaders,
		Header:          r.signed,
	})
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", r.op, err)
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, signed.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range signed.Header {
		req.Header[k] = vs
	}
	for k, vs := range r.header {
		req.Header[http.CanonicalHeaderKey(k)] = vs
	}
	if r.body != nil {
		req.ContentLength = int64(len(r.body))
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	dur := time.Since(start)
	if err != nil {
		p.observer.Observe(r.op, 0, err, dur)
		p.logger.Debug("S3 request failed",
			zap.String("op", r.op),
			zap.String("method", r.method),
			zap.String("key", r.key),
			zap.Duration("duration", dur),
			zap.Error(err))
		return nil, err
	}

	p.logger.Debug("S3 request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("key", r.key),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", dur))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Amz-Request-Id"),
			Body:       data,
		}
		p.observer.Observe(r.op, 0, serr, dur)
		return nil, serr
	}

	n := int64(len(r.body))
	if resp.ContentLength > 0 && r.method != http.MethodHead {
		n += resp.ContentLength
	}
	p.observer.Observe(r.op, n, nil, dur)
	return resp, nil
}

// sendXML executes r and decodes the response body as kind. A success status
// carrying an <Error> document is reported as *StatusError.
func (p *Provider) sendXML(ctx context.Context, r request, kind ResponseKind) (Response, error) {
	resp, err := p.send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if IsErrorDocument(data) {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Amz-Request-Id"),
			Body:       data,
		}
	}
	return Parse(data, kind)
}

// sendDiscard executes r and returns the response headers, discarding the body.
func (p *Provider) sendDiscard(ctx context.Context, r request) (http.Header, error) {
	resp, err := p.send(ctx, r)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.Header, nil
}
