package s3compat

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/smithy-go/encoding/httpbinding"
	miniosigner "github.com/minio/minio-go/v7/pkg/signer"
)

const (
	serviceName     = "s3"
	unsignedPayload = "UNSIGNED-PAYLOAD"
)

// SignRequest describes one bucket or object operation to sign.
type SignRequest struct {
	// Method is the HTTP method (HEAD, GET, PUT, POST, DELETE).
	Method string

	// Key is the object key. Empty addresses the bucket itself.
	Key string

	// Query holds operation parameters (versionId, uploadId, prefix, ...).
	Query url.Values

	// ResponseHeaders overrides response headers, e.g.
	// "response-content-disposition". Keys must carry the "response-" prefix.
	ResponseHeaders map[string]string

	// Header holds headers that are part of the signature and must be sent
	// unchanged (Content-MD5, Content-Type, x-amz-*).
	Header http.Header

	// Expiry overrides the signer default when positive.
	Expiry time.Duration
}

// SignedURL is a fully-qualified, time-limited URL plus the headers that
// must accompany it.
type SignedURL struct {
	URL     string
	Header  http.Header
	Expires time.Time
}

// Signer builds signed URLs for one bucket on one endpoint.
//
// Signer is safe for concurrent use; it holds no mutable state.
type Signer struct {
	conn    Connection
	bucket  string
	region  string
	version string
	expiry  time.Duration
	creds   aws.CredentialsProvider
	sigv4   *v4.Signer
	now     func() time.Time
}

// NewSigner returns a signer. version is SignatureV4 or SignatureV2; expiry
// is the default URL lifetime.
func NewSigner(conn Connection, bucket, region, version string, expiry time.Duration, creds aws.CredentialsProvider) *Signer {
	if region == "" {
		region = DefaultRegion
	}
	if version == "" {
		version = SignatureV4
	}
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Signer{
		conn:    conn,
		bucket:  bucket,
		region:  region,
		version: version,
		expiry:  expiry,
		creds:   creds,
		sigv4: v4.NewSigner(func(o *v4.SignerOptions) {
			// S3 keys are escaped once, by us.
			o.DisableURIPathEscaping = true
			// Every header we send is signed; nothing moves into the query.
			o.DisableHeaderHoisting = true
		}),
		now: time.Now,
	}
}

// ObjectURL returns the unsigned URL of key (or of the bucket when key is
// empty), with the path escaped the way S3 canonicalizes it.
func (s *Signer) ObjectURL(key string) *url.URL {
	p := "/" + s.bucket
	if key != "" {
		p += "/" + key
	}
	return &url.URL{
		Scheme:  s.conn.Scheme(),
		Host:    s.conn.HostPort(),
		Path:    p,
		RawPath: httpbinding.EscapePath(p, false),
	}
}

// Presign builds a signed URL for req.
func (s *Signer) Presign(ctx context.Context, req SignRequest) (*SignedURL, error) {
	if req.Method == "" {
		return nil, errors.New("sign: method is required")
	}
	expiry := req.Expiry
	if expiry <= 0 {
		expiry = s.expiry
	}

	u := s.ObjectURL(req.Key)
	query := url.Values{}
	for k, vs := range req.Query {
		query[k] = append([]string(nil), vs...)
	}
	for k, v := range req.ResponseHeaders {
		query.Set(k, v)
	}

	header := http.Header{}
	for k, vs := range req.Header {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if s.version == SignatureV2 {
		return s.presignV2(u, query, header, req.Method, creds, now, expiry), nil
	}
	return s.presignV4(ctx, u, query, header, req.Method, creds, now, expiry)
}

func (s *Signer) presignV4(ctx context.Context, u *url.URL, query url.Values, header http.Header, method string, creds aws.Credentials, now time.Time, expiry time.Duration) (*SignedURL, error) {
	query.Set("X-Amz-Expires", strconv.FormatInt(int64(expiry/time.Second), 10))
	u.RawQuery = encodeQuery(query)

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header = header

	signed, signedHeaders, err := s.sigv4.PresignHTTP(ctx, creds, httpReq, unsignedPayload, serviceName, s.region, now)
	if err != nil {
		return nil, err
	}

	// The signer reports header names lowercased.
	out := http.Header{}
	for k, vs := range signedHeaders {
		k = http.CanonicalHeaderKey(k)
		if k == "Host" {
			continue
		}
		out[k] = vs
	}
	// Headers the signer ignores still need to travel with the request.
	for k, vs := range header {
		if _, ok := out[k]; !ok {
			out[k] = vs
		}
	}

	return &SignedURL{URL: signed, Header: out, Expires: now.Add(expiry)}, nil
}

func (s *Signer) presignV2(u *url.URL, query url.Values, header http.Header, method string, creds aws.Credentials, now time.Time, expiry time.Duration) *SignedURL {
	u.RawQuery = encodeQuery(query)

	// PreSignV2 records Expires on the request headers; keep ours untouched.
	httpReq := http.Request{Method: method, URL: u, Header: header.Clone(), Host: u.Host}
	signed := miniosigner.PreSignV2(httpReq, creds.AccessKeyID, creds.SecretAccessKey, int64(expiry/time.Second), false)

	// The v2 signer stamps Expires from the wall clock.
	expires := now.Add(expiry)
	if epoch, err := strconv.ParseInt(signed.URL.Query().Get("Expires"), 10, 64); err == nil {
		expires = time.Unix(epoch, 0).UTC()
	}
	return &SignedURL{URL: signed.URL.String(), Header: header, Expires: expires}
}

// encodeQuery encodes query parameters with sorted keys. Valueless
// sub-resources (e.g. "uploads", "versions", "delete") render without "=".
func encodeQuery(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := v[k]
		if len(vs) == 0 {
			vs = []string{""}
		}
		for _, val := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(httpbinding.EscapePath(k, true))
			if val != "" {
				b.WriteByte('=')
				b.WriteString(httpbinding.EscapePath(val, true))
			}
		}
	}
	return b.String()
}
