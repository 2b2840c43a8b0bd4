package s3compat

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go/encoding/httpbinding"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/s3compat/pkg/metrics"
	"github.com/3leaps/s3compat/pkg/provider"
)

// Provider implements provider.Provider for an S3-compatible endpoint.
type Provider struct {
	cfg      Config
	conn     Connection
	signer   *Signer
	creds    aws.CredentialsProvider
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer metrics.Observer
	now      func() time.Time
	maxParts int
}

// Ensure Provider implements the interface.
var _ provider.Provider = (*Provider)(nil)

// Option configures optional Provider collaborators.
type Option func(*Provider)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o metrics.Observer) Option {
	return func(p *Provider) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithCredentials overrides credential resolution.
func WithCredentials(c aws.CredentialsProvider) Option {
	return func(p *Provider) { p.creds = c }
}

// WithClock sets the clock used for signing.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a provider for the configured endpoint and bucket.
//
// Explicit keys in cfg take precedence. Without them, credentials come from
// the AWS SDK v2 default chain.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	conn, err := ParseHost(cfg.Host)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:      cfg,
		conn:     conn,
		client:   &http.Client{},
		logger:   zap.NewNop(),
		observer: metrics.Nop{},
		now:      time.Now,
		maxParts: MaxUploadParts,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.creds == nil {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, &provider.ProviderError{
				Op:       "New",
				Provider: provider.ProviderS3Compat,
				Bucket:   cfg.Bucket,
				Err:      provider.ErrInvalidCredentials,
				Cause:    err,
			}
		}
		p.creds = creds
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	p.signer = NewSigner(conn, cfg.Bucket, cfg.Region, cfg.SignatureVersion, cfg.URLExpiry, p.creds)
	p.signer.now = p.now

	p.logger.Debug("S3-compatible provider ready",
		zap.String("endpoint", conn.Endpoint()),
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("signature", cfg.SignatureVersion))
	return p, nil
}

// loadCredentials builds the credentials provider.
func loadCredentials(ctx context.Context, cfg Config) (aws.CredentialsProvider, error) {
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		return credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (empty for long-term credentials)
		), nil
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if awsCfg.Credentials == nil {
		return nil, fmt.Errorf("no credentials found for %s", cfg.Host)
	}
	return awsCfg.Credentials, nil
}

// Signer returns the URL signer, for handing out presigned URLs directly.
func (p *Provider) Signer() *Signer { return p.signer }

// Connection returns the endpoint the provider talks to.
func (p *Provider) Connection() Connection { return p.conn }

// Download opens the content of a file. A HEAD probe runs first so a missing
// object fails before any content request.
func (p *Provider) Download(ctx context.Context, path provider.Path, opts provider.DownloadOptions) (*provider.DownloadResult, error) {
	key := path.Key()
	if path.IsDir() {
		return nil, p.opError("Download", key, provider.ErrDownload, provider.ErrInvalidPath)
	}
	if r := opts.Range; r != nil && (r.Start < 0 || r.End < r.Start) {
		return nil, p.opError("Download", key, provider.ErrDownload, provider.ErrInvalidPath)
	}

	head, err := p.headObject(ctx, key, opts.Version)
	if err != nil {
		return nil, p.wrapError("Download", key, provider.ErrDownload, err)
	}

	name := opts.DisplayName
	if name == "" {
		name = path.Name()
	}
	r := request{
		op:              "GetObject",
		method:          http.MethodGet,
		key:             key,
		responseHeaders: map[string]string{"response-content-disposition": ContentDisposition(name)},
	}
	if opts.Version != "" {
		r.query = url.Values{"versionId": {opts.Version}}
	}
	if opts.Range != nil {
		r.header = http.Header{"Range": {fmt.Sprintf("bytes=%d-%d", opts.Range.Start, opts.Range.End)}}
	}

	resp, err := p.send(ctx, r)
	if err != nil {
		return nil, p.wrapError("Download", key, provider.ErrDownload, err)
	}

	partial := resp.StatusCode == http.StatusPartialContent
	size := resp.ContentLength
	if size < 0 && !partial {
		size, _ = strconv.ParseInt(head.Get("Content-Length"), 10, 64)
	}
	return &provider.DownloadResult{
		Body:        resp.Body,
		Size:        size,
		Partial:     partial,
		ContentType: resp.Header.Get("Content-Type"),
		Name:        name,
	}, nil
}

// ContentDisposition renders an attachment disposition with both an ASCII
// filename and an RFC 5987 UTF-8 filename*.
func ContentDisposition(name string) string {
	if name == "" {
		return "attachment"
	}
	var ascii strings.Builder
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			ascii.WriteByte('\\')
			ascii.WriteRune(r)
		case r >= 0x20 && r < 0x7f:
			ascii.WriteRune(r)
		}
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii.String(), httpbinding.EscapePath(name, true))
}

// Upload writes body to path. Bodies up to the multipart threshold go out in
// one PUT with Content-MD5; larger bodies use a multipart session.
func (p *Provider) Upload(ctx context.Context, body io.Reader, path provider.Path, opts provider.UploadOptions) (provider.Metadata, bool, error) {
	key := path.Key()
	if path.IsDir() {
		return nil, false, p.opError("Upload", key, provider.ErrUpload, provider.ErrInvalidPath)
	}

	exists, _, err := p.fileExists(ctx, path, "")
	if err != nil {
		return nil, false, p.wrapError("Upload", key, provider.ErrUpload, err)
	}

	threshold := p.cfg.MultipartThreshold
	if opts.Size > threshold {
		err = p.uploadMultipart(ctx, key, body, opts.ContentType)
	} else {
		// Size unknown or small: buffer up to the threshold to decide.
		var head []byte
		head, err = io.ReadAll(io.LimitReader(body, threshold+1))
		switch {
		case err != nil:
			err = clientError("read body: " + err.Error())
		case int64(len(head)) <= threshold:
			err = p.putObject(ctx, key, head, opts.ContentType)
		default:
			err = p.uploadMultipart(ctx, key, io.MultiReader(bytes.NewReader(head), body), opts.ContentType)
		}
	}
	if err != nil {
		return nil, false, p.wrapError("Upload", key, provider.ErrUpload, err)
	}

	h, err := p.headObject(ctx, key, "")
	if err != nil {
		return nil, false, p.wrapError("Upload", key, provider.ErrUpload, err)
	}
	return NewFileHeadMetadata(key, p.cfg.Prefix, h), !exists, nil
}

// putObject uploads data in a single request and verifies the returned ETag
// against the local MD5.
func (p *Provider) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	sum := md5.Sum(data)
	signed := p.writeHeaders(contentType)
	signed.Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))

	h, err := p.sendDiscard(ctx, request{
		op:     "PutObject",
		method: http.MethodPut,
		key:    key,
		signed: signed,
		body:   data,
	})
	if err != nil {
		return err
	}
	return verifyETag(h.Get("ETag"), sum[:])
}

// writeHeaders returns the signed headers every object write carries.
func (p *Provider) writeHeaders(contentType string) http.Header {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if p.cfg.EncryptUploads {
		h.Set("X-Amz-Server-Side-Encryption", "AES256")
	}
	return h
}

// verifyETag compares a backend ETag with a local MD5. Vendors that omit
// the ETag are tolerated.
func verifyETag(etag string, sum []byte) error {
	etag = cleanETag(etag)
	if etag == "" {
		return nil
	}
	if want := hex.EncodeToString(sum); !strings.EqualFold(etag, want) {
		return clientError(fmt.Sprintf("checksum mismatch: sent md5 %s, backend etag %s", want, etag))
	}
	return nil
}

// Delete removes a file, or a folder and every key beneath it.
func (p *Provider) Delete(ctx context.Context, path provider.Path, opts provider.DeleteOptions) error {
	key := path.Key()
	if path.IsDir() {
		if path.IsRoot() && !opts.ConfirmRoot {
			return p.opError("Delete", key, provider.ErrDelete, provider.ErrInvalidPath)
		}
		return p.deleteFolder(ctx, path)
	}

	_, err := p.sendDiscard(ctx, request{op: "DeleteObject", method: http.MethodDelete, key: key})
	return p.wrapError("Delete", key, provider.ErrDelete, err)
}

// Copy duplicates src at dst. Folders are copied key by key.
func (p *Provider) Copy(ctx context.Context, src, dst provider.Path) (provider.Metadata, bool, error) {
	return p.copyPath(ctx, "Copy", src, dst)
}

func (p *Provider) copyPath(ctx context.Context, op string, src, dst provider.Path) (provider.Metadata, bool, error) {
	if src.IsDir() != dst.IsDir() || src.Equal(dst) || dst.IsRoot() {
		return nil, false, p.opError(op, src.Key(), provider.ErrCopy, provider.ErrInvalidPath)
	}
	if src.IsDir() {
		return p.copyFolder(ctx, op, src, dst)
	}

	exists, _, err := p.fileExists(ctx, dst, "")
	if err != nil {
		return nil, false, p.wrapError(op, dst.Key(), provider.ErrCopy, err)
	}
	if err := p.copyObject(ctx, src.Key(), dst.Key()); err != nil {
		return nil, false, p.wrapError(op, src.Key(), provider.ErrCopy, err)
	}
	h, err := p.headObject(ctx, dst.Key(), "")
	if err != nil {
		return nil, false, p.wrapError(op, dst.Key(), provider.ErrCopy, err)
	}
	return NewFileHeadMetadata(dst.Key(), p.cfg.Prefix, h), !exists, nil
}

// copyObject issues a server-side copy. The result document is checked
// because a failed copy may still answer 200.
func (p *Provider) copyObject(ctx context.Context, srcKey, dstKey string) error {
	signed := p.writeHeaders("")
	signed.Set("X-Amz-Copy-Source", httpbinding.EscapePath("/"+p.cfg.Bucket+"/"+srcKey, false))
	_, err := p.sendXML(ctx, request{
		op:     "CopyObject",
		method: http.MethodPut,
		key:    dstKey,
		signed: signed,
	}, KindCopyResult)
	return err
}

// Move copies src to dst and deletes src. src is kept if the copy fails.
func (p *Provider) Move(ctx context.Context, src, dst provider.Path) (provider.Metadata, bool, error) {
	if src.IsRoot() {
		return nil, false, p.opError("Move", src.Key(), provider.ErrCopy, provider.ErrInvalidPath)
	}
	meta, created, err := p.copyPath(ctx, "Move", src, dst)
	if err != nil {
		return nil, false, err
	}
	if err := p.Delete(ctx, src, provider.DeleteOptions{}); err != nil {
		return nil, false, p.wrapError("Move", src.Key(), nil, err)
	}
	return meta, created, nil
}

// Metadata returns the HEAD metadata of a file, or the children of a folder.
func (p *Provider) Metadata(ctx context.Context, path provider.Path, opts provider.MetadataOptions) ([]provider.Metadata, error) {
	if path.IsDir() {
		return p.ListFolder(ctx, path)
	}
	h, err := p.headObject(ctx, path.Key(), opts.Version)
	if err != nil {
		return nil, p.wrapError("Metadata", path.Key(), nil, err)
	}
	return []provider.Metadata{NewFileHeadMetadata(path.Key(), p.cfg.Prefix, h)}, nil
}

// Revisions returns the versions of a file in backend order (newest first).
// Delete markers are skipped.
func (p *Provider) Revisions(ctx context.Context, path provider.Path) ([]provider.Revision, error) {
	key := path.Key()
	if path.IsDir() {
		return nil, p.opError("Revisions", key, provider.ErrInvalidPath)
	}

	var (
		out                []provider.Revision
		keyMarker, vMarker string
	)
	for {
		query := url.Values{
			"versions": {""},
			"prefix":   {key},
			"max-keys": {strconv.Itoa(p.cfg.MaxKeys)},
		}
		if keyMarker != "" {
			query.Set("key-marker", keyMarker)
			query.Set("version-id-marker", vMarker)
		}
		resp, err := p.sendXML(ctx, request{op: "ListObjectVersions", method: http.MethodGet, query: query}, KindVersionListing)
		if err != nil {
			return nil, p.wrapError("Revisions", key, nil, err)
		}
		page := resp.(*VersionListing)
		for _, v := range page.Entries {
			// The prefix also matches longer keys.
			if v.Key != key || v.DeleteMarker {
				continue
			}
			out = append(out, NewRevisionMetadata(v, p.cfg.Prefix))
		}
		if !page.IsTruncated {
			break
		}
		if page.NextKeyMarker == "" {
			return nil, p.wrapError("Revisions", key, nil, &MalformedResponseError{
				ResponseKind: KindVersionListing,
				Reason:       "truncated listing without NextKeyMarker",
			})
		}
		keyMarker, vMarker = page.NextKeyMarker, page.NextVersionIDMarker
	}

	if len(out) == 0 {
		return nil, p.opError("Revisions", key, provider.ErrNotFound)
	}
	return out, nil
}

// CreateFolder writes a zero-byte folder marker key.
func (p *Provider) CreateFolder(ctx context.Context, path provider.Path) (provider.Metadata, error) {
	key := path.Key()
	if !path.IsDir() || path.IsRoot() {
		return nil, p.opError("CreateFolder", key, provider.ErrInvalidPath)
	}
	exists, err := p.folderExists(ctx, path)
	if err != nil {
		return nil, p.wrapError("CreateFolder", key, nil, err)
	}
	if exists {
		return nil, p.opError("CreateFolder", key, provider.ErrConflict)
	}
	if err := p.putObject(ctx, key, []byte{}, ""); err != nil {
		return nil, p.wrapError("CreateFolder", key, provider.ErrUpload, err)
	}
	return NewFolderMetadata(key, p.cfg.Prefix), nil
}

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
