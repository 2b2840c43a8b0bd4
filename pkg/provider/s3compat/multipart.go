package s3compat

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// abortTimeout bounds the cleanup requests issued after a failed upload. They
// run detached from the caller's context so cancellation still cleans up.
const abortTimeout = 30 * time.Second

// completedPart is one acknowledged part of a multipart upload.
type completedPart struct {
	Number int    `xml:"PartNumber"`
	ETag   string `xml:"ETag"`
}

// uploadSession is the state of one multipart upload. It is owned by the
// Upload call that initiated it.
type uploadSession struct {
	id  string
	key string

	mu    sync.Mutex
	parts map[int]string
}

func (s *uploadSession) record(number int, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[number] = etag
}

// completed returns the parts in order. Part numbers must run 1..n without
// gaps.
func (s *uploadSession) completed() ([]completedPart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]completedPart, 0, len(s.parts))
	for n, etag := range s.parts {
		out = append(out, completedPart{Number: n, ETag: etag})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	for i, part := range out {
		if part.Number != i+1 {
			return nil, clientError(fmt.Sprintf("multipart upload %s: part %d missing", s.id, i+1))
		}
	}
	if len(out) == 0 {
		return nil, clientError(fmt.Sprintf("multipart upload %s: no parts", s.id))
	}
	return out, nil
}

// uploadMultipart drives initiate, parts and complete for key. Any failure
// after initiate aborts the session; complete is never issued once a part
// has failed.
func (p *Provider) uploadMultipart(ctx context.Context, key string, body io.Reader, contentType string) error {
	sess, err := p.initiateUpload(ctx, key, contentType)
	if err != nil {
		return err
	}

	if err := p.uploadParts(ctx, sess, body); err != nil {
		p.abortUpload(ctx, sess, err)
		return err
	}
	if err := p.completeUpload(ctx, sess); err != nil {
		p.abortUpload(ctx, sess, err)
		return err
	}
	return nil
}

func (p *Provider) initiateUpload(ctx context.Context, key, contentType string) (*uploadSession, error) {
	resp, err := p.sendXML(ctx, request{
		op:     "CreateMultipartUpload",
		method: http.MethodPost,
		key:    key,
		query:  url.Values{"uploads": {""}},
		signed: p.writeHeaders(contentType),
	}, KindInitiateMultipart)
	if err != nil {
		return nil, err
	}
	started := resp.(*InitiateResult)

	p.logger.Debug("Multipart upload initiated",
		zap.String("key", key),
		zap.String("upload_id", started.UploadID),
		zap.Bool("encrypted", p.cfg.EncryptUploads))
	return &uploadSession{
		id:    started.UploadID,
		key:   key,
		parts: make(map[int]string),
	}, nil
}

// uploadParts reads body in PartSize chunks and uploads them with at most
// Concurrency parts in flight. The first failure cancels the rest.
func (p *Provider) uploadParts(ctx context.Context, sess *uploadSession, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.cfg.Concurrency)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for number := 1; ; number++ {
		buf := make([]byte, p.cfg.PartSize)
		n, rerr := io.ReadFull(body, buf)
		if n == 0 && errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			fail(clientError("read body: " + rerr.Error()))
			break
		}
		// A body that ends exactly on the last allowed part is not an overflow.
		if number > p.maxParts {
			fail(clientError(fmt.Sprintf("body exceeds %d parts of %d bytes", p.maxParts, p.cfg.PartSize)))
			break
		}

		// Acquire a slot or bail on cancellation.
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			fail(ctx.Err())
			break
		}

		wg.Add(1)
		go func(number int, data []byte) {
			defer wg.Done()
			defer func() { <-sem }()

			etag, err := p.uploadPart(ctx, sess, number, data)
			if err != nil {
				fail(err)
				return
			}
			sess.record(number, etag)
		}(number, buf[:n])

		// A short read is the final part.
		if rerr != nil {
			break
		}
	}

	wg.Wait()
	return firstErr
}

func (p *Provider) uploadPart(ctx context.Context, sess *uploadSession, number int, data []byte) (string, error) {
	sum := md5.Sum(data)
	h, err := p.sendDiscard(ctx, request{
		op:     "UploadPart",
		method: http.MethodPut,
		key:    sess.key,
		query: url.Values{
			"partNumber": {strconv.Itoa(number)},
			"uploadId":   {sess.id},
		},
		signed: http.Header{"Content-Md5": {base64.StdEncoding.EncodeToString(sum[:])}},
		body:   data,
	})
	if err != nil {
		return "", err
	}
	if err := verifyETag(h.Get("ETag"), sum[:]); err != nil {
		return "", fmt.Errorf("part %d: %w", number, err)
	}
	return h.Get("ETag"), nil
}

type completeRequest struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Parts   []completedPart `xml:"Part"`
}

func (p *Provider) completeUpload(ctx context.Context, sess *uploadSession) error {
	parts, err := sess.completed()
	if err != nil {
		return err
	}
	payload, err := xml.Marshal(completeRequest{Parts: parts})
	if err != nil {
		return err
	}

	_, err = p.sendXML(ctx, request{
		op:     "CompleteMultipartUpload",
		method: http.MethodPost,
		key:    sess.key,
		query:  url.Values{"uploadId": {sess.id}},
		signed: http.Header{"Content-Type": {"application/xml"}},
		body:   payload,
	}, KindCompleteMultipart)
	if err != nil {
		return err
	}

	p.logger.Debug("Multipart upload completed",
		zap.String("key", sess.key),
		zap.String("upload_id", sess.id),
		zap.Int("parts", len(parts)))
	return nil
}

// abortUpload discards the session on the backend. Failures are logged and
// never replace cause, the error being reported to the caller.
func (p *Provider) abortUpload(ctx context.Context, sess *uploadSession, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	_, err := p.sendDiscard(ctx, request{
		op:     "AbortMultipartUpload",
		method: http.MethodDelete,
		key:    sess.key,
		query:  url.Values{"uploadId": {sess.id}},
	})
	p.observer.ObserveAbort(err)
	if err != nil {
		p.logger.Warn("Multipart abort failed; parts may remain until backend cleanup",
			zap.String("key", sess.key),
			zap.String("upload_id", sess.id),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}

	p.logger.Debug("Multipart upload aborted",
		zap.String("key", sess.key),
		zap.String("upload_id", sess.id),
		zap.NamedError("cause", cause))

	// Some backends keep parts that were in flight when the abort landed.
	listing, err := p.listParts(ctx, sess)
	switch {
	case err != nil && !isNotFound(err):
		p.logger.Debug("Failed to verify multipart abort", zap.String("upload_id", sess.id), zap.Error(err))
	case err == nil && len(listing.Parts) > 0:
		p.logger.Warn("Parts remain after multipart abort",
			zap.String("key", sess.key),
			zap.String("upload_id", sess.id),
			zap.Int("parts", len(listing.Parts)))
	}
}

func (p *Provider) listParts(ctx context.Context, sess *uploadSession) (*PartListing, error) {
	resp, err := p.sendXML(ctx, request{
		op:     "ListParts",
		method: http.MethodGet,
		key:    sess.key,
		query:  url.Values{"uploadId": {sess.id}},
	}, KindPartListing)
	if err != nil {
		return nil, err
	}
	return resp.(*PartListing), nil
}
