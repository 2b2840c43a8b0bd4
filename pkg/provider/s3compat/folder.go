package s3compat

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/s3compat/pkg/provider"
)

// maxDeleteKeys is the S3 limit on keys per bulk delete request.
const maxDeleteKeys = 1000

// ListFolder returns the immediate children of a folder in backend order.
// The folder's own marker key is not listed.
func (p *Provider) ListFolder(ctx context.Context, path provider.Path) ([]provider.Metadata, error) {
	key := path.Key()
	if !path.IsDir() {
		return nil, p.opError("ListFolder", key, provider.ErrInvalidPath)
	}

	var (
		out    []provider.Metadata
		token  string
		marker bool
	)
	for {
		page, err := p.listPage(ctx, listQuery{prefix: key, delimiter: provider.Delimiter, token: token})
		if err != nil {
			return nil, p.wrapError("ListFolder", key, nil, err)
		}
		for _, rec := range page.Contents {
			if rec.Key == key {
				marker = true
				continue
			}
			out = append(out, entryMetadata(rec, p.cfg.Prefix))
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, NewFolderMetadata(cp, p.cfg.Prefix))
		}

		next := p.nextToken(page)
		if next == "" {
			if page.IsTruncated {
				return nil, p.wrapError("ListFolder", key, nil,
					&MalformedResponseError{ResponseKind: KindBucketListing, Reason: "truncated listing without continuation"})
			}
			break
		}
		token = next
	}

	if len(out) == 0 && !marker && !path.IsRoot() {
		return nil, p.opError("ListFolder", key, provider.ErrNotFound)
	}
	return out, nil
}

// walkKeys calls fn for every object under prefix, recursively, in backend
// order.
func (p *Provider) walkKeys(ctx context.Context, prefix string, fn func(ObjectRecord) error) error {
	token := ""
	for {
		page, err := p.listPage(ctx, listQuery{prefix: prefix, token: token})
		if err != nil {
			return err
		}
		for _, rec := range page.Contents {
			if err := fn(rec); err != nil {
				return err
			}
		}
		token = p.nextToken(page)
		if token == "" {
			if page.IsTruncated {
				return &MalformedResponseError{ResponseKind: KindBucketListing, Reason: "truncated listing without continuation"}
			}
			return nil
		}
	}
}

// deleteFolder removes every key under the folder with bulk deletes.
func (p *Provider) deleteFolder(ctx context.Context, path provider.Path) error {
	key := path.Key()
	batch := make([]string, 0, maxDeleteKeys)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.deleteKeys(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := p.walkKeys(ctx, key, func(rec ObjectRecord) error {
		batch = append(batch, rec.Key)
		if len(batch) == maxDeleteKeys {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return p.wrapError("Delete", key, provider.ErrDelete, err)
	}
	if total == 0 && !path.IsRoot() {
		return p.opError("Delete", key, provider.ErrDelete, provider.ErrNotFound)
	}

	p.logger.Debug("Folder deleted", zap.String("prefix", key), zap.Int("keys", total))
	return nil
}

type deleteObject struct {
	Key string `xml:"Key"`
}

type deleteRequest struct {
	XMLName xml.Name       `xml:"Delete"`
	Quiet   bool           `xml:"Quiet"`
	Objects []deleteObject `xml:"Object"`
}

// deleteKeys issues one bulk delete. Per-key failures in the result fail the
// whole call.
func (p *Provider) deleteKeys(ctx context.Context, keys []string) error {
	req := deleteRequest{Quiet: true, Objects: make([]deleteObject, 0, len(keys))}
	for _, k := range keys {
		req.Objects = append(req.Objects, deleteObject{Key: k})
	}
	payload, err := xml.Marshal(req)
	if err != nil {
		return err
	}
	sum := md5.Sum(payload)

	resp, err := p.sendXML(ctx, request{
		op:     "DeleteObjects",
		method: http.MethodPost,
		query:  url.Values{"delete": {""}},
		signed: http.Header{
			"Content-Md5":  {base64.StdEncoding.EncodeToString(sum[:])},
			"Content-Type": {"application/xml"},
		},
		body: payload,
	}, KindDeleteResult)
	if err != nil {
		return err
	}

	result := resp.(*DeleteResult)
	if n := len(result.Errors); n > 0 {
		first := result.Errors[0]
		return clientError(fmt.Sprintf("%d of %d keys not deleted, first %s: %s %s",
			n, len(keys), first.Key, first.Code, first.Message))
	}
	return nil
}

// copyFolder copies every key under src to the same relative key under dst.
func (p *Provider) copyFolder(ctx context.Context, op string, src, dst provider.Path) (provider.Metadata, bool, error) {
	if strings.HasPrefix(dst.Key(), src.Key()) {
		// Copying into itself would list its own output.
		return nil, false, p.opError(op, dst.Key(), provider.ErrCopy, provider.ErrInvalidPath)
	}

	exists, err := p.folderExists(ctx, dst)
	if err != nil {
		return nil, false, p.wrapError(op, dst.Key(), provider.ErrCopy, err)
	}

	copied := 0
	err = p.walkKeys(ctx, src.Key(), func(rec ObjectRecord) error {
		target := dst.Key() + strings.TrimPrefix(rec.Key, src.Key())
		if err := p.copyObject(ctx, rec.Key, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return nil, false, p.wrapError(op, src.Key(), provider.ErrCopy, err)
	}
	if copied == 0 {
		return nil, false, p.opError(op, src.Key(), provider.ErrCopy, provider.ErrNotFound)
	}
	return NewFolderMetadata(dst.Key(), p.cfg.Prefix), !exists, nil
}
