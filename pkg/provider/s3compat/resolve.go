package s3compat

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/3leaps/s3compat/pkg/provider"
)

// ValidatePath parses raw without contacting the backend.
func (p *Provider) ValidatePath(_ context.Context, raw string) (provider.Path, error) {
	return provider.ParsePath(raw, p.cfg.Prefix)
}

// ValidateV1Path parses raw and confirms that the declared kind exists: a
// trailing delimiter probes for a folder, anything else for a file.
func (p *Provider) ValidateV1Path(ctx context.Context, raw string) (provider.Path, error) {
	path, err := provider.ParsePath(raw, p.cfg.Prefix)
	if err != nil || path.IsRoot() {
		return path, err
	}

	var exists bool
	if path.IsDir() {
		exists, err = p.folderExists(ctx, path)
	} else {
		exists, _, err = p.fileExists(ctx, path, "")
	}
	if err != nil {
		return provider.Path{}, p.wrapError("ValidatePath", path.Key(), nil, err)
	}
	if !exists {
		return provider.Path{}, p.opError("ValidatePath", path.Key(), provider.ErrNotFound)
	}
	return path, nil
}

// Resolve parses raw and probes the backend according to intent.
//
// The root resolves without probing. IntentFile rejects folder paths and
// IntentFolder treats raw as a folder. Under IntentAny a trailing delimiter
// selects the folder; otherwise both the file and the folder are probed and
// exactly one must exist. Both existing is ErrConflict. A probe that fails for
// any reason other than absence fails the resolution.
func (p *Provider) Resolve(ctx context.Context, raw string, intent provider.Intent) (provider.Path, error) {
	path, err := provider.ParsePath(raw, p.cfg.Prefix)
	if err != nil || path.IsRoot() {
		return path, err
	}

	switch {
	case intent == provider.IntentFile && path.IsDir():
		return provider.Path{}, p.opError("Resolve", path.Key(), provider.ErrInvalidPath)
	case intent == provider.IntentFile:
		return p.resolveAs(ctx, path)
	case intent == provider.IntentFolder, path.IsDir():
		return p.resolveAs(ctx, path.AsFolder())
	}

	fileOK, folderOK, err := p.probeBoth(ctx, path)
	if err != nil {
		return provider.Path{}, p.wrapError("Resolve", path.Key(), nil, err)
	}
	switch {
	case fileOK && folderOK:
		return provider.Path{}, p.opError("Resolve", path.Key(), provider.ErrConflict)
	case fileOK:
		return path.AsFile(), nil
	case folderOK:
		return path.AsFolder(), nil
	default:
		return provider.Path{}, p.opError("Resolve", path.Key(), provider.ErrNotFound)
	}
}

func (p *Provider) resolveAs(ctx context.Context, path provider.Path) (provider.Path, error) {
	var (
		exists bool
		err    error
	)
	if path.IsDir() {
		exists, err = p.folderExists(ctx, path)
	} else {
		exists, _, err = p.fileExists(ctx, path, "")
	}
	if err != nil {
		return provider.Path{}, p.wrapError("Resolve", path.Key(), nil, err)
	}
	if !exists {
		return provider.Path{}, p.opError("Resolve", path.Key(), provider.ErrNotFound)
	}
	return path, nil
}

// probeBoth issues the file and folder probes concurrently.
func (p *Provider) probeBoth(ctx context.Context, path provider.Path) (fileOK, folderOK bool, err error) {
	var (
		wg                 sync.WaitGroup
		fileErr, folderErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		fileOK, _, fileErr = p.fileExists(ctx, path.AsFile(), "")
	}()
	go func() {
		defer wg.Done()
		folderOK, folderErr = p.folderExists(ctx, path.AsFolder())
	}()
	wg.Wait()

	if fileErr != nil {
		return false, false, fileErr
	}
	if folderErr != nil {
		return false, false, folderErr
	}
	return fileOK, folderOK, nil
}

// fileExists issues HEAD for the file key. A 404 means absent.
func (p *Provider) fileExists(ctx context.Context, path provider.Path, version string) (bool, http.Header, error) {
	h, err := p.headObject(ctx, path.Key(), version)
	if err != nil {
		if isNotFound(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, h, nil
}

// folderExists lists at most one entry under the folder key. A 404 or an
// empty page means absent.
func (p *Provider) folderExists(ctx context.Context, path provider.Path) (bool, error) {
	page, err := p.listPage(ctx, listQuery{prefix: path.Key(), delimiter: provider.Delimiter, maxKeys: 1})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return !page.Empty(), nil
}

// headObject returns the response headers of HEAD key.
func (p *Provider) headObject(ctx context.Context, key, version string) (http.Header, error) {
	r := request{op: "HeadObject", method: http.MethodHead, key: key}
	if version != "" {
		r.query = url.Values{"versionId": {version}}
	}
	return p.sendDiscard(ctx, r)
}

// listQuery selects one bucket listing page.
type listQuery struct {
	prefix    string
	delimiter string
	token     string
	maxKeys   int
}

// listPage fetches one page with ListObjectsV2, or ListObjects when the
// provider is configured for the v1 API. token is a continuation token (v2)
// or marker (v1).
func (p *Provider) listPage(ctx context.Context, q listQuery) (*BucketListing, error) {
	query := url.Values{
		"prefix":   {q.prefix},
		"max-keys": {strconv.Itoa(clampMaxKeys(q.maxKeys, p.cfg.MaxKeys))},
	}
	if q.delimiter != "" {
		query["delimiter"] = []string{q.delimiter}
	}
	op := "ListObjectsV2"
	if p.cfg.ListAPIVersion == 1 {
		op = "ListObjects"
		if q.token != "" {
			query["marker"] = []string{q.token}
		}
	} else {
		query["list-type"] = []string{"2"}
		if q.token != "" {
			query["continuation-token"] = []string{q.token}
		}
	}

	resp, err := p.sendXML(ctx, request{op: op, method: http.MethodGet, query: query}, KindBucketListing)
	if err != nil {
		return nil, err
	}
	return resp.(*BucketListing), nil
}

// nextToken returns the cursor for the page after l, or "" when l is the last
// page. v1 listings without NextMarker continue from the last key or prefix.
func (p *Provider) nextToken(l *BucketListing) string {
	if !l.IsTruncated {
		return ""
	}
	if p.cfg.ListAPIVersion != 1 {
		return l.NextContinuationToken
	}
	if l.NextMarker != "" {
		return l.NextMarker
	}
	last := ""
	if n := len(l.Contents); n > 0 {
		last = l.Contents[n-1].Key
	}
	if n := len(l.CommonPrefixes); n > 0 && l.CommonPrefixes[n-1] > last {
		last = l.CommonPrefixes[n-1]
	}
	return last
}
