// Package s3fake provides an in-memory S3-compatible server for tests.
//
// It speaks the REST/XML subset the s3compat provider uses: HEAD, GET, PUT,
// DELETE and POST on objects, ListObjects v1 and v2, ListObjectVersions,
// multipart uploads, CopyObject and bulk delete. Signatures are not verified,
// but every request is recorded so tests can assert on what was sent.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    srv := s3fake.New(t, "bucket")
//	    srv.PutObject("docs/a.txt", []byte("hello"))
//	    // point the provider at srv.Host()
//	}
package s3fake

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const lastModifiedLayout = "2006-01-02T15:04:05.000Z"

// Failure is an error response injected by a Hook.
type Failure struct {
	Status  int
	Code    string
	Message string

	// OKWithError answers 200 with an Error document, as S3 may do for
	// CopyObject and CompleteMultipartUpload.
	OKWithError bool

	// Body, when set, is written verbatim with a 200 status instead of an
	// Error document.
	Body string
}

// Hook inspects a request before it is served. Returning non-nil fails it.
type Hook func(r *http.Request) *Failure

// Request is a recorded request.
type Request struct {
	Method string
	Key    string
	Query  url.Values
	Header http.Header
}

// Op returns a short label like "PUT ?partNumber" for assertions.
func (r Request) Op() string {
	for _, sub := range []string{"uploads", "uploadId", "partNumber", "delete", "versions"} {
		if _, ok := r.Query[sub]; ok {
			if sub == "uploadId" {
				if _, part := r.Query["partNumber"]; part {
					sub = "partNumber"
				}
			}
			return r.Method + " ?" + sub
		}
	}
	return r.Method
}

type version struct {
	id           string
	data         []byte
	etag         string
	contentType  string
	encryption   string
	lastModified time.Time
	deleteMarker bool
}

type upload struct {
	key         string
	contentType string
	parts       map[int][]byte
}

// Server is an in-memory S3-compatible endpoint for one bucket.
type Server struct {
	bucket string
	srv    *httptest.Server

	mu         sync.Mutex
	objects    map[string][]*version // newest first
	uploads    map[string]*upload
	hooks      []Hook
	requests   []Request
	versioning bool
	completes  int
	now        func() time.Time
}

// New starts a server for bucket and registers its shutdown with t.
func New(t testing.TB, bucket string) *Server {
	s := &Server{
		bucket:  bucket,
		objects: make(map[string][]*version),
		uploads: make(map[string]*upload),
		now:     func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// Host returns "127.0.0.1:port", suitable for the provider Host setting.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

// URL returns the base URL of the server.
func (s *Server) URL() string { return s.srv.URL }

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// EnableVersioning makes every write create a new version with a fresh id.
func (s *Server) EnableVersioning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versioning = true
}

// Inject adds a failure hook. Hooks run in order; the first failure wins.
func (s *Server) Inject(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// PutObject stores data at key.
func (s *Server) PutObject(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(key, data, "", "")
}

// Object returns the latest content of key.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.latest(key)
	if v == nil {
		return nil, false
	}
	return append([]byte(nil), v.data...), true
}

// Keys returns all live keys in order.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveKeys("")
}

// OpenUploads returns the number of multipart uploads neither completed nor
// aborted.
func (s *Server) OpenUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// Completes returns how many CompleteMultipartUpload requests were served.
func (s *Server) Completes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completes
}

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns the number of recorded requests with the given Op label.
func (s *Server) Count(op string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Op() == op {
			n++
		}
	}
	return n
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/{bucket}", func(r chi.Router) {
		r.Use(s.checkBucket)
		r.Get("/", s.bucketGet)
		r.Post("/", s.bucketPost)

		r.Head("/*", s.objectHead)
		r.Get("/*", s.objectGet)
		r.Put("/*", s.objectPut)
		r.Post("/*", s.objectPost)
		r.Delete("/*", s.objectDelete)
	})
	return r
}

// record stores the request and applies failure hooks.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Key:    objectKey(r, s.bucket),
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		hooks := append([]Hook(nil), s.hooks...)
		s.mu.Unlock()

		for _, h := range hooks {
			if f := h(r); f != nil {
				_, _ = io.Copy(io.Discard, r.Body)
				if f.Body != "" {
					w.Header().Set("Content-Type", "application/xml")
					w.WriteHeader(http.StatusOK)
					_, _ = io.WriteString(w, f.Body)
					return
				}
				status := f.Status
				if f.OKWithError {
					status = http.StatusOK
				}
				writeError(w, r, status, f.Code, f.Message)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBucket(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "bucket") != s.bucket {
			writeError(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// objectKey extracts the unescaped key from the request path.
func objectKey(r *http.Request, bucket string) string {
	p := strings.TrimPrefix(r.URL.EscapedPath(), "/"+bucket)
	p = strings.TrimPrefix(p, "/")
	key, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return key
}

// Handlers

func (s *Server) objectHead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.find(objectKey(r, s.bucket), r.URL.Query().Get("versionId"))
	s.mu.Unlock()
	if v == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeObjectHeaders(w, v)
	w.Header().Set("Content-Length", strconv.Itoa(len(v.data)))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) objectGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := objectKey(r, s.bucket)
	if id := q.Get("uploadId"); id != "" {
		s.listParts(w, r, key, id)
		return
	}

	s.mu.Lock()
	v := s.find(key, q.Get("versionId"))
	s.mu.Unlock()
	if v == nil {
		writeError(w, r, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
		return
	}

	writeObjectHeaders(w, v)
	if cd := q.Get("response-content-disposition"); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	}

	data := v.data
	status := http.StatusOK
	if rng := r.Header.Get("Range"); rng != "" {
		start, end, ok := parseRange(rng, int64(len(data)))
		if !ok {
			writeError(w, r, http.StatusRequestedRangeNotSatisfiable, "InvalidRange", "The requested range is not satisfiable")
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		data = data[start : end+1]
		status = http.StatusPartialContent
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) objectPut(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := objectKey(r, s.bucket)

	if src := r.Header.Get("X-Amz-Copy-Source"); src != "" {
		s.copyObject(w, r, key, src)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	sum := md5.Sum(data)
	if want := r.Header.Get("Content-MD5"); want != "" && want != base64.StdEncoding.EncodeToString(sum[:]) {
		writeError(w, r, http.StatusBadRequest, "BadDigest", "The Content-MD5 you specified did not match what we received.")
		return
	}

	if id := q.Get("uploadId"); id != "" {
		n, err := strconv.Atoi(q.Get("partNumber"))
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "InvalidArgument", "Part number must be a positive integer")
			return
		}
		s.mu.Lock()
		up, ok := s.uploads[id]
		if ok {
			up.parts[n] = data
		}
		s.mu.Unlock()
		if !ok {
			writeError(w, r, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
			return
		}
		w.Header().Set("ETag", quote(hex.EncodeToString(sum[:])))
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mu.Lock()
	v := s.store(key, data, r.Header.Get("Content-Type"), r.Header.Get("X-Amz-Server-Side-Encryption"))
	s.mu.Unlock()
	w.Header().Set("ETag", v.etag)
	if v.encryption != "" {
		w.Header().Set("X-Amz-Server-Side-Encryption", v.encryption)
	}
	if s.versioning {
		w.Header().Set("X-Amz-Version-Id", v.id)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) copyObject(w http.ResponseWriter, r *http.Request, key, src string) {
	src, err := url.PathUnescape(src)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", "Copy Source must mention the source bucket and key")
		return
	}
	src = strings.TrimPrefix(src, "/")
	srcBucket, srcKey, _ := strings.Cut(src, "/")
	if srcBucket != s.bucket {
		writeError(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}

	s.mu.Lock()
	from := s.latest(srcKey)
	var v *version
	if from != nil {
		v = s.store(key, from.data, from.contentType, r.Header.Get("X-Amz-Server-Side-Encryption"))
	}
	s.mu.Unlock()
	if from == nil {
		writeError(w, r, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
		return
	}
	writeXML(w, http.StatusOK, copyObjectResult{ETag: v.etag, LastModified: v.lastModified.Format(lastModifiedLayout)})
}

func (s *Server) objectPost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := objectKey(r, s.bucket)

	if _, ok := q["uploads"]; ok {
		id := uuid.NewString()
		s.mu.Lock()
		s.uploads[id] = &upload{key: key, contentType: r.Header.Get("Content-Type"), parts: make(map[int][]byte)}
		s.mu.Unlock()
		writeXML(w, http.StatusOK, initiateResult{Bucket: s.bucket, Key: key, UploadID: id})
		return
	}

	id := q.Get("uploadId")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "unsupported POST")
		return
	}
	var req completeRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "MalformedXML", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.completes++
	up, ok := s.uploads[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
		return
	}

	var data []byte
	var sums []byte
	for i, part := range req.Parts {
		body, ok := up.parts[part.PartNumber]
		if part.PartNumber != i+1 || !ok {
			writeError(w, r, http.StatusBadRequest, "InvalidPart", "One or more of the specified parts could not be found.")
			return
		}
		sum := md5.Sum(body)
		if strings.Trim(part.ETag, `"`) != hex.EncodeToString(sum[:]) {
			writeError(w, r, http.StatusBadRequest, "InvalidPart", "ETag mismatch")
			return
		}
		data = append(data, body...)
		sums = append(sums, sum[:]...)
	}
	delete(s.uploads, id)

	v := s.store(key, data, up.contentType, "")
	all := md5.Sum(sums)
	v.etag = quote(fmt.Sprintf("%s-%d", hex.EncodeToString(all[:]), len(req.Parts)))
	writeXML(w, http.StatusOK, completeResult{Location: s.srv.URL + "/" + s.bucket + "/" + key, Bucket: s.bucket, Key: key, ETag: v.etag})
}

func (s *Server) objectDelete(w http.ResponseWriter, r *http.Request) {
	key := objectKey(r, s.bucket)
	if id := r.URL.Query().Get("uploadId"); id != "" {
		s.mu.Lock()
		_, ok := s.uploads[id]
		delete(s.uploads, id)
		s.mu.Unlock()
		if !ok {
			writeError(w, r, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mu.Lock()
	s.remove(key)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bucketPost(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["delete"]; !ok {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "unsupported POST")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	sum := md5.Sum(body)
	if r.Header.Get("Content-MD5") != base64.StdEncoding.EncodeToString(sum[:]) {
		writeError(w, r, http.StatusBadRequest, "InvalidDigest", "The Content-MD5 you specified is not valid.")
		return
	}
	var req deleteRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "MalformedXML", err.Error())
		return
	}
	if len(req.Objects) > 1000 {
		writeError(w, r, http.StatusBadRequest, "MalformedXML", "too many keys")
		return
	}

	s.mu.Lock()
	res := deleteResult{}
	for _, o := range req.Objects {
		s.remove(o.Key)
		if !req.Quiet {
			res.Deleted = append(res.Deleted, deletedEntry{Key: o.Key})
		}
	}
	s.mu.Unlock()
	writeXML(w, http.StatusOK, res)
}

func (s *Server) bucketGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if _, ok := q["versions"]; ok {
		s.listVersions(w, q)
		return
	}

	maxKeys := 1000
	if v := q.Get("max-keys"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < maxKeys {
			maxKeys = n
		}
	}
	v2 := q.Get("list-type") == "2"
	after := q.Get("marker")
	if v2 {
		after = q.Get("continuation-token")
	}

	prefix, delimiter := q.Get("prefix"), q.Get("delimiter")
	s.mu.Lock()
	res := s.list(prefix, delimiter, after, maxKeys)
	s.mu.Unlock()

	res.MaxKeys = maxKeys
	if v2 {
		res.ContinuationToken = after
		if res.IsTruncated {
			res.NextContinuationToken = res.next
		}
	} else {
		res.Marker = after
		if res.IsTruncated && delimiter != "" {
			res.NextMarker = res.next
		}
	}
	writeXML(w, http.StatusOK, res)
}

// listVersions pages through versions in key order, newest first per key.
// A key marker without a version marker resumes after every version of that
// key.
func (s *Server) listVersions(w http.ResponseWriter, q url.Values) {
	prefix := q.Get("prefix")
	keyMarker, versionMarker := q.Get("key-marker"), q.Get("version-id-marker")
	maxKeys := 1000
	if v := q.Get("max-keys"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < maxKeys {
			maxKeys = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := listVersionsResult{
		Name:            s.bucket,
		Prefix:          prefix,
		KeyMarker:       keyMarker,
		VersionIDMarker: versionMarker,
		MaxKeys:         maxKeys,
	}
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

collect:
	for _, k := range keys {
		if k < keyMarker {
			continue
		}
		versions := s.objects[k]
		start := 0
		if k == keyMarker {
			start = len(versions)
			for i, v := range versions {
				if versionMarker != "" && v.id == versionMarker {
					start = i + 1
					break
				}
			}
		}
		for i := start; i < len(versions); i++ {
			if len(res.Entries) == maxKeys {
				res.IsTruncated = true
				break collect
			}
			v := versions[i]
			e := versionEntry{
				Key:          k,
				VersionID:    v.id,
				IsLatest:     i == 0,
				LastModified: v.lastModified.Format(lastModifiedLayout),
			}
			res.NextKeyMarker, res.NextVersionIDMarker = k, v.id
			if v.deleteMarker {
				res.Entries = append(res.Entries, deleteMarkerXML{versionEntry: e})
				continue
			}
			e.ETag = v.etag
			e.Size = int64(len(v.data))
			e.StorageClass = "STANDARD"
			res.Entries = append(res.Entries, versionXML{versionEntry: e})
		}
	}
	if !res.IsTruncated {
		res.NextKeyMarker, res.NextVersionIDMarker = "", ""
	}
	writeXML(w, http.StatusOK, res)
}

func (s *Server) listParts(w http.ResponseWriter, r *http.Request, key, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	up, ok := s.uploads[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
		return
	}
	res := listPartsResult{Bucket: s.bucket, Key: key, UploadID: id, MaxParts: 1000}
	numbers := make([]int, 0, len(up.parts))
	for n := range up.parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		sum := md5.Sum(up.parts[n])
		res.Parts = append(res.Parts, partEntry{
			PartNumber:   n,
			ETag:         quote(hex.EncodeToString(sum[:])),
			Size:         int64(len(up.parts[n])),
			LastModified: s.now().Format(lastModifiedLayout),
		})
	}
	writeXML(w, http.StatusOK, res)
}

// Storage helpers; callers hold s.mu.

func (s *Server) store(key string, data []byte, contentType, encryption string) *version {
	sum := md5.Sum(data)
	v := &version{
		id:           "null",
		data:         append([]byte(nil), data...),
		etag:         quote(hex.EncodeToString(sum[:])),
		contentType:  contentType,
		encryption:   encryption,
		lastModified: s.now(),
	}
	if v.contentType == "" {
		v.contentType = "binary/octet-stream"
	}
	if s.versioning {
		v.id = uuid.NewString()
		s.objects[key] = append([]*version{v}, s.objects[key]...)
	} else {
		s.objects[key] = []*version{v}
	}
	return v
}

func (s *Server) remove(key string) {
	if !s.versioning {
		delete(s.objects, key)
		return
	}
	if s.latest(key) == nil {
		return
	}
	marker := &version{id: uuid.NewString(), deleteMarker: true, lastModified: s.now()}
	s.objects[key] = append([]*version{marker}, s.objects[key]...)
}

func (s *Server) latest(key string) *version {
	vs := s.objects[key]
	if len(vs) == 0 || vs[0].deleteMarker {
		return nil
	}
	return vs[0]
}

func (s *Server) find(key, id string) *version {
	if id == "" {
		return s.latest(key)
	}
	for _, v := range s.objects[key] {
		if v.id == id && !v.deleteMarker {
			return v
		}
	}
	return nil
}

func (s *Server) liveKeys(prefix string) []string {
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && s.latest(k) != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// list builds one listing page. Entries (keys or common prefixes) sorting at
// or before after are skipped.
func (s *Server) list(prefix, delimiter, after string, maxKeys int) listBucketResult {
	res := listBucketResult{Name: s.bucket, Prefix: prefix, Delimiter: delimiter}
	seen := map[string]bool{}
	count := 0
	for _, k := range s.liveKeys(prefix) {
		entry, isPrefix := k, false
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				entry, isPrefix = k[:len(prefix)+i+len(delimiter)], true
			}
		}
		if entry <= after || seen[entry] {
			continue
		}
		if count == maxKeys {
			res.IsTruncated = true
			break
		}
		seen[entry] = true
		count++
		res.next = entry
		if isPrefix {
			res.CommonPrefixes = append(res.CommonPrefixes, commonPrefix{Prefix: entry})
			continue
		}
		v := s.latest(k)
		res.Contents = append(res.Contents, contentsEntry{
			Key:          k,
			LastModified: v.lastModified.Format(lastModifiedLayout),
			ETag:         v.etag,
			Size:         int64(len(v.data)),
			StorageClass: "STANDARD",
		})
	}
	res.KeyCount = count
	return res
}

func writeObjectHeaders(w http.ResponseWriter, v *version) {
	h := w.Header()
	h.Set("ETag", v.etag)
	h.Set("Last-Modified", v.lastModified.Format(http.TimeFormat))
	h.Set("Content-Type", v.contentType)
	h.Set("Accept-Ranges", "bytes")
	if v.encryption != "" {
		h.Set("X-Amz-Server-Side-Encryption", v.encryption)
	}
	if v.id != "null" {
		h.Set("X-Amz-Version-Id", v.id)
	}
}

// parseRange handles the single "bytes=a-b" form.
func parseRange(h string, size int64) (int64, int64, bool) {
	rng, ok := strings.CutPrefix(h, "bytes=")
	if !ok {
		return 0, 0, false
	}
	a, b, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(a, 10, 64)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if b != "" {
		if end, err = strconv.ParseInt(b, 10, 64); err != nil || end < start {
			return 0, 0, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true
}

func quote(s string) string { return `"` + s + `"` }

func writeXML(w http.ResponseWriter, status int, v any) {
	data, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	reqID := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	w.Header().Set("X-Amz-Request-Id", reqID)
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	writeXML(w, status, errorResponse{
		Code:      code,
		Message:   message,
		Resource:  r.URL.Path,
		RequestID: reqID,
	})
}
