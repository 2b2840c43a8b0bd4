package s3compat

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/3leaps/s3compat/pkg/provider"
)

// ResponseKind selects how an XML response body is decoded. The caller always
// states the kind; bodies are never sniffed.
type ResponseKind int

const (
	KindBucketListing ResponseKind = iota + 1
	KindVersionListing
	KindPartListing
	KindCopyResult
	KindError
	KindInitiateMultipart
	KindCompleteMultipart
	KindDeleteResult
)

// String returns the string representation of the kind.
func (k ResponseKind) String() string {
	switch k {
	case KindBucketListing:
		return "bucket-listing"
	case KindVersionListing:
		return "version-listing"
	case KindPartListing:
		return "part-listing"
	case KindCopyResult:
		return "copy-result"
	case KindError:
		return "error"
	case KindInitiateMultipart:
		return "initiate-multipart"
	case KindCompleteMultipart:
		return "complete-multipart"
	case KindDeleteResult:
		return "delete-result"
	default:
		return "unknown"
	}
}

// Response is one decoded XML document.
type Response interface {
	Kind() ResponseKind
}

// MalformedResponseError reports an unparseable or incomplete backend payload.
// Body holds the raw document for diagnostics.
type MalformedResponseError struct {
	ResponseKind ResponseKind
	Reason       string
	Body         []byte
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.ResponseKind, e.Reason)
}

// Unwrap returns provider.ErrMalformedResponse.
func (e *MalformedResponseError) Unwrap() error {
	return provider.ErrMalformedResponse
}

// Owner identifies the owner of an object version.
type Owner struct {
	ID          string
	DisplayName string
}

// ObjectRecord is one Contents entry of a bucket listing.
type ObjectRecord struct {
	Key          string
	LastModified string
	ETag         string
	Size         int64
	StorageClass string
	Owner        *Owner
}

// BucketListing is a decoded ListBucketResult (ListObjects v1 or v2).
type BucketListing struct {
	Name                  string
	Prefix                string
	Delimiter             string
	MaxKeys               int
	IsTruncated           bool
	Marker                string
	NextMarker            string
	ContinuationToken     string
	NextContinuationToken string
	Contents              []ObjectRecord
	CommonPrefixes        []string
}

// Kind implements Response.
func (*BucketListing) Kind() ResponseKind { return KindBucketListing }

// Empty reports whether the page has neither objects nor prefixes.
func (l *BucketListing) Empty() bool {
	return len(l.Contents) == 0 && len(l.CommonPrefixes) == 0
}

// VersionRecord is one Version or DeleteMarker entry of a version listing.
type VersionRecord struct {
	ObjectRecord
	VersionID    string
	IsLatest     bool
	DeleteMarker bool
}

// VersionListing is a decoded ListVersionsResult. Entries keep document order
// with versions and delete markers interleaved as the backend returned them.
type VersionListing struct {
	Name                string
	Prefix              string
	KeyMarker           string
	VersionIDMarker     string
	NextKeyMarker       string
	NextVersionIDMarker string
	MaxKeys             int
	IsTruncated         bool
	Entries             []VersionRecord
}

// Kind implements Response.
func (*VersionListing) Kind() ResponseKind { return KindVersionListing }

// Versions returns the non-delete-marker entries in document order.
func (l *VersionListing) Versions() []VersionRecord {
	out := make([]VersionRecord, 0, len(l.Entries))
	for _, e := range l.Entries {
		if !e.DeleteMarker {
			out = append(out, e)
		}
	}
	return out
}

// PartRecord is one Part entry of a part listing.
type PartRecord struct {
	PartNumber   int
	LastModified string
	ETag         string
	Size         int64
}

// PartListing is a decoded ListPartsResult.
type PartListing struct {
	Bucket               string
	Key                  string
	UploadID             string
	StorageClass         string
	PartNumberMarker     int
	NextPartNumberMarker int
	MaxParts             int
	IsTruncated          bool
	Parts                []PartRecord
}

// Kind implements Response.
func (*PartListing) Kind() ResponseKind { return KindPartListing }

// CopyResult is a decoded CopyObjectResult.
type CopyResult struct {
	ETag         string
	LastModified string
}

// Kind implements Response.
func (*CopyResult) Kind() ResponseKind { return KindCopyResult }

// ErrorResponse is a decoded S3 Error document.
type ErrorResponse struct {
	Code      string
	Message   string
	Resource  string
	RequestID string
	HostID    string
}

// Kind implements Response.
func (*ErrorResponse) Kind() ResponseKind { return KindError }

// InitiateResult is a decoded InitiateMultipartUploadResult.
type InitiateResult struct {
	Bucket   string
	Key      string
	UploadID string
}

// Kind implements Response.
func (*InitiateResult) Kind() ResponseKind { return KindInitiateMultipart }

// CompleteResult is a decoded CompleteMultipartUploadResult.
type CompleteResult struct {
	Location string
	Bucket   string
	Key      string
	ETag     string
}

// Kind implements Response.
func (*CompleteResult) Kind() ResponseKind { return KindCompleteMultipart }

// DeleteFailure is one Error entry of a bulk delete result.
type DeleteFailure struct {
	Key     string
	Code    string
	Message string
}

// DeleteResult is a decoded DeleteResult of a bulk delete.
type DeleteResult struct {
	Deleted []string
	Errors  []DeleteFailure
}

// Kind implements Response.
func (*DeleteResult) Kind() ResponseKind { return KindDeleteResult }

// Wire shapes. Optional scalars are strings so numeric parsing stays strict;
// required elements are pointers so absence is detectable.

type xmlOwner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

type xmlObject struct {
	Key          *string   `xml:"Key"`
	LastModified string    `xml:"LastModified"`
	ETag         string    `xml:"ETag"`
	Size         string    `xml:"Size"`
	StorageClass string    `xml:"StorageClass"`
	Owner        *xmlOwner `xml:"Owner"`
}

type xmlPrefix struct {
	Prefix *string `xml:"Prefix"`
}

type xmlBucketListing struct {
	XMLName               xml.Name    `xml:"ListBucketResult"`
	Name                  string      `xml:"Name"`
	Prefix                string      `xml:"Prefix"`
	Delimiter             string      `xml:"Delimiter"`
	MaxKeys               string      `xml:"MaxKeys"`
	IsTruncated           string      `xml:"IsTruncated"`
	Marker                string      `xml:"Marker"`
	NextMarker            string      `xml:"NextMarker"`
	ContinuationToken     string      `xml:"ContinuationToken"`
	NextContinuationToken string      `xml:"NextContinuationToken"`
	Contents              []xmlObject `xml:"Contents"`
	CommonPrefixes        []xmlPrefix `xml:"CommonPrefixes"`
}

type xmlVersionEntry struct {
	XMLName xml.Name
	xmlObject
	VersionID *string `xml:"VersionId"`
	IsLatest  string  `xml:"IsLatest"`
}

type xmlVersionListing struct {
	XMLName             xml.Name          `xml:"ListVersionsResult"`
	Name                string            `xml:"Name"`
	Prefix              string            `xml:"Prefix"`
	KeyMarker           string            `xml:"KeyMarker"`
	VersionIDMarker     string            `xml:"VersionIdMarker"`
	NextKeyMarker       string            `xml:"NextKeyMarker"`
	NextVersionIDMarker string            `xml:"NextVersionIdMarker"`
	MaxKeys             string            `xml:"MaxKeys"`
	IsTruncated         string            `xml:"IsTruncated"`
	Entries             []xmlVersionEntry `xml:",any"`
}

type xmlPart struct {
	PartNumber   *string `xml:"PartNumber"`
	LastModified string  `xml:"LastModified"`
	ETag         string  `xml:"ETag"`
	Size         string  `xml:"Size"`
}

type xmlPartListing struct {
	XMLName              xml.Name  `xml:"ListPartsResult"`
	Bucket               string    `xml:"Bucket"`
	Key                  string    `xml:"Key"`
	UploadID             string    `xml:"UploadId"`
	StorageClass         string    `xml:"StorageClass"`
	PartNumberMarker     string    `xml:"PartNumberMarker"`
	NextPartNumberMarker string    `xml:"NextPartNumberMarker"`
	MaxParts             string    `xml:"MaxParts"`
	IsTruncated          string    `xml:"IsTruncated"`
	Parts                []xmlPart `xml:"Part"`
}

type xmlCopyResult struct {
	XMLName      xml.Name
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

type xmlError struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
	HostID    string   `xml:"HostId"`
}

type xmlInitiate struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID *string  `xml:"UploadId"`
}

type xmlComplete struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

type xmlDeleteResult struct {
	XMLName xml.Name `xml:"DeleteResult"`
	Deleted []struct {
		Key string `xml:"Key"`
	} `xml:"Deleted"`
	Errors []struct {
		Key     string `xml:"Key"`
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
}

// Parse decodes body as the given kind. Unknown elements are ignored; missing
// required elements and non-numeric numeric fields yield a
// *MalformedResponseError.
func Parse(body []byte, kind ResponseKind) (Response, error) {
	p := parser{kind: kind, body: body}
	switch kind {
	case KindBucketListing:
		return p.bucketListing()
	case KindVersionListing:
		return p.versionListing()
	case KindPartListing:
		return p.partListing()
	case KindCopyResult:
		return p.copyResult()
	case KindError:
		return p.errorResponse()
	case KindInitiateMultipart:
		return p.initiate()
	case KindCompleteMultipart:
		return p.complete()
	case KindDeleteResult:
		return p.deleteResult()
	default:
		return nil, fmt.Errorf("parse: unsupported response kind %d", int(kind))
	}
}

// ParseBucketListing decodes a ListBucketResult document.
func ParseBucketListing(body []byte) (*BucketListing, error) {
	r, err := Parse(body, KindBucketListing)
	if err != nil {
		return nil, err
	}
	return r.(*BucketListing), nil
}

// ParseVersionListing decodes a ListVersionsResult document.
func ParseVersionListing(body []byte) (*VersionListing, error) {
	r, err := Parse(body, KindVersionListing)
	if err != nil {
		return nil, err
	}
	return r.(*VersionListing), nil
}

// ParsePartListing decodes a ListPartsResult document.
func ParsePartListing(body []byte) (*PartListing, error) {
	r, err := Parse(body, KindPartListing)
	if err != nil {
		return nil, err
	}
	return r.(*PartListing), nil
}

// ParseError decodes an Error document.
func ParseError(body []byte) (*ErrorResponse, error) {
	r, err := Parse(body, KindError)
	if err != nil {
		return nil, err
	}
	return r.(*ErrorResponse), nil
}

// IsErrorDocument reports whether the root element of body is <Error>. S3
// may answer CopyObject and CompleteMultipartUpload with 200 and an Error
// document when the failure happens after the response has started.
func IsErrorDocument(body []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local == "Error"
		}
	}
}

type parser struct {
	kind ResponseKind
	body []byte
}

func (p parser) malformed(format string, args ...any) error {
	return &MalformedResponseError{ResponseKind: p.kind, Reason: fmt.Sprintf(format, args...), Body: p.body}
}

func (p parser) decode(v any) error {
	if len(bytes.TrimSpace(p.body)) == 0 {
		return p.malformed("empty body")
	}
	if err := xml.Unmarshal(p.body, v); err != nil {
		return p.malformed("%v", err)
	}
	return nil
}

func (p parser) int64Field(name, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, p.malformed("%s %q is not an integer", name, raw)
	}
	return n, nil
}

func (p parser) intField(name, raw string) (int, error) {
	n, err := p.int64Field(name, raw)
	return int(n), err
}

func (p parser) boolField(name, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, p.malformed("%s %q is not a boolean", name, raw)
	}
	return b, nil
}

func (p parser) object(x xmlObject, where string) (ObjectRecord, error) {
	if x.Key == nil {
		return ObjectRecord{}, p.malformed("%s entry without Key", where)
	}
	size, err := p.int64Field("Size", x.Size)
	if err != nil {
		return ObjectRecord{}, err
	}
	rec := ObjectRecord{
		Key:          *x.Key,
		LastModified: strings.TrimSpace(x.LastModified),
		ETag:         strings.TrimSpace(x.ETag),
		Size:         size,
		StorageClass: strings.TrimSpace(x.StorageClass),
	}
	if x.Owner != nil {
		rec.Owner = &Owner{ID: x.Owner.ID, DisplayName: x.Owner.DisplayName}
	}
	return rec, nil
}

func (p parser) bucketListing() (*BucketListing, error) {
	var x xmlBucketListing
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	maxKeys, err := p.intField("MaxKeys", x.MaxKeys)
	if err != nil {
		return nil, err
	}
	truncated, err := p.boolField("IsTruncated", x.IsTruncated)
	if err != nil {
		return nil, err
	}

	out := &BucketListing{
		Name:                  x.Name,
		Prefix:                x.Prefix,
		Delimiter:             x.Delimiter,
		MaxKeys:               maxKeys,
		IsTruncated:           truncated,
		Marker:                x.Marker,
		NextMarker:            x.NextMarker,
		ContinuationToken:     x.ContinuationToken,
		NextContinuationToken: x.NextContinuationToken,
		Contents:              make([]ObjectRecord, 0, len(x.Contents)),
		CommonPrefixes:        make([]string, 0, len(x.CommonPrefixes)),
	}
	for _, c := range x.Contents {
		rec, err := p.object(c, "Contents")
		if err != nil {
			return nil, err
		}
		out.Contents = append(out.Contents, rec)
	}
	for _, cp := range x.CommonPrefixes {
		if cp.Prefix == nil {
			return nil, p.malformed("CommonPrefixes entry without Prefix")
		}
		out.CommonPrefixes = append(out.CommonPrefixes, *cp.Prefix)
	}
	return out, nil
}

func (p parser) versionListing() (*VersionListing, error) {
	var x xmlVersionListing
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	maxKeys, err := p.intField("MaxKeys", x.MaxKeys)
	if err != nil {
		return nil, err
	}
	truncated, err := p.boolField("IsTruncated", x.IsTruncated)
	if err != nil {
		return nil, err
	}

	out := &VersionListing{
		Name:                x.Name,
		Prefix:              x.Prefix,
		KeyMarker:           x.KeyMarker,
		VersionIDMarker:     x.VersionIDMarker,
		NextKeyMarker:       x.NextKeyMarker,
		NextVersionIDMarker: x.NextVersionIDMarker,
		MaxKeys:             maxKeys,
		IsTruncated:         truncated,
	}
	for _, e := range x.Entries {
		local := e.XMLName.Local
		if local != "Version" && local != "DeleteMarker" {
			continue
		}
		rec, err := p.object(e.xmlObject, local)
		if err != nil {
			return nil, err
		}
		if e.VersionID == nil {
			return nil, p.malformed("%s entry for %q without VersionId", local, rec.Key)
		}
		latest, err := p.boolField("IsLatest", e.IsLatest)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, VersionRecord{
			ObjectRecord: rec,
			VersionID:    *e.VersionID,
			IsLatest:     latest,
			DeleteMarker: local == "DeleteMarker",
		})
	}
	return out, nil
}

func (p parser) partListing() (*PartListing, error) {
	var x xmlPartListing
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	out := &PartListing{
		Bucket:       x.Bucket,
		Key:          x.Key,
		UploadID:     x.UploadID,
		StorageClass: x.StorageClass,
	}
	var err error
	if out.PartNumberMarker, err = p.intField("PartNumberMarker", x.PartNumberMarker); err != nil {
		return nil, err
	}
	if out.NextPartNumberMarker, err = p.intField("NextPartNumberMarker", x.NextPartNumberMarker); err != nil {
		return nil, err
	}
	if out.MaxParts, err = p.intField("MaxParts", x.MaxParts); err != nil {
		return nil, err
	}
	if out.IsTruncated, err = p.boolField("IsTruncated", x.IsTruncated); err != nil {
		return nil, err
	}

	for _, part := range x.Parts {
		if part.PartNumber == nil {
			return nil, p.malformed("Part entry without PartNumber")
		}
		raw := strings.TrimSpace(*part.PartNumber)
		num, err := strconv.Atoi(raw)
		if err != nil {
			return nil, p.malformed("PartNumber %q is not an integer", raw)
		}
		size, err := p.int64Field("Size", part.Size)
		if err != nil {
			return nil, err
		}
		out.Parts = append(out.Parts, PartRecord{
			PartNumber:   num,
			LastModified: strings.TrimSpace(part.LastModified),
			ETag:         strings.TrimSpace(part.ETag),
			Size:         size,
		})
	}
	return out, nil
}

func (p parser) copyResult() (*CopyResult, error) {
	var x xmlCopyResult
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	// UploadPartCopy answers with CopyPartResult; same shape.
	if x.XMLName.Local != "CopyObjectResult" && x.XMLName.Local != "CopyPartResult" {
		return nil, p.malformed("unexpected root element <%s>", x.XMLName.Local)
	}
	return &CopyResult{ETag: strings.TrimSpace(x.ETag), LastModified: strings.TrimSpace(x.LastModified)}, nil
}

func (p parser) errorResponse() (*ErrorResponse, error) {
	var x xmlError
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	return &ErrorResponse{
		Code:      strings.TrimSpace(x.Code),
		Message:   strings.TrimSpace(x.Message),
		Resource:  strings.TrimSpace(x.Resource),
		RequestID: strings.TrimSpace(x.RequestID),
		HostID:    strings.TrimSpace(x.HostID),
	}, nil
}

func (p parser) initiate() (*InitiateResult, error) {
	var x xmlInitiate
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	if x.UploadID == nil || strings.TrimSpace(*x.UploadID) == "" {
		return nil, p.malformed("missing UploadId")
	}
	return &InitiateResult{Bucket: x.Bucket, Key: x.Key, UploadID: strings.TrimSpace(*x.UploadID)}, nil
}

func (p parser) complete() (*CompleteResult, error) {
	var x xmlComplete
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	return &CompleteResult{
		Location: x.Location,
		Bucket:   x.Bucket,
		Key:      x.Key,
		ETag:     strings.TrimSpace(x.ETag),
	}, nil
}

func (p parser) deleteResult() (*DeleteResult, error) {
	var x xmlDeleteResult
	if err := p.decode(&x); err != nil {
		return nil, err
	}
	out := &DeleteResult{}
	for _, d := range x.Deleted {
		out.Deleted = append(out.Deleted, d.Key)
	}
	for _, e := range x.Errors {
		out.Errors = append(out.Errors, DeleteFailure{Key: e.Key, Code: e.Code, Message: e.Message})
	}
	return out, nil
}

// errMalformed reports whether err is a malformed-response failure.
func errMalformed(err error) bool {
	return errors.Is(err, provider.ErrMalformedResponse)
}
