package s3compat

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/3leaps/s3compat/pkg/provider"
)

// Metadata variants returned by the provider. Each is built once from a parsed
// record and never mutated.
var (
	_ provider.Metadata = FileMetadata{}
	_ provider.Metadata = FileHeadMetadata{}
	_ provider.Metadata = FolderMetadata{}
	_ provider.Metadata = FolderKeyMetadata{}
	_ provider.Revision = RevisionMetadata{}
)

// FileMetadata describes an object from a bucket listing Contents entry.
type FileMetadata struct {
	prefix string
	rec    ObjectRecord
}

// NewFileMetadata wraps a listing record. The key must lie under prefix.
func NewFileMetadata(rec ObjectRecord, prefix string) FileMetadata {
	return FileMetadata{prefix: prefix, rec: rec}
}

func (m FileMetadata) Kind() provider.Kind { return provider.KindFile }
func (m FileMetadata) Path() string        { return logicalPath(m.rec.Key, m.prefix) }
func (m FileMetadata) Name() string        { return lastSegment(m.rec.Key) }

// Key returns the backend object key.
func (m FileMetadata) Key() string { return m.rec.Key }

// Size returns the object size in bytes.
func (m FileMetadata) Size() int64 { return m.rec.Size }

// ETag returns the unquoted entity tag.
func (m FileMetadata) ETag() string { return cleanETag(m.rec.ETag) }

// View implements provider.Metadata.
func (m FileMetadata) View() provider.View {
	size := m.rec.Size
	v := provider.View{
		Path:     m.Path(),
		Name:     m.Name(),
		Kind:     provider.KindFile,
		Size:     &size,
		Modified: m.rec.LastModified,
		ETag:     m.ETag(),
	}
	v.Extra = fileExtra(m.ETag(), m.rec.StorageClass)
	return v
}

// FileHeadMetadata describes an object from HEAD (or GET) response headers.
type FileHeadMetadata struct {
	prefix       string
	key          string
	size         int64
	lastModified string
	etag         string
	contentType  string
	encryption   string
	storageClass string
	version      string
}

// NewFileHeadMetadata reads object metadata from response headers.
func NewFileHeadMetadata(key, prefix string, h http.Header) FileHeadMetadata {
	size, _ := strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	return FileHeadMetadata{
		prefix:       prefix,
		key:          key,
		size:         size,
		lastModified: h.Get("Last-Modified"),
		etag:         cleanETag(h.Get("ETag")),
		contentType:  h.Get("Content-Type"),
		encryption:   h.Get("X-Amz-Server-Side-Encryption"),
		storageClass: h.Get("X-Amz-Storage-Class"),
		version:      h.Get("X-Amz-Version-Id"),
	}
}

func (m FileHeadMetadata) Kind() provider.Kind { return provider.KindFile }
func (m FileHeadMetadata) Path() string        { return logicalPath(m.key, m.prefix) }
func (m FileHeadMetadata) Name() string        { return lastSegment(m.key) }

// Key returns the backend object key.
func (m FileHeadMetadata) Key() string { return m.key }

// Size returns the Content-Length reported by the backend.
func (m FileHeadMetadata) Size() int64 { return m.size }

// ETag returns the unquoted entity tag.
func (m FileHeadMetadata) ETag() string { return m.etag }

// ContentType returns the stored MIME type.
func (m FileHeadMetadata) ContentType() string { return m.contentType }

// Encrypted reports whether the backend stored the object with server-side
// encryption.
func (m FileHeadMetadata) Encrypted() bool { return m.encryption != "" }

// View implements provider.Metadata.
func (m FileHeadMetadata) View() provider.View {
	size := m.size
	v := provider.View{
		Path:     m.Path(),
		Name:     m.Name(),
		Kind:     provider.KindFile,
		Size:     &size,
		Modified: m.lastModified,
		ETag:     m.etag,
		Extra:    fileExtra(m.etag, m.storageClass),
	}
	if m.contentType != "" {
		v.Extra["contentType"] = m.contentType
	}
	v.Extra["encryption"] = m.encryption
	if m.version != "" {
		v.Extra["version"] = m.version
	}
	return v
}

// FolderMetadata describes a CommonPrefixes entry. Common prefixes carry no
// object attributes, so its view has no Extra.
type FolderMetadata struct {
	prefix string
	key    string
}

// NewFolderMetadata wraps a common prefix. key ends with the delimiter.
func NewFolderMetadata(key, prefix string) FolderMetadata {
	return FolderMetadata{prefix: prefix, key: key}
}

func (m FolderMetadata) Kind() provider.Kind { return provider.KindFolder }
func (m FolderMetadata) Path() string        { return logicalPath(m.key, m.prefix) }
func (m FolderMetadata) Name() string        { return lastSegment(m.key) }

// Key returns the backend prefix.
func (m FolderMetadata) Key() string { return m.key }

// View implements provider.Metadata.
func (m FolderMetadata) View() provider.View {
	return provider.View{Path: m.Path(), Name: m.Name(), Kind: provider.KindFolder}
}

// FolderKeyMetadata describes a zero-byte folder marker object: a Contents
// entry whose key ends with the delimiter. It reads as a folder.
type FolderKeyMetadata struct {
	prefix string
	rec    ObjectRecord
}

// NewFolderKeyMetadata wraps a folder marker listing record.
func NewFolderKeyMetadata(rec ObjectRecord, prefix string) FolderKeyMetadata {
	return FolderKeyMetadata{prefix: prefix, rec: rec}
}

func (m FolderKeyMetadata) Kind() provider.Kind { return provider.KindFolder }
func (m FolderKeyMetadata) Path() string        { return logicalPath(m.rec.Key, m.prefix) }
func (m FolderKeyMetadata) Name() string        { return lastSegment(m.rec.Key) }

// Key returns the backend marker key.
func (m FolderKeyMetadata) Key() string { return m.rec.Key }

// View implements provider.Metadata.
func (m FolderKeyMetadata) View() provider.View {
	v := provider.View{
		Path:     m.Path(),
		Name:     m.Name(),
		Kind:     provider.KindFolder,
		Modified: m.rec.LastModified,
		ETag:     cleanETag(m.rec.ETag),
	}
	if m.rec.StorageClass != "" {
		v.Extra = map[string]any{"storageClass": m.rec.StorageClass}
	}
	return v
}

// RevisionMetadata describes one object version.
type RevisionMetadata struct {
	prefix string
	rec    VersionRecord
}

// NewRevisionMetadata wraps a version listing record.
func NewRevisionMetadata(rec VersionRecord, prefix string) RevisionMetadata {
	return RevisionMetadata{prefix: prefix, rec: rec}
}

func (m RevisionMetadata) Kind() provider.Kind { return provider.KindFile }
func (m RevisionMetadata) Path() string        { return logicalPath(m.rec.Key, m.prefix) }
func (m RevisionMetadata) Name() string        { return lastSegment(m.rec.Key) }

// Version implements provider.Revision.
func (m RevisionMetadata) Version() string { return m.rec.VersionID }

// IsLatest implements provider.Revision.
func (m RevisionMetadata) IsLatest() bool { return m.rec.IsLatest }

// Size returns the size of this version.
func (m RevisionMetadata) Size() int64 { return m.rec.Size }

// ETag returns the unquoted entity tag of this version.
func (m RevisionMetadata) ETag() string { return cleanETag(m.rec.ETag) }

// Owner returns the version owner, or nil when the backend omitted it.
func (m RevisionMetadata) Owner() *Owner { return m.rec.Owner }

// View implements provider.Metadata.
func (m RevisionMetadata) View() provider.View {
	size := m.rec.Size
	v := provider.View{
		Path:     m.Path(),
		Name:     m.Name(),
		Kind:     provider.KindFile,
		Size:     &size,
		Modified: m.rec.LastModified,
		ETag:     m.ETag(),
		Extra:    fileExtra(m.ETag(), m.rec.StorageClass),
	}
	v.Extra["version"] = m.rec.VersionID
	v.Extra["isLatest"] = m.rec.IsLatest
	if m.rec.Owner != nil {
		v.Extra["owner"] = map[string]string{"id": m.rec.Owner.ID, "displayName": m.rec.Owner.DisplayName}
	}
	return v
}

// entryMetadata picks the variant for a listing Contents entry.
func entryMetadata(rec ObjectRecord, prefix string) provider.Metadata {
	if strings.HasSuffix(rec.Key, provider.Delimiter) {
		return NewFolderKeyMetadata(rec, prefix)
	}
	return NewFileMetadata(rec, prefix)
}

func fileExtra(etag, storageClass string) map[string]any {
	extra := map[string]any{"md5": etag}
	// Multipart ETags are "<md5-of-md5s>-<parts>" and are not content hashes.
	if strings.Contains(etag, "-") {
		delete(extra, "md5")
	}
	if storageClass != "" {
		extra["storageClass"] = storageClass
	}
	return extra
}

// logicalPath renders a backend key as a provider path with the prefix
// stripped.
func logicalPath(key, prefix string) string {
	return provider.Delimiter + strings.TrimPrefix(strings.TrimPrefix(key, prefix), provider.Delimiter)
}

// lastSegment returns the final non-empty segment of key.
func lastSegment(key string) string {
	trimmed := strings.TrimSuffix(key, provider.Delimiter)
	if i := strings.LastIndex(trimmed, provider.Delimiter); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), "\"")
}
