// Package provider defines the generic file-storage abstraction that host
// systems dispatch to.
//
// Providers translate path-oriented operations (validate, download, upload,
// delete, copy, move, metadata, revisions) into a backend protocol. Every
// mutating operation takes a Path that was produced by one of the validation
// methods; providers never act on an unresolved string.
package provider

import (
	"context"
	"io"
)

// Provider abstracts a path-oriented storage backend.
//
// Implementations should:
//   - Resolve and validate paths before any mutating call
//   - Map backend failures onto the sentinel errors in this package
//   - Be safe for concurrent use
type Provider interface {
	// ValidatePath parses raw without contacting the backend. A trailing
	// delimiter marks a folder.
	ValidatePath(ctx context.Context, raw string) (Path, error)

	// ValidateV1Path parses raw and confirms the declared kind exists.
	// Returns ErrNotFound if it does not.
	ValidateV1Path(ctx context.Context, raw string) (Path, error)

	// Resolve parses raw and probes the backend according to intent.
	// Returns ErrConflict if both a file and a folder exist under IntentAny.
	Resolve(ctx context.Context, raw string, intent Intent) (Path, error)

	// Download opens the content of a file.
	Download(ctx context.Context, path Path, opts DownloadOptions) (*DownloadResult, error)

	// Upload writes body to path. created is false when an existing object
	// was overwritten.
	Upload(ctx context.Context, body io.Reader, path Path, opts UploadOptions) (meta Metadata, created bool, err error)

	// Delete removes a file, or a folder and everything beneath it.
	Delete(ctx context.Context, path Path, opts DeleteOptions) error

	// Copy duplicates src at dst.
	Copy(ctx context.Context, src, dst Path) (meta Metadata, created bool, err error)

	// Move copies src to dst and removes src. src is left in place if the
	// copy fails.
	Move(ctx context.Context, src, dst Path) (meta Metadata, created bool, err error)

	// Metadata returns file metadata, or folder children for a folder path.
	Metadata(ctx context.Context, path Path, opts MetadataOptions) ([]Metadata, error)

	// ListFolder returns the immediate children of a folder.
	ListFolder(ctx context.Context, path Path) ([]Metadata, error)

	// Revisions returns the versions of a file, newest first.
	Revisions(ctx context.Context, path Path) ([]Revision, error)

	// CreateFolder creates an empty folder. Returns ErrConflict if it exists.
	CreateFolder(ctx context.Context, path Path) (Metadata, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Intent declares what kind of entry a caller expects a path to name.
type Intent int

const (
	// IntentAny probes for both a file and a folder.
	IntentAny Intent = iota

	// IntentFile expects a file.
	IntentFile

	// IntentFolder expects a folder.
	IntentFolder
)

// String returns the string representation of the intent.
func (i Intent) String() string {
	switch i {
	case IntentFile:
		return "file"
	case IntentFolder:
		return "folder"
	default:
		return "any"
	}
}

// ByteRange is an inclusive byte range, as in an HTTP Range header.
type ByteRange struct {
	Start int64
	End   int64
}

// DownloadOptions configures a Download operation.
type DownloadOptions struct {
	// Range requests partial content. Nil downloads the whole object.
	Range *ByteRange

	// Version selects a specific object version. Empty means latest.
	Version string

	// DisplayName is the filename suggested to clients via
	// Content-Disposition. Empty falls back to the path name.
	DisplayName string
}

// DownloadResult is an open download stream.
type DownloadResult struct {
	// Body is the content stream. Callers must close it.
	Body io.ReadCloser

	// Size is the number of bytes Body will yield, or -1 if unknown.
	Size int64

	// Partial is true when the backend answered a range request with 206.
	Partial bool

	// ContentType is the backend-reported MIME type.
	ContentType string

	// Name is the suggested file name.
	Name string
}

// Read implements io.Reader.
func (d *DownloadResult) Read(p []byte) (int, error) { return d.Body.Read(p) }

// Close closes the underlying stream.
func (d *DownloadResult) Close() error { return d.Body.Close() }

// UploadOptions configures an Upload operation.
type UploadOptions struct {
	// Size is the content length if known, or 0 when unknown. A size above
	// the provider's multipart threshold skips buffering and goes straight to
	// a multipart upload.
	Size int64

	// ContentType is sent with the object when set.
	ContentType string
}

// DeleteOptions configures a Delete operation.
type DeleteOptions struct {
	// ConfirmRoot must be set to delete everything under the root.
	ConfirmRoot bool
}

// MetadataOptions configures a Metadata operation.
type MetadataOptions struct {
	// Version selects a specific object version for file metadata.
	Version string
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderS3Compat represents an arbitrary S3-compatible endpoint.
	ProviderS3Compat ProviderType = "s3compat"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
