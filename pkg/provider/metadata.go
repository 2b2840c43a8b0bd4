package provider

// Kind is the caller-visible type of a metadata entry.
type Kind string

const (
	// KindFile is a regular object.
	KindFile Kind = "file"

	// KindFolder is a simulated directory (common prefix or folder marker key).
	KindFolder Kind = "folder"
)

// View is the normalized, host-agnostic representation of one entry.
type View struct {
	Path     string         `json:"path" yaml:"path"`
	Name     string         `json:"name" yaml:"name"`
	Kind     Kind           `json:"kind" yaml:"kind"`
	Size     *int64         `json:"size,omitempty" yaml:"size,omitempty"`
	Modified string         `json:"modified,omitempty" yaml:"modified,omitempty"`
	ETag     string         `json:"etag,omitempty" yaml:"etag,omitempty"`
	Extra    map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Metadata is implemented by every metadata variant a provider returns.
type Metadata interface {
	// Kind returns whether the entry is a file or a folder.
	Kind() Kind

	// Path returns the logical path (prefix stripped).
	Path() string

	// Name returns the display name (last path segment).
	Name() string

	// View returns the normalized representation.
	View() View
}

// Revision is a metadata entry for a specific object version.
type Revision interface {
	Metadata

	// Version returns the backend version identifier.
	Version() string

	// IsLatest reports whether this is the current version.
	IsLatest() bool
}
