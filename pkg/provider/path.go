package provider

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Delimiter separates path segments and simulates directories in the flat
// key namespace.
const Delimiter = "/"

// Path is a resolved reference to a file or folder.
//
// Paths are immutable: every method returns a new value. A root path has no
// segments and is always a folder.
type Path struct {
	segments []string
	folder   bool
	prefix   string
}

// ParsePath parses a user-supplied path string. A trailing delimiter is the
// only signal that the caller means a folder.
//
// prefix is the provider key prefix (tenant scoping) and is carried along for
// Key rendering; it never appears in the logical path.
func ParsePath(raw, prefix string) (Path, error) {
	prefix = NormalizePrefix(prefix)
	if err := validateRaw(raw); err != nil {
		return Path{}, err
	}
	if raw == Delimiter {
		return Root(prefix), nil
	}

	folder := strings.HasSuffix(raw, Delimiter)
	trimmed := strings.Trim(raw, Delimiter)
	segments := strings.Split(trimmed, Delimiter)
	for _, s := range segments {
		switch s {
		case "":
			return Path{}, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, raw)
		case ".", "..":
			return Path{}, fmt.Errorf("%w: relative segment %q in %q", ErrInvalidPath, s, raw)
		}
	}

	return Path{segments: segments, folder: folder, prefix: prefix}, nil
}

func validateRaw(raw string) error {
	switch {
	case raw == "":
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	case !strings.HasPrefix(raw, Delimiter):
		return fmt.Errorf("%w: %q must start with %q", ErrInvalidPath, raw, Delimiter)
	case !utf8.ValidString(raw):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidPath)
	case strings.ContainsRune(raw, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidPath)
	}
	return nil
}

// Root returns the root folder for the given key prefix.
func Root(prefix string) Path {
	return Path{folder: true, prefix: NormalizePrefix(prefix)}
}

// NormalizePrefix returns prefix as a folder key: no leading delimiter and
// exactly one trailing delimiter. The empty prefix (and "/") is the bucket
// root. A prefix without the trailing delimiter would match sibling keys
// ("tenant" also covers "tenant2/...").
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, Delimiter)
	if prefix == "" || strings.HasSuffix(prefix, Delimiter) {
		return prefix
	}
	return prefix + Delimiter
}

// IsRoot reports whether the path is the provider root.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// IsDir reports whether the path refers to a folder.
func (p Path) IsDir() bool { return p.folder || p.IsRoot() }

// IsFile reports whether the path refers to a file.
func (p Path) IsFile() bool { return !p.IsDir() }

// Prefix returns the key prefix the path was resolved against.
func (p Path) Prefix() string { return p.prefix }

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Name returns the last segment, or "" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the containing folder. The parent of the root is the root.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	return Path{
		segments: append([]string(nil), p.segments[:len(p.segments)-1]...),
		folder:   true,
		prefix:   p.prefix,
	}
}

// Child returns a new path one level below p. p must be a folder.
func (p Path) Child(name string, folder bool) (Path, error) {
	if !p.IsDir() {
		return Path{}, fmt.Errorf("%w: %s is not a folder", ErrInvalidPath, p)
	}
	name = strings.Trim(name, Delimiter)
	if name == "" || name == "." || name == ".." || strings.Contains(name, Delimiter) {
		return Path{}, fmt.Errorf("%w: invalid child name %q", ErrInvalidPath, name)
	}
	segs := make([]string, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)
	segs = append(segs, name)
	return Path{segments: segs, folder: folder, prefix: p.prefix}, nil
}

// AsFolder returns the same location as a folder reference.
func (p Path) AsFolder() Path {
	return Path{segments: p.Segments(), folder: true, prefix: p.prefix}
}

// AsFile returns the same location as a file reference. The root cannot be a
// file and is returned unchanged.
func (p Path) AsFile() Path {
	if p.IsRoot() {
		return p
	}
	return Path{segments: p.Segments(), folder: false, prefix: p.prefix}
}

// String returns the logical path, e.g. "/a/b.txt" or "/a/".
func (p Path) String() string {
	if p.IsRoot() {
		return Delimiter
	}
	s := Delimiter + strings.Join(p.segments, Delimiter)
	if p.folder {
		s += Delimiter
	}
	return s
}

// Key returns the backend object key: the prefix followed by the segments,
// with a trailing delimiter for folders. The root renders to the prefix.
func (p Path) Key() string {
	if p.IsRoot() {
		return p.prefix
	}
	return p.prefix + strings.TrimPrefix(p.String(), Delimiter)
}

// Equal reports whether two paths refer to the same location and kind.
func (p Path) Equal(o Path) bool {
	return p.prefix == o.prefix && p.IsDir() == o.IsDir() && p.String() == o.String()
}

// PathFromKey builds a path from a backend key by stripping the prefix. A key
// ending in the delimiter yields a folder. Keys outside the prefix are rejected.
func PathFromKey(key, prefix string) (Path, error) {
	prefix = NormalizePrefix(prefix)
	if !strings.HasPrefix(key, prefix) {
		return Path{}, fmt.Errorf("%w: key %q outside prefix %q", ErrInvalidPath, key, prefix)
	}
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" {
		return Root(prefix), nil
	}
	return ParsePath(Delimiter+strings.TrimPrefix(rel, Delimiter), prefix)
}
