package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		prefix     string
		wantString string
		wantKey    string
		wantDir    bool
		wantRoot   bool
		wantErr    bool
	}{
		{name: "root", raw: "/", wantString: "/", wantKey: "", wantDir: true, wantRoot: true},
		{name: "root with prefix", raw: "/", prefix: "tenant/", wantString: "/", wantKey: "tenant/", wantDir: true, wantRoot: true},
		{name: "file", raw: "/a/b.txt", wantString: "/a/b.txt", wantKey: "a/b.txt"},
		{name: "folder", raw: "/a/b/", wantString: "/a/b/", wantKey: "a/b/", wantDir: true},
		{name: "prefixed file", raw: "/b.txt", prefix: "tenant/", wantString: "/b.txt", wantKey: "tenant/b.txt"},
		{name: "unicode", raw: "/ü/ß.txt", wantString: "/ü/ß.txt", wantKey: "ü/ß.txt"},
		{name: "spaces kept", raw: "/a b/c d.txt", wantString: "/a b/c d.txt", wantKey: "a b/c d.txt"},
		{name: "empty", raw: "", wantErr: true},
		{name: "relative", raw: "a/b", wantErr: true},
		{name: "double delimiter", raw: "/a//b", wantErr: true},
		{name: "dot segment", raw: "/a/./b", wantErr: true},
		{name: "dot dot segment", raw: "/a/../b", wantErr: true},
		{name: "invalid utf8", raw: "/a\xffb", wantErr: true},
		{name: "nul", raw: "/a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePath(tt.raw, tt.prefix)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantString, p.String())
			assert.Equal(t, tt.wantKey, p.Key())
			assert.Equal(t, tt.wantDir, p.IsDir())
			assert.Equal(t, !tt.wantDir, p.IsFile())
			assert.Equal(t, tt.wantRoot, p.IsRoot())
			assert.Equal(t, tt.prefix, p.Prefix())
		})
	}
}

func TestPath_NameAndParent(t *testing.T) {
	tests := []struct {
		raw        string
		wantName   string
		wantParent string
	}{
		{"/", "", "/"},
		{"/a.txt", "a.txt", "/"},
		{"/a/b/", "b", "/a/"},
		{"/a/b/c.txt", "c.txt", "/a/b/"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ParsePath(tt.raw, "x/")
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())

			parent := p.Parent()
			assert.Equal(t, tt.wantParent, parent.String())
			assert.True(t, parent.IsDir())
			assert.Equal(t, "x/", parent.Prefix())
		})
	}
}

func TestPath_Child(t *testing.T) {
	folder, err := ParsePath("/docs/", "")
	require.NoError(t, err)

	file, err := folder.Child("a.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.txt", file.String())
	assert.True(t, file.IsFile())

	sub, err := folder.Child("/sub/", true)
	require.NoError(t, err)
	assert.Equal(t, "/docs/sub/", sub.String())

	rootChild, err := Root("p/").Child("top", false)
	require.NoError(t, err)
	assert.Equal(t, "p/top", rootChild.Key())

	tests := []struct {
		name   string
		parent Path
		child  string
	}{
		{"file parent", file, "x"},
		{"empty name", folder, ""},
		{"nested name", folder, "a/b"},
		{"dot dot", folder, ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parent.Child(tt.child, false)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestPath_AsFolderAsFile(t *testing.T) {
	file, err := ParsePath("/a/b", "")
	require.NoError(t, err)

	folder := file.AsFolder()
	assert.Equal(t, "/a/b/", folder.String())
	assert.Equal(t, "a/b/", folder.Key())
	assert.Equal(t, "/a/b", file.String(), "the receiver is not modified")

	assert.True(t, folder.AsFile().Equal(file))
	assert.True(t, Root("").AsFile().IsRoot())
}

func TestPath_SegmentsIsolated(t *testing.T) {
	p, err := ParsePath("/a/b", "")
	require.NoError(t, err)

	segs := p.Segments()
	segs[0] = "mutated"
	assert.Equal(t, "/a/b", p.String())
}

func TestPath_Equal(t *testing.T) {
	a, _ := ParsePath("/a/b", "p/")
	b, _ := ParsePath("/a/b", "p/")
	dir, _ := ParsePath("/a/b/", "p/")
	other, _ := ParsePath("/a/b", "q/")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(dir))
	assert.False(t, a.Equal(other))
	assert.True(t, Root("").Equal(Root("")))
}

func TestPathFromKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		prefix  string
		want    string
		wantDir bool
		wantErr bool
	}{
		{name: "file", key: "a/b.txt", want: "/a/b.txt"},
		{name: "folder", key: "a/b/", want: "/a/b/", wantDir: true},
		{name: "prefixed", key: "tenant/a.txt", prefix: "tenant/", want: "/a.txt"},
		{name: "prefix itself", key: "tenant/", prefix: "tenant/", want: "/", wantDir: true},
		{name: "outside prefix", key: "other/a.txt", prefix: "tenant/", wantErr: true},
		{name: "prefix without delimiter", key: "tenant/a.txt", prefix: "tenant", want: "/a.txt"},
		{name: "sibling of bare prefix", key: "tenant2/secret.txt", prefix: "tenant", wantErr: true},
		{name: "empty segment", key: "a//b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PathFromKey(tt.key, tt.prefix)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.wantDir, p.IsDir())
			assert.Equal(t, tt.key, p.Key())
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "tenant", want: "tenant/"},
		{in: "tenant/", want: "tenant/"},
		{in: "/tenant", want: "tenant/"},
		{in: "a/b", want: "a/b/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrefix(tt.in))
		})
	}
}

func TestParsePath_PrefixWithoutDelimiter(t *testing.T) {
	p, err := ParsePath("/a.txt", "tenant")
	require.NoError(t, err)
	assert.Equal(t, "tenant/a.txt", p.Key())
	assert.Equal(t, "tenant/", p.Prefix())
	assert.Equal(t, "tenant/", Root("tenant").Key())
}

func TestIntent_String(t *testing.T) {
	assert.Equal(t, "any", IntentAny.String())
	assert.Equal(t, "file", IntentFile.String())
	assert.Equal(t, "folder", IntentFolder.String())
}
