package library

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func newTestLibrary(t *testing.T, opts Options) (*Library, afero.Fs) {
	t.Helper()
	vfs := afero.NewMemMapFs()
	if err := vfs.MkdirAll("/lib", 0755); err != nil {
		t.Fatal(err)
	}
	if opts.Root == "" {
		opts.Root = "/lib"
	}
	opts.Fs = vfs
	lib, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return lib, vfs
}

func TestResolveRoot(t *testing.T) {
	lib, _ := newTestLibrary(t, Options{})

	for _, rel := range []string{"", ".", "/", "//", "./."} {
		p, err := lib.Resolve(rel)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error %v", rel, err)
			continue
		}
		if string(p) != "/lib" {
			t.Errorf("Resolve(%q) = %q, want /lib", rel, p)
		}
	}
}

func TestResolveWithinRoot(t *testing.T) {
	lib, _ := newTestLibrary(t, Options{})

	cases := []struct {
		rel  string
		want string
	}{
		{"movies", "/lib/movies"},
		{"movies/a.mp4", "/lib/movies/a.mp4"},
		{"/movies/a.mp4", "/lib/movies/a.mp4"},
		{"movies//a.mp4", "/lib/movies/a.mp4"},
		{"movies/./a.mp4", "/lib/movies/a.mp4"},
		{"movies/sub/../a.mp4", "/lib/movies/a.mp4"},
		{"a/../b", "/lib/b"},
	}
	for _, tc := range cases {
		p, err := lib.Resolve(tc.rel)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error %v", tc.rel, err)
			continue
		}
		if string(p) != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.rel, p, tc.want)
		}
	}
}

func TestResolveTraversalRejected(t *testing.T) {
	lib, _ := newTestLibrary(t, Options{})

	for _, rel := range []string{
		"..",
		"../..",
		"../../etc/passwd",
		"a/../../etc",
		"movies/../../../root",
		"./../x",
		"..\\..\\etc\\passwd", // Windows-style separators normalize first
	} {
		_, err := lib.Resolve(rel)
		if !errors.Is(err, ErrTraversal) {
			t.Errorf("Resolve(%q): expected ErrTraversal, got %v", rel, err)
		}
	}
}

func TestResolveLiteralDotSegmentsInNames(t *testing.T) {
	lib, _ := newTestLibrary(t, Options{})

	// Percent sequences are literal bytes by the time they reach the
	// resolver; they name odd files, they do not traverse.
	p, err := lib.Resolve("..%2F..")
	if err != nil {
		t.Fatalf("Resolve(..%%2F..): %v", err)
	}
	if string(p) != "/lib/..%2F.." {
		t.Fatalf("Resolve(..%%2F..) = %q", p)
	}
}

func TestResolveRejectsNUL(t *testing.T) {
	lib, _ := newTestLibrary(t, Options{})

	_, err := lib.Resolve("movies/\x00evil")
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestResolveSiblingPrefixNotContained(t *testing.T) {
	// A sibling directory sharing a string prefix with the root must not
	// pass the containment check. CleanRelPath strips the escape first,
	// so exercise the check directly with a crafted root.
	vfs := afero.NewMemMapFs()
	for _, dir := range []string{"/srv/media", "/srv/mediaEvil"} {
		if err := vfs.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	lib, err := New(Options{Root: "/srv/media", Fs: vfs})
	if err != nil {
		t.Fatal(err)
	}
	p, err := lib.Resolve("x")
	if err != nil {
		t.Fatal(err)
	}
	if string(p) != "/srv/media/x" {
		t.Fatalf("Resolve(x) = %q", p)
	}
	// The sibling shares a string prefix with the root; reaching it must
	// fail, and confinement must compare on the separator boundary.
	if _, err := lib.Resolve("../mediaEvil/secret"); !errors.Is(err, ErrTraversal) {
		t.Fatalf("expected ErrTraversal for sibling escape, got %v", err)
	}
}

func TestRelRoundTrip(t *testing.T) {
	lib, _ := newTestLibrary(t, Options{})

	for _, rel := range []string{"", "movies", "movies/a.mp4"} {
		p, err := lib.Resolve(rel)
		if err != nil {
			t.Fatal(err)
		}
		if got := lib.Rel(p); got != rel {
			t.Errorf("Rel(Resolve(%q)) = %q", rel, got)
		}
	}
}

func TestCleanRelPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{".", ""},
		{"/", ""},
		{"a/b", "a/b"},
		{"/a/b", "a/b"},
		{"a//b", "a/b"},
		{"a\\b", "a/b"},
		{"../a", "../a"}, // escapes survive cleaning; Resolve rejects them
		{"a/../b", "b"},
		{" a/b ", "a/b"},
	}
	for _, tc := range cases {
		if got := CleanRelPath(tc.in); got != tc.want {
			t.Errorf("CleanRelPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
