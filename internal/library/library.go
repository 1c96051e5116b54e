// Package library implements the media library core: confinement of
// client paths to the configured root, media classification, directory
// listing, bounded recursive search, and ranged file access.
//
// All filesystem access goes through an afero.Fs so the package can be
// exercised against an in-memory filesystem in tests.
package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ResolvedPath is an absolute filesystem path proven to live under the
// media root. It is only constructed by Resolve; every filesystem
// operation in this package takes a ResolvedPath, never a raw client
// string.
type ResolvedPath string

// Options configures a Library.
type Options struct {
	// Root is the base directory scoping all client-visible paths.
	// Must be absolute.
	Root string

	// Fs is the filesystem to operate on. Defaults to the OS filesystem.
	Fs afero.Fs

	// VideoExtensions and ImageExtensions are the classifier allow-lists
	// (without dots). Defaults are applied when empty.
	VideoExtensions []string
	ImageExtensions []string

	// SearchMaxDepth bounds recursive search; 0 searches only the start
	// directory itself.
	SearchMaxDepth int

	// SearchMaxResults is a hard cap on accumulated search results.
	SearchMaxResults int
}

// Library is the media library over a single root directory. It holds
// no mutable state; a single instance is shared by all requests.
type Library struct {
	root       string
	fs         afero.Fs
	classifier *Classifier
	maxDepth   int
	maxResults int
}

// New creates a Library for the given root.
func New(opts Options) (*Library, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("library: root is required")
	}
	if !filepath.IsAbs(opts.Root) {
		return nil, fmt.Errorf("library: root %q is not absolute", opts.Root)
	}
	vfs := opts.Fs
	if vfs == nil {
		vfs = afero.NewOsFs()
	}
	root := filepath.Clean(opts.Root)

	info, err := vfs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("library: stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library: root %s is not a directory", root)
	}

	// A zero SearchMaxDepth is honored (search only the start directory);
	// negative means "use the default".
	maxDepth := opts.SearchMaxDepth
	if maxDepth < 0 {
		maxDepth = DefaultSearchMaxDepth
	}
	maxResults := opts.SearchMaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchMaxResults
	}

	return &Library{
		root:       root,
		fs:         vfs,
		classifier: NewClassifier(opts.VideoExtensions, opts.ImageExtensions),
		maxDepth:   maxDepth,
		maxResults: maxResults,
	}, nil
}

// Search bounds applied when Options leaves them unset.
const (
	DefaultSearchMaxDepth   = 10
	DefaultSearchMaxResults = 100
)

// Root returns the configured root directory.
func (l *Library) Root() string { return l.root }

// Classify classifies a filename. See Classifier.Classify.
func (l *Library) Classify(name string) Classification {
	return l.classifier.Classify(name)
}

// StatFile resolves rel, requires it to be an existing regular file,
// and returns its location, file info and classification.
func (l *Library) StatFile(rel string) (ResolvedPath, os.FileInfo, Classification, error) {
	p, err := l.Resolve(rel)
	if err != nil {
		return "", nil, Classification{}, err
	}
	info, err := l.fs.Stat(string(p))
	if err != nil {
		return "", nil, Classification{}, fmt.Errorf("stat %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, Classification{}, fmt.Errorf("%s: %w", rel, ErrNotRegular)
	}
	return p, info, l.classifier.Classify(info.Name()), nil
}

// Open opens a resolved file for reading.
func (l *Library) Open(p ResolvedPath) (afero.File, error) {
	return l.fs.Open(string(p))
}

// OpenRange opens a resolved file positioned and limited to the given
// byte range. A nil range yields the whole file. The returned reader
// owns the file handle; closing it releases the handle.
func (l *Library) OpenRange(p ResolvedPath, rng *ByteRange) (io.ReadCloser, error) {
	f, err := l.fs.Open(string(p))
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return f, nil
	}
	if rng.Start > 0 {
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s: %w", p, err)
		}
	}
	return &sectionReadCloser{
		Reader: io.LimitReader(f, rng.Length()),
		Closer: f,
	}, nil
}

// Rename moves a file or directory within the root, overwriting any
// existing target (last writer wins).
func (l *Library) Rename(fromRel, toRel string) error {
	from, err := l.Resolve(fromRel)
	if err != nil {
		return err
	}
	to, err := l.Resolve(toRel)
	if err != nil {
		return err
	}
	if from == ResolvedPath(l.root) || to == ResolvedPath(l.root) {
		return fmt.Errorf("rename root: %w", ErrInvalidPath)
	}
	if _, err := l.fs.Stat(string(from)); err != nil {
		return fmt.Errorf("stat %s: %w", fromRel, err)
	}
	if err := l.fs.Rename(string(from), string(to)); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", fromRel, toRel, err)
	}
	return nil
}

// IsNotExist reports whether err stems from a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// sectionReadCloser couples a limited reader with the file it reads.
type sectionReadCloser struct {
	io.Reader
	io.Closer
}
