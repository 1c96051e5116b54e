package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/logging"
)

// Entry is one file or folder record returned by a listing or search.
type Entry struct {
	Name     string `json:"name"`
	Path     string `json:"path"` // root-relative, slash-separated
	IsDir    bool   `json:"isDir"`
	Kind     Kind   `json:"kind,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"` // unix seconds
}

// Listing is a single-level directory listing.
type Listing struct {
	Path    string  `json:"path"`
	Folders []Entry `json:"folders"`
	Files   []Entry `json:"files"`
}

// SearchResult is an Entry plus the relative directory that contains
// it ("" for the root).
type SearchResult struct {
	Entry
	Folder string `json:"folder"`
}

// MinQueryLength is the shortest search query accepted; anything
// shorter short-circuits to an empty result before any directory
// access.
const MinQueryLength = 2

// List returns the folders and files directly inside rel. Hidden
// entries (dot-prefixed names) are skipped; files are classified and
// stat-backed.
func (l *Library) List(ctx context.Context, rel string) (*Listing, error) {
	p, err := l.Resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := l.fs.Stat(string(p))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", rel, ErrNotDirectory)
	}

	infos, err := afero.ReadDir(l.fs, string(p))
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", rel, err)
	}

	relDir := l.Rel(p)
	listing := &Listing{
		Path:    relDir,
		Folders: []Entry{},
		Files:   []Entry{},
	}
	for _, fi := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fi.Name()
		if isHidden(name) {
			continue
		}
		e := Entry{
			Name:     name,
			Path:     joinRel(relDir, name),
			IsDir:    fi.IsDir(),
			Size:     fi.Size(),
			Modified: fi.ModTime().Unix(),
		}
		if fi.IsDir() {
			e.Size = 0
			listing.Folders = append(listing.Folders, e)
			continue
		}
		c := l.classifier.Classify(name)
		e.Kind = c.Kind
		e.MIME = c.MIME
		listing.Files = append(listing.Files, e)
	}

	sortEntries(listing.Folders)
	sortEntries(listing.Files)
	return listing, nil
}

// Search walks the tree under rel depth-first, collecting entries whose
// name contains query (case-insensitive). Recursion stops at the
// configured depth bound and accumulation stops at the result cap;
// both yield partial results, reported via truncated, never an error.
// Unreadable subdirectories are skipped with a warning.
func (l *Library) Search(ctx context.Context, rel, query string) (results []SearchResult, truncated bool, err error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return nil, false, ErrQueryTooShort
	}

	p, err := l.Resolve(rel)
	if err != nil {
		return nil, false, err
	}
	info, err := l.fs.Stat(string(p))
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", rel, err)
	}
	if !info.IsDir() {
		return nil, false, fmt.Errorf("%s: %w", rel, ErrNotDirectory)
	}

	w := &searchWalk{
		lib:     l,
		ctx:     ctx,
		query:   strings.ToLower(query),
		results: make([]SearchResult, 0, 16),
	}
	if err := w.walk(p, l.Rel(p), 0); err != nil {
		return nil, false, err
	}
	return w.results, w.truncated, nil
}

// searchWalk carries the state of one search; it lives for a single
// request and is never shared.
type searchWalk struct {
	lib       *Library
	ctx       context.Context
	query     string
	results   []SearchResult
	truncated bool
}

func (w *searchWalk) full() bool {
	return len(w.results) >= w.lib.maxResults
}

func (w *searchWalk) walk(dir ResolvedPath, relDir string, depth int) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	infos, err := afero.ReadDir(w.lib.fs, string(dir))
	if err != nil {
		// One unreadable subtree must not abort the whole search.
		logging.Warn("search: skipping unreadable directory",
			zap.String("dir", relDir), zap.Error(err))
		return nil
	}

	for _, fi := range infos {
		if w.full() {
			w.truncated = true
			return nil
		}
		name := fi.Name()
		if isHidden(name) {
			continue
		}

		if strings.Contains(strings.ToLower(name), w.query) {
			e := Entry{
				Name:     name,
				Path:     joinRel(relDir, name),
				IsDir:    fi.IsDir(),
				Size:     fi.Size(),
				Modified: fi.ModTime().Unix(),
			}
			if fi.IsDir() {
				e.Size = 0
			} else {
				c := w.lib.classifier.Classify(name)
				e.Kind = c.Kind
				e.MIME = c.MIME
			}
			w.results = append(w.results, SearchResult{Entry: e, Folder: relDir})
		}

		if fi.IsDir() {
			if depth >= w.lib.maxDepth {
				// Depth cap hit: partial results, not an error.
				w.truncated = true
				continue
			}
			sub := ResolvedPath(string(dir) + separator + name)
			if err := w.walk(sub, joinRel(relDir, name), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}
