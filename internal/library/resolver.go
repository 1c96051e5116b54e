package library

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const separator = string(filepath.Separator)

// CleanRelPath normalizes a client-supplied path like "", ".", "/a/b",
// "a//b" or "a/./b" into a slash-separated relative path with no
// leading slash. "" means the root. Parent segments are collapsed
// lexically; a path that still begins with ".." after cleaning is an
// escape attempt and is left intact for Resolve to reject.
//
// Backslashes are always treated as separators so Windows-style client
// input (including "..\.." escape attempts) normalizes before the
// traversal check. The cost is that a file whose name contains a
// literal backslash cannot be addressed through the API.
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	// Absolute-looking input is interpreted relative to the root.
	p = strings.TrimLeft(p, "/")
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// Resolve turns a client-supplied relative path into an absolute
// location confined to the media root, or fails with ErrTraversal. It
// performs no filesystem access. The lexical ".." check catches escape
// attempts early; the containment check on the joined result is
// authoritative and compares on the separator boundary, so a sibling
// directory sharing a string prefix with the root never passes.
func (l *Library) Resolve(rel string) (ResolvedPath, error) {
	if strings.ContainsRune(rel, '\x00') {
		return "", fmt.Errorf("%q: %w", rel, ErrInvalidPath)
	}
	clean := CleanRelPath(rel)
	if clean == "" {
		return ResolvedPath(l.root), nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", rel, ErrTraversal)
	}
	abs := filepath.Clean(filepath.Join(l.root, filepath.FromSlash(clean)))
	if abs != l.root && !strings.HasPrefix(abs, l.root+separator) {
		return "", fmt.Errorf("%q: %w", rel, ErrTraversal)
	}
	return ResolvedPath(abs), nil
}

// Rel returns the root-relative slash path for a resolved location,
// "" for the root itself.
func (l *Library) Rel(p ResolvedPath) string {
	if string(p) == l.root {
		return ""
	}
	rel := strings.TrimPrefix(string(p), l.root+separator)
	return filepath.ToSlash(rel)
}

// joinRel joins a relative directory and an entry name into a
// slash-separated relative path.
func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
