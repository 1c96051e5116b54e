package library

import "errors"

// Typed errors returned by the library core. Where possible the API
// layer maps these to status codes in a single place.
var (
	// ErrTraversal means a client path resolved outside the media root.
	ErrTraversal = errors.New("library: path escapes media root")

	// ErrInvalidPath means the client path could not be interpreted at all
	// (NUL bytes and similar garbage).
	ErrInvalidPath = errors.New("library: invalid path")

	// ErrNotDirectory means a listing was requested on a non-directory.
	ErrNotDirectory = errors.New("library: not a directory")

	// ErrNotRegular means a stream was requested on a non-regular file.
	ErrNotRegular = errors.New("library: not a regular file")

	// ErrInvalidMedia means the file's classification does not match the
	// endpoint's expectation (e.g. streaming a text file as video).
	ErrInvalidMedia = errors.New("library: media kind not allowed")

	// ErrQueryTooShort means the search query was rejected before any
	// directory access.
	ErrQueryTooShort = errors.New("library: search query too short")

	// ErrMalformedRange means the Range header failed to parse.
	ErrMalformedRange = errors.New("library: malformed range header")

	// ErrUnsatisfiableRange means the Range header parsed but lies outside
	// the file's bounds.
	ErrUnsatisfiableRange = errors.New("library: unsatisfiable byte range")
)
