package library

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ByteRange is a validated inclusive byte span within a file:
// 0 <= Start <= End < size.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in the range.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value for a file of
// the given total size.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

var rangeSpecRe = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// ParseRange parses and validates a single-range Range header against
// a file of the given size.
//
//	""                  -> nil (whole file)
//	"bytes=a-b,c-d"     -> nil (multi-range unsupported; serve the whole file)
//	"bytes=100-199"     -> {100, 199}
//	"bytes=100-"        -> {100, size-1}
//	"bytes=-50"         -> last 50 bytes
//
// An End past EOF is clamped to size-1 per RFC 7233; a Start at or past
// EOF is ErrUnsatisfiableRange, and anything that fails to parse is
// ErrMalformedRange. Ranges are validated here, before any header is
// written, so an invalid request never reaches the file.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	if strings.Contains(header, ",") {
		return nil, nil
	}

	m := rangeSpecRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%q: %w", header, ErrMalformedRange)
	}
	startStr, endStr := m[1], m[2]
	if startStr == "" && endStr == "" {
		return nil, fmt.Errorf("%q: %w", header, ErrMalformedRange)
	}

	// Suffix form: bytes=-n, the last n bytes.
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", header, ErrMalformedRange)
		}
		if n == 0 || size == 0 {
			return nil, fmt.Errorf("%q: %w", header, ErrUnsatisfiableRange)
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return &ByteRange{Start: start, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", header, ErrMalformedRange)
	}
	if start >= size {
		return nil, fmt.Errorf("%q: start beyond EOF: %w", header, ErrUnsatisfiableRange)
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", header, ErrMalformedRange)
		}
		if end < start {
			return nil, fmt.Errorf("%q: %w", header, ErrMalformedRange)
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return &ByteRange{Start: start, End: end}, nil
}
