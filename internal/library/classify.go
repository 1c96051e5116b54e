package library

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the coarse media type of a file.
type Kind string

const (
	KindVideo    Kind = "video"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindArchive  Kind = "archive"
	KindCode     Kind = "code"
	KindFile     Kind = "file" // generic fallback; classification never fails
)

// Classification is the result of classifying a filename.
type Classification struct {
	Kind Kind
	MIME string
}

// Classifier maps filename extensions to a Kind and a MIME type. Video
// and image extensions are configurable allow-lists; the remaining
// buckets are fixed.
type Classifier struct {
	video map[string]bool
	image map[string]bool
}

var defaultVideoExts = []string{
	"mp4", "mkv", "webm", "avi", "mov", "m4v", "mpg", "mpeg", "ts", "flv", "wmv",
}

var defaultImageExts = []string{
	"jpg", "jpeg", "png", "gif", "webp", "bmp", "svg", "avif", "heic", "tiff",
}

var audioExts = map[string]bool{
	"mp3": true, "flac": true, "ogg": true, "wav": true, "m4a": true,
	"aac": true, "opus": true, "wma": true,
}

var documentExts = map[string]bool{
	"pdf": true, "txt": true, "md": true, "doc": true, "docx": true,
	"odt": true, "rtf": true, "epub": true, "srt": true, "sub": true,
}

var archiveExts = map[string]bool{
	"zip": true, "tar": true, "gz": true, "bz2": true, "xz": true,
	"rar": true, "7z": true, "iso": true,
}

var codeExts = map[string]bool{
	"go": true, "py": true, "js": true, "ts": true, "c": true, "h": true,
	"cpp": true, "rs": true, "sh": true, "json": true, "yaml": true,
	"yml": true, "toml": true, "xml": true, "html": true, "css": true,
	"sql": true,
}

// videoMIMEs covers containers the stdlib mime table misses on some
// platforms. Allow-listed video extensions without an entry fall back
// to video/mp4 so playback headers are always usable.
var videoMIMEs = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"ts":   "video/mp2t",
	"flv":  "video/x-flv",
	"wmv":  "video/x-ms-wmv",
}

// NewClassifier builds a classifier from the given allow-lists;
// defaults apply when a list is empty. Extensions are matched without
// dots, case-insensitively.
func NewClassifier(videoExts, imageExts []string) *Classifier {
	if len(videoExts) == 0 {
		videoExts = defaultVideoExts
	}
	if len(imageExts) == 0 {
		imageExts = defaultImageExts
	}
	c := &Classifier{
		video: make(map[string]bool, len(videoExts)),
		image: make(map[string]bool, len(imageExts)),
	}
	for _, e := range videoExts {
		c.video[normalizeExt(e)] = true
	}
	for _, e := range imageExts {
		c.image[normalizeExt(e)] = true
	}
	return c
}

// Classify maps a filename to its kind and MIME type. It is a pure
// function of the extension and never fails; unknown extensions
// degrade to the generic file bucket.
func (c *Classifier) Classify(name string) Classification {
	ext := normalizeExt(filepath.Ext(name))

	switch {
	case c.video[ext]:
		if m, ok := videoMIMEs[ext]; ok {
			return Classification{Kind: KindVideo, MIME: m}
		}
		if m := mime.TypeByExtension("." + ext); m != "" {
			return Classification{Kind: KindVideo, MIME: m}
		}
		return Classification{Kind: KindVideo, MIME: "video/mp4"}
	case c.image[ext]:
		return Classification{Kind: KindImage, MIME: mimeOr(ext, "image/"+ext)}
	case audioExts[ext]:
		return Classification{Kind: KindAudio, MIME: mimeOr(ext, "application/octet-stream")}
	case documentExts[ext]:
		return Classification{Kind: KindDocument, MIME: mimeOr(ext, "application/octet-stream")}
	case archiveExts[ext]:
		return Classification{Kind: KindArchive, MIME: mimeOr(ext, "application/octet-stream")}
	case codeExts[ext]:
		return Classification{Kind: KindCode, MIME: mimeOr(ext, "text/plain; charset=utf-8")}
	default:
		return Classification{Kind: KindFile, MIME: mimeOr(ext, "application/octet-stream")}
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func mimeOr(ext, fallback string) string {
	if ext == "" {
		return fallback
	}
	if m := mime.TypeByExtension("." + ext); m != "" {
		return m
	}
	return fallback
}
