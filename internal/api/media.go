package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/library"
	"github.com/mediacellar/mediacellar/internal/logging"
	"github.com/mediacellar/mediacellar/internal/metrics"
)

// handleVideo streams a video file with byte-range support.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		s.sendError(w, http.StatusBadRequest, "path required")
		return
	}

	p, info, class, err := s.library.StatFile(relPath)
	if err != nil {
		s.sendLibraryError(w, relPath, err)
		return
	}
	if class.Kind != library.KindVideo {
		s.sendError(w, http.StatusBadRequest, "not a video file")
		return
	}

	rng, err := library.ParseRange(r.Header.Get("Range"), info.Size())
	if err != nil {
		// Bounds are validated before any header is written; a bad
		// range never turns into a truncated 206.
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size()))
		if errors.Is(err, library.ErrUnsatisfiableRange) {
			s.sendError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		} else {
			s.sendError(w, http.StatusRequestedRangeNotSatisfiable, "malformed range")
		}
		return
	}

	reader, err := s.library.OpenRange(p, rng)
	if err != nil {
		s.sendLibraryError(w, relPath, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", class.MIME)
	w.Header().Set("Accept-Ranges", "bytes")
	if rng != nil {
		w.Header().Set("Content-Range", rng.ContentRange(info.Size()))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		w.WriteHeader(http.StatusOK)
	}

	n, err := io.Copy(w, reader)
	if err != nil {
		// Client aborts land here; the deferred close releases the handle.
		logging.Warn("video stream interrupted",
			zap.String("path", relPath),
			zap.Int64("bytes", n),
			zap.Error(err))
	}
	metrics.RecordStream("video", n, err == nil)
}

// handleImage serves an image file. Ranges work the same way as for
// video since the machinery is shared.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		s.sendError(w, http.StatusBadRequest, "path required")
		return
	}

	p, info, class, err := s.library.StatFile(relPath)
	if err != nil {
		s.sendLibraryError(w, relPath, err)
		return
	}
	if class.Kind != library.KindImage {
		s.sendError(w, http.StatusBadRequest, "not an image file")
		return
	}

	rng, err := library.ParseRange(r.Header.Get("Range"), info.Size())
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size()))
		s.sendError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		return
	}

	reader, err := s.library.OpenRange(p, rng)
	if err != nil {
		s.sendLibraryError(w, relPath, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", class.MIME)
	w.Header().Set("Accept-Ranges", "bytes")
	if rng != nil {
		w.Header().Set("Content-Range", rng.ContentRange(info.Size()))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		w.WriteHeader(http.StatusOK)
	}

	n, err := io.Copy(w, reader)
	if err != nil {
		logging.Warn("image transfer interrupted",
			zap.String("path", relPath),
			zap.Error(err))
	}
	metrics.RecordStream("image", n, err == nil)
}

// handleDownload serves any regular file as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		s.sendError(w, http.StatusBadRequest, "path required")
		return
	}

	p, info, class, err := s.library.StatFile(relPath)
	if err != nil {
		s.sendLibraryError(w, relPath, err)
		return
	}

	reader, err := s.library.Open(p)
	if err != nil {
		s.sendLibraryError(w, relPath, err)
		return
	}
	defer reader.Close()

	filename := path.Base(library.CleanRelPath(relPath))
	w.Header().Set("Content-Type", class.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, reader)
	if err != nil {
		logging.Warn("download interrupted",
			zap.String("path", relPath),
			zap.Error(err))
	}
	metrics.RecordStream("download", n, err == nil)
}
