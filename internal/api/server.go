// Package api provides the HTTP server and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/albums"
	"github.com/mediacellar/mediacellar/internal/events"
	"github.com/mediacellar/mediacellar/internal/library"
	"github.com/mediacellar/mediacellar/internal/logging"
	"github.com/mediacellar/mediacellar/internal/metrics"
)

// AuthGate guards protected routes and issues tokens. Satisfied by
// *auth.Auth; tests substitute a permissive stub.
type AuthGate interface {
	Middleware(next http.Handler) http.Handler
	HandleLogin(w http.ResponseWriter, r *http.Request)
}

// AlbumStore is the persistence surface the server needs for albums.
// Satisfied by *albums.Store.
type AlbumStore interface {
	Create(ctx context.Context, name string) (*albums.Album, error)
	List(ctx context.Context) ([]albums.Album, error)
	Get(ctx context.Context, id int) (*albums.Album, []albums.Video, error)
	Delete(ctx context.Context, id int) error
	AddVideo(ctx context.Context, albumID int, path string) error
	RemoveVideo(ctx context.Context, albumID int, path string) error
	RenamePath(ctx context.Context, oldPath, newPath string) error
}

// Server is the HTTP server.
type Server struct {
	library     *library.Library
	albums      AlbumStore
	gate        AuthGate
	broadcaster *events.Broadcaster
	dav         http.Handler
}

// NewServer creates a new server. dav is an optional WebDAV handler
// mounted at /webdav.
func NewServer(lib *library.Library, albumStore AlbumStore, gate AuthGate, broadcaster *events.Broadcaster, dav http.Handler) *Server {
	return &Server{
		library:     lib,
		albums:      albumStore,
		gate:        gate,
		broadcaster: broadcaster,
		dav:         dav,
	}
}

// Handler builds the full HTTP handler with routing and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.gate.HandleLogin)

	// WebDAV endpoint (has its own auth middleware)
	if s.dav != nil {
		mux.Handle("/webdav/", s.dav)
		mux.Handle("/webdav", s.dav)
	}

	// Protected endpoints
	protected := http.NewServeMux()

	protected.HandleFunc("GET /api/v1/browse", s.handleBrowse)
	protected.HandleFunc("GET /api/v1/search", s.handleSearch)

	protected.HandleFunc("GET /api/v1/video", s.handleVideo)
	protected.HandleFunc("GET /api/v1/image", s.handleImage)
	protected.HandleFunc("GET /api/v1/download", s.handleDownload)

	protected.HandleFunc("POST /api/v1/rename", s.handleRename)

	protected.HandleFunc("GET /api/v1/albums", s.handleListAlbums)
	protected.HandleFunc("POST /api/v1/albums", s.handleCreateAlbum)
	protected.HandleFunc("GET /api/v1/albums/{id}", s.handleGetAlbum)
	protected.HandleFunc("DELETE /api/v1/albums/{id}", s.handleDeleteAlbum)
	protected.HandleFunc("POST /api/v1/albums/{id}/videos", s.handleAddAlbumVideo)
	protected.HandleFunc("DELETE /api/v1/albums/{id}/videos", s.handleRemoveAlbumVideo)

	// SSE endpoint
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	mux.Handle("/api/v1/", s.gate.Middleware(protected))

	// Apply logging and metrics middleware
	return metrics.Middleware(logging.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// publishEvent publishes an event to the broadcaster if available.
func (s *Server) publishEvent(event events.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(event)
}

// ─── Errors ─────────────────────────────────────────────────────────────────

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  code,
	})
}

// sendLibraryError maps library errors to HTTP status codes in one place.
func (s *Server) sendLibraryError(w http.ResponseWriter, path string, err error) {
	switch {
	case errors.Is(err, library.ErrTraversal):
		metrics.RecordTraversalRejection()
		logging.Warn("rejected path traversal attempt",
			zap.String("path", path),
			zap.Error(err))
		s.sendError(w, http.StatusBadRequest, "invalid path")
	case errors.Is(err, library.ErrInvalidPath):
		s.sendError(w, http.StatusBadRequest, "invalid path")
	case library.IsNotExist(err):
		s.sendError(w, http.StatusNotFound, "not found")
	case errors.Is(err, library.ErrNotDirectory):
		s.sendError(w, http.StatusBadRequest, "not a directory")
	case errors.Is(err, library.ErrNotRegular):
		s.sendError(w, http.StatusBadRequest, "not a regular file")
	case errors.Is(err, library.ErrInvalidMedia):
		s.sendError(w, http.StatusBadRequest, "unsupported media type")
	default:
		logging.Error("library operation failed",
			zap.String("path", path),
			zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
	}
}
