package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/albums"
	"github.com/mediacellar/mediacellar/internal/events"
	"github.com/mediacellar/mediacellar/internal/library"
	"github.com/mediacellar/mediacellar/internal/logging"
)

func (s *Server) handleListAlbums(w http.ResponseWriter, r *http.Request) {
	list, err := s.albums.List(r.Context())
	if err != nil {
		logging.Error("list albums failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"albums": list})
}

func (s *Server) handleCreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "album name required")
		return
	}

	album, err := s.albums.Create(r.Context(), req.Name)
	if errors.Is(err, albums.ErrDuplicateName) {
		s.sendError(w, http.StatusConflict, "album name already exists")
		return
	}
	if err != nil {
		logging.Error("create album failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(events.Event{Type: events.EventAlbumCreated, AlbumID: album.ID})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(album)
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	id, ok := s.albumID(w, r)
	if !ok {
		return
	}

	album, videos, err := s.albums.Get(r.Context(), id)
	if errors.Is(err, albums.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "album not found")
		return
	}
	if err != nil {
		logging.Error("get album failed", zap.Int("id", id), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"album":  album,
		"videos": videos,
	})
}

func (s *Server) handleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	id, ok := s.albumID(w, r)
	if !ok {
		return
	}

	err := s.albums.Delete(r.Context(), id)
	if errors.Is(err, albums.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "album not found")
		return
	}
	if err != nil {
		logging.Error("delete album failed", zap.Int("id", id), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(events.Event{Type: events.EventAlbumDeleted, AlbumID: id})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddAlbumVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.albumID(w, r)
	if !ok {
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Only existing videos inside the root can be referenced.
	_, _, class, err := s.library.StatFile(req.Path)
	if err != nil {
		s.sendLibraryError(w, req.Path, err)
		return
	}
	if class.Kind != library.KindVideo {
		s.sendError(w, http.StatusBadRequest, "not a video file")
		return
	}

	path := library.CleanRelPath(req.Path)
	err = s.albums.AddVideo(r.Context(), id, path)
	if errors.Is(err, albums.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "album not found")
		return
	}
	if err != nil {
		logging.Error("add album video failed", zap.Int("id", id), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(events.Event{Type: events.EventAlbumUpdated, AlbumID: id, Path: path})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"album_id": id, "path": path})
}

func (s *Server) handleRemoveAlbumVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.albumID(w, r)
	if !ok {
		return
	}

	path := library.CleanRelPath(r.URL.Query().Get("path"))
	if path == "" {
		s.sendError(w, http.StatusBadRequest, "path required")
		return
	}

	err := s.albums.RemoveVideo(r.Context(), id, path)
	if errors.Is(err, albums.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "album video not found")
		return
	}
	if err != nil {
		logging.Error("remove album video failed", zap.Int("id", id), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(events.Event{Type: events.EventAlbumUpdated, AlbumID: id, Path: path})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) albumID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		s.sendError(w, http.StatusBadRequest, "invalid album id")
		return 0, false
	}
	return id, true
}
