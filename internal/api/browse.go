package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/events"
	"github.com/mediacellar/mediacellar/internal/library"
	"github.com/mediacellar/mediacellar/internal/logging"
	"github.com/mediacellar/mediacellar/internal/metrics"
)

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	listing, err := s.library.List(r.Context(), path)
	if err != nil {
		s.sendLibraryError(w, path, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}

type searchResponse struct {
	Results   []library.SearchResult `json:"results"`
	Count     int                    `json:"count"`
	Truncated bool                   `json:"truncated"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	path := r.URL.Query().Get("path")

	start := time.Now()
	results, truncated, err := s.library.Search(r.Context(), path, query)
	if errors.Is(err, library.ErrQueryTooShort) {
		// Too-short queries yield an empty result, not an error.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchResponse{Results: []library.SearchResult{}})
		return
	}
	if err != nil {
		s.sendLibraryError(w, path, err)
		return
	}
	metrics.RecordSearch(time.Since(start), len(results))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{
		Results:   results,
		Count:     len(results),
		Truncated: truncated,
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From == "" || req.To == "" {
		s.sendError(w, http.StatusBadRequest, "from and to required")
		return
	}

	if err := s.library.Rename(req.From, req.To); err != nil {
		s.sendLibraryError(w, req.From, err)
		return
	}

	from := library.CleanRelPath(req.From)
	to := library.CleanRelPath(req.To)

	// Keep album references pointing at the new path. The rename itself
	// already succeeded, so a store failure is logged rather than
	// surfaced as a request error.
	if err := s.albums.RenamePath(r.Context(), from, to); err != nil {
		logging.Error("album path rewrite failed",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
	}

	s.publishEvent(events.Event{Type: events.EventRename, From: from, To: to})

	logging.Info("renamed", zap.String("from", from), zap.String("to", to))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"from": from, "to": to})
}
