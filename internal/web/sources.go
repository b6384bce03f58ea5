package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/knolsched/internal/ingest"
)

type sourceView struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Group       string `json:"group,omitempty"`
	LastScanned string `json:"last_scanned,omitempty"`
}

func (s *Server) writeSources(w http.ResponseWriter, status int) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.logger.Error("Error getting sources", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	views := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		v := sourceView{ID: src.ID, Path: src.Path, Type: src.Type, Group: src.Group}
		if src.LastScanned.Valid {
			v.LastScanned = src.LastScanned.Time.Format(time.RFC3339)
		}
		views = append(views, v)
	}
	s.writeJSON(w, status, map[string]any{"sources": views})
}

// handleSources handles both GET and POST for the source list.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.writeSources(w, http.StatusOK)
		case http.MethodPost:
			s.handlePostSource(w, r)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePostSource adds a new source and returns the updated list.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := r.PostFormValue("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "Path cannot be empty")
		return
	}
	if _, err := s.db.InsertSource(path, ingest.SourceType(path), r.PostFormValue("group")); err != nil {
		s.logger.Error("Error inserting new source", "path", path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to add source")
		return
	}
	s.writeSources(w, http.StatusCreated)
}

// handleDeleteSource deletes a source and the cards only it held.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/sources/"), 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid source ID")
			return
		}
		if err := s.db.DeleteSource(id); err != nil {
			s.logger.Error("Error deleting source", "id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "Failed to delete source")
			return
		}
		if err := s.restartSession(); err != nil {
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		s.writeSources(w, http.StatusOK)
	}
}

// handlePostSync reconciles all sources and starts a session over the result.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		reports, err := ingest.Run(s.db, s.reposDir)
		if err != nil {
			s.logger.Error("Error running sync", "error", err)
			s.writeError(w, http.StatusInternalServerError, "Sync failed")
			return
		}
		if err := s.restartSession(); err != nil {
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		inserted, orphaned, deleted := 0, 0, 0
		for _, rep := range reports {
			inserted += rep.Inserted
			orphaned += rep.Orphaned
			deleted += rep.Deleted
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"sources":  len(reports),
			"inserted": inserted,
			"orphaned": orphaned,
			"deleted":  deleted,
			"session":  s.session.ID(),
		})
	}
}

// restartSession closes the current session and opens one over fresh data.
func (s *Server) restartSession() error {
	if err := s.session.Close(); err != nil {
		s.logger.Warn("Failed to close study session", "error", err)
	}
	session, err := s.newSession()
	if err != nil {
		s.logger.Error("Error starting study session", "error", err)
		return err
	}
	s.session = session
	return nil
}
