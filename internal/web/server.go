package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/storage"
	"github.com/conorfennell/knolsched/internal/study"
)

// SessionFactory builds a fresh study session from the current database.
type SessionFactory func() (*study.Session, error)

// Server holds the dependencies for the HTTP server.
type Server struct {
	// mu serializes requests so at most one review mutates a card at a time.
	mu         sync.Mutex
	db         *storage.DB
	reposDir   string
	newSession SessionFactory
	session    *study.Session
	router     *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates and configures a new server with an open study session.
func NewServer(db *storage.DB, reposDir string, factory SessionFactory, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := factory()
	if err != nil {
		return nil, err
	}
	s := &Server{
		db:         db,
		reposDir:   reposDir,
		newSession: factory,
		session:    session,
		router:     http.NewServeMux(),
		logger:     logger,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.ServeHTTP(w, r)
}

// Close ends the current study session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Close()
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("/cards/next", s.handleGetNextCard())
	s.router.HandleFunc("/cards/", s.handleShowCard())
	s.router.HandleFunc("/review/", s.handlePostReview())
	s.router.HandleFunc("/due", s.handleGetDue())
	s.router.HandleFunc("/stats", s.handleGetStats())

	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
}

// cardView is the JSON shape of a card. Response is omitted until revealed.
type cardView struct {
	ID            string     `json:"id"`
	Prompt        string     `json:"prompt"`
	Response      string     `json:"response,omitempty"`
	ResponseHTML  string     `json:"response_html,omitempty"`
	Context       string     `json:"context,omitempty"`
	Group         string     `json:"group,omitempty"`
	Difficulty    string     `json:"difficulty"`
	Weight        float64    `json:"weight"`
	TimesCorrect  int        `json:"times_correct"`
	TimesWrong    int        `json:"times_wrong"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	EaseFactor    float64    `json:"ease_factor,omitempty"`
	ReviewCount   int        `json:"review_count,omitempty"`
	CorrectStreak int        `json:"correct_streak,omitempty"`
	NextReview    *time.Time `json:"next_review,omitempty"`
}

func newCardView(c domain.Card, reveal bool) cardView {
	v := cardView{
		ID:           c.ID,
		Prompt:       c.Prompt,
		Group:        c.Group,
		Difficulty:   c.Difficulty.String(),
		Weight:       c.Weight,
		TimesCorrect: c.TimesCorrect,
		TimesWrong:   c.TimesWrong,
		LastSeen:     c.LastSeen,
	}
	if reveal {
		v.Response = c.Response
		v.ResponseHTML = renderMarkdown(c.Response)
		v.Context = c.Context
	}
	if h := c.Horizon; h != nil {
		v.EaseFactor = h.EaseFactor
		v.ReviewCount = h.ReviewCount
		v.CorrectStreak = h.CorrectStreak
		v.NextReview = h.NextReview
	}
	return v
}

// renderMarkdown converts a card response to HTML, or "" if it cannot.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleGetNextCard returns the front of the next selected card.
func (s *Server) handleGetNextCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		card, err := s.session.Next()
		if errors.Is(err, domain.ErrEmptyStore) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			s.logger.Error("Error selecting next card", "error", err)
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		s.writeJSON(w, http.StatusOK, newCardView(card, false))
	}
}

// handleShowCard returns the full card including its response.
func (s *Server) handleShowCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/cards/")
		card, err := s.db.FindCard(id)
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "card not found")
			return
		}
		if err != nil {
			s.logger.Error("Error finding card", "id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		s.writeJSON(w, http.StatusOK, newCardView(card, true))
	}
}

// handlePostReview records an answer and returns the updated card.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/review/")
		correct, err := strconv.ParseBool(r.PostFormValue("correct"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid correct flag")
			return
		}
		quality := domain.DefaultQuality(correct)
		if q := r.PostFormValue("quality"); q != "" {
			if quality, err = strconv.Atoi(q); err != nil {
				s.writeError(w, http.StatusBadRequest, "Invalid quality")
				return
			}
		}

		res, err := s.session.Answer(id, correct, quality)
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "card not found")
			return
		}
		if err != nil {
			s.logger.Error("Error recording review", "id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"card":          newCardView(res.Card, true),
			"interval_days": res.IntervalDays,
		})
	}
}

// handleGetDue lists persisted cards that are due now.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			var err error
			if limit, err = strconv.Atoi(l); err != nil || limit < 0 {
				s.writeError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
		}
		cards, err := s.db.DueCards(time.Now(), r.URL.Query().Get("group"), limit)
		if err != nil {
			s.logger.Error("Error getting due cards", "error", err)
			s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		views := make([]cardView, 0, len(cards))
		for _, c := range cards {
			views = append(views, newCardView(c, false))
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "cards": views})
	}
}

// handleGetStats returns the current session statistics.
func (s *Server) handleGetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"session": s.session.ID(),
			"stats":   s.session.Stats(),
		})
	}
}
