// Package server renders the dashboard over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ai-newsletter/internal/feed"
	"ai-newsletter/internal/model"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Feed is the controller surface the server drives.
type Feed interface {
	Snapshot() feed.Snapshot
	SetSourceFilter(value string)
	SetSavedOnly(enabled bool)
	ToggleSave(ctx context.Context, id string) bool
	Subscribe(r feed.Renderer)
}

// Reloader queues a background reload.
type Reloader interface {
	Trigger() bool
}

type Server struct {
	feed     Feed
	reloader Reloader
	logger   *zap.Logger
	router   *mux.Router
	tmpl     *template.Template
	flashes  *flashes
	server   *http.Server
}

// NewServer builds the router and subscribes to f. reloader may be nil, in
// which case POST /api/reload answers 503.
func NewServer(f Feed, reloader Reloader, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"label": model.SourceLabel,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		feed:     f,
		reloader: reloader,
		logger:   logger.With(zap.String("component", "server")),
		router:   mux.NewRouter(),
		tmpl:     tmpl,
		flashes:  newFlashes(),
	}
	s.routes()
	f.Subscribe(s)
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/articles", s.handleArticles).Methods("GET")
	api.HandleFunc("/filter", s.handleFilter).Methods("POST")
	api.HandleFunc("/saved-only", s.handleSavedOnly).Methods("POST")
	api.HandleFunc("/articles/{id}/toggle", s.handleToggle).Methods("POST")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the dashboard on port until Stop is called.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	s.logger.Info("Dashboard listening", zap.String("port", port))
	return s.server.ListenAndServe()
}

// Stop drains in-flight requests. It is a no-op if Start never ran.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Render and LoadFailed only log. Every request reads a fresh snapshot so
// relative times keep moving between controller updates.
func (s *Server) Render(snap feed.Snapshot) {
	s.logger.Debug("View updated", zap.String("state", string(snap.State)), zap.Int("articles", len(snap.Articles)))
}

func (s *Server) LoadFailed(message string) {
	s.logger.Warn("Serving load failure", zap.String("message", message))
}

func (s *Server) current() feed.Snapshot {
	return s.feed.Snapshot()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Title    string
		Snapshot feed.Snapshot
		Flash    string
	}{
		Title:    "AI Newsletter",
		Snapshot: s.current(),
		Flash:    s.flashes.pop(r),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index", data); err != nil {
		s.logger.Error("Template error", zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"state":    snap.State,
		"articles": snap.Total,
	})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.current())
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	s.feed.SetSourceFilter(strings.TrimSpace(r.FormValue("source")))
	s.respond(w, r)
}

func (s *Server) handleSavedOnly(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.FormValue("enabled"))
	if err != nil {
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
		return
	}
	s.feed.SetSavedOnly(enabled)
	s.respond(w, r)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.feed.ToggleSave(r.Context(), id) {
		http.NotFound(w, r)
		return
	}
	s.respond(w, r)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		http.Error(w, "Reload unavailable", http.StatusServiceUnavailable)
		return
	}

	msg := "Reloading articles..."
	if !s.reloader.Trigger() {
		msg = "A reload is already pending"
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": msg})
		return
	}
	s.flashes.set(r, msg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// respond sends the new snapshot to API clients and redirects browsers home.
func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, s.current())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
