// Package web serves the prebuilt client bundle and mounts the
// WebSocket endpoint. Any path that does not resolve to a bundle file
// falls back to the entry document so client-side routing works.
package web

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minyu3108/scheduling/logging"
)

const indexDocument = "index.html"

// Server provides the HTTP surface: /ws, /health and the static bundle.
type Server struct {
	static fs.FS
	logger *logging.Logger
	mux    *http.ServeMux
}

// NewServer constructs the HTTP server around a static bundle and the
// WebSocket upgrade handler.
func NewServer(static fs.FS, wsHandler http.Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		static: static,
		logger: logger.WithComponent(logging.Component("web")),
		mux:    http.NewServeMux(),
	}
	s.registerRoutes(wsHandler)
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes(wsHandler http.Handler) {
	s.mux.Handle("/ws", wsHandler)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatic serves bundle files by path and falls back to the
// entry document for anything unresolved (client-side routes).
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" || name == "." {
		name = indexDocument
	}

	data, err := fs.ReadFile(s.static, name)
	if err != nil {
		data, err = fs.ReadFile(s.static, indexDocument)
		if err != nil {
			s.logger.Warn("bundle entry document missing", slog.String("error", err.Error()))
			http.NotFound(w, r)
			return
		}
		name = indexDocument
	}

	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}
