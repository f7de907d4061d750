// Package web provides the HTTP server of the sandglass daemon: the display
// UI, the websocket endpoint for display boards and the status pages.
package web

import (
	"context"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/sweeney/sandglass/internal/status"
)

// Options configures optional routes.
type Options struct {
	// StaticDir serves a display UI from disk instead of the built-in page.
	StaticDir string
	// Display handles /ws. Nil disables the endpoint.
	Display http.Handler
}

// Server serves the display UI and the status pages over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	staticDir  string
	files      http.Handler
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{tracker: tracker, staticDir: opts.StaticDir}

	mux := http.NewServeMux()
	if s.staticDir != "" {
		s.files = http.FileServer(http.Dir(s.staticDir))
		mux.HandleFunc("/", s.handleStatic)
	} else {
		mux.HandleFunc("/", s.handleDisplay)
	}
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/status.json", s.handleJSON)
	if opts.Display != nil {
		mux.Handle("/ws", opts.Display)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: withCORS(mux),
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, routes and CORS included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(displayHTML))
}

// handleStatic serves files from the static directory. Paths that do not
// name a file get index.html so client-side routes resolve.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(s.staticDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		s.files.ServeHTTP(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
