package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleStatic serves files from the public directory and falls back to
// index.html so client-side routes resolve. Unknown /api paths get a JSON
// 404 instead.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dir := s.cfg.PublicDir
	if dir == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	clean := path.Clean("/" + r.URL.Path)
	if clean != "/" {
		if fi, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !fi.IsDir() {
			http.FileServer(http.Dir(dir)).ServeHTTP(w, r)
			return
		}
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, index)
}
