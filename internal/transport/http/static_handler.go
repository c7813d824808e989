package http

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

// StaticHandler serves the dashboard's bundled assets under /static/.
// The page shells are template-rendered server side, so unlike a full
// SPA server there is no index.html fallback: a missing asset is a 404.
type StaticHandler struct {
	Assets fs.FS
}

func (h StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Assets == nil {
		http.NotFound(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/static/")
	if path == "" || strings.Contains(path, "..") {
		http.NotFound(w, r)
		return
	}

	f, err := h.Assets.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if stat, err := f.Stat(); err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.StripPrefix("/static/", http.FileServer(http.FS(h.Assets))).ServeHTTP(w, r)
}
