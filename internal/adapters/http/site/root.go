// Package site answers requests outside the API surface: files from an
// optional static directory, otherwise a fixed informational body.
package site

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Error constants
var (
	ErrStaticDir = errors.New("static dir is not a directory")
)

// Default body modes.
const (
	ModeJSON = "json"
	ModeText = "text"
)

// DefaultText is the plain default body.
const DefaultText = "EPC Portal API"

// Handler serves static files or the default body.
type Handler struct {
	dir         string
	files       http.Handler
	mode        string
	submitPaths []string
}

// Option applies a configuration option to the Handler.
type Option func(*Handler)

// WithStaticDir serves files from dir for GET and HEAD requests.
func WithStaticDir(dir string) Option {
	return func(h *Handler) {
		h.dir = dir
	}
}

// WithMode selects the default body: ModeJSON or ModeText.
func WithMode(mode string) Option {
	return func(h *Handler) {
		if mode == ModeJSON || mode == ModeText {
			h.mode = mode
		}
	}
}

// WithSubmitPaths lists the submission endpoints in the JSON default body.
func WithSubmitPaths(paths []string) Option {
	return func(h *Handler) {
		h.submitPaths = append([]string(nil), paths...)
	}
}

// New creates a Handler. It fails when a configured static dir is missing.
func New(opts ...Option) (*Handler, error) {
	h := &Handler{mode: ModeJSON}
	for _, opt := range opts {
		opt(h)
	}
	if h.dir != "" {
		info, err := os.Stat(h.dir)
		if err != nil {
			return nil, errors.Join(ErrStaticDir, err)
		}
		if !info.IsDir() {
			return nil, ErrStaticDir
		}
		h.files = http.FileServer(http.Dir(h.dir))
	}
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.files != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) && h.exists(r.URL.Path) {
		h.files.ServeHTTP(w, r)
		return
	}
	h.serveDefault(w)
}

func (h *Handler) exists(urlPath string) bool {
	clean := path.Clean("/" + urlPath)
	if strings.HasSuffix(urlPath, "/") {
		clean = path.Join(clean, "index.html")
	}
	info, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(clean)))
	if err != nil {
		return false
	}
	if info.IsDir() {
		_, err = os.Stat(filepath.Join(h.dir, filepath.FromSlash(clean), "index.html"))
		return err == nil
	}
	return true
}

type info struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
	Status    string            `json:"status"`
}

func (h *Handler) serveDefault(w http.ResponseWriter) {
	if h.mode == ModeText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(DefaultText))
		return
	}

	endpoints := make(map[string]string, len(h.submitPaths)+2)
	for _, p := range h.submitPaths {
		endpoints["POST "+p] = "Submit application"
	}
	endpoints["GET /healthz"] = "Health check"
	endpoints["GET /api-docs"] = "API documentation"

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(info{
		Message:   DefaultText + " Worker",
		Endpoints: endpoints,
		Status:    "ready",
	})
}
