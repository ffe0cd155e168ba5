// Package site renders the public marketing pages and the client app shells.
package site

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quillscribe/portal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// themeTimeout bounds the theme lookup of a page render.
const themeTimeout = 2 * time.Second

// ThemeSource provides the current theme settings.
type ThemeSource interface {
	Theme(ctx context.Context) (model.ThemeSettings, error)
}

// Config holds the dependencies of the site.
type Config struct {
	Logger *slog.Logger
	// Theme is optional. Pages fall back to the stylesheet defaults.
	Theme ThemeSource
	// DataDir serves snapshot JSON under /data when set.
	DataDir string
	// ProductName is shown in titles and the header.
	ProductName string
}

// Site serves server-rendered pages.
type Site struct {
	pages   map[string]*template.Template
	theme   ThemeSource
	dataDir string
	product string
	logger  *slog.Logger
}

type page struct {
	name  string
	path  string
	title string
	file  string
}

var pages = []page{
	{name: "home", path: "/", title: "Transcripts that write themselves", file: "home.html"},
	{name: "features", path: "/features", title: "Features", file: "features.html"},
	{name: "pricing", path: "/pricing", title: "Pricing", file: "pricing.html"},
	{name: "about", path: "/about", title: "About", file: "about.html"},
	{name: "contact", path: "/contact", title: "Contact", file: "contact.html"},
	{name: "login", path: "/login", title: "Sign in", file: "shell.html"},
	{name: "signup", path: "/signup", title: "Create account", file: "shell.html"},
	{name: "dashboard", path: "/dashboard", title: "Dashboard", file: "shell.html"},
	{name: "admin", path: "/admin", title: "Admin", file: "shell.html"},
}

// pageData is passed to every template.
type pageData struct {
	Product string
	Page    string
	Title   string
	Theme   template.CSS
	Plans   []Plan
	Year    int
}

// New parses the embedded templates.
func New(cfg Config) (*Site, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	product := cfg.ProductName
	if product == "" {
		product = "Quillscribe"
	}

	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+p.file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p.file, err)
		}
		parsed[p.name] = t
	}

	return &Site{
		pages:   parsed,
		theme:   cfg.Theme,
		dataDir: cfg.DataDir,
		product: product,
		logger:  logger.With("component", "site"),
	}, nil
}

// Register mounts the pages, static assets and snapshot files on r.
func (s *Site) Register(r chi.Router) {
	for _, p := range pages {
		r.Get(p.path, s.render(p))
	}

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	if s.dataDir != "" {
		r.Get("/data/*", s.serveData(http.StripPrefix("/data/", http.FileServer(http.Dir(s.dataDir)))))
	}
}

func (s *Site) render(p page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{
			Product: s.product,
			Page:    p.name,
			Title:   p.title,
			Theme:   s.themeCSS(r.Context()),
			Year:    time.Now().UTC().Year(),
		}
		if p.name == "pricing" {
			data.Plans = Plans
		}

		// Render into a buffer so a template error still yields a clean 500.
		var buf bytes.Buffer
		if err := s.pages[p.name].ExecuteTemplate(&buf, "layout", data); err != nil {
			s.logger.Error("page render failed", slog.String("page", p.name), slog.String("error", err.Error()))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}

// serveData only exposes JSON files and never lists directories.
func (s *Site) serveData(files http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" || strings.Contains(name, "/") || path.Ext(name) != ".json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	}
}

func (s *Site) themeCSS(ctx context.Context) template.CSS {
	if s.theme == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, themeTimeout)
	defer cancel()

	theme, err := s.theme.Theme(ctx)
	if err != nil {
		s.logger.Warn("theme unavailable, using stylesheet defaults", slog.String("error", err.Error()))
		return ""
	}
	return ThemeVariables(theme)
}
