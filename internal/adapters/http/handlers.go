package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/csrf"

	"catalog/internal/adapters/http/middleware"
	"catalog/internal/application/filter"
	"catalog/internal/application/listutil"
	"catalog/internal/application/page"
	"catalog/internal/application/prefs"
	"catalog/internal/application/render"
	"catalog/internal/config"
	"catalog/internal/domain/item"
	"catalog/internal/domain/preference"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = parsePages("index.html", "site.html", "home.html", "detail.html", "spotlights.html", "error.html")

func parsePages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New("layout.html").ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return out
}

// navLink is one entry of the site navigation.
type navLink struct {
	Key   string
	Title string
	Kind  string
}

// chrome is the data every page template receives.
type chrome struct {
	Nav     []navLink
	Current string
}

func newChrome(cfg config.Config, current string) chrome {
	nav := make([]navLink, len(cfg.Sites))
	for i, s := range cfg.Sites {
		nav[i] = navLink{Key: s.Key, Title: s.Title, Kind: s.Kind}
	}
	return chrome{Nav: nav, Current: current}
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func execute(name string, data any) ([]byte, error) {
	tpl, ok := pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// renderDoc executes a page template and parses it for in-place edits.
func renderDoc(name string, data any) (*goquery.Document, error) {
	body, err := execute(name, data)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

type errorPage struct {
	chrome
	Heading string
	Message string
}

func (s *server) renderError(w http.ResponseWriter, status int, heading, message string) {
	body, err := execute("error.html", errorPage{chrome: newChrome(s.deps.Config, ""), Heading: heading, Message: message})
	if err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, status, body)
}

// SiteFor maps a configured site onto what the page controller needs.
func SiteFor(site config.Site) page.Site {
	return page.Site{
		Kind:        site.ItemKind(),
		Source:      site.Source,
		Options:     site.FilterOptions(),
		ProbeImages: site.ProbeImages,
		DetailBase:  "/sites/" + url.PathEscape(site.Key) + "/items",
	}
}

// prefsFor returns the preference store of one visitor on one site.
func prefsFor(d *Deps, site config.Site, visitor string) prefs.Store {
	if d.Prefs == nil || visitor == "" {
		return prefs.Nop{}
	}
	return prefs.NewKVStore(d.Prefs, site.StorageKey+":"+visitor)
}

type sitePage struct {
	chrome
	Site          config.Site
	CSRFField     template.HTML
	CategoryLabel string
	SearchHint    string
	HasRange      bool
	HasTier       bool
	HasSpotlights bool
	HasHome       bool
}

func newSitePage(cfg config.Config, site config.Site, csrfField template.HTML) sitePage {
	p := sitePage{chrome: newChrome(cfg, site.Key), Site: site, CSRFField: csrfField}
	switch site.ItemKind() {
	case item.KindBook:
		p.CategoryLabel, p.SearchHint, p.HasRange = "Genre", "Title or author", true
		p.HasHome = true
	case item.KindMember:
		p.CategoryLabel, p.SearchHint, p.HasTier = "Category", "Name or description", true
		p.HasSpotlights = true
	case item.KindCourse:
		p.CategoryLabel, p.SearchHint = "Subject", "Course code or title"
	}
	return p
}

// RenderSite writes the full page of the site under key to w.
// Interactions in in are applied after the page has loaded, as if the visitor made them.
// PRE: d.Source is non-nil
// POST: Returns the HTTP status the page should be served with: 200, or 502 when the
// source failed (the page then carries the inline error); err only for unknown sites
// and template failures
func RenderSite(ctx context.Context, w io.Writer, d *Deps, key string, in listutil.Interactions, visitor string, csrfField template.HTML) (int, error) {
	site, err := d.Config.Site(key)
	if err != nil {
		return http.StatusNotFound, err
	}
	doc, err := renderDoc("site.html", newSitePage(d.Config, site, csrfField))
	if err != nil {
		return http.StatusInternalServerError, err
	}

	ctrl := page.New(SiteFor(site), doc, page.Deps{
		Source: d.Source,
		Prefs:  prefsFor(d, site, visitor),
		Images: d.Images,
		Now:    d.Now,
	})
	status := http.StatusOK
	if err := ctrl.Load(ctx); err != nil {
		status = http.StatusBadGateway
	} else if err := ctrl.Apply(ctx, in); err != nil {
		return http.StatusInternalServerError, err
	}

	html, err := doc.Html()
	if err != nil {
		return http.StatusInternalServerError, err
	}
	_, err = io.WriteString(w, html)
	return status, err
}

type indexPage struct {
	chrome
	VisitorMessage string
}

// handleIndex handles GET /
func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	visitor, _ := middleware.VisitorFromContext(r.Context())
	now := s.deps.Now()
	last, seen := s.visits.Touch(r.Context(), visitor, now)

	body, err := execute("index.html", indexPage{
		chrome:         newChrome(s.deps.Config, ""),
		VisitorMessage: render.VisitMessage(last, seen, now),
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// handleSite handles GET /sites/{key}
func (s *server) handleSite(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	visitor, _ := middleware.VisitorFromContext(r.Context())

	var buf bytes.Buffer
	status, err := RenderSite(r.Context(), &buf, s.deps, key, listutil.ParseInteractions(r.URL.Query()), visitor, csrf.TemplateField(r))
	if errors.Is(err, config.ErrUnknownSite) {
		s.renderError(w, http.StatusNotFound, "Not found", "There is no catalog called "+key+".")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, status, buf.Bytes())
}

// handleLayout handles POST /sites/{key}/layout
func (s *server) handleLayout(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	site, err := s.deps.Config.Site(key)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Not found", "There is no catalog called "+key+".")
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	layout := preference.Layout(strings.ToLower(strings.TrimSpace(r.PostForm.Get("layout"))))
	if !layout.Valid() {
		http.Error(w, "layout must be grid or list", http.StatusBadRequest)
		return
	}

	visitor, _ := middleware.VisitorFromContext(r.Context())
	ctrl := page.New(SiteFor(site), nil, page.Deps{
		Source: s.deps.Source,
		Prefs:  prefsFor(s.deps, site, visitor),
		Now:    s.deps.Now,
	})
	if err := ctrl.Load(r.Context()); err != nil {
		slog.Warn("layout_change_ignored", "site", key, "error", err)
	} else if err := ctrl.SetLayout(r.Context(), layout); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/sites/"+url.PathEscape(key), http.StatusSeeOther)
}

type detailPage struct {
	chrome
	Site config.Site
	Item item.Item
}

// handleItem handles GET /sites/{key}/items/{id}
func (s *server) handleItem(w http.ResponseWriter, r *http.Request) {
	key, id := r.PathValue("key"), r.PathValue("id")
	site, err := s.deps.Config.Site(key)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Not found", "There is no catalog called "+key+".")
		return
	}
	items, err := s.deps.Source.Load(r.Context(), site.Source, site.ItemKind())
	if err != nil {
		s.renderError(w, http.StatusBadGateway, "Unavailable", render.DefaultErrorMessage)
		return
	}
	var found *item.Item
	for i := range items {
		if items[i].ID == id {
			found = &items[i]
			break
		}
	}
	if found == nil {
		s.renderError(w, http.StatusNotFound, "Not found", "That entry is not in "+site.Title+".")
		return
	}

	doc, err := renderDoc("detail.html", detailPage{chrome: newChrome(s.deps.Config, key), Site: site, Item: *found})
	if err != nil {
		internalError(w, err)
		return
	}
	region := doc.Find("#detail")
	if err := (render.Renderer{}).RenderDetail(*found, region); err != nil {
		internalError(w, err)
		return
	}
	if site.ProbeImages && s.deps.Images != nil {
		render.ApplyImageFallback(region, s.deps.Images.Failed(r.Context(), render.ImageSources(region)))
	}
	s.writeDoc(w, http.StatusOK, doc)
}

// handleHome handles GET /sites/{key}/home
func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	site, err := s.deps.Config.Site(key)
	if err != nil || site.ItemKind() != item.KindBook {
		s.renderError(w, http.StatusNotFound, "Not found", "This catalog has no home page.")
		return
	}

	doc, err := renderDoc("home.html", detailPage{chrome: newChrome(s.deps.Config, key), Site: site})
	if err != nil {
		internalError(w, err)
		return
	}
	featured, arrivals := doc.Find("#featured"), doc.Find("#new-arrivals")

	status := http.StatusOK
	items, err := s.deps.Source.Load(r.Context(), site.Source, site.ItemKind())
	if err != nil {
		slog.Warn("home_load_failed", "site", key, "error", err)
		status = http.StatusBadGateway
		render.RenderError(featured, "")
		render.RenderError(arrivals, "")
		s.writeDoc(w, status, doc)
		return
	}

	renderer := render.Renderer{DetailBase: SiteFor(site).DetailBase}
	since := site.FilterOptions().OlderThreshold
	if since == 0 {
		since = filter.DefaultOlderThreshold
	}
	if err := renderer.Render(filter.Featured(items, filter.ShelfSize), featured, preference.LayoutGrid); err != nil {
		internalError(w, err)
		return
	}
	if err := renderer.Render(filter.NewArrivals(items, since, filter.ShelfSize), arrivals, preference.LayoutGrid); err != nil {
		internalError(w, err)
		return
	}
	if site.ProbeImages && s.deps.Images != nil {
		body := doc.Find("main")
		render.ApplyImageFallback(body, s.deps.Images.Failed(r.Context(), render.ImageSources(body)))
	}
	s.writeDoc(w, status, doc)
}

// handleSpotlights handles GET /sites/{key}/spotlights
func (s *server) handleSpotlights(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	site, err := s.deps.Config.Site(key)
	rotator := s.deps.Rotators[key]
	if err != nil || site.ItemKind() != item.KindMember || rotator == nil {
		s.renderError(w, http.StatusNotFound, "Not found", "This catalog has no spotlights.")
		return
	}

	status := http.StatusOK
	members, err := rotator.Current(r.Context())
	if err != nil {
		slog.Warn("spotlight_load_failed", "site", key, "error", err)
		status = http.StatusBadGateway
	}

	doc, err := renderDoc("spotlights.html", detailPage{chrome: newChrome(s.deps.Config, key), Site: site})
	if err != nil {
		internalError(w, err)
		return
	}
	region := doc.Find("#spotlights")
	if status != http.StatusOK {
		render.RenderError(region, "")
	} else if err := (render.Renderer{}).RenderSpotlights(members, region); err != nil {
		internalError(w, err)
		return
	}
	if site.ProbeImages && s.deps.Images != nil {
		render.ApplyImageFallback(region, s.deps.Images.Failed(r.Context(), render.ImageSources(region)))
	}
	s.writeDoc(w, status, doc)
}

func (s *server) writeDoc(w http.ResponseWriter, status int, doc *goquery.Document) {
	html, err := doc.Html()
	if err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, status, []byte(html))
}

// handlePerf handles GET /debug/perf
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	snap := s.collector.Snapshot(s.deps.Now().Add(-time.Hour), 10)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		slog.Error("perf_encode_failed", "error", err.Error())
	}
}
