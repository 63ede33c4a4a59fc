package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"time"

	"catalog/internal/adapters/http/middleware"
	"catalog/internal/adapters/http/perf"
	kv "catalog/internal/adapters/storage/preference"
	"catalog/internal/application/page"
	"catalog/internal/application/prefs"
	"catalog/internal/application/spotlight"
	"catalog/internal/config"
)

// Deps holds everything the handlers need.
type Deps struct {
	Config   config.Config
	Source   page.Loader
	Images   page.ImageChecker             // nil disables image probing
	Prefs    kv.Store                      // nil disables persistence
	Rotators map[string]*spotlight.Rotator // keyed by member site key
	Now      func() time.Time
}

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// loadCSRFKey decodes the configured CSRF secret (hex-encoded, 32 bytes).
// In production the key MUST be set. In development a random key is generated per startup.
func loadCSRFKey(cfg config.Config) ([]byte, error) {
	if cfg.CSRFKey != "" {
		key, err := hex.DecodeString(cfg.CSRFKey)
		if err != nil || len(key) != 32 {
			return nil, errors.New("CATALOG_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key, nil
	}
	if cfg.Production() {
		return nil, errors.New("CATALOG_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	log.Println("WARNING: using random CSRF key (forms won't survive restart). Set CATALOG_CSRF_KEY for production.")
	return key, nil
}

// App is the root handler. Close stops its background workers.
type App struct {
	http.Handler
	limiter *middleware.RateLimiter
}

// Close stops the rate limiter's sweeper. It is safe to call more than once.
func (a *App) Close() {
	a.limiter.Close()
}

// NewMux wires HTTP handlers for the app.
// PRE: d.Source is non-nil
// POST: Returns the handler wrapped in Timing -> RateLimit -> Visitor -> CSRF -> SecurityHeaders;
// the caller must Close it
func NewMux(d *Deps, collector *perf.Collector) (*App, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	csrfKey, err := loadCSRFKey(d.Config)
	if err != nil {
		return nil, err
	}
	secure := d.Config.Production()

	s := &server{deps: d, collector: collector, visits: prefs.NewVisits(d.Prefs)}
	mux := http.NewServeMux()
	if d.Config.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(d.Config.StaticDir))))
	}
	s.registerRoutes(mux)

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	handler := middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, secure, nil),
		middleware.Visitor(secure),
		middleware.RateLimit(limiter),
		middleware.Timing(collector, d.Config.SlowRequest()),
	)
	return &App{Handler: handler, limiter: limiter}, nil
}

type server struct {
	deps      *Deps
	collector *perf.Collector
	visits    *prefs.Visits
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /sites/{key}", s.handleSite)
	mux.HandleFunc("POST /sites/{key}/layout", s.handleLayout)
	mux.HandleFunc("GET /sites/{key}/home", s.handleHome)
	mux.HandleFunc("GET /sites/{key}/items/{id}", s.handleItem)
	mux.HandleFunc("GET /sites/{key}/spotlights", s.handleSpotlights)
	mux.HandleFunc("GET /debug/perf", s.handlePerf)
}
