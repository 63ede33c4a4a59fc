package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"catalog/internal/application/filter"
	"catalog/internal/domain/item"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "sites.json5"

// Defaults applied when the file and environment leave a field empty.
const (
	DefaultAddr              = ":8080"
	DefaultDB                = "catalog.db"
	DefaultSlowRequestMs     = 500
	DefaultSlowQueryMs       = 50
	DefaultFetchTimeoutMs    = 10000
	DefaultSpotlightInterval = 300
)

// ErrUnknownSite is returned by Config.Site for keys that are not configured.
var ErrUnknownSite = errors.New("unknown site")

// Site describes one catalog page.
type Site struct {
	Key            string `json:"key"`
	Title          string `json:"title"`
	Kind           string `json:"kind"`
	Source         string `json:"source"`
	StorageKey     string `json:"storage_key"`
	OlderThreshold int    `json:"older_threshold"`
	ProbeImages    bool   `json:"probe_images"`
}

// ItemKind returns the parsed Kind of the site.
func (s Site) ItemKind() item.Kind {
	k, _ := item.ParseKind(s.Kind)
	return k
}

// FilterOptions returns the pipeline options for the site.
func (s Site) FilterOptions() filter.Options {
	return filter.Options{OlderThreshold: s.OlderThreshold}
}

// Config is the process configuration.
type Config struct {
	Addr                 string `json:"addr"`
	DB                   string `json:"db"`
	Env                  string `json:"env"`
	CSRFKey              string `json:"csrf_key"`
	StaticDir            string `json:"static_dir"`
	SlowRequestMs        int    `json:"slow_request_ms"`
	SlowQueryMs          int    `json:"slow_query_ms"`
	FetchTimeoutMs       int    `json:"fetch_timeout_ms"`
	SpotlightIntervalSec int    `json:"spotlight_interval_s"`
	Sites                []Site `json:"sites"`
}

// BuiltinSites are served when no config file lists any site.
func BuiltinSites() []Site {
	return []Site{
		{Key: "directory", Title: "Chamber Directory", Kind: "member", Source: "data/members.json", StorageKey: "directoryPreferences"},
		{Key: "library", Title: "Community Library", Kind: "book", Source: "data/books.json", StorageKey: "searchPreferences", OlderThreshold: filter.DefaultOlderThreshold},
		{Key: "courses", Title: "Course Progress", Kind: "course", Source: "data/courses.json", StorageKey: "coursePreferences"},
	}
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), ext
}

// Read loads path and its <name>.local.<ext> sibling, local values winning.
// Missing files are not an error. Defaults and environment overrides are applied last.
// PRE: none
// POST: Returns a validated Config or an error naming the bad field
func Read(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	var cfg Config
	if err := readFile(path, &cfg); err != nil {
		return Config{}, err
	}

	prefix, ext := splitExt(path)
	localPath := prefix + ".local" + ext
	var local Config
	if err := readFile(localPath, &local); err != nil {
		return Config{}, err
	}
	if err := mergo.Merge(&cfg, local, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("merge %s: %w", localPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json5.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	slog.Info("config_loaded", "path", path)
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"CATALOG_ADDR":     &cfg.Addr,
		"CATALOG_DB":       &cfg.DB,
		"CATALOG_ENV":      &cfg.Env,
		"CATALOG_CSRF_KEY": &cfg.CSRFKey,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"CATALOG_SLOW_REQUEST_MS": &cfg.SlowRequestMs,
		"CATALOG_SLOW_QUERY_MS":   &cfg.SlowQueryMs,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", name, v)
		}
		*dst = n
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DB == "" {
		cfg.DB = DefaultDB
	}
	if cfg.SlowRequestMs == 0 {
		cfg.SlowRequestMs = DefaultSlowRequestMs
	}
	if cfg.SlowQueryMs == 0 {
		cfg.SlowQueryMs = DefaultSlowQueryMs
	}
	if cfg.FetchTimeoutMs == 0 {
		cfg.FetchTimeoutMs = DefaultFetchTimeoutMs
	}
	if cfg.SpotlightIntervalSec == 0 {
		cfg.SpotlightIntervalSec = DefaultSpotlightInterval
	}
	if len(cfg.Sites) == 0 {
		cfg.Sites = BuiltinSites()
	}
	for i := range cfg.Sites {
		s := &cfg.Sites[i]
		if s.StorageKey == "" {
			s.StorageKey = s.Key + "Preferences"
		}
		if s.Title == "" {
			s.Title = s.Key
		}
		if s.OlderThreshold == 0 {
			s.OlderThreshold = filter.DefaultOlderThreshold
		}
	}
}

// Validate checks every site has a unique key, a known kind and a source.
func (c Config) Validate() error {
	seen := make(map[string]bool)
	for i, s := range c.Sites {
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("sites[%d]: key cannot be empty", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("sites[%d]: duplicate key %q", i, s.Key)
		}
		seen[s.Key] = true
		if _, err := item.ParseKind(s.Kind); err != nil {
			return fmt.Errorf("site %q: %w: %q", s.Key, err, s.Kind)
		}
		if strings.TrimSpace(s.Source) == "" {
			return fmt.Errorf("site %q: source cannot be empty", s.Key)
		}
	}
	return nil
}

// Site returns the site configured under key.
func (c Config) Site(key string) (Site, error) {
	for _, s := range c.Sites {
		if s.Key == key {
			return s, nil
		}
	}
	return Site{}, fmt.Errorf("%w: %q", ErrUnknownSite, key)
}

// Production reports whether the process runs with CATALOG_ENV=production.
func (c Config) Production() bool {
	return c.Env == "production"
}

// SlowRequest returns the slow request threshold.
func (c Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMs) * time.Millisecond
}

// SlowQuery returns the slow query threshold.
func (c Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

// FetchTimeout returns the source fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// SpotlightInterval returns how often spotlights rotate.
func (c Config) SpotlightInterval() time.Duration {
	return time.Duration(c.SpotlightIntervalSec) * time.Second
}
