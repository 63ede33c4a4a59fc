package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// probeWorkers bounds concurrent HEAD requests.
const probeWorkers = 8

// ImageProbe checks whether remote images can be loaded.
// Each URL is probed at most once per process; outcomes are remembered.
type ImageProbe struct {
	http *resty.Client

	mu      sync.Mutex
	results map[string]*probeEntry
}

type probeEntry struct {
	mu     sync.Mutex
	known  bool
	failed bool
}

// NewImageProbe creates a probe. timeout <= 0 uses DefaultTimeout.
func NewImageProbe(timeout time.Duration) *ImageProbe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ImageProbe{
		http:    resty.New().SetTimeout(timeout).SetHeader("User-Agent", UserAgent),
		results: make(map[string]*probeEntry),
	}
}

// Failed returns the subset of urls that answered with an error or non-2xx status.
// Relative and non-http URLs are not probed and never reported.
// Probes cut short by ctx are not remembered.
func (p *ImageProbe) Failed(ctx context.Context, urls []string) map[string]bool {
	failed := make(map[string]bool)
	seen := make(map[string]bool, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, probeWorkers)

	for _, u := range urls {
		if !IsRemote(u) || seen[u] {
			continue
		}
		seen[u] = true
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if p.check(ctx, u) {
				mu.Lock()
				failed[u] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failed
}

// check reports whether u failed, probing it on first use.
func (p *ImageProbe) check(ctx context.Context, u string) bool {
	e := p.entry(u)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.known {
		return e.failed
	}

	resp, err := p.http.R().SetContext(ctx).Head(u)
	bad := err != nil || !resp.IsSuccess()
	if bad {
		slog.Debug("image_probe_failed", "url", u, "error", err)
	}
	if ctx.Err() == nil {
		e.known, e.failed = true, bad
	}
	return bad
}

func (p *ImageProbe) entry(u string) *probeEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.results[u]
	if !ok {
		e = &probeEntry{}
		p.results[u] = e
	}
	return e
}
