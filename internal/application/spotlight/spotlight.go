package spotlight

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"catalog/internal/domain/item"
)

// DefaultInterval is how often a Rotator re-selects when started.
const DefaultInterval = 5 * time.Minute

// Select picks two or three spotlight-eligible members at random, without repeats.
// PRE: rng is non-nil
// POST: Returns at most len(eligible) members, each distinct, in random order
func Select(full []item.Item, rng *rand.Rand) []item.Item {
	var eligible []item.Item
	for _, it := range full {
		if it.SpotlightEligible() {
			eligible = append(eligible, it)
		}
	}
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	n := 2 + rng.IntN(2)
	if n > len(eligible) {
		n = len(eligible)
	}
	return eligible[:n]
}

// LoadFunc returns the full member list.
type LoadFunc func(ctx context.Context) ([]item.Item, error)

// Rotator holds the current spotlight selection for one site.
type Rotator struct {
	load LoadFunc

	mu      sync.Mutex
	rng     *rand.Rand
	current []item.Item
}

// NewRotator creates a rotator. A nil rng uses a time-seeded source.
func NewRotator(load LoadFunc, rng *rand.Rand) *Rotator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Rotator{load: load, rng: rng}
}

// Current returns the selection, refreshing first if nothing is selected yet.
func (r *Rotator) Current(ctx context.Context) ([]item.Item, error) {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur != nil {
		return slices.Clone(cur), nil
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.current), nil
}

// Refresh reloads the member list and picks a new selection.
// POST: on error the previous selection is kept
func (r *Rotator) Refresh(ctx context.Context) error {
	full, err := r.load(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = Select(full, r.rng)
	if r.current == nil {
		r.current = []item.Item{}
	}
	return nil
}

// Start refreshes every interval until stopCh is closed.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed; interval <= 0 uses DefaultInterval
func (r *Rotator) Start(interval time.Duration, stopCh <-chan struct{}) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if err := r.Refresh(ctx); err != nil {
					slog.Error("spotlight_refresh_failed", "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("spotlight_worker_stopped")
				return
			}
		}
	}()
}
