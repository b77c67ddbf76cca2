package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// Source is where a dataset came from on its last refresh.
type Source string

const (
	SourceSample   Source = "sample"
	SourceEndpoint Source = "endpoint"
	SourceCache    Source = "cache"
)

// Provider is the read side of Manager used by tools and agents.
type Provider interface {
	Get(ctx context.Context, domain decisionkit.Domain) Dataset
}

// Option configures a Manager.
type Option func(*Manager)

// WithEndpoints sets the per-domain endpoint URLs. Domains without an
// endpoint are served from the built-in sample data.
func WithEndpoints(endpoints map[decisionkit.Domain]string) Option {
	return func(m *Manager) {
		for d, url := range endpoints {
			if url != "" {
				m.endpoints[d] = url
			}
		}
	}
}

// WithCache sets the persistence backend.
func WithCache(c Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithFetcher overrides the endpoint fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(m *Manager) { m.fetcher = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the clock used for last_updated stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOnRefresh registers fn to run after every successful refresh.
func WithOnRefresh(fn func(ctx context.Context, domain decisionkit.Domain, ds Dataset)) Option {
	return func(m *Manager) { m.onRefresh = append(m.onRefresh, fn) }
}

// Manager holds the current dataset of every domain.
//
// Datasets returned by Get are shared and must be treated as read-only.
type Manager struct {
	mu       sync.RWMutex
	datasets map[decisionkit.Domain]Dataset
	sources  map[decisionkit.Domain]Source

	endpoints map[decisionkit.Domain]string
	fetcher   *Fetcher
	cache     Cache
	logger    *slog.Logger
	now       func() time.Time
	onRefresh []func(context.Context, decisionkit.Domain, Dataset)
}

// NewManager creates a manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		datasets:  make(map[decisionkit.Domain]Dataset),
		sources:   make(map[decisionkit.Domain]Source),
		endpoints: make(map[decisionkit.Domain]string),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fetcher == nil {
		m.fetcher = NewFetcher(nil)
	}
	return m
}

// LoadCached seeds the manager from the cache backend and returns the
// number of domains loaded. Unreadable entries are logged and skipped.
func (m *Manager) LoadCached(ctx context.Context) int {
	if m.cache == nil {
		return 0
	}
	loaded := 0
	for _, domain := range decisionkit.AllDomains() {
		ds, err := m.cache.Load(ctx, domain)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				m.logger.ErrorContext(ctx, "failed to load cached data", "domain", domain, "error", err)
			}
			continue
		}
		m.mu.Lock()
		m.datasets[domain] = ds
		m.sources[domain] = SourceCache
		m.mu.Unlock()
		loaded++
		m.logger.InfoContext(ctx, "loaded cached data", "domain", domain)
	}
	return loaded
}

// Get returns the dataset for domain, refreshing it first when nothing is
// loaded yet. A failed refresh yields an empty dataset.
func (m *Manager) Get(ctx context.Context, domain decisionkit.Domain) Dataset {
	m.mu.RLock()
	ds, ok := m.datasets[domain]
	m.mu.RUnlock()
	if ok {
		return ds
	}

	ds, err := m.Refresh(ctx, domain)
	if err != nil {
		m.logger.ErrorContext(ctx, "data refresh failed", "domain", domain, "error", err)
		return Dataset{}
	}
	return ds
}

// Refresh reloads one domain from its endpoint, or from the sample data
// when no endpoint is configured. On failure the previous dataset is kept.
func (m *Manager) Refresh(ctx context.Context, domain decisionkit.Domain) (Dataset, error) {
	if !domain.Valid() {
		return nil, apperrors.NewUnknownDomainError(domain.String(), "")
	}

	var (
		ds     Dataset
		source Source
		err    error
	)
	if url, ok := m.endpoints[domain]; ok {
		source = SourceEndpoint
		ds, err = m.fetch(ctx, domain, url)
		if err != nil {
			return nil, apperrors.NewDataUnavailableError(domain.String(), url, err)
		}
	} else {
		source = SourceSample
		m.logger.InfoContext(ctx, "using sample data (no endpoint configured)", "domain", domain)
		ds, err = SampleDataset(domain)
		if err != nil {
			return nil, apperrors.NewDataUnavailableError(domain.String(), string(SourceSample), err)
		}
	}

	ds[LastUpdatedKey] = m.now().UTC().Format(time.RFC3339)

	m.mu.Lock()
	m.datasets[domain] = ds
	m.sources[domain] = source
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.Save(ctx, domain, ds); err != nil {
			m.logger.ErrorContext(ctx, "failed to cache data", "domain", domain, "error", err)
		}
	}
	m.logger.InfoContext(ctx, "data refreshed", "domain", domain, "source", source)
	for _, fn := range m.onRefresh {
		fn(ctx, domain, ds)
	}
	return ds, nil
}

func (m *Manager) fetch(ctx context.Context, domain decisionkit.Domain, url string) (Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultFetchTimeout)
	defer cancel()

	payload, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	ds, err := ProcessPayload(domain, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to process payload: %w", err)
	}
	return ds, nil
}

// RefreshAll refreshes every domain concurrently. A failing domain does not
// stop the others; all failures are joined into the returned error.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, domain := range decisionkit.AllDomains() {
		domain := domain
		g.Go(func() error {
			if _, err := m.Refresh(ctx, domain); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.logger.InfoContext(ctx, "all data refreshed successfully")
	return nil
}

// LastUpdated returns the last_updated stamp of a loaded dataset, or ""
// when the domain has not been loaded.
func (m *Manager) LastUpdated(domain decisionkit.Domain) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.datasets[domain].LastUpdated()
}

// Freshness returns LastUpdated for every loaded domain that carries a stamp.
func (m *Manager) Freshness() map[decisionkit.Domain]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[decisionkit.Domain]string, len(m.datasets))
	for d, ds := range m.datasets {
		if ts := ds.LastUpdated(); ts != "" {
			out[d] = ts
		}
	}
	return out
}

// Source reports where a domain's dataset was loaded from.
func (m *Manager) Source(domain decisionkit.Domain) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[domain]
	return s, ok
}

// Close releases the cache backend.
func (m *Manager) Close() error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Close()
}
