package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader produces the raw, not yet denormalized, catalog tables.
type Loader func(ctx context.Context) (*Model, error)

// DirLoader returns a Loader reading <table>.csv files from dir.
func DirLoader(dir string) Loader {
	return func(context.Context) (*Model, error) {
		return ReadDir(dir)
	}
}

// Fetcher supplies catalog tables from a remote authority.
type Fetcher interface {
	Fetch(ctx context.Context) (*Model, error)
}

// Handle is the process-wide catalog. The model is built on first use and
// shared by all callers; callers never observe a partially built model.
type Handle struct {
	mu      sync.Mutex
	model   *Model
	load    Loader
	fetcher Fetcher
	log     logrus.FieldLogger
}

// Option configures a Handle.
type Option func(*Handle)

// WithFetcher overlays remote tables on the local ones at build time.
func WithFetcher(f Fetcher) Option {
	return func(h *Handle) { h.fetcher = f }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Handle) { h.log = l }
}

// NewHandle creates a handle that builds its model with load.
func NewHandle(load Loader, opts ...Option) *Handle {
	h := &Handle{load: load}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		h.log = l
	}
	return h
}

// FromModel wraps an already built model.
func FromModel(m *Model) *Handle {
	h := NewHandle(func(context.Context) (*Model, error) { return m, nil })
	h.model = m
	return h
}

// Model returns the catalog, building it on the first call. A failed build
// is not cached; the next call tries again.
func (h *Handle) Model(ctx context.Context) (*Model, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.model != nil {
		return h.model, nil
	}
	m, err := h.build(ctx)
	if err != nil {
		return nil, err
	}
	h.model = m
	return m, nil
}

// Reload builds a fresh model and replaces the cached one. On failure the
// cached model is kept.
func (h *Handle) Reload(ctx context.Context) error {
	m, err := h.build(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.model = m
	h.mu.Unlock()
	return nil
}

func (h *Handle) build(ctx context.Context) (*Model, error) {
	m, err := h.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	if h.fetcher != nil {
		remote, err := h.fetcher.Fetch(ctx)
		if err != nil {
			h.log.WithError(err).Warn("remote catalog unavailable, using local tables")
		} else {
			for _, name := range remote.TableNames() {
				m.AddTable(remote.Table(name))
			}
			h.log.WithField("tables", len(remote.TableNames())).Debug("applied remote catalog tables")
		}
	}

	if err := Denormalize(m); err != nil {
		return nil, err
	}
	if fact := m.Fact(); fact != nil {
		if dups := len(fact.IDs) - len(fact.rows); dups > 0 {
			h.log.WithFields(logrus.Fields{"table": FactTable, "duplicates": dups}).Warn("duplicate entry ids, first row wins")
		}
	}
	return m, nil
}
