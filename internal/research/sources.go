package research

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/model"
)

// SourceRegistry collects the sources discovered during one research
// run, deduplicated by URL. The first occurrence wins; later
// duplicates are dropped. The registry is owned by a single run.
type SourceRegistry struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	sources []model.Source
	now     func() time.Time
	logger  *zap.Logger
}

// NewSourceRegistry creates an empty registry
func NewSourceRegistry(logger *zap.Logger) *SourceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceRegistry{
		seen:   make(map[string]struct{}),
		now:    time.Now,
		logger: logger,
	}
}

// Add records a discovered source. Returns false when the URL is empty
// or already known.
func (r *SourceRegistry) Add(url, title string, typ model.SourceType) bool {
	if url == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[url]; dup {
		r.logger.Debug("duplicate source dropped", zap.String("url", url))
		return false
	}
	r.seen[url] = struct{}{}
	r.sources = append(r.sources, model.Source{
		URL:          url,
		Title:        title,
		Type:         typ,
		DiscoveredAt: r.now().UTC(),
	})
	return true
}

// Sources returns a copy of the discovered sources in discovery order
func (r *SourceRegistry) Sources() []model.Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Len returns the number of distinct sources discovered so far
func (r *SourceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}
