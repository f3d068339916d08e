package timeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/chronicle/internal/cache"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/metrics"
)

// DefaultMaxCacheSize bounds the snapshot memo when no option overrides it.
const DefaultMaxCacheSize = 1000

// DefaultTerminalValues end an entity's existence for ExistsAt.
var DefaultTerminalValues = []string{"dead", "deleted"}

// IndexPolicy controls when a cached per-entity event index is rebuilt.
type IndexPolicy int

const (
	// IndexRevalidate fingerprints the entity's events on every call and
	// rebuilds the index (dropping the entity's snapshots) when they change.
	IndexRevalidate IndexPolicy = iota

	// IndexPinned keeps an entity's first index until ClearCache, even if
	// later calls supply a different event collection.
	IndexPinned
)

// String implements fmt.Stringer.
func (p IndexPolicy) String() string {
	switch p {
	case IndexRevalidate:
		return "revalidate"
	case IndexPinned:
		return "pinned"
	default:
		return fmt.Sprintf("IndexPolicy(%d)", int(p))
	}
}

// ParseIndexPolicy parses "revalidate" or "pinned".
func ParseIndexPolicy(s string) (IndexPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "revalidate":
		return IndexRevalidate, nil
	case "pinned":
		return IndexPinned, nil
	default:
		return 0, fmt.Errorf("unknown index policy %q: must be revalidate or pinned", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *IndexPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseIndexPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// CacheStats reports cache occupancy.
type CacheStats struct {
	EventIndexCacheSize int `json:"event_index_cache_size"`
	SnapshotCacheSize   int `json:"snapshot_cache_size"`
	MaxCacheSize        int `json:"max_cache_size"`
}

type snapshotKey struct {
	entityID  string
	timestamp int64
}

// cachedSnapshot remembers the fingerprint of the events and initial values
// it was folded from, so a snapshot is never served against different inputs.
type cachedSnapshot struct {
	snapshot    ir.Snapshot
	fingerprint uint64
}

// entityIndex holds one entity's events sorted ascending by timestamp,
// with times[i] == events[i].Timestamp for binary search.
type entityIndex struct {
	events      []ir.Event
	times       []int64
	fingerprint uint64
}

// cutoff returns the number of indexed events with timestamp <= ts.
func (idx *entityIndex) cutoff(ts int64) int {
	n, found := slices.BinarySearch(idx.times, ts)
	if !found {
		return n
	}
	// BinarySearch lands on the first equal element; equal timestamps are
	// included, so advance past all of them.
	for n < len(idx.times) && idx.times[n] == ts {
		n++
	}
	return n
}

// lowerBound returns the index of the first event with timestamp >= ts.
func (idx *entityIndex) lowerBound(ts int64) int {
	n, _ := slices.BinarySearch(idx.times, ts)
	return n
}

// Reconstructor computes entity snapshots at arbitrary timestamps.
//
// Thread-safety: a single mutex guards the index map and the snapshot memo,
// including its eviction ring. Folding and sorting happen outside the lock;
// two goroutines computing the same key concurrently is harmless because
// the result is deterministic.
type Reconstructor struct {
	mu        sync.Mutex
	indexes   map[string]*entityIndex
	snapshots *cache.FIFO[snapshotKey, cachedSnapshot]

	maxCacheSize   int
	policy         IndexPolicy
	parallelism    int
	terminalValues []string
	terminalAttrs  []string // empty: any attribute
	logger         *slog.Logger
	metrics        *metrics.Recorder
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithMaxCacheSize bounds the snapshot memo.
//
// Default: 1000 (DefaultMaxCacheSize). Values below 1 are treated as 1.
func WithMaxCacheSize(n int) Option {
	return func(r *Reconstructor) {
		r.maxCacheSize = max(n, 1)
	}
}

// WithIndexPolicy selects when per-entity indexes are rebuilt.
//
// Default: IndexRevalidate.
func WithIndexPolicy(p IndexPolicy) Option {
	return func(r *Reconstructor) {
		r.policy = p
	}
}

// WithParallelism sets how many entities StatesAt and WarmUp process at
// once. With n > 1 the snapshot memo's eviction order depends on
// scheduling.
//
// Default: 1.
func WithParallelism(n int) Option {
	return func(r *Reconstructor) {
		r.parallelism = max(n, 1)
	}
}

// WithTerminalValues replaces the values that make ExistsAt report false.
//
// Default: "dead", "deleted".
func WithTerminalValues(values ...string) Option {
	return func(r *Reconstructor) {
		r.terminalValues = slices.Clone(values)
	}
}

// WithTerminalAttributes restricts the ExistsAt terminal check to events
// on the named attributes (matched by attribute name or id). Without this
// option a terminal value on any attribute ends the entity.
func WithTerminalAttributes(names ...string) Option {
	return func(r *Reconstructor) {
		r.terminalAttrs = slices.Clone(names)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconstructor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Reconstructor) {
		r.metrics = m
	}
}

// New creates a Reconstructor.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{
		indexes:        make(map[string]*entityIndex),
		maxCacheSize:   DefaultMaxCacheSize,
		policy:         IndexRevalidate,
		parallelism:    1,
		terminalValues: slices.Clone(DefaultTerminalValues),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snapshots = cache.NewFIFO[snapshotKey, cachedSnapshot](r.maxCacheSize)
	return r
}

// IndexEvents returns entityID's events sorted ascending by timestamp.
// Events with equal timestamps keep their relative order from events.
func (r *Reconstructor) IndexEvents(entityID string, events []ir.Event) []ir.Event {
	idx := r.index(entityID, events)
	return slices.Clone(idx.events)
}

// ClearCache drops every cached index and snapshot.
func (r *Reconstructor) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.indexes)
	r.snapshots.Clear()
}

// CacheStats reports current cache occupancy.
func (r *Reconstructor) CacheStats() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return CacheStats{
		EventIndexCacheSize: len(r.indexes),
		SnapshotCacheSize:   r.snapshots.Len(),
		MaxCacheSize:        r.maxCacheSize,
	}
}

// index returns the cached index for entityID, building it when absent or,
// under IndexRevalidate, when the entity's events changed.
func (r *Reconstructor) index(entityID string, events []ir.Event) *entityIndex {
	if r.policy == IndexPinned {
		r.mu.Lock()
		idx, ok := r.indexes[entityID]
		r.mu.Unlock()
		if ok {
			return idx
		}
	}

	filtered := filterEntity(entityID, events)
	fp := fingerprint(filtered)

	r.mu.Lock()
	cur, ok := r.indexes[entityID]
	r.mu.Unlock()
	if ok && (r.policy == IndexPinned || cur.fingerprint == fp) {
		return cur
	}

	idx := buildIndex(filtered, fp)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have installed an index meanwhile.
	if cur, ok := r.indexes[entityID]; ok {
		if r.policy == IndexPinned || cur.fingerprint == fp {
			return cur
		}
		dropped := r.snapshots.RemoveFunc(func(k snapshotKey) bool {
			return k.entityID == entityID
		})
		r.logger.Debug("event index stale, rebuilt",
			"entity_id", entityID,
			"events", len(idx.events),
			"snapshots_dropped", dropped)
	}
	r.indexes[entityID] = idx
	r.metrics.IndexBuilt()
	return idx
}

// filterEntity returns entityID's events in their supplied order.
func filterEntity(entityID string, events []ir.Event) []ir.Event {
	var out []ir.Event
	for _, e := range events {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

// buildIndex stable-sorts filtered (which it owns) by timestamp.
func buildIndex(filtered []ir.Event, fp uint64) *entityIndex {
	slices.SortStableFunc(filtered, func(a, b ir.Event) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	times := make([]int64, len(filtered))
	for i, e := range filtered {
		times[i] = e.Timestamp
	}
	return &entityIndex{events: filtered, times: times, fingerprint: fp}
}

func (r *Reconstructor) lookupSnapshot(key snapshotKey, fp uint64) (ir.Snapshot, bool) {
	r.mu.Lock()
	cached, ok := r.snapshots.Get(key)
	r.mu.Unlock()

	if !ok || cached.fingerprint != fp {
		r.metrics.CacheMiss()
		return ir.Snapshot{}, false
	}
	r.metrics.CacheHit()
	return cached.snapshot.Clone(), true
}

func (r *Reconstructor) storeSnapshot(key snapshotKey, fp uint64, s ir.Snapshot) {
	r.mu.Lock()
	evicted := r.snapshots.Put(key, cachedSnapshot{snapshot: s.Clone(), fingerprint: fp})
	r.mu.Unlock()

	if evicted {
		r.metrics.CacheEviction()
	}
}
