package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/mod/semver"
)

var (
	// ErrDuplicate is returned when an (id, version) pair is registered
	// twice outside development mode.
	ErrDuplicate = errors.New("manifest already registered")

	// ErrFrozen is returned by Register after Freeze.
	ErrFrozen = errors.New("registry is frozen")
)

// TypeInfo summarises one registered question type.
type TypeInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LatestVersion string `json:"latestVersion"`
}

// Options configures a Registry.
type Options struct {
	// DevMode lets a duplicate registration overwrite the existing manifest
	// with a warning, for hot-reload while authoring.
	DevMode bool

	Logger *slog.Logger
}

// table is an immutable snapshot of the registry contents.
type table struct {
	byKey  map[string]*Manifest
	latest map[string]string // id -> canonical version
}

// Registry maps (typeId, version) to manifests. Writes are serialised by a
// mutex and published as a new immutable table; reads never lock.
type Registry struct {
	mu     sync.Mutex
	cur    atomic.Pointer[table]
	frozen atomic.Bool
	dev    bool
	log    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{dev: opts.DevMode, log: logger}
	r.cur.Store(&table{byKey: map[string]*Manifest{}, latest: map[string]string{}})
	return r
}

// Register adds a copy of m with its version canonicalised. The caller's
// manifest is never modified.
func (r *Registry) Register(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("register: nil manifest")
	}
	if err := m.validate(); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	v, err := CanonicalVersion(m.Version)
	if err != nil {
		return fmt.Errorf("register %q: %w", m.ID, err)
	}
	cp := *m
	m = &cp
	m.Version = v
	if m.Name == "" {
		m.Name = m.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("register %s: %w", m.Key(), ErrFrozen)
	}

	old := r.cur.Load()
	if _, exists := old.byKey[m.Key()]; exists {
		if !r.dev {
			return fmt.Errorf("register %s: %w", m.Key(), ErrDuplicate)
		}
		r.log.Warn("overwriting registered manifest", "type", m.ID, "version", m.Version)
	}

	next := &table{byKey: maps.Clone(old.byKey), latest: maps.Clone(old.latest)}
	next.byKey[m.Key()] = m
	if cur, ok := next.latest[m.ID]; !ok || semver.Compare(v, cur) > 0 {
		next.latest[m.ID] = v
	}
	r.cur.Store(next)

	r.log.Info("registered question type", "type", m.ID, "version", m.Version, "latest", next.latest[m.ID])
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(m *Manifest) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Get returns the manifest for id at version. An empty version resolves to
// the latest registered version.
func (r *Registry) Get(id, version string) (*Manifest, bool) {
	t := r.cur.Load()
	if version == "" {
		latest, ok := t.latest[id]
		if !ok {
			return nil, false
		}
		version = latest
	} else {
		v, err := CanonicalVersion(version)
		if err != nil {
			return nil, false
		}
		version = v
	}
	m, ok := t.byKey[id+"@"+version]
	return m, ok
}

// ListTypes returns every registered type with its latest version, sorted by id.
func (r *Registry) ListTypes() []TypeInfo {
	t := r.cur.Load()
	out := make([]TypeInfo, 0, len(t.latest))
	for id, v := range t.latest {
		out = append(out, TypeInfo{ID: id, Name: t.byKey[id+"@"+v].Name, LatestVersion: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Versions returns every registered version of id in ascending order.
func (r *Registry) Versions(id string) []string {
	t := r.cur.Load()
	var out []string
	for _, m := range t.byKey {
		if m.ID == id {
			out = append(out, m.Version)
		}
	}
	semver.Sort(out)
	return out
}
