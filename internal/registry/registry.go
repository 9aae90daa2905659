// Package registry provides the name-keyed factory tables behind pluggable
// adapters, metrics and validators. Each capability kind gets its own
// Registry instance, so names can never collide across kinds.
package registry

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is wrapped by Get/Resolve when no entry has the given name.
	ErrNotFound = errors.New("not registered")
	// ErrDuplicate is wrapped by Register when the name is taken and
	// overwrite was not requested.
	ErrDuplicate = errors.New("already registered")
)

// Factory builds one instance of a capability from its configuration.
type Factory[T any] func(cfg map[string]any) (T, error)

type entry[T any] struct {
	factory Factory[T]
	tags    []string
}

// Registry is a name-keyed factory table for one capability kind.
// Registration is expected to happen during process startup; the engine
// treats a registry as read-only for the duration of a run.
type Registry[T any] struct {
	kind string

	mu      sync.RWMutex
	entries map[string]entry[T]
}

// New creates an empty registry. kind names the capability ("adapter",
// "metric", ...) and only appears in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		entries: make(map[string]entry[T]),
	}
}

// Option configures a single registration.
type Option func(*regOpts)

type regOpts struct {
	overwrite bool
	tags      []string
}

// WithOverwrite makes Register replace an existing entry instead of failing.
// Intended for test environments where builtins are re-registered.
func WithOverwrite() Option {
	return func(o *regOpts) { o.overwrite = true }
}

// WithTags attaches tags used by List filtering.
func WithTags(tags ...string) Option {
	return func(o *regOpts) { o.tags = append(o.tags, tags...) }
}

// Register adds a named factory. It fails with ErrDuplicate when the name is
// already taken, unless WithOverwrite is given (last registration wins).
func (r *Registry[T]) Register(name string, factory Factory[T], opts ...Option) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s registry: empty name", r.kind)
	}
	if factory == nil {
		return fmt.Errorf("%s registry: nil factory for %q", r.kind, name)
	}

	var o regOpts
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists && !o.overwrite {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrDuplicate)
	}
	r.entries[name] = entry[T]{factory: factory, tags: o.tags}
	return nil
}

// MustRegister is Register that panics on error, for startup wiring.
func (r *Registry[T]) MustRegister(name string, factory Factory[T], opts ...Option) {
	if err := r.Register(name, factory, opts...); err != nil {
		panic(err)
	}
}

// Get returns the factory registered under name, or an error wrapping
// ErrNotFound that lists the available names.
func (r *Registry[T]) Get(name string) (Factory[T], error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %q: %w (available: %s)",
			r.kind, name, ErrNotFound, strings.Join(r.Names(), ", "))
	}
	return e.factory, nil
}

// Resolve looks up name and invokes its factory with cfg.
func (r *Registry[T]) Resolve(name string, cfg map[string]any) (T, error) {
	var zero T
	factory, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	v, err := factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("creating %s %q: %w", r.kind, name, err)
	}
	return v, nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns all registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Tags returns the tags attached to name, or nil when absent.
func (r *Registry[T]) Tags(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries[name].tags)
}

// List yields registered names in sorted order, restricted to entries
// carrying every given tag. The sequence is restartable: each range
// re-snapshots the registry.
func (r *Registry[T]) List(tags ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range r.Names() {
			if !r.hasTags(name, tags) {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

func (r *Registry[T]) hasTags(name string, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	have := r.Tags(name)
	for _, want := range tags {
		if !slices.Contains(have, want) {
			return false
		}
	}
	return true
}
