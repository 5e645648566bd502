package di

import (
	"sync"

	"github.com/google/uuid"
)

// Disposer is implemented by resolved instances that own resources which
// must be released on scope teardown.
type Disposer interface {
	Dispose() error
}

// Scope owns an id -> instance cache plus a disposal list. get_or_add
// guarantees at-most-one construction per id under contention. Dispose is
// idempotent; once disposed, further lookups fail with ScopeIsDisposed.
//
// Scope is also what backs Singleton (the root container's scope, shared
// with every child container produced by OpenScope) and
// InCurrentScope/InResolutionScope reuse (a scope private to one
// container, or to a single top-level Resolve call, respectively).
type Scope struct {
	id        string
	mu        sync.Mutex
	items     map[int64]any
	inflight  map[int64]chan struct{}
	disposers []Disposer
	disposed  bool
}

// newScope creates a scope. An empty name is replaced with a
// uuid.NewString() identity, mirroring how the pack's request-scoped
// container examples stamp an id onto every scope they open.
func newScope(name string) *Scope {
	if name == "" {
		name = uuid.NewString()
	}
	return &Scope{
		id:       name,
		items:    make(map[int64]any),
		inflight: make(map[int64]chan struct{}),
	}
}

// ID returns the scope's identity.
func (s *Scope) ID() string { return s.id }

// getOrAdd returns the cached instance for id, constructing it with
// create exactly once across concurrent callers. If create's value
// implements Disposer, it is tracked for Dispose.
func (s *Scope) getOrAdd(id int64, create func() (any, error)) (any, error) {
	for {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return nil, &ContainerError{Kind: ScopeIsDisposed, Message: "scope " + s.id + " is disposed"}
		}
		if v, ok := s.items[id]; ok {
			s.mu.Unlock()
			return v, nil
		}
		if ch, building := s.inflight[id]; building {
			s.mu.Unlock()
			<-ch
			continue
		}
		ch := make(chan struct{})
		s.inflight[id] = ch
		s.mu.Unlock()

		v, err := create()

		s.mu.Lock()
		delete(s.inflight, id)
		if err == nil {
			s.items[id] = v
			if d, ok := v.(Disposer); ok {
				s.disposers = append(s.disposers, d)
			}
		}
		s.mu.Unlock()
		close(ch)
		return v, err
	}
}

// Dispose releases every disposable instance this scope produced, in
// registration order, then marks the scope disposed. Calling Dispose more
// than once is a no-op after the first call.
func (s *Scope) Dispose() []error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	disposers := s.disposers
	s.disposers = nil
	s.mu.Unlock()

	var errs []error
	for _, d := range disposers {
		if err := d.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// IsDisposed reports whether Dispose has already run.
func (s *Scope) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// resolutionScopeHolder lazily allocates the per-top-level-resolution
// scope that InResolutionScope reuse shares across one Resolve call's
// nested dependencies. Initial value is nil; init is idempotent.
type resolutionScopeHolder struct {
	scope *Scope
}

func (h *resolutionScopeHolder) getOrInit() *Scope {
	if h.scope == nil {
		h.scope = newScope("")
	}
	return h.scope
}
