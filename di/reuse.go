package di

// ReuseKind identifies a lifetime/sharing policy for a registration.
type ReuseKind int

const (
	// Transient creates a new instance on every resolution. No
	// wrapping is applied to the produced expression.
	Transient ReuseKind = iota
	// SingletonReuse shares one instance for the lifetime of the root
	// container; child scopes (OpenScope) see the same instance.
	SingletonReuse
	// InCurrentScope shares one instance per container produced by
	// OpenScope (and the root container itself).
	InCurrentScope
	// InResolutionScope shares one instance across all dependencies
	// resolved as part of a single top-level Resolve call.
	InResolutionScope
)

// Reuse names a lifetime policy. The zero value is Transient.
type Reuse struct {
	Kind ReuseKind
}

// TransientReuse is the zero-value Reuse, spelled out for call sites that
// want to name it explicitly rather than pass a bare Reuse{}.
var TransientReuse = Reuse{Kind: Transient}

// Singleton reuse: one instance for the container's lifetime.
var Singleton = Reuse{Kind: SingletonReuse}

// ScopedReuse (InCurrentScope): one instance per container/scope.
var ScopedReuse = Reuse{Kind: InCurrentScope}

// ResolutionScopedReuse (InResolutionScope): one instance per top-level
// Resolve call.
var ResolutionScopedReuse = Reuse{Kind: InResolutionScope}
