package di

import (
	"reflect"
	"strings"
)

// DependencyKind identifies how a child Request's value is consumed by
// its parent: as a constructor parameter, a settable property, or a
// settable field.
type DependencyKind int

const (
	DepNone DependencyKind = iota
	DepCtorParam
	DepProperty
	DepField
)

// Dependency describes the member a child Request fills.
type Dependency struct {
	Kind DependencyKind
	Name string
}

// Request is an immutable frame in the in-flight resolution chain. It
// pins down the service being resolved, the factory that will build it
// (once known), and enough ancestry to detect recursive dependencies and
// to let decorators and wrappers reason about their enclosing request.
type Request struct {
	parent *Request

	ServiceType reflect.Type
	ServiceKey  ServiceKey
	Dependency  Dependency

	FactoryID          int64
	FactoryKind        FactoryKind
	SetupKind          SetupKind
	ImplementationType reflect.Type
	Metadata           any

	// decoratedFactoryID is stamped by make_decorated so that a decorator
	// whose own body resolves the same service does not get decorated
	// again inside its own chain.
	decoratedFactoryID int64

	// isWrapperFrame marks a frame pushed by PushPreservingParentKey so
	// NonWrapperParent can skip over it.
	isWrapperFrame bool
}

// NewRequest starts a fresh root request for a top-level Resolve call.
func NewRequest(serviceType reflect.Type, key ServiceKey) *Request {
	return &Request{ServiceType: serviceType, ServiceKey: key}
}

// Push returns a child request for a dependency with a fresh service key
// (the common case: a constructor parameter or field resolves its own
// type/key, unrelated to the parent's key).
func (r *Request) Push(serviceType reflect.Type, key ServiceKey, dep Dependency) *Request {
	return &Request{parent: r, ServiceType: serviceType, ServiceKey: key, Dependency: dep}
}

// PushPreservingParentKey returns a child request that inherits the
// parent's service key. buildReflectionExpressionWithArgs uses this for
// the default-keyed constructor parameters of a Reflection factory whose
// Setup is Decorator or GenericWrapper, so those parameters resolve under
// the parent's key.
func (r *Request) PushPreservingParentKey(serviceType reflect.Type, dep Dependency) *Request {
	return &Request{parent: r, ServiceType: serviceType, ServiceKey: r.ServiceKey, Dependency: dep, isWrapperFrame: true}
}

// ResolveTo pins this request's factory identity and checks the ancestor
// chain for a repeated (factory_id, Service) pair, returning
// RecursiveDependencyDetected if found. It returns the (possibly copied)
// request with factory fields filled in.
func (r *Request) ResolveTo(f *Factory, fmtr ErrorFormatter) (*Request, error) {
	if f.Setup.Kind == SetupService {
		for p := r.parent; p != nil; p = p.parent {
			if p.SetupKind == SetupService && p.FactoryID == f.ID {
				return nil, newErr(fmtr, RecursiveDependencyDetected, r.chainString(f))
			}
		}
	}
	next := *r
	next.FactoryID = f.ID
	next.FactoryKind = f.Kind
	next.SetupKind = f.Setup.Kind
	next.ImplementationType = f.ImplementationType
	next.Metadata = f.Setup.Metadata
	return &next, nil
}

// MakeDecorated stamps decoratedFactoryID so that resolving the same
// service from within its own decorator chain does not loop.
func (r *Request) MakeDecorated() *Request {
	next := *r
	next.decoratedFactoryID = r.FactoryID
	return &next
}

// IsAlreadyDecorated reports whether this request (or its factory id) has
// already been marked decorated.
func (r *Request) IsAlreadyDecorated() bool {
	return r.decoratedFactoryID != 0 && r.decoratedFactoryID == r.FactoryID
}

// NonWrapperParent walks up past frames pushed by PushPreservingParentKey
// to the nearest ancestor that is an ordinary service request. The
// enumerable/array rule uses this (through excludedFactoryID) for
// composite-pattern filtering: if that ancestor's service type equals the
// element type, its factory id is excluded from the enumeration.
func (r *Request) NonWrapperParent() *Request {
	p := r.parent
	for p != nil && p.isWrapperFrame {
		p = p.parent
	}
	return p
}

// Parent exposes the ancestor frame (nil for the root request).
func (r *Request) Parent() *Request { return r.parent }

func (r *Request) chainString(culprit *Factory) string {
	var sb strings.Builder
	chain := []*Request{r}
	for p := r.parent; p != nil; p = p.parent {
		chain = append(chain, p)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if i != len(chain)-1 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(chain[i].ServiceType.String())
	}
	sb.WriteString(" -> ")
	sb.WriteString(typeName(culprit.ImplementationType))
	return sb.String()
}

// String renders the request chain root-to-here, for diagnostics.
func (r *Request) String() string {
	var parts []string
	for p := r; p != nil; p = p.parent {
		s := p.ServiceType.String()
		if p.ServiceKey.Kind != KeyDefault {
			s += "{" + p.ServiceKey.String() + "}"
		}
		parts = append([]string{s}, parts...)
	}
	return strings.Join(parts, " -> ")
}
