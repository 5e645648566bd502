package di

import "reflect"

// OpenGenericBind specializes an open-generic registration for one
// concrete, closed service type. It is handed the exact reflect.Type the
// caller resolved (e.g. reflect.TypeOf((*Repository[int])(nil)).Elem()),
// obtained from Go's own generic instantiation at the call site — Go
// reflection cannot manufacture that Type from a name or from a bare type
// argument at runtime, so the bind function must already know, at
// compile time, every closed type it is prepared to serve. Returning a
// nil Factory (with a nil error) means "not one of mine"; the caller
// falls through to the unregistered-service rules and, failing those,
// UnableToResolve. A non-nil error surfaces as
// UnableToFindOpenGenericImplTypeArg.
type OpenGenericBind func(closedType reflect.Type) (*Factory, error)

// GenericCase is one closed instantiation a RegisterOpenGeneric call
// knows how to build. Construct these with RegisterGenericCase, which
// captures TService/TImpl generically at the call site the way the
// registrant's own code already knows which closed types it uses.
type GenericCase struct {
	Type  reflect.Type
	Build func() (*Factory, error)
}

// RegisterGenericCase captures one closed instantiation of an
// open-generic family. TService is usually the same type as TImpl
// (generic containers are commonly registered under their own concrete
// generic type, e.g. Repository[int]), but a distinct interface works
// too as long as TImpl implements it for this instantiation.
func RegisterGenericCase[TService any, TImpl any](ctor any, reuse Reuse, setup Setup, injectMembers bool) GenericCase {
	var zs TService
	var zi TImpl
	svcType := reflect.TypeOf(&zs).Elem()
	implType := reflect.TypeOf(&zi).Elem()
	ctorVal := reflect.ValueOf(ctor)
	return GenericCase{
		Type: svcType,
		Build: func() (*Factory, error) {
			return NewReflectionFactory(implType, ctorVal, reuse, setup, injectMembers), nil
		},
	}
}

// NewOpenGenericBind builds an OpenGenericBind from a fixed set of known
// cases, matched by exact reflect.Type equality.
func NewOpenGenericBind(cases ...GenericCase) OpenGenericBind {
	byType := make(map[reflect.Type]func() (*Factory, error), len(cases))
	for _, c := range cases {
		byType[c.Type] = c.Build
	}
	return func(closedType reflect.Type) (*Factory, error) {
		build, ok := byType[closedType]
		if !ok {
			return nil, nil
		}
		return build()
	}
}

// FamilyNameOf returns the open-generic family name a closed type t
// belongs to — the name RegisterOpenGeneric expects, and the name every
// other closed instantiation of the same generic definition will also
// report. Callers use this instead of hand-writing the family string so
// it can never drift from how the container itself computes it.
func FamilyNameOf(t reflect.Type) string { return familyName(t) }

// openGenericEntry is what the registry stores per family name: a
// Provider factory whose perRequest calls bind with the requested closed
// type, memoizing the result exactly like any other Provider
// specialization (see Container.getOrAddFactory).
type openGenericEntry struct {
	family string
	bind   OpenGenericBind
}

// RegisterOpenGeneric registers bind under family, an arbitrary name the
// registrant chooses to identify the open-generic service (conventionally
// the generic base name, e.g. "Repository" for Repository[T]).
// Resolving a closed type whose familyName(T) matches consults bind; a
// non-nil result is registered under that exact closed type and the
// request's key so later resolutions of the same closed type skip bind entirely —
// this is the memoization spec.md requires ("resolving Svc<A> twice uses
// the same closed-form Factory").
func RegisterOpenGeneric(c *Container, family string, bind OpenGenericBind, opts ...RegistrationOption) {
	reg := &registrationOptions{}
	for _, opt := range opts {
		opt(reg)
	}

	provider := NewProviderFactory(ServiceSetup(), func(req *Request, cc *Container) (*Factory, bool, error) {
		f, err := bind(req.ServiceType)
		if err != nil {
			return nil, false, err
		}
		if f == nil {
			return nil, false, nil
		}
		if reg.name != "" {
			f.Setup.Metadata = reg.name
		}
		return f, true, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openGenerics == nil {
		c.openGenerics = make(map[string]*openGenericEntry)
	}
	c.openGenerics[family] = &openGenericEntry{family: family, bind: func(t reflect.Type) (*Factory, error) {
		f, _, err := provider.perRequest(&Request{ServiceType: t}, c)
		return f, err
	}}
}
