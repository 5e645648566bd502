package di

import "reflect"

// Register adds a constructor for T under the service type T itself: ctor
// is a Go func value (func(...deps) T or func(...deps) (T, error)) whose
// parameters are resolved recursively from c.
func Register[T any](c *Container, ctor any, reuse Reuse, opts ...RegistrationOption) error {
	serviceType := typeOf[T]()
	ro := &registrationOptions{}
	for _, o := range opts {
		o(ro)
	}
	f := NewReflectionFactory(serviceType, reflect.ValueOf(ctor), reuse, ServiceSetup(), ro.injectMembers)
	return c.Register(serviceType, f, opts...)
}

// RegisterType adds a constructor whose return type TImpl is registered
// under the service type TIface. TImpl must be assignable to TIface and,
// unless it is TIface itself, must not be abstract; Register rejects the call immediately if
// either check fails, rather than deferring to a panic at first
// resolution.
func RegisterType[TIface any, TImpl any](c *Container, ctor any, reuse Reuse, opts ...RegistrationOption) error {
	ifaceType := typeOf[TIface]()
	implType := typeOf[TImpl]()
	ro := &registrationOptions{}
	for _, o := range opts {
		o(ro)
	}
	f := NewReflectionFactory(implType, reflect.ValueOf(ctor), reuse, ServiceSetup(), ro.injectMembers)
	return c.Register(ifaceType, f, opts...)
}

// RegisterInstance registers an already-constructed value under T,
// wiring it through the constant table so every resolution indexes the
// same ConstantExpr slot rather than re-running any construction logic.
func RegisterInstance[T any](c *Container, instance T, opts ...RegistrationOption) error {
	serviceType := typeOf[T]()
	idx := c.addConstant(instance)
	f := NewDelegateFactory(serviceType, func(req *Request, cc *Container) (Expression, error) {
		return &ConstantExpr{Index: idx, Typ: serviceType}, nil
	}, Singleton, ServiceSetup())
	return c.Register(serviceType, f, opts...)
}

// RegisterDelegate registers a user function that builds T directly from
// the container, bypassing constructor-parameter reflection entirely —
// the escape hatch for construction logic reflection can't express.
func RegisterDelegate[T any](c *Container, fn func(*Container) (T, error), reuse Reuse, opts ...RegistrationOption) error {
	serviceType := typeOf[T]()
	f := NewDelegateFactory(serviceType, func(req *Request, cc *Container) (Expression, error) {
		return &RawExpr{Typ: serviceType, Fn: func(ctx *ExecContext) (any, error) {
			return fn(cc)
		}}, nil
	}, reuse, ServiceSetup())
	return c.Register(serviceType, f, opts...)
}

// RegisterAssignableTypes registers one shared Factory for implType under
// every serviceType implType can be assigned to, filtering out the ones
// it isn't. Because every registration shares the same Factory (and
// therefore the same factory id), a Singleton/scoped reuse policy still
// produces exactly one instance no matter which interface it is resolved
// through — Go reflection cannot enumerate "every interface implType
// satisfies" the way a single runtime type query could in a more
// dynamic language, so the candidate serviceTypes must be supplied
// explicitly.
func RegisterAssignableTypes(c *Container, implType reflect.Type, ctor any, reuse Reuse, serviceTypes []reflect.Type, opts ...RegistrationOption) error {
	ro := &registrationOptions{}
	for _, o := range opts {
		o(ro)
	}
	shared := NewReflectionFactory(implType, reflect.ValueOf(ctor), reuse, ServiceSetup(), ro.injectMembers)
	registered := false
	for _, st := range serviceTypes {
		if !implType.AssignableTo(st) {
			continue
		}
		if err := c.Register(st, shared, opts...); err != nil {
			return err
		}
		registered = true
	}
	if !registered {
		return newErr(c.errFormatter(), ExpectedImplAssignableToService, typeName(implType))
	}
	return nil
}

// RegisterMany is RegisterAssignableTypes under the name the spec uses
// for "register this implementation under all of its service types".
func RegisterMany(c *Container, implType reflect.Type, ctor any, reuse Reuse, serviceTypes []reflect.Type, opts ...RegistrationOption) error {
	return RegisterAssignableTypes(c, implType, ctor, reuse, serviceTypes, opts...)
}

// RegisterDecorator registers ctor as a decorator for T: one of its
// constructor parameters must be of type T (the instance being
// decorated, substituted in directly rather than re-resolved), and it
// must return a T. isApplicable, if non-nil, restricts which requests the
// decorator applies to; a nil isApplicable decorates every resolution of
// T. Decorators compose most-recently-registered outermost.
func RegisterDecorator[T any](c *Container, ctor any, isApplicable func(*Request) bool) error {
	serviceType := typeOf[T]()
	f := NewReflectionFactory(serviceType, reflect.ValueOf(ctor), Reuse{Kind: Transient}, DecoratorSetup(isApplicable), false)
	return c.RegisterDecorator(serviceType, f)
}

func castOrZero[T any](v any, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Resolve resolves the unkeyed registration for T.
func Resolve[T any](c *Container) (T, error) {
	v, err := c.ResolveDefault(typeOf[T]())
	return castOrZero[T](v, err)
}

// ResolveNamed resolves T under a named registration.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	v, err := c.ResolveKeyed(typeOf[T](), NamedKey(name))
	return castOrZero[T](v, err)
}

// ResolveIndexed resolves the index-th default registration of T.
func ResolveIndexed[T any](c *Container, index int) (T, error) {
	v, err := c.ResolveKeyed(typeOf[T](), IndexKey(index))
	return castOrZero[T](v, err)
}

// MustResolve resolves T, panicking on error. Reserved for
// initialization code (main, test setup) where an unresolved dependency
// is a programming error, not a runtime condition to recover from.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// MustResolveNamed is MustResolve for a named registration.
func MustResolveNamed[T any](c *Container, name string) T {
	v, err := ResolveNamed[T](c, name)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether T has an unkeyed registration.
func Has[T any](c *Container) bool {
	return c.IsRegistered(typeOf[T](), DefaultKey())
}

// HasNamed reports whether T has a registration under name.
func HasNamed[T any](c *Container, name string) bool {
	return c.IsRegistered(typeOf[T](), NamedKey(name))
}

// ResolveInScope opens a fresh scope, runs fn against it, and closes the
// scope (disposing anything InCurrentScope-reused that fn caused to be
// constructed) before returning — the request-scoped-container pattern
// the pack's HTTP middleware examples build by hand, generalized here to
// any unit of work.
func ResolveInScope[T any](c *Container, fn func(scope *Container) (T, error)) (T, error) {
	scoped := c.OpenScope("")
	defer scoped.Close()
	return fn(scoped)
}

// ResolvePropertiesAndFields populates target's exported `di:"name"` (or
// `di:""` for the default key) tagged fields from c. target must be a
// pointer to a struct. Unlike constructor injection, this acts on an
// already-constructed value — for wiring dependencies into types whose
// construction this container does not own (framework-instantiated
// controllers, test fixtures).
func ResolvePropertiesAndFields(c *Container, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return newErr(c.errFormatter(), ExpectedNonAbstractImplType, typeName(rv.Type()))
	}
	structVal := rv.Elem()
	structType := structVal.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		tag, ok := field.Tag.Lookup("di")
		if !ok || !field.IsExported() {
			continue
		}
		key := DefaultKey()
		if tag != "" {
			key = NamedKey(tag)
		}
		v, err := c.ResolveKeyed(field.Type, key)
		if err != nil {
			return err
		}
		structVal.Field(i).Set(reflect.ValueOf(v))
	}
	return nil
}
