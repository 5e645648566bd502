package di

import (
	"reflect"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func typeOf[T any]() reflect.Type {
	var z T
	return reflect.TypeOf(&z).Elem()
}

func firstKey(keys []ServiceKey) ServiceKey {
	if len(keys) > 0 {
		return keys[0]
	}
	return DefaultKey()
}

// excludedFactoryID implements composite-pattern safety for the
// enumerable/array rule: if req's nearest non-wrapper
// ancestor is itself a registration of elemType, that ancestor's
// factory id must be excluded from the enumeration, or a composite
// depending on []T of its own service type would resolve itself and
// recurse.
func excludedFactoryID(req *Request, elemType reflect.Type) int64 {
	if req == nil {
		return 0
	}
	parent := req.NonWrapperParent()
	if parent != nil && parent.ServiceType == elemType {
		return parent.FactoryID
	}
	return 0
}

// registerBuiltinWrappers installs the one built-in wrapper that needs a
// registry-level hook: the enumerable/array unregistered-service rule.
// Func, Lazy, Many, Meta, and DebugExpression are plain generic functions
// below — Go's static type parameters already give them everything the
// original's runtime generic-type matching needed, so they call straight
// into the container rather than registering themselves as factories.
func registerBuiltinWrappers(c *Container) {
	c.rules.UnregisteredServices = append(c.rules.UnregisteredServices, arrayUnregisteredServiceRule)
}

// arrayUnregisteredServiceRule synthesizes a []T factory the first time
// []T is resolved with no explicit registration, snapshotting every
// currently-registered T into a NewArrayExpr (less a composite ancestor
// of the same element type; see excludedFactoryID). Because getOrAddFactory
// memoizes the result under ([]T, key), later resolutions reuse the same
// factory and therefore the same frozen snapshot — the "one-time
// snapshot" semantics that distinguish this from ResolveMany's live
// rescan.
func arrayUnregisteredServiceRule(req *Request, c *Container) *Factory {
	if req.ServiceType.Kind() != reflect.Slice {
		return nil
	}
	elemType := req.ServiceType.Elem()

	c.mu.RLock()
	entry, ok := c.registrations[elemType]
	var factories []*Factory
	var keys []ServiceKey
	if ok {
		for i, f := range entry.defaultFactories {
			if f != nil {
				factories = append(factories, f)
				keys = append(keys, IndexKey(i))
			}
		}
		for name, f := range entry.namedFactories {
			factories = append(factories, f)
			keys = append(keys, NamedKey(name))
		}
	}
	c.mu.RUnlock()

	if len(factories) == 0 {
		return nil
	}

	c.logger.Debug("enumerable wrapper expanded",
		zap.String("elem_type", typeName(elemType)), zap.Int("count", len(factories)))

	sliceType := req.ServiceType
	return NewDelegateFactory(sliceType, func(innerReq *Request, cc *Container) (Expression, error) {
		excluded := excludedFactoryID(innerReq, elemType)
		elems := make([]Expression, 0, len(factories))
		for i := range factories {
			if excluded != 0 && factories[i].ID == excluded {
				continue
			}
			childReq := innerReq.Push(elemType, keys[i], Dependency{Kind: DepNone})
			expr, err := cc.resolveExpression(childReq)
			if err != nil {
				return nil, newErr(cc.errFormatter(), UnableToResolveEnumerableItems, typeName(elemType), err.Error())
			}
			elems = append(elems, expr)
		}
		return &NewArrayExpr{ElemType: elemType, Elems: elems}, nil
	}, Reuse{Kind: Transient}, WrapperSetup())
}

// ResolveFunc returns a deferred constructor for T: calling it resolves T
// again each time, honoring T's Reuse policy exactly like any other
// resolution (a Transient T is rebuilt every call; a Singleton or scoped
// T is constructed once and then returned from its scope's cache).
func ResolveFunc[T any](c *Container, key ...ServiceKey) func() (T, error) {
	serviceType := typeOf[T]()
	k := firstKey(key)
	c.logger.Debug("func wrapper expanded", zap.String("service_type", typeName(serviceType)))
	return func() (T, error) {
		v, err := c.resolveValue(serviceType, k)
		if err != nil {
			var zero T
			return zero, err
		}
		return v.(T), nil
	}
}

// ResolveFuncWithArg1 builds a func(TArg1) (T, error): resolving T's
// constructor parameters normally except for the single parameter whose
// type matches TArg1, which is supplied by the caller at call time
// instead of being resolved from the container (spec's
// "factory-with-args"). Returns UnsupportedFuncWithArgs if T is not a
// Reflection-kind registration, and SomeFuncParamsAreUnused if no
// constructor parameter accepts a TArg1.
func ResolveFuncWithArg1[TArg1 any, T any](c *Container, key ...ServiceKey) (func(TArg1) (T, error), error) {
	serviceType := typeOf[T]()
	argType := typeOf[TArg1]()
	k := firstKey(key)

	fn, err := buildFuncWithArgs(c, serviceType, k, []reflect.Type{argType})
	if err != nil {
		return nil, err
	}
	return func(a1 TArg1) (T, error) {
		out := fn([]reflect.Value{reflect.ValueOf(a1)})
		if !out[1].IsNil() {
			var zero T
			return zero, out[1].Interface().(error)
		}
		return out[0].Interface().(T), nil
	}, nil
}

// ResolveFuncWithArg2 is ResolveFuncWithArg1 generalized to two call-time
// arguments.
func ResolveFuncWithArg2[TArg1, TArg2 any, T any](c *Container, key ...ServiceKey) (func(TArg1, TArg2) (T, error), error) {
	serviceType := typeOf[T]()
	argTypes := []reflect.Type{typeOf[TArg1](), typeOf[TArg2]()}
	k := firstKey(key)

	fn, err := buildFuncWithArgs(c, serviceType, k, argTypes)
	if err != nil {
		return nil, err
	}
	return func(a1 TArg1, a2 TArg2) (T, error) {
		out := fn([]reflect.Value{reflect.ValueOf(a1), reflect.ValueOf(a2)})
		if !out[1].IsNil() {
			var zero T
			return zero, out[1].Interface().(error)
		}
		return out[0].Interface().(T), nil
	}, nil
}

// buildFuncWithArgs is the shared machinery behind ResolveFuncWithArgN:
// pin a request for serviceType, build its reflection expression with
// argTypes bound as call-time ArgRefExprs, fold in decorators, compile it
// into a FuncWrapperExpr, and evaluate that once to obtain the concrete
// Go func value (as a raw []reflect.Value -> []reflect.Value caller so
// each ResolveFuncWithArgN can reassemble its own typed signature).
func buildFuncWithArgs(c *Container, serviceType reflect.Type, key ServiceKey, argTypes []reflect.Type) (func([]reflect.Value) []reflect.Value, error) {
	req := NewRequest(serviceType, key)
	factory, err := c.getOrAddFactory(req)
	if err != nil {
		return nil, err
	}
	pinned, err := req.ResolveTo(factory, c.errFormatter())
	if err != nil {
		return nil, err
	}
	if factory.Kind != FactoryReflection {
		return nil, newErr(c.errFormatter(), UnsupportedFuncWithArgs, typeName(serviceType))
	}

	c.logger.Debug("func-with-args wrapper expanded",
		zap.String("service_type", typeName(serviceType)), zap.Int("arg_count", len(argTypes)))

	inner, used, err := factory.buildReflectionExpressionWithArgs(pinned, c, argTypes)
	if err != nil {
		return nil, err
	}
	for _, u := range used {
		if !u {
			return nil, newErr(c.errFormatter(), SomeFuncParamsAreUnused, typeName(serviceType))
		}
	}

	decorated, err := c.applyDecorators(pinned, inner)
	if err != nil {
		return nil, err
	}

	out := append([]reflect.Type{}, argTypes...)
	funcType := reflect.FuncOf(out, []reflect.Type{serviceType, errorType}, false)
	wrapperExpr := &FuncWrapperExpr{FuncType: funcType, Inner: decorated}
	compiled := wrapperExpr.Compile()

	v, err := compiled(c.newExecContext())
	if err != nil {
		return nil, err
	}
	fnVal := reflect.ValueOf(v)
	return func(args []reflect.Value) []reflect.Value {
		return fnVal.Call(args)
	}, nil
}

// Lazy defers construction of a service until Value is first called,
// then caches the result (and any error) for every later call — the
// bridge between Func's "resolve again every time" and Singleton's
// "resolve exactly once for the container".
type Lazy[T any] struct {
	once    sync.Once
	value   T
	err     error
	resolve func() (T, error)
}

// ResolveLazy wraps ResolveFunc in a Lazy[T] handle.
func ResolveLazy[T any](c *Container, key ...ServiceKey) *Lazy[T] {
	c.logger.Debug("lazy wrapper expanded", zap.String("service_type", typeName(typeOf[T]())))
	return &Lazy[T]{resolve: ResolveFunc[T](c, key...)}
}

// Value returns the lazily-constructed instance, resolving it on the
// first call and memoizing the result (success or failure) thereafter.
func (l *Lazy[T]) Value() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.resolve()
	})
	return l.value, l.err
}

// ManyOf is a live handle over every current registration of T: each
// call to Resolve rescans the registry, so registrations added after the
// handle was obtained are visible on the next call (unlike the
// enumerable/array wrapper's one-time snapshot).
type ManyOf[T any] struct {
	c *Container
}

// ResolveMany returns a live handle over every registration of T.
func ResolveMany[T any](c *Container) *ManyOf[T] {
	return &ManyOf[T]{c: c}
}

// Resolve constructs and returns every currently-registered T: default
// registrations first, in index order, then named registrations in no
// defined order. No composite-parent filtering is applied; a T that
// depends on ManyOf[T] sees its own registration among the results. A
// single failing element is skipped rather than
// failing the whole call, matching the spec's "Many resolution never
// fails for a missing or broken individual item" posture.
func (m *ManyOf[T]) Resolve() []T {
	serviceType := typeOf[T]()
	c := m.c
	c.logger.Debug("many wrapper expanded", zap.String("service_type", typeName(serviceType)))

	c.mu.RLock()
	entry, ok := c.registrations[serviceType]
	var keys []ServiceKey
	if ok {
		for i, f := range entry.defaultFactories {
			if f != nil {
				keys = append(keys, IndexKey(i))
			}
		}
		for name := range entry.namedFactories {
			keys = append(keys, NamedKey(name))
		}
	}
	c.mu.RUnlock()

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v, err := c.resolveValue(serviceType, k)
		if err != nil {
			continue
		}
		out = append(out, v.(T))
	}
	return out
}

// ResolveMeta scans every registration of T for one whose registered
// metadata (see WithMetadata) is an M that match accepts, resolving and
// returning the first hit. A miss returns found=false with a nil error —
// per the spec's resolution of the metadata-matching open question, a
// metadata miss is not a resolution failure.
func ResolveMeta[T any, M any](c *Container, match func(M) bool) (value T, meta M, found bool, err error) {
	serviceType := typeOf[T]()
	c.logger.Debug("meta wrapper expanded", zap.String("service_type", typeName(serviceType)))

	c.mu.RLock()
	entry, ok := c.registrations[serviceType]
	type candidate struct {
		key ServiceKey
		f   *Factory
	}
	var candidates []candidate
	if ok {
		for i, f := range entry.defaultFactories {
			if f != nil {
				candidates = append(candidates, candidate{IndexKey(i), f})
			}
		}
		for name, f := range entry.namedFactories {
			candidates = append(candidates, candidate{NamedKey(name), f})
		}
	}
	c.mu.RUnlock()

	for _, cand := range candidates {
		m, ok := cand.f.Setup.Metadata.(M)
		if !ok || !match(m) {
			continue
		}
		v, rerr := c.resolveValue(serviceType, cand.key)
		if rerr != nil {
			return value, meta, false, rerr
		}
		return v.(T), m, true, nil
	}
	return value, meta, false, nil
}

// WithMetadata attaches metadata to a registration, consulted later by
// ResolveMeta.
func WithMetadata(metadata any) RegistrationOption {
	return func(o *registrationOptions) { o.metadata = metadata }
}

// DebugExpressionOf renders the construction expression tree that would
// be compiled for (T, key) without compiling or invoking it — a
// diagnostic mirroring the spec's DebugExpression wrapper.
func DebugExpressionOf[T any](c *Container, key ...ServiceKey) (string, error) {
	serviceType := typeOf[T]()
	k := firstKey(key)
	c.logger.Debug("debug-expression wrapper expanded", zap.String("service_type", typeName(serviceType)))
	req := NewRequest(serviceType, k)
	expr, err := c.resolveExpression(req)
	if err != nil {
		return "", err
	}
	return describeExpr(expr), nil
}

func describeExpr(e Expression) string {
	switch v := e.(type) {
	case *ConstantExpr:
		return "Constant(" + v.Typ.String() + ")"
	case *RawExpr:
		return "Raw(" + v.Typ.String() + ")"
	case *NewExpr:
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = describeExpr(a)
		}
		s := "New(" + v.Typ.String() + ")("
		for i, p := range parts {
			if i > 0 {
				s += ", "
			}
			s += p
		}
		s += ")"
		if len(v.Binds) > 0 {
			s += "{" + strconv.Itoa(len(v.Binds)) + " member binds}"
		}
		return s
	case *NewArrayExpr:
		return "Array[" + v.ElemType.String() + "](" + strconv.Itoa(len(v.Elems)) + " elements)"
	case *ArgRefExpr:
		return "ArgRef(" + v.Typ.String() + ")"
	case *FuncWrapperExpr:
		return "Func(" + v.FuncType.String() + " => " + describeExpr(v.Inner) + ")"
	case *InvokeExpr:
		return "Invoke(" + describeExpr(v.Fn) + ")"
	case *ReuseExpr:
		return reuseKindName(v.Kind) + "(" + describeExpr(v.Inner) + ")"
	case *ConvertExpr:
		return "Convert(" + describeExpr(v.Inner) + " as " + v.Typ.String() + ")"
	default:
		return e.Type().String()
	}
}

func reuseKindName(k ReuseKind) string {
	switch k {
	case SingletonReuse:
		return "Singleton"
	case InCurrentScope:
		return "Scoped"
	case InResolutionScope:
		return "ResolutionScoped"
	default:
		return "Transient"
	}
}

