package di

import (
	"errors"
	"reflect"
	"sync/atomic"
)

// FactoryKind discriminates the three factory variants: a Factory is
// modeled as a tagged sum {Reflection, Delegate, Provider} with a shared
// header, dispatching GetExpression on the tag rather than through an
// inheritance hierarchy.
type FactoryKind int

const (
	FactoryReflection FactoryKind = iota
	FactoryDelegate
	FactoryProvider
)

var factoryIDCounter int64

// nextFactoryID hands out the process-wide monotonic factory id. It must
// tolerate concurrent increments; nothing else about factory identity is
// global.
func nextFactoryID() int64 {
	return atomic.AddInt64(&factoryIDCounter, 1)
}

// DelegateFn produces an Expression for a request, typically by embedding
// a user-supplied function as a constant and invoking it against the
// registry's weak self-reference.
type DelegateFn func(req *Request, c *Container) (Expression, error)

// ProviderFn specializes a Provider factory for a concrete, closed
// request. fresh reports whether a brand-new Factory was produced (as
// opposed to one already memoized by a previous call) — the caller
// registers fresh results under the closed service type so later
// resolutions skip specialization entirely.
type ProviderFn func(req *Request, c *Container) (factory *Factory, fresh bool, err error)

// Factory is a registered construction recipe: a unique id, an optional
// Reuse, a Setup, an optional implementation type, and (depending on
// Kind) the data needed to produce an Expression for a Request.
type Factory struct {
	ID                 int64
	Kind               FactoryKind
	Reuse              Reuse
	Setup              Setup
	ImplementationType reflect.Type

	// Reflection
	ctor           reflect.Value
	ctorCandidates []reflect.Value
	ctorSelector   ConstructorSelector
	paramNames     []string
	injectMembers  bool

	// Delegate
	delegate DelegateFn

	// Provider
	providesFactoryPerRequest bool
	perRequest                ProviderFn
}

// ConstructorSelector picks the constructor to use among several
// candidates registered for an implementation type. Most registrations
// have exactly one candidate and never need a selector.
type ConstructorSelector func(candidates []reflect.Value) (reflect.Value, error)

// NewReflectionFactory builds a Factory that constructs implType by
// calling ctor (a Go func value: func(...deps) TImpl or func(...deps)
// (TImpl, error)) with recursively resolved dependencies.
func NewReflectionFactory(implType reflect.Type, ctor reflect.Value, reuse Reuse, setup Setup, injectMembers bool) *Factory {
	return &Factory{
		ID:                 nextFactoryID(),
		Kind:               FactoryReflection,
		Reuse:              reuse,
		Setup:              setup,
		ImplementationType: implType,
		ctor:               ctor,
		ctorCandidates:     []reflect.Value{ctor},
		injectMembers:      injectMembers,
	}
}

// NewDelegateFactory builds a Factory backed by a user function that
// produces the Expression directly.
func NewDelegateFactory(implType reflect.Type, fn DelegateFn, reuse Reuse, setup Setup) *Factory {
	return &Factory{
		ID:                 nextFactoryID(),
		Kind:               FactoryDelegate,
		Reuse:              reuse,
		Setup:              setup,
		ImplementationType: implType,
		delegate:           fn,
	}
}

// NewProviderFactory builds a Factory that defers to perRequest to
// produce a specialized, closed Factory at resolution time (open
// generics, metadata matching).
func NewProviderFactory(setup Setup, perRequest ProviderFn) *Factory {
	return &Factory{
		ID:                        nextFactoryID(),
		Kind:                      FactoryProvider,
		Setup:                     setup,
		providesFactoryPerRequest: true,
		perRequest:                perRequest,
	}
}

// selectConstructor applies the registered selector (if any) or requires
// exactly one candidate.
func (f *Factory) selectConstructor(fmtr ErrorFormatter) (reflect.Value, error) {
	switch len(f.ctorCandidates) {
	case 0:
		return reflect.Value{}, newErr(fmtr, NoPublicConstructorDefined, typeName(f.ImplementationType))
	case 1:
		return f.ctorCandidates[0], nil
	default:
		if f.ctorSelector == nil {
			return reflect.Value{}, newErr(fmtr, UnableToSelectConstructor, typeName(f.ImplementationType))
		}
		return f.ctorSelector(f.ctorCandidates)
	}
}

// buildCoreExpression produces the factory's own construction expression,
// without reuse or decoration — step 3 of spec §4.2's get_expression
// ("produce the factory's core expression").
func (f *Factory) buildCoreExpression(req *Request, c *Container) (Expression, error) {
	switch f.Kind {
	case FactoryReflection:
		return f.buildReflectionExpression(req, c)
	case FactoryDelegate:
		expr, err := f.delegate(req, c)
		if err != nil {
			var alreadyTyped *ContainerError
			if errors.As(err, &alreadyTyped) {
				return nil, err
			}
			return nil, newErrCause(c.errFormatter(), UnableToResolve, err, typeName(req.ServiceType))
		}
		if expr == nil {
			return nil, newErr(c.errFormatter(), DelegateFactoryExpressionReturnedNull, typeName(req.ServiceType))
		}
		return expr, nil
	default:
		return nil, newErr(c.errFormatter(), UnableToResolve, "provider factory reached buildCoreExpression without specialization for "+typeName(req.ServiceType))
	}
}

func (f *Factory) buildReflectionExpression(req *Request, c *Container) (Expression, error) {
	return f.buildReflectionExpressionWithArgs(req, c, nil)
}

// buildReflectionExpressionWithArgs is buildReflectionExpression
// generalized for "factory-with-args" (spec §4.3): when argTypes is
// non-empty, constructor parameters are first matched greedily by type
// against an unused argType (bound as an ArgRefExpr reading the
// Func[...,T] call's arguments); unmatched parameters still resolve
// normally. usedArgs reports, parallel to argTypes, which were consumed —
// callers report the rest as unused.
func (f *Factory) buildReflectionExpressionWithArgs(req *Request, c *Container, argTypes []reflect.Type) (Expression, []bool, error) {
	ctor, err := f.selectConstructor(c.errFormatter())
	if err != nil {
		return nil, nil, err
	}
	ctorType := ctor.Type()

	inheritParentKey := req.SetupKind == SetupDecorator || req.SetupKind == SetupGenericWrapper

	var bound []Expression
	var usedArgs []bool
	if len(argTypes) > 0 {
		bound, usedArgs = matchFuncArgs(ctorType, argTypes)
	} else {
		bound = make([]Expression, ctorType.NumIn())
		usedArgs = make([]bool, 0)
	}

	args := make([]Expression, ctorType.NumIn())
	for i := 0; i < ctorType.NumIn(); i++ {
		if bound[i] != nil {
			args[i] = bound[i]
			continue
		}
		paramType := ctorType.In(i)
		name := ""
		if i < len(f.paramNames) {
			name = f.paramNames[i]
		}
		key := c.rules.ConstructorParameterKey(paramType, name, req)
		var childReq *Request
		if inheritParentKey && key.Kind == KeyDefault {
			childReq = req.PushPreservingParentKey(paramType, Dependency{Kind: DepCtorParam, Name: name})
		} else {
			childReq = req.Push(paramType, key, Dependency{Kind: DepCtorParam, Name: name})
		}
		argExpr, err := c.resolveExpression(childReq)
		if err != nil {
			return nil, nil, err
		}
		args[i] = argExpr
	}

	newExpr := &NewExpr{Ctor: ctor, Args: args, Typ: req.ServiceType}

	if f.injectMembers {
		binds, err := f.buildMemberBinds(req, c)
		if err != nil {
			return nil, nil, err
		}
		newExpr.Binds = binds
	}

	return newExpr, usedArgs, nil
}

// buildMemberBinds enumerates the implementation type's exported fields
// tagged `di:"name"` (or `di:""` for the default key) and resolves each
// against the container, following the field-tag convention used
// throughout the retrieved pack's reflection-based injectors.
func (f *Factory) buildMemberBinds(req *Request, c *Container) ([]MemberBind, error) {
	structType := f.ImplementationType
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, nil
	}
	var binds []MemberBind
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		tag, ok := field.Tag.Lookup("di")
		if !ok || !field.IsExported() {
			continue
		}
		var key ServiceKey
		if tag != "" {
			key = NamedKey(tag)
		} else {
			key = DefaultKey()
		}
		childReq := req.Push(field.Type, key, Dependency{Kind: DepField, Name: field.Name})
		expr, err := c.resolveExpression(childReq)
		if err != nil {
			return nil, err
		}
		binds = append(binds, MemberBind{FieldIndex: field.Index, Value: expr})
	}
	return binds, nil
}

// matchFuncArgs implements "factory-with-args" (spec §4.3): for an N-ary
// function-type request, each constructor parameter is matched (by type,
// greedy first-fit) against an unused function argument; parameters left
// over resolve normally. It returns, parallel to the constructor's
// parameters, either an ArgRefExpr (bound to a func argument) or nil
// (meaning "resolve normally"), plus the set of argTypes indices that
// were consumed.
func matchFuncArgs(ctorType reflect.Type, argTypes []reflect.Type) (bound []Expression, usedArgs []bool) {
	bound = make([]Expression, ctorType.NumIn())
	usedArgs = make([]bool, len(argTypes))
	for i := 0; i < ctorType.NumIn(); i++ {
		paramType := ctorType.In(i)
		for j, at := range argTypes {
			if usedArgs[j] {
				continue
			}
			if at == paramType || at.AssignableTo(paramType) {
				bound[i] = &ArgRefExpr{Index: j, Typ: paramType}
				usedArgs[j] = true
				break
			}
		}
	}
	return bound, usedArgs
}
