package di

import "reflect"

// ExecContext carries everything a CompiledFactory needs at invocation
// time: the container's constants array, the lazily-allocated
// resolution-scope holder for InResolutionScope reuse, and (only while
// inside a Func[...,T] wrapper's body) the arguments bound to that call.
type ExecContext struct {
	Constants []any
	RS        *resolutionScopeHolder
	CS        *Scope
	args      []reflect.Value
}

func (c *ExecContext) withArgs(args []reflect.Value) *ExecContext {
	return &ExecContext{Constants: c.Constants, RS: c.RS, CS: c.CS, args: args}
}

// CompiledFactory is a closed, callable form of an Expression: compile it
// once, invoke it as many times as the service is resolved. Compiling the
// same Expression twice yields behaviorally identical closures, which is
// what lets the factored-expression cache (keyed by factory_id) and the
// resolution cache short-circuit repeat work safely. Decorator
// expressions are not cached; they are rebuilt on every resolution-cache
// miss.
type CompiledFactory func(ctx *ExecContext) (any, error)

// Expression is the language-neutral construction IR: constant-table
// indexing, constructor calls, member assignment, function abstraction
// and application, array construction, and conditional convert. Every
// Expression knows its own result Type and can Compile itself into a
// CompiledFactory.
type Expression interface {
	Type() reflect.Type
	Compile() CompiledFactory
}

// Compile is the compiler entry point named in the spec: "round-trip
// through a compiler yielding a CompiledFactory".
func Compile(e Expression) CompiledFactory {
	return e.Compile()
}

// -- ConstantExpr: constants[Index] ------------------------------------

// ConstantExpr indexes the container's constants array.
type ConstantExpr struct {
	Index int
	Typ   reflect.Type
}

func (e *ConstantExpr) Type() reflect.Type { return e.Typ }

func (e *ConstantExpr) Compile() CompiledFactory {
	idx := e.Index
	return func(ctx *ExecContext) (any, error) {
		return ctx.Constants[idx], nil
	}
}

// -- RawExpr: an escape hatch for delegate factories and reuse wrapping --

// RawExpr wraps an arbitrary CompiledFactory as an Expression, for nodes
// (delegate-produced expressions, eagerly captured singletons, scoped
// get-or-add wrapping) that are easiest to express directly as Go code
// rather than as a further IR tree.
type RawExpr struct {
	Typ reflect.Type
	Fn  func(ctx *ExecContext) (any, error)
}

func (e *RawExpr) Type() reflect.Type { return e.Typ }

func (e *RawExpr) Compile() CompiledFactory { return e.Fn }

// -- NewExpr: a constructor call ----------------------------------------

// NewExpr calls a constructor function value with its resolved argument
// expressions, then optionally applies member binds to the result before
// returning it.
type NewExpr struct {
	Ctor  reflect.Value // func(...) T  or  func(...) (T, error)
	Args  []Expression
	Typ   reflect.Type
	Binds []MemberBind
}

// MemberBind assigns a resolved expression's value to a settable field on
// the just-constructed instance.
type MemberBind struct {
	FieldIndex []int
	Value      Expression
}

func (e *NewExpr) Type() reflect.Type { return e.Typ }

func (e *NewExpr) Compile() CompiledFactory {
	argFns := make([]CompiledFactory, len(e.Args))
	for i, a := range e.Args {
		argFns[i] = a.Compile()
	}
	ctorType := e.Ctor.Type()
	bindFns := make([]CompiledFactory, len(e.Binds))
	for i, b := range e.Binds {
		bindFns[i] = b.Value.Compile()
	}
	binds := e.Binds

	return func(ctx *ExecContext) (any, error) {
		args := make([]reflect.Value, len(argFns))
		for i, fn := range argFns {
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			args[i] = coerceArg(v, ctorType.In(i))
		}
		results := e.Ctor.Call(args)
		var out reflect.Value
		if len(results) == 2 {
			if !results[1].IsNil() {
				return nil, results[1].Interface().(error)
			}
			out = results[0]
		} else {
			out = results[0]
		}

		for i, bindFn := range bindFns {
			v, err := bindFn(ctx)
			if err != nil {
				return nil, err
			}
			target := out
			if target.Kind() == reflect.Ptr {
				target = target.Elem()
			}
			field := target.FieldByIndex(binds[i].FieldIndex)
			field.Set(coerceArg(v, field.Type()))
		}

		return out.Interface(), nil
	}
}

func coerceArg(v any, target reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(target) {
		return rv
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target)
	}
	return rv
}

// -- NewArrayExpr: T[]{...} ----------------------------------------------

// NewArrayExpr constructs a slice of ElemType from each element
// expression, in order. Used by the enumerable/array wrapper.
type NewArrayExpr struct {
	ElemType reflect.Type
	Elems    []Expression
}

func (e *NewArrayExpr) Type() reflect.Type { return reflect.SliceOf(e.ElemType) }

func (e *NewArrayExpr) Compile() CompiledFactory {
	elemFns := make([]CompiledFactory, len(e.Elems))
	for i, el := range e.Elems {
		elemFns[i] = el.Compile()
	}
	elemType := e.ElemType
	return func(ctx *ExecContext) (any, error) {
		slice := reflect.MakeSlice(reflect.SliceOf(elemType), len(elemFns), len(elemFns))
		for i, fn := range elemFns {
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			slice.Index(i).Set(coerceArg(v, elemType))
		}
		return slice.Interface(), nil
	}
}

// -- ArgRefExpr: reference to a Func[...,T] call-time argument -----------

// ArgRefExpr reads the Index-th argument bound to the enclosing
// FuncWrapperExpr's call. It only makes sense inside a FuncWrapperExpr's
// Inner expression.
type ArgRefExpr struct {
	Index int
	Typ   reflect.Type
}

func (e *ArgRefExpr) Type() reflect.Type { return e.Typ }

func (e *ArgRefExpr) Compile() CompiledFactory {
	idx := e.Index
	return func(ctx *ExecContext) (any, error) {
		return ctx.args[idx].Interface(), nil
	}
}

// -- FuncWrapperExpr: function abstraction --------------------------------

// FuncWrapperExpr emits a Go func value of the given FuncType whose body
// evaluates Inner with the call's arguments bound for any ArgRefExpr
// nodes within it. buildFuncWithArgs uses it to realize the
// factory-with-args funcs (ResolveFuncWithArg1/ResolveFuncWithArg2), one
// ArgRefExpr per call-time argument.
type FuncWrapperExpr struct {
	FuncType reflect.Type
	Inner    Expression
}

func (e *FuncWrapperExpr) Type() reflect.Type { return e.FuncType }

func (e *FuncWrapperExpr) Compile() CompiledFactory {
	innerFn := e.Inner.Compile()
	funcType := e.FuncType
	numOut := funcType.NumOut()

	return func(ctx *ExecContext) (any, error) {
		fnVal := reflect.MakeFunc(funcType, func(args []reflect.Value) []reflect.Value {
			callCtx := ctx.withArgs(args)
			v, err := innerFn(callCtx)
			out := make([]reflect.Value, numOut)
			if numOut == 2 {
				if err != nil {
					out[0] = reflect.Zero(funcType.Out(0))
					out[1] = reflect.ValueOf(err)
					return out
				}
				out[0] = coerceArg(v, funcType.Out(0))
				out[1] = reflect.Zero(funcType.Out(1))
				return out
			}
			if err != nil {
				panic(err)
			}
			out[0] = coerceArg(v, funcType.Out(0))
			return out
		})
		return fnVal.Interface(), nil
	}
}

// -- InvokeExpr: function application ------------------------------------

// InvokeExpr calls a func-typed expression with resolved argument
// expressions.
type InvokeExpr struct {
	Fn   Expression
	Args []Expression
	Typ  reflect.Type
}

func (e *InvokeExpr) Type() reflect.Type { return e.Typ }

func (e *InvokeExpr) Compile() CompiledFactory {
	fnFn := e.Fn.Compile()
	argFns := make([]CompiledFactory, len(e.Args))
	for i, a := range e.Args {
		argFns[i] = a.Compile()
	}
	return func(ctx *ExecContext) (any, error) {
		fv, err := fnFn(ctx)
		if err != nil {
			return nil, err
		}
		fnRV := reflect.ValueOf(fv)
		args := make([]reflect.Value, len(argFns))
		for i, fn := range argFns {
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			args[i] = coerceArg(v, fnRV.Type().In(i))
		}
		results := fnRV.Call(args)
		if len(results) == 2 {
			if !results[1].IsNil() {
				return nil, results[1].Interface().(error)
			}
			return results[0].Interface(), nil
		}
		return results[0].Interface(), nil
	}
}

// -- ReuseExpr: lifetime wrapping -----------------------------------------

// ReuseExpr wraps Inner's construction with a Scope.getOrAdd so repeated
// evaluations of the same compiled factory return the same instance
// according to Kind. Transient passes Inner through unwrapped. Singleton
// closes directly over the container's one shared scope, since that scope
// is identical for the root container and every container OpenScope
// produces from it. InCurrentScope and InResolutionScope cannot close
// over a scope at compile time — the same compiled factory can run under
// different current/resolution scopes across OpenScope'd containers and
// across separate top-level Resolve calls — so they read ctx.CS / ctx.RS
// at invocation time instead.
type ReuseExpr struct {
	Inner          Expression
	Kind           ReuseKind
	FactoryID      int64
	SingletonScope *Scope
}

func (e *ReuseExpr) Type() reflect.Type { return e.Inner.Type() }

func (e *ReuseExpr) Compile() CompiledFactory {
	innerFn := e.Inner.Compile()
	id := e.FactoryID
	switch e.Kind {
	case InCurrentScope:
		return func(ctx *ExecContext) (any, error) {
			return ctx.CS.getOrAdd(id, func() (any, error) { return innerFn(ctx) })
		}
	case InResolutionScope:
		return func(ctx *ExecContext) (any, error) {
			return ctx.RS.getOrInit().getOrAdd(id, func() (any, error) { return innerFn(ctx) })
		}
	case SingletonReuse:
		scope := e.SingletonScope
		return func(ctx *ExecContext) (any, error) {
			return scope.getOrAdd(id, func() (any, error) { return innerFn(ctx) })
		}
	default:
		return innerFn
	}
}

// -- ConvertExpr: conditional convert -------------------------------------

// ConvertExpr converts Inner's runtime value to Typ if assignable,
// otherwise returns it unconverted (mirrors a checked/"as" convert where
// mismatch is tolerated rather than panicking, since interface
// satisfaction is checked at registration time already).
type ConvertExpr struct {
	Inner Expression
	Typ   reflect.Type
}

func (e *ConvertExpr) Type() reflect.Type { return e.Typ }

func (e *ConvertExpr) Compile() CompiledFactory {
	innerFn := e.Inner.Compile()
	typ := e.Typ
	return func(ctx *ExecContext) (any, error) {
		v, err := innerFn(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return v, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Type().AssignableTo(typ) {
			return v, nil
		}
		if rv.Type().ConvertibleTo(typ) {
			return rv.Convert(typ).Interface(), nil
		}
		return v, nil
	}
}
