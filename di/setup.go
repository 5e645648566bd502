package di

// SetupKind distinguishes the three roles a Factory's Setup can play.
type SetupKind int

const (
	// SetupService is an ordinary registered service.
	SetupService SetupKind = iota
	// SetupGenericWrapper is the factory produced by the enumerable/array
	// unregistered-service rule (Func, Lazy, Many, Meta and
	// DebugExpression are plain functions and produce no factory).
	SetupGenericWrapper
	// SetupDecorator is a decorator registered against a service type or
	// its Func[T,T] form.
	SetupDecorator
)

// CachePolicy controls whether a factory's produced expression may be
// memoized in the factored-expression cache.
type CachePolicy int

const (
	// CouldCacheExpression allows (but does not require) caching.
	CouldCacheExpression CachePolicy = iota
	// ShouldNotCacheExpression forbids caching; decorators always use
	// this so each application site gets a fresh composition.
	ShouldNotCacheExpression
)

// Setup carries the metadata flags that control caching, wrapper
// argument selection, and decorator applicability for a Factory.
type Setup struct {
	Kind        SetupKind
	CachePolicy CachePolicy
	Metadata    any

	// WrapperArgIndex selects which generic type argument a
	// GenericWrapper factory treats as "the wrapped service type". -1
	// means "the default" (the wrapper's sole or last type argument).
	WrapperArgIndex int

	// IsApplicable gates a Decorator factory: when non-nil, the
	// decorator only applies to requests for which it returns true.
	IsApplicable func(*Request) bool
}

// ServiceSetup is the ordinary Setup for a directly registered service.
func ServiceSetup() Setup {
	return Setup{Kind: SetupService, CachePolicy: CouldCacheExpression, WrapperArgIndex: -1}
}

// WrapperSetup builds the Setup for a built-in generic wrapper factory.
func WrapperSetup() Setup {
	return Setup{Kind: SetupGenericWrapper, CachePolicy: CouldCacheExpression, WrapperArgIndex: -1}
}

// DecoratorSetup builds the Setup for a decorator factory. Decorators
// never cache their produced expression (spec invariant: "Decorator
// factories never cache their produced expression").
func DecoratorSetup(isApplicable func(*Request) bool) Setup {
	return Setup{Kind: SetupDecorator, CachePolicy: ShouldNotCacheExpression, WrapperArgIndex: -1, IsApplicable: isApplicable}
}
