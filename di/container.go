package di

import (
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// FactoriesEntry is everything registered for one service type: the
// single registration treated as "the" default when exactly one exists,
// every default registration in insertion order (addressable by
// IndexKey), and every named registration.
type FactoriesEntry struct {
	lastDefault      *Factory
	defaultFactories []*Factory
	namedFactories   map[string]*Factory
}

// registry is the state shared, by pointer, between a root Container and
// every Container OpenScope produces from it: registration tables,
// decorators, open-generic bindings, the resolution and
// factored-expression caches, the constants array, the one singleton
// scope, and the pluggable rules/formatter/logger. Only currentScope
// differs between a container and its children.
type registry struct {
	mu            sync.RWMutex
	registrations map[reflect.Type]*FactoriesEntry
	decorators    map[reflect.Type][]*Factory
	openGenerics  map[string]*openGenericEntry

	resolutionCache   *AtomicTrie[resolutionCacheKey]
	factoredExprCache *AtomicTrie[factoryIDKey]

	constantsMu sync.Mutex
	constants   []any

	singletonScope *Scope

	rules  ResolutionRules
	errFmt ErrorFormatter
	logger *zap.Logger

	fallback *Container
}

// Container is the IoC registry and resolver. The zero value is not
// usable; construct one with New.
type Container struct {
	*registry
	currentScope *Scope
	closed       atomic.Bool
}

// registrationOptions collects the per-registration settings Register
// and RegisterOpenGeneric accept through functional options.
type registrationOptions struct {
	key           *ServiceKey
	name          string
	metadata      any
	injectMembers bool
}

// RegistrationOption configures one call to Register/RegisterOpenGeneric.
type RegistrationOption func(*registrationOptions)

// WithKey registers under an explicit ServiceKey instead of the default
// insertion-order behavior.
func WithKey(key ServiceKey) RegistrationOption {
	return func(o *registrationOptions) { o.key = &key }
}

// WithName registers under a NamedKey(name); a convenience over WithKey.
func WithName(name string) RegistrationOption {
	return func(o *registrationOptions) {
		k := NamedKey(name)
		o.key = &k
		o.name = name
	}
}

// WithFieldInjection marks a Reflection registration's `di`-tagged
// exported fields for injection immediately after construction, in
// addition to its constructor parameters.
func WithFieldInjection() RegistrationOption {
	return func(o *registrationOptions) { o.injectMembers = true }
}

// New builds a root Container. Without options it carries the built-in
// enumerable/array unregistered-service rule, a zap.NewNop logger, the
// default error formatter, and default resolution rules; see Minimal for
// a bare-bones alternative.
func New(opts ...Option) *Container {
	reg := &registry{
		registrations:     make(map[reflect.Type]*FactoriesEntry),
		decorators:        make(map[reflect.Type][]*Factory),
		openGenerics:      make(map[string]*openGenericEntry),
		resolutionCache:   NewAtomicTrie[resolutionCacheKey](),
		factoredExprCache: NewAtomicTrie[factoryIDKey](),
		rules:             defaultRules(),
		errFmt:            defaultErrorFormatter,
		logger:            zap.NewNop(),
	}
	reg.singletonScope = newScope("singleton")
	c := &Container{registry: reg, currentScope: newScope("root")}

	cfg := &containerConfig{registerBuiltinWrappers: true}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.apply(c)
	if cfg.registerBuiltinWrappers {
		registerBuiltinWrappers(c)
	}
	c.logger.Debug("container constructed")
	return c
}

func (c *Container) errFormatter() ErrorFormatter { return c.errFmt }

// IsRegistered reports whether serviceType has a registration under key.
func (c *Container) IsRegistered(serviceType reflect.Type, key ServiceKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.registrations[serviceType]
	if !ok {
		return false
	}
	return lookupInEntry(entry, key) != nil
}

func lookupInEntry(entry *FactoriesEntry, key ServiceKey) *Factory {
	switch key.Kind {
	case KeyDefault:
		return entry.lastDefault
	case KeyIndex:
		if key.Index >= 0 && key.Index < len(entry.defaultFactories) {
			return entry.defaultFactories[key.Index]
		}
		return nil
	case KeyName:
		return entry.namedFactories[key.Name]
	}
	return nil
}

// Register adds factory under serviceType, keyed by opts (defaults to
// the next available default-registration index). Once a service type
// has more than one default registration, resolving its unkeyed default
// fails with ExpectedSingleDefaultFactory unless a
// SelectSingleRegisteredFactory rule picks one.
func (c *Container) Register(serviceType reflect.Type, factory *Factory, opts ...RegistrationOption) error {
	ro := &registrationOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	if ro.metadata != nil {
		factory.Setup.Metadata = ro.metadata
	}

	if err := validateFactory(c.errFormatter(), serviceType, factory); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.registrations[serviceType]
	if !ok {
		entry = &FactoriesEntry{namedFactories: make(map[string]*Factory)}
		c.registrations[serviceType] = entry
	}

	if factory.Setup.Kind == SetupDecorator {
		c.decorators[serviceType] = append(c.decorators[serviceType], factory)
		c.logger.Debug("decorator registered", zap.String("service_type", typeName(serviceType)))
		return nil
	}

	if ro.key == nil {
		entry.defaultFactories = append(entry.defaultFactories, factory)
		entry.lastDefault = factory
		c.logRegistration(serviceType, DefaultKey(), factory)
		return nil
	}

	switch ro.key.Kind {
	case KeyName:
		if _, dup := entry.namedFactories[ro.key.Name]; dup {
			return newErr(c.errFormatter(), DuplicateServiceName, ro.key.Name, typeName(serviceType))
		}
		entry.namedFactories[ro.key.Name] = factory
	case KeyIndex:
		for len(entry.defaultFactories) <= ro.key.Index {
			entry.defaultFactories = append(entry.defaultFactories, nil)
		}
		entry.defaultFactories[ro.key.Index] = factory
		entry.lastDefault = factory
	default:
		entry.defaultFactories = append(entry.defaultFactories, factory)
		entry.lastDefault = factory
	}
	c.logRegistration(serviceType, *ro.key, factory)
	return nil
}

// logRegistration emits the Debug registration-event log SPEC_FULL.md's
// Logging section requires: service type, key, and lifetime.
func (c *Container) logRegistration(serviceType reflect.Type, key ServiceKey, factory *Factory) {
	c.logger.Debug("service registered",
		zap.String("service_type", typeName(serviceType)),
		zap.String("key", key.String()),
		zap.Int("reuse", int(factory.Reuse.Kind)),
	)
}

// RegisterDecorator adds a decorator factory for serviceType. Decorators
// apply outer-to-inner in registration order (the most recently
// registered decorator wraps every earlier one, matching the pack's
// middleware-chain convention of "last added runs outermost").
func (c *Container) RegisterDecorator(serviceType reflect.Type, factory *Factory) error {
	if err := validateFactory(c.errFormatter(), serviceType, factory); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decorators[serviceType] = append(c.decorators[serviceType], factory)
	c.logger.Debug("decorator registered", zap.String("service_type", typeName(serviceType)))
	return nil
}

// addConstant appends v to the shared constants array and returns its
// index. Every ConstantExpr produced for the same logical value during
// one factored-expression build reuses this index.
func (c *Container) addConstant(v any) int {
	c.constantsMu.Lock()
	defer c.constantsMu.Unlock()
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

func (c *Container) snapshotConstants() []any {
	c.constantsMu.Lock()
	defer c.constantsMu.Unlock()
	out := make([]any, len(c.constants))
	copy(out, c.constants)
	return out
}

// getOrAddFactory resolves req.ServiceType/req.ServiceKey to a Factory,
// consulting, in order: the registration tables; Provider-kind factories
// already registered (specializing them per request and memoizing a
// fresh result back into the tables); open-generic bindings keyed by
// familyName; the unregistered-service rules; and finally a fallback
// container, if one was configured. This mirrors spec §4.2's
// get_or_add_factory pipeline.
func (c *Container) getOrAddFactory(req *Request) (*Factory, error) {
	c.mu.RLock()
	entry, ok := c.registrations[req.ServiceType]
	var found *Factory
	ambiguous := false
	if ok {
		found = lookupInEntry(entry, req.ServiceKey)
		if req.ServiceKey.Kind == KeyDefault && countNonNil(entry.defaultFactories) > 1 {
			if c.rules.SelectSingleRegisteredFactory != nil {
				if chosen, ok := c.rules.SelectSingleRegisteredFactory(entry.defaultFactories); ok {
					found = chosen
				} else {
					ambiguous = true
				}
			} else {
				ambiguous = true
			}
		}
	}
	c.mu.RUnlock()

	if ambiguous {
		return nil, newErr(c.errFormatter(), ExpectedSingleDefaultFactory, typeName(req.ServiceType))
	}

	if found != nil {
		if found.Kind == FactoryProvider {
			return c.specializeProvider(req, found)
		}
		return found, nil
	}

	if isGenericInstantiation(req.ServiceType) {
		family := familyName(req.ServiceType)
		c.mu.RLock()
		oge, ok := c.openGenerics[family]
		c.mu.RUnlock()
		if ok {
			f, err := oge.bind(req.ServiceType)
			if err != nil {
				return nil, newErrCause(c.errFormatter(), UnableToFindOpenGenericImplTypeArg, err, typeName(req.ServiceType))
			}
			if f != nil {
				c.Register(req.ServiceType, f, keyOptFor(req.ServiceKey))
				return f, nil
			}
		}
	}

	c.mu.RLock()
	ruleList := append([]UnregisteredServiceRule(nil), c.rules.UnregisteredServices...)
	c.mu.RUnlock()
	for _, rule := range ruleList {
		if f := rule(req, c); f != nil {
			c.Register(req.ServiceType, f, keyOptFor(req.ServiceKey))
			return f, nil
		}
	}

	if c.fallback != nil {
		return c.fallback.getOrAddFactory(req)
	}

	return nil, newErr(c.errFormatter(), UnableToResolve, typeName(req.ServiceType), req.ServiceKey.String())
}

// countNonNil counts the populated slots of a FactoriesEntry's
// defaultFactories, which can contain nil padding left by an out-of-order
// IndexKey registration.
func countNonNil(factories []*Factory) int {
	n := 0
	for _, f := range factories {
		if f != nil {
			n++
		}
	}
	return n
}

func keyOptFor(key ServiceKey) RegistrationOption {
	if key.Kind == KeyDefault {
		return func(o *registrationOptions) {}
	}
	return WithKey(key)
}

// specializeProvider calls a Provider factory's perRequest hook and, on a
// fresh result, registers it under the closed request so future
// resolutions of the identical (type, key) skip specialization.
func (c *Container) specializeProvider(req *Request, provider *Factory) (*Factory, error) {
	f, fresh, err := provider.perRequest(req, c)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, newErr(c.errFormatter(), UnableToResolve, typeName(req.ServiceType))
	}
	if fresh {
		c.logger.Debug("open generic specialized",
			zap.String("service_type", typeName(req.ServiceType)),
			zap.Bool("fresh", true),
		)
		c.Register(req.ServiceType, f, keyOptFor(req.ServiceKey))
	} else {
		c.logger.Debug("open generic specialization memoized",
			zap.String("service_type", typeName(req.ServiceType)),
			zap.Bool("fresh", false),
		)
	}
	return f, nil
}

// resolveExpression is the recursive core: find the factory, pin the
// request to it (detecting recursion), build or reuse its cached core
// expression, wrap it for its Reuse policy, and fold in any applicable
// decorators. Every constructor-parameter and field resolution in
// factory.go calls back into this.
func (c *Container) resolveExpression(req *Request) (Expression, error) {
	factory, err := c.getOrAddFactory(req)
	if err != nil {
		return nil, err
	}

	pinned, err := req.ResolveTo(factory, c.errFormatter())
	if err != nil {
		return nil, err
	}

	core, err := c.coreExpressionFor(pinned, factory)
	if err != nil {
		return nil, err
	}

	// Every factored core expression is funneled through the IR's own
	// conditional-convert node before it is reused or decorated, so a
	// Provider's specialization or a shared multi-interface registration
	// (RegisterAssignableTypes) that produced a value of the wrong shape
	// surfaces as a tolerant convert here rather than a later panic.
	converted := core
	if core.Type() != pinned.ServiceType {
		converted = &ConvertExpr{Inner: core, Typ: pinned.ServiceType}
	}

	reused := converted
	if factory.Reuse.Kind != Transient {
		reused = &ReuseExpr{Inner: converted, Kind: factory.Reuse.Kind, FactoryID: factory.ID, SingletonScope: c.singletonScope}
	}

	return c.applyDecorators(pinned, reused)
}

// coreExpressionFor builds (or reuses, from the factored-expression
// cache) a factory's own construction expression — the part that is
// identical across every request for the same factory id, before reuse
// wrapping or decoration (both of which are request- or
// container-dependent and must never be cached at this layer).
func (c *Container) coreExpressionFor(req *Request, factory *Factory) (Expression, error) {
	if factory.Setup.CachePolicy != CouldCacheExpression {
		return factory.buildCoreExpression(req, c)
	}

	key := factoryIDKey(factory.ID)
	if v, ok := c.factoredExprCache.Load().Get(key); ok {
		c.logger.Debug("factored expression cache hit",
			zap.Int64("factory_id", factory.ID), zap.String("service_type", typeName(req.ServiceType)))
		return v.(Expression), nil
	}

	c.logger.Debug("factored expression cache miss, compiling",
		zap.Int64("factory_id", factory.ID), zap.String("service_type", typeName(req.ServiceType)))
	expr, err := factory.buildCoreExpression(req, c)
	if err != nil {
		return nil, err
	}

	_ = c.factoredExprCache.Swap(func(t *HashTrie[factoryIDKey]) *HashTrie[factoryIDKey] {
		return t.Set(key, expr)
	})
	return expr, nil
}

// applyDecorators folds every applicable decorator registered for the
// request's service type into expr, most-recently-registered outermost,
// substituting the decorator's wrapped-instance constructor parameter
// with the previous stage's Expression directly (no runtime function
// indirection is needed since both sides are known at resolve time).
func (c *Container) applyDecorators(req *Request, expr Expression) (Expression, error) {
	if req.IsAlreadyDecorated() {
		return expr, nil
	}
	c.mu.RLock()
	decs := append([]*Factory(nil), c.decorators[req.ServiceType]...)
	c.mu.RUnlock()
	if len(decs) == 0 {
		return expr, nil
	}

	decReq := req.MakeDecorated()
	result := expr
	for _, d := range decs {
		if d.Setup.IsApplicable != nil && !d.Setup.IsApplicable(decReq) {
			continue
		}
		c.logger.Debug("decorator applied",
			zap.String("service_type", typeName(req.ServiceType)), zap.Int64("decorator_factory_id", d.ID))
		next, err := c.buildDecoratorExpression(d, result, decReq)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}

// buildDecoratorExpression constructs one decorator's application:
// wrapped substitutes for the constructor parameter matching the
// decorated service type; every other parameter resolves normally.
func (c *Container) buildDecoratorExpression(f *Factory, wrapped Expression, req *Request) (Expression, error) {
	if f.Kind == FactoryDelegate {
		return f.delegate(req, c)
	}

	ctor, err := f.selectConstructor(c.errFormatter())
	if err != nil {
		return nil, err
	}
	ctorType := ctor.Type()
	args := make([]Expression, ctorType.NumIn())
	substituted := false
	for i := 0; i < ctorType.NumIn(); i++ {
		paramType := ctorType.In(i)
		if !substituted && (paramType == req.ServiceType || req.ServiceType.AssignableTo(paramType)) {
			args[i] = wrapped
			substituted = true
			continue
		}
		key := c.rules.ConstructorParameterKey(paramType, "", req)
		childReq := req.Push(paramType, key, Dependency{Kind: DepCtorParam})
		argExpr, err := c.resolveExpression(childReq)
		if err != nil {
			return nil, err
		}
		args[i] = argExpr
	}
	if !substituted {
		return nil, newErr(c.errFormatter(), DecoratorFactoryShouldSupportFuncResolution, typeName(f.ImplementationType))
	}
	return &NewExpr{Ctor: ctor, Args: args, Typ: req.ServiceType}, nil
}

// newExecContext builds the ExecContext a top-level resolve evaluates
// its CompiledFactory against: the shared constants snapshot, a fresh
// resolution-scope holder (one per top-level Resolve call), and this
// container's current scope.
func (c *Container) newExecContext() *ExecContext {
	return &ExecContext{Constants: c.snapshotConstants(), RS: &resolutionScopeHolder{}, CS: c.currentScope}
}

// resolveValue is the shared implementation behind ResolveDefault and
// ResolveKeyed: build (or fetch from the resolution cache) the compiled
// factory for (serviceType, key), then invoke it.
func (c *Container) resolveValue(serviceType reflect.Type, key ServiceKey) (any, error) {
	if c.closed.Load() {
		return nil, newErr(c.errFormatter(), ScopeIsDisposed, c.currentScope.ID())
	}

	rck := resolutionCacheKey{typ: serviceType, key: key}
	var compiled CompiledFactory
	if v, ok := c.resolutionCache.Load().Get(rck); ok {
		c.logger.Debug("resolution cache hit", zap.String("service_type", typeName(serviceType)), zap.String("key", key.String()))
		compiled = v.(CompiledFactory)
	} else {
		c.logger.Debug("resolution cache miss, compiling", zap.String("service_type", typeName(serviceType)), zap.String("key", key.String()))
		req := NewRequest(serviceType, key)
		expr, err := c.resolveExpression(req)
		if err != nil {
			return nil, err
		}
		compiled = Compile(expr)
		_ = c.resolutionCache.Swap(func(t *HashTrie[resolutionCacheKey]) *HashTrie[resolutionCacheKey] {
			return t.Set(rck, compiled)
		})
	}

	return compiled(c.newExecContext())
}

// ResolveDefault resolves the unkeyed registration for serviceType.
func (c *Container) ResolveDefault(serviceType reflect.Type) (any, error) {
	return c.resolveValue(serviceType, DefaultKey())
}

// ResolveKeyed resolves serviceType under an explicit ServiceKey.
func (c *Container) ResolveKeyed(serviceType reflect.Type, key ServiceKey) (any, error) {
	return c.resolveValue(serviceType, key)
}

// OpenScope returns a child Container sharing this container's
// registrations, decorators, open-generic bindings, caches, constants,
// and singleton scope, but with its own InCurrentScope instance cache.
// Closing the child disposes only what the child itself constructed
// in-scope; the parent and its singletons are unaffected.
func (c *Container) OpenScope(name string) *Container {
	return &Container{registry: c.registry, currentScope: newScope(name)}
}

// ResolveUnregisteredFrom sets a fallback container that getOrAddFactory
// consults after the unregistered-service rules: on a miss, it asks
// fallback for the same (type, key) and adopts its factory if found — the "fallback container" composition the pack's layered
// registries use for optional/plugin modules.
func ResolveUnregisteredFrom(fallback *Container) Option {
	return func(cfg *containerConfig) {
		cfg.deferred = append(cfg.deferred, func(c *Container) {
			c.fallback = fallback
		})
	}
}

// Close disposes this container's current scope and, if this is the root
// container (not one produced by OpenScope), the shared singleton scope
// too. It is safe to call more than once.
func (c *Container) Close() []error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	errs := c.currentScope.Dispose()
	if c.isRoot() {
		errs = append(errs, c.singletonScope.Dispose()...)
	}
	for _, err := range errs {
		c.logger.Warn("scope disposal error", zap.String("scope", c.currentScope.ID()), zap.Error(err))
	}
	return errs
}

func (c *Container) isRoot() bool {
	return c.currentScope.ID() == "root"
}
