// Package di implements an inversion-of-control container: a registry and
// resolver that, given a service type and an optional key, constructs a
// fully wired instance by recursively resolving dependencies, honoring
// reuse (lifetime) policies, applying decorators, and supporting a fixed
// set of generic wrapper types (lazy, factory-function, enumerable,
// metadata-annotated, debug-expression).
//
// # Features
//
//   - Generic, type-safe registration and resolution on top of a
//     reflection-based resolution pipeline
//   - Transient, Singleton, InCurrentScope and InResolutionScope reuse
//   - Automatic constructor and member injection
//   - Decorators, composed in registration order
//   - Open-generic service families (see RegisterOpenGeneric)
//   - Func, Lazy, Many, Meta, DebugExpression and enumerable/array wrappers
//   - A persistent, lock-free hash-trie backing the resolution and
//     expression caches
//   - Thread-safe registration and concurrent resolution
//
// # Basic usage
//
//	c := di.New()
//
//	di.RegisterType[Logger, *ConsoleLogger](c, func() *ConsoleLogger {
//	    return &ConsoleLogger{}
//	}, di.Singleton)
//
//	di.RegisterType[UserService, *DefaultUserService](c, func(log Logger) *DefaultUserService {
//	    return &DefaultUserService{logger: log}
//	}, di.Reuse{})
//
//	service, err := di.Resolve[UserService](c)
//
// # Reuse
//
// Transient: a new instance is created every time the dependency is
// resolved. This is the default.
//
// Singleton: a single instance is created and reused for the lifetime of
// the root container.
//
// InCurrentScope: one instance per container produced by OpenScope.
//
// InResolutionScope: one instance per top-level Resolve call, shared by
// every nested dependency resolved as part of that call.
package di
