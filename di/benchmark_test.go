package di_test

import (
	"testing"

	"github.com/pegasusheavy/go-ioc/di"
)

// =============================================================================
// Benchmark Types
// =============================================================================

type BenchLogger interface {
	Log(msg string)
}

type benchLoggerImpl struct{}

func (l *benchLoggerImpl) Log(msg string) {}

type BenchService interface {
	DoWork() string
}

type benchServiceImpl struct {
	logger BenchLogger
}

func (s *benchServiceImpl) DoWork() string {
	return "done"
}

type BenchComplexService interface {
	Process() string
}

type benchComplexServiceImpl struct {
	logger  BenchLogger
	service BenchService
}

func (s *benchComplexServiceImpl) Process() string {
	s.logger.Log("processing")
	return s.service.DoWork()
}

// =============================================================================
// Registration Benchmarks
// =============================================================================

func BenchmarkNew(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = di.New()
	}
}

func BenchmarkRegister(b *testing.B) {
	c := di.New()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = di.Register[BenchLogger](c, func() BenchLogger {
			return &benchLoggerImpl{}
		}, di.TransientReuse, di.WithName(nameFor(i)))
	}
}

func BenchmarkRegisterWithOptions(b *testing.B) {
	c := di.New()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = di.Register[BenchLogger](c, func() BenchLogger {
			return &benchLoggerImpl{}
		}, di.Singleton, di.WithName(nameFor(i)))
	}
}

func BenchmarkRegisterInstance(b *testing.B) {
	c := di.New()
	instance := &benchLoggerImpl{}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = di.RegisterInstance[BenchLogger](c, instance, di.WithName(nameFor(i)))
	}
}

// =============================================================================
// Resolution Benchmarks
// =============================================================================

func BenchmarkResolveTransient(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchLogger](c)
	}
}

func BenchmarkResolveSingleton(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	// Warm up singleton
	_, _ = di.Resolve[BenchLogger](c)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchLogger](c)
	}
}

func BenchmarkResolveInstance(b *testing.B) {
	c := di.New()
	mustRegister(b, di.RegisterInstance[BenchLogger](c, &benchLoggerImpl{}))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchLogger](c)
	}
}

func BenchmarkResolveScopedSameScope(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.ScopedReuse))

	scope := c.OpenScope("bench")
	defer scope.Close()

	// Warm up scope
	_, _ = di.Resolve[BenchLogger](scope)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchLogger](scope)
	}
}

func BenchmarkMustResolve(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	// Warm up
	_ = di.MustResolve[BenchLogger](c)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = di.MustResolve[BenchLogger](c)
	}
}

// =============================================================================
// Dependency Chain Benchmarks
// =============================================================================

func BenchmarkResolveWithOneDependency(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	mustRegister(b, di.Register[BenchService](c, func(l BenchLogger) BenchService {
		return &benchServiceImpl{logger: l}
	}, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchService](c)
	}
}

func BenchmarkResolveWithTwoDependencies(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	mustRegister(b, di.Register[BenchService](c, func(l BenchLogger) BenchService {
		return &benchServiceImpl{logger: l}
	}, di.Singleton))

	mustRegister(b, di.Register[BenchComplexService](c, func(l BenchLogger, s BenchService) BenchComplexService {
		return &benchComplexServiceImpl{logger: l, service: s}
	}, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchComplexService](c)
	}
}

type benchLevel1 interface{ L1() }
type benchLevel2 interface{ L2() }
type benchLevel3 interface{ L3() }
type benchLevel4 interface{ L4() }
type benchLevel5 interface{ L5() }

type benchLevel1Impl struct{}
type benchLevel2Impl struct{ dep benchLevel1 }
type benchLevel3Impl struct{ dep benchLevel2 }
type benchLevel4Impl struct{ dep benchLevel3 }
type benchLevel5Impl struct{ dep benchLevel4 }

func (l *benchLevel1Impl) L1() {}
func (l *benchLevel2Impl) L2() {}
func (l *benchLevel3Impl) L3() {}
func (l *benchLevel4Impl) L4() {}
func (l *benchLevel5Impl) L5() {}

func BenchmarkResolveDeepDependencyChain(b *testing.B) {
	c := di.New()

	mustRegister(b, di.Register[benchLevel1](c, func() benchLevel1 { return &benchLevel1Impl{} }, di.Singleton))
	mustRegister(b, di.Register[benchLevel2](c, func(l1 benchLevel1) benchLevel2 { return &benchLevel2Impl{dep: l1} }, di.Singleton))
	mustRegister(b, di.Register[benchLevel3](c, func(l2 benchLevel2) benchLevel3 { return &benchLevel3Impl{dep: l2} }, di.Singleton))
	mustRegister(b, di.Register[benchLevel4](c, func(l3 benchLevel3) benchLevel4 { return &benchLevel4Impl{dep: l3} }, di.Singleton))
	mustRegister(b, di.Register[benchLevel5](c, func(l4 benchLevel4) benchLevel5 { return &benchLevel5Impl{dep: l4} }, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[benchLevel5](c)
	}
}

// =============================================================================
// Named Resolution Benchmarks
// =============================================================================

func BenchmarkResolveNamed(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton, di.WithName("primary")))

	// Warm up
	_, _ = di.ResolveNamed[BenchLogger](c, "primary")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.ResolveNamed[BenchLogger](c, "primary")
	}
}

// =============================================================================
// Utility Benchmarks
// =============================================================================

func BenchmarkHas(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = di.Has[BenchLogger](c)
	}
}

func BenchmarkHasNamed(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.TransientReuse, di.WithName("named")))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = di.HasNamed[BenchLogger](c, "named")
	}
}

func BenchmarkOpenScope(b *testing.B) {
	c := di.New()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = c.OpenScope("scope")
	}
}

// =============================================================================
// Concurrent Benchmarks
// =============================================================================

func BenchmarkResolveSingletonParallel(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	// Warm up
	_, _ = di.Resolve[BenchLogger](c)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = di.Resolve[BenchLogger](c)
		}
	})
}

func BenchmarkResolveTransientParallel(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = di.Resolve[BenchLogger](c)
		}
	})
}

func BenchmarkResolveScopedParallel(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.ScopedReuse))

	scope := c.OpenScope("parallel")
	defer scope.Close()

	// Warm up
	_, _ = di.Resolve[BenchLogger](scope)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = di.Resolve[BenchLogger](scope)
		}
	})
}

func BenchmarkResolveWithDepsParallel(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	mustRegister(b, di.Register[BenchService](c, func(l BenchLogger) BenchService {
		return &benchServiceImpl{logger: l}
	}, di.TransientReuse))

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = di.Resolve[BenchService](c)
		}
	})
}

// =============================================================================
// Memory Benchmarks
// =============================================================================

func BenchmarkContainerWithManyRegistrations(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		c := di.New()

		// Register 100 default instances of the same type.
		for j := 0; j < 100; j++ {
			_ = di.Register[BenchLogger](c, func() BenchLogger {
				return &benchLoggerImpl{}
			}, di.TransientReuse)
		}
	}
}

func BenchmarkResolveFromLargeContainer(b *testing.B) {
	c := di.New()

	// Register many named services to simulate a production-sized container.
	for i := 0; i < 100; i++ {
		mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
			return &benchLoggerImpl{}
		}, di.Singleton, di.WithName(nameFor(i))))
	}

	// Warm up
	_, _ = di.ResolveNamed[BenchLogger](c, nameFor(50))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.ResolveNamed[BenchLogger](c, nameFor(50))
	}
}

// =============================================================================
// Compiled-factory cache benchmarks
//
// These isolate the cost the two caches (container.go's
// resolutionCache and factoredExprCache) is meant to amortize: the first
// resolution of a given (type, key) compiles a CompiledFactory and factors
// its Expression, every later resolution of the same pair should hit both
// tries instead of re-walking the constructor graph.
// =============================================================================

func BenchmarkResolutionCacheCold(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		c := di.New()
		mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
			return &benchLoggerImpl{}
		}, di.Singleton))
		_, _ = di.Resolve[BenchLogger](c)
	}
}

func BenchmarkResolutionCacheWarm(b *testing.B) {
	c := di.New()
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	// Warm both the factored-expression cache and the resolution cache.
	_, _ = di.Resolve[BenchLogger](c)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.Resolve[BenchLogger](c)
	}
}

func BenchmarkFactoredExpressionCacheManyKeys(b *testing.B) {
	c := di.New()
	const keys = 32
	for i := 0; i < keys; i++ {
		mustRegister(b, di.Register[BenchService](c, func(l BenchLogger) BenchService {
			return &benchServiceImpl{}
		}, di.TransientReuse, di.WithName(nameFor(i))))
	}
	mustRegister(b, di.Register[BenchLogger](c, func() BenchLogger {
		return &benchLoggerImpl{}
	}, di.Singleton))

	for i := 0; i < keys; i++ {
		_, _ = di.ResolveNamed[BenchService](c, nameFor(i))
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = di.ResolveNamed[BenchService](c, nameFor(i%keys))
	}
}

func mustRegister(b *testing.B, err error) {
	b.Helper()
	if err != nil {
		b.Fatalf("register: %v", err)
	}
}

func nameFor(i int) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if i == 0 {
		return "n0"
	}
	buf := make([]byte, 0, 8)
	for i > 0 {
		buf = append(buf, digits[i%len(digits)])
		i /= len(digits)
	}
	return "n" + string(buf)
}
