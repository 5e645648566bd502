package di_test

import (
	"testing"

	"github.com/pegasusheavy/go-ioc/di"
)

func TestMinimalSkipsBuiltinWrappers(t *testing.T) {
	c := di.New(di.Minimal())
	di.RegisterType[Greeter, *SimpleGreeter](c, func() *SimpleGreeter { return &SimpleGreeter{} }, di.TransientReuse)

	if _, err := di.Resolve[[]Greeter](c); err == nil {
		t.Fatal("expected the enumerable/array wrapper to be unavailable under Minimal()")
	}
}

func TestWithErrorFormatterOverridesMessages(t *testing.T) {
	c := di.New(di.WithErrorFormatter(func(kind di.Kind, args ...any) string {
		return "custom:" + kind.String()
	}))

	_, err := di.Resolve[Greeter](c)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Error(); got != "di: UnableToResolve: custom:UnableToResolve" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveUnregisteredFromFallsBackToOtherContainer(t *testing.T) {
	fallback := di.New()
	di.RegisterType[Greeter, *SimpleGreeter](fallback, func() *SimpleGreeter { return &SimpleGreeter{} }, di.TransientReuse)

	c := di.New(di.ResolveUnregisteredFrom(fallback))
	g, err := di.Resolve[Greeter](c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.Greet("x") != "Hello, x" {
		t.Fatalf("Greet() = %q", g.Greet("x"))
	}
}

func TestEnumerableWrapperSnapshotsRegistrationsAtFirstResolve(t *testing.T) {
	c := di.New()
	di.RegisterType[Greeter, *SimpleGreeter](c, func() *SimpleGreeter { return &SimpleGreeter{} }, di.TransientReuse, di.WithName("a"))

	all, err := di.Resolve[[]Greeter](c)
	if err != nil {
		t.Fatalf("Resolve[[]Greeter]: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d greeters, want 1", len(all))
	}

	di.RegisterType[Greeter, *SimpleGreeter](c, func() *SimpleGreeter { return &SimpleGreeter{} }, di.TransientReuse, di.WithName("b"))
	again, _ := di.Resolve[[]Greeter](c)
	if len(again) != 1 {
		t.Fatal("the array wrapper must stay a frozen snapshot from its first resolution, unlike ResolveMany")
	}
}
