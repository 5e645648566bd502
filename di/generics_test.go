package di_test

import (
	"reflect"
	"testing"

	"github.com/pegasusheavy/go-ioc/di"
)

type Box[T any] struct {
	Value T
}

func NewBox[T any](v T) *Box[T] {
	return &Box[T]{Value: v}
}

func registerBoxFamily(t *testing.T, c *di.Container) string {
	t.Helper()
	family := di.FamilyNameOf(reflect.TypeOf((*Box[int])(nil)))
	bind := di.NewOpenGenericBind(
		di.RegisterGenericCase[*Box[int], *Box[int]](func() *Box[int] { return NewBox(7) }, di.Singleton, di.ServiceSetup(), false),
		di.RegisterGenericCase[*Box[string], *Box[string]](func() *Box[string] { return NewBox("seven") }, di.TransientReuse, di.ServiceSetup(), false),
	)
	di.RegisterOpenGeneric(c, family, bind)
	return family
}

func TestOpenGenericResolvesEachClosedInstantiation(t *testing.T) {
	c := di.New()
	registerBoxFamily(t, c)

	intBox, err := di.Resolve[*Box[int]](c)
	if err != nil {
		t.Fatalf("Resolve[*Box[int]]: %v", err)
	}
	if intBox.Value != 7 {
		t.Fatalf("intBox.Value = %d, want 7", intBox.Value)
	}

	strBox, err := di.Resolve[*Box[string]](c)
	if err != nil {
		t.Fatalf("Resolve[*Box[string]]: %v", err)
	}
	if strBox.Value != "seven" {
		t.Fatalf("strBox.Value = %q, want %q", strBox.Value, "seven")
	}
}

func TestOpenGenericMemoizesClosedFactory(t *testing.T) {
	c := di.New()
	registerBoxFamily(t, c)

	a, _ := di.Resolve[*Box[int]](c)
	b, _ := di.Resolve[*Box[int]](c)
	if a != b {
		t.Fatal("Singleton reuse on a closed open-generic instantiation must be memoized across resolutions")
	}
}

func TestOpenGenericUnknownClosedTypeFails(t *testing.T) {
	c := di.New()
	registerBoxFamily(t, c)

	_, err := di.Resolve[*Box[float64]](c)
	if err == nil {
		t.Fatal("expected resolving an unbound closed instantiation to fail")
	}
}

func TestFamilyNameOfMatchesAcrossInstantiations(t *testing.T) {
	a := di.FamilyNameOf(reflect.TypeOf((*Box[int])(nil)))
	b := di.FamilyNameOf(reflect.TypeOf((*Box[string])(nil)))
	if a != b {
		t.Fatalf("FamilyNameOf(Box[int]) = %q, FamilyNameOf(Box[string]) = %q; want them equal", a, b)
	}
}

func TestFamilyNameOfDiffersByPointerShape(t *testing.T) {
	ptr := di.FamilyNameOf(reflect.TypeOf((*Box[int])(nil)))
	val := di.FamilyNameOf(reflect.TypeOf(Box[int]{}))
	if ptr == val {
		t.Fatalf("FamilyNameOf must distinguish pointer and value shapes, both reported %q", ptr)
	}
}
