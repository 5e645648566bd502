package di_test

import (
	"reflect"
	"testing"

	"github.com/pegasusheavy/go-ioc/di"
)

type Reader interface {
	Read() string
}

type Writer interface {
	Write(string)
}

type FileStore struct {
	contents string
}

func (f *FileStore) Read() string     { return f.contents }
func (f *FileStore) Write(s string)   { f.contents = s }

func TestRegisterAssignableTypesSharesOneInstance(t *testing.T) {
	c := di.New()
	implType := reflect.TypeOf(&FileStore{})
	err := di.RegisterAssignableTypes(c, implType, func() *FileStore { return &FileStore{} }, di.Singleton,
		[]reflect.Type{reflect.TypeOf((*Reader)(nil)).Elem(), reflect.TypeOf((*Writer)(nil)).Elem()})
	if err != nil {
		t.Fatalf("RegisterAssignableTypes: %v", err)
	}

	r, err := di.Resolve[Reader](c)
	if err != nil {
		t.Fatalf("Resolve[Reader]: %v", err)
	}
	w, err := di.Resolve[Writer](c)
	if err != nil {
		t.Fatalf("Resolve[Writer]: %v", err)
	}
	w.Write("hello")
	if r.Read() != "hello" {
		t.Fatal("Reader and Writer must resolve to the same shared singleton instance")
	}
}

func TestRegisterAssignableTypesRejectsNoMatch(t *testing.T) {
	c := di.New()
	implType := reflect.TypeOf(0)
	err := di.RegisterAssignableTypes(c, implType, func() int { return 1 }, di.TransientReuse,
		[]reflect.Type{reflect.TypeOf((*Reader)(nil)).Elem()})
	if err == nil {
		t.Fatal("expected an error when implType satisfies none of the service types")
	}
}

type injectedTarget struct {
	Logger Logger `di:""`
	Named  Logger `di:"audit"`
	Ignore string
}

func TestResolvePropertiesAndFieldsPopulatesTaggedFields(t *testing.T) {
	c := di.New()
	di.RegisterType[Logger, *TestLogger](c, func() *TestLogger { return &TestLogger{} }, di.Singleton)
	di.RegisterType[Logger, *TestLogger](c, func() *TestLogger { return &TestLogger{} }, di.Singleton, di.WithName("audit"))

	target := &injectedTarget{}
	if err := di.ResolvePropertiesAndFields(c, target); err != nil {
		t.Fatalf("ResolvePropertiesAndFields: %v", err)
	}
	if target.Logger == nil {
		t.Fatal("expected the default-keyed field to be populated")
	}
	if target.Named == nil {
		t.Fatal("expected the named field to be populated")
	}
	if target.Logger == target.Named {
		t.Fatal("the default and named registrations must resolve to distinct instances")
	}
}

func TestMustResolvePanicsOnFailure(t *testing.T) {
	c := di.New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustResolve to panic on an unresolved service")
		}
	}()
	di.MustResolve[Reader](c)
}

func TestResolveInScopeClosesAfterUse(t *testing.T) {
	c := di.New()
	closed := false
	di.RegisterDelegate[*Closer](c, func(*di.Container) (*Closer, error) {
		return &Closer{closed: &closed}, nil
	}, di.ScopedReuse)

	_, err := di.ResolveInScope[*Closer](c, func(scope *di.Container) (*Closer, error) {
		return di.Resolve[*Closer](scope)
	})
	if err != nil {
		t.Fatalf("ResolveInScope: %v", err)
	}
	if !closed {
		t.Fatal("expected ResolveInScope to close its scope, disposing the scoped instance")
	}
}
