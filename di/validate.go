package di

import (
	"fmt"
	"reflect"
)

// ValidationError collects every resolution failure Validate or
// ValidateResolutions found, rather than stopping at the first one.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d registrations failed validation (first: %s)", len(e.Errors), e.Errors[0].Error())
}

// Validate attempts to build (but not compile or invoke) the
// construction expression for every registered service/key pair,
// surfacing configuration mistakes — missing dependencies, recursive
// chains, unresolvable constructor parameters — at startup instead of at
// first use.
func (c *Container) Validate() error {
	c.mu.RLock()
	var reqs []*Request
	for serviceType, entry := range c.registrations {
		for i, f := range entry.defaultFactories {
			if f != nil {
				reqs = append(reqs, NewRequest(serviceType, IndexKey(i)))
			}
		}
		for name := range entry.namedFactories {
			reqs = append(reqs, NewRequest(serviceType, NamedKey(name)))
		}
	}
	c.mu.RUnlock()

	var errs []error
	for _, req := range reqs {
		if _, err := c.resolveExpression(req); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.ServiceType.String(), err))
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidateResolutions validates only the default registration of each
// given type, for callers who want to check specific entry points (e.g.
// the services an HTTP handler set actually depends on) without walking
// every registration, some of which may be intentionally unused until a
// feature flag enables them.
func (c *Container) ValidateResolutions(types ...reflect.Type) error {
	var errs []error
	for _, t := range types {
		req := NewRequest(t, DefaultKey())
		if _, err := c.resolveExpression(req); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.String(), err))
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// validateFactory enforces spec.md §4.1/§4.3's register-time checks for a
// Reflection factory: when the implementation type differs from
// serviceType it must not be abstract and must be assignable to
// serviceType (when the two are the same type, as for Register[T] and
// RegisterDecorator[T], the constructor func itself produces the value,
// so an interface T is accepted), and every candidate
// constructor's declared return type must actually produce that
// implementation type. Delegate and Provider factories have no statically
// known return type until their function runs, so they are left to the
// register-time checks that do apply to them elsewhere (RegisterAssignableTypes'
// zero-match check, the Provider's own perRequest validation) rather than
// a blanket assignability probe here.
func validateFactory(fmtr ErrorFormatter, serviceType reflect.Type, f *Factory) error {
	if f.Kind != FactoryReflection {
		return nil
	}
	implType := f.ImplementationType

	abstract := implType != serviceType && (implType.Kind() == reflect.Interface ||
		(implType.Kind() == reflect.Ptr && implType.Elem().Kind() == reflect.Interface))
	if abstract {
		return newErr(fmtr, ExpectedNonAbstractImplType, typeName(implType))
	}

	if serviceType != implType && !implType.AssignableTo(serviceType) {
		return newErr(fmtr, ExpectedImplAssignableToService, typeName(implType), typeName(serviceType))
	}

	for _, ctor := range f.ctorCandidates {
		if ctor.Kind() != reflect.Func || ctor.Type().NumOut() == 0 {
			continue
		}
		outType := ctor.Type().Out(0)
		if !outType.AssignableTo(implType) {
			return newErr(fmtr, ExpectedImplAssignableToService, typeName(outType), typeName(implType))
		}
	}
	return nil
}
