package di

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind identifies the class of failure a ContainerError reports. Kind
// values are stable; the message text is for humans.
type Kind int

const (
	UnableToResolve Kind = iota
	ExpectedSingleDefaultFactory
	DuplicateServiceName
	ExpectedImplAssignableToService
	UnableToRegisterOpenGenericImplWithNonGenericService
	UnableToRegisterOpenGenericImplDoesNotSpecifyAllTypeArgs
	ExpectedClosedGenericServiceType
	ExpectedNonAbstractImplType
	NoPublicConstructorDefined
	UnableToSelectConstructor
	ConstructorMissesSomeParameters
	ExpectedFuncWithMultipleArgs
	UnsupportedFuncWithArgs
	SomeFuncParamsAreUnused
	RecursiveDependencyDetected
	ScopeIsDisposed
	ContainerIsGarbageCollected
	UnableToFindRegisteredEnumerableItems
	UnableToResolveEnumerableItems
	DelegateFactoryExpressionReturnedNull
	DecoratorFactoryShouldSupportFuncResolution
	GenericWrapperExpectsSingleTypeArgByDefault
	UnableToFindOpenGenericImplTypeArg
	SwapExhausted
)

func (k Kind) String() string {
	switch k {
	case UnableToResolve:
		return "UnableToResolve"
	case ExpectedSingleDefaultFactory:
		return "ExpectedSingleDefaultFactory"
	case DuplicateServiceName:
		return "DuplicateServiceName"
	case ExpectedImplAssignableToService:
		return "ExpectedImplAssignableToService"
	case UnableToRegisterOpenGenericImplWithNonGenericService:
		return "UnableToRegisterOpenGenericImplWithNonGenericService"
	case UnableToRegisterOpenGenericImplDoesNotSpecifyAllTypeArgs:
		return "UnableToRegisterOpenGenericImplDoesNotSpecifyAllTypeArgs"
	case ExpectedClosedGenericServiceType:
		return "ExpectedClosedGenericServiceType"
	case ExpectedNonAbstractImplType:
		return "ExpectedNonAbstractImplType"
	case NoPublicConstructorDefined:
		return "NoPublicConstructorDefined"
	case UnableToSelectConstructor:
		return "UnableToSelectConstructor"
	case ConstructorMissesSomeParameters:
		return "ConstructorMissesSomeParameters"
	case ExpectedFuncWithMultipleArgs:
		return "ExpectedFuncWithMultipleArgs"
	case UnsupportedFuncWithArgs:
		return "UnsupportedFuncWithArgs"
	case SomeFuncParamsAreUnused:
		return "SomeFuncParamsAreUnused"
	case RecursiveDependencyDetected:
		return "RecursiveDependencyDetected"
	case ScopeIsDisposed:
		return "ScopeIsDisposed"
	case ContainerIsGarbageCollected:
		return "ContainerIsGarbageCollected"
	case UnableToFindRegisteredEnumerableItems:
		return "UnableToFindRegisteredEnumerableItems"
	case UnableToResolveEnumerableItems:
		return "UnableToResolveEnumerableItems"
	case DelegateFactoryExpressionReturnedNull:
		return "DelegateFactoryExpressionReturnedNull"
	case DecoratorFactoryShouldSupportFuncResolution:
		return "DecoratorFactoryShouldSupportFuncResolution"
	case GenericWrapperExpectsSingleTypeArgByDefault:
		return "GenericWrapperExpectsSingleTypeArgByDefault"
	case UnableToFindOpenGenericImplTypeArg:
		return "UnableToFindOpenGenericImplTypeArg"
	case SwapExhausted:
		return "SwapExhausted"
	default:
		return "Unknown"
	}
}

// ContainerError is the single exception kind the container raises. It
// carries a stable Kind plus a human-readable, pluggable-format message.
//
// Example:
//
//	_, err := di.Resolve[Logger](c)
//	var cerr *di.ContainerError
//	if errors.As(err, &cerr) && cerr.Kind == di.UnableToResolve {
//	    // ...
//	}
type ContainerError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *ContainerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("di: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("di: %s", e.Kind)
}

// Unwrap returns the underlying cause, if any, so errors.Is/errors.As see
// through a ContainerError to a wrapped user or dependency error.
func (e *ContainerError) Unwrap() error {
	return e.Cause
}

// ErrorFormatter builds the message text for a ContainerError. The default
// formatter is used unless an Option overrides it with WithErrorFormatter.
type ErrorFormatter func(kind Kind, args ...any) string

func defaultErrorFormatter(kind Kind, args ...any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, "; ")
}

func newErr(fmtr ErrorFormatter, kind Kind, args ...any) *ContainerError {
	if fmtr == nil {
		fmtr = defaultErrorFormatter
	}
	return &ContainerError{Kind: kind, Message: fmtr(kind, args...)}
}

func newErrCause(fmtr ErrorFormatter, kind Kind, cause error, args ...any) *ContainerError {
	e := newErr(fmtr, kind, args...)
	e.Cause = cause
	return e
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
