package di

import "reflect"

// UnregisteredServiceRule is consulted, in registration order, when a
// service has no matching registration. The first rule to return a
// non-nil Factory wins; its result is registered under the request's
// service type and key so later resolutions skip the rules.
type UnregisteredServiceRule func(req *Request, c *Container) *Factory

// ConstructorParameterKeyRule derives the ServiceKey a constructor
// parameter should resolve under, given its declared type, its name
// (always "" — Go reflection does not expose parameter names and no
// registration path records them), and the in-flight request.
type ConstructorParameterKeyRule func(paramType reflect.Type, paramName string, req *Request) ServiceKey

// MemberKeyRule derives the ServiceKey a property/field should resolve
// under, and whether it should be injected at all.
type MemberKeyRule func(memberType reflect.Type, memberName string, req *Request) (key ServiceKey, inject bool)

// AmbiguityRule resolves which factory to use when a service type has
// more than one default registration (spec: GetSingleRegisteredFactory).
// Returning ok=false falls back to ExpectedSingleDefaultFactory.
type AmbiguityRule func(candidates []*Factory) (chosen *Factory, ok bool)

// ResolutionRules bundles the container's pluggable resolution hooks.
type ResolutionRules struct {
	UnregisteredServices       []UnregisteredServiceRule
	ConstructorParameterKey    ConstructorParameterKeyRule
	PropertyOrFieldKey         MemberKeyRule
	SelectSingleRegisteredFactory AmbiguityRule
}

func defaultRules() ResolutionRules {
	return ResolutionRules{
		ConstructorParameterKey: func(paramType reflect.Type, paramName string, req *Request) ServiceKey {
			return DefaultKey()
		},
		PropertyOrFieldKey: func(memberType reflect.Type, memberName string, req *Request) (ServiceKey, bool) {
			return DefaultKey(), false
		},
	}
}
