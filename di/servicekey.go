package di

import (
	"hash/fnv"
	"reflect"
	"strconv"
	"strings"
)

// ServiceKeyKind discriminates the three flavors of ServiceKey.
type ServiceKeyKind int

const (
	// KeyDefault is the unkeyed, zero-value key.
	KeyDefault ServiceKeyKind = iota
	// KeyIndex disambiguates multiple default registrations by
	// insertion order.
	KeyIndex
	// KeyName disambiguates registrations by an explicit string name.
	KeyName
)

// ServiceKey disambiguates multiple registrations for the same service
// type: Default (unkeyed), an integer index (for multiple unnamed
// registrations), or a string name. Named keys within a service type are
// unique; duplicates are rejected at registration.
type ServiceKey struct {
	Kind  ServiceKeyKind
	Index int
	Name  string
}

// DefaultKey returns the zero-value, unkeyed ServiceKey.
func DefaultKey() ServiceKey { return ServiceKey{} }

// IndexKey returns the key for the i-th default registration of a
// service type, counted from the first in insertion order.
func IndexKey(i int) ServiceKey { return ServiceKey{Kind: KeyIndex, Index: i} }

// NamedKey returns the key for a named registration.
func NamedKey(name string) ServiceKey { return ServiceKey{Kind: KeyName, Name: name} }

func (k ServiceKey) String() string {
	switch k.Kind {
	case KeyIndex:
		return "#" + strconv.Itoa(k.Index)
	case KeyName:
		return k.Name
	default:
		return "default"
	}
}

// resolutionCacheKey is the trie key for the (type, key) -> CompiledFactory
// resolution cache.
type resolutionCacheKey struct {
	typ reflect.Type
	key ServiceKey
}

func (k resolutionCacheKey) TrieHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(k.typ.String()))
	h.Write([]byte{byte(k.key.Kind)})
	switch k.key.Kind {
	case KeyIndex:
		h.Write([]byte(strconv.Itoa(k.key.Index)))
	case KeyName:
		h.Write([]byte(k.key.Name))
	}
	return h.Sum64()
}

// factoryIDKey is the trie key for the factory_id -> Expression cache.
type factoryIDKey int64

func (k factoryIDKey) TrieHash() uint64 {
	x := uint64(k)
	// splitmix64 finalizer, spreads sequential factory ids evenly.
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// familyName returns the generic base name of a reflect.Type's string
// form, e.g. "Repository" for "pkg.Repository[int]". Non-generic types
// return their full string unchanged. Go reflection has no way to
// instantiate an arbitrary generic definition at runtime (see
// RegisterOpenGeneric); this string-based family key is how the container
// recognizes that two closed types ("Repository[int]", "Repository[string]")
// belong to the same open-generic registration.
func familyName(t reflect.Type) string {
	s := t.String()
	if i := strings.IndexByte(s, '['); i >= 0 {
		return s[:i]
	}
	return s
}

// isGenericInstantiation reports whether t's string form carries type
// arguments in brackets.
func isGenericInstantiation(t reflect.Type) bool {
	return strings.IndexByte(t.String(), '[') >= 0
}

// genericTypeArgNames splits the bracketed argument list of a generic
// instantiation's string form, e.g. "Pair[int,string]" -> ["int","string"].
// Used only for diagnostics; actual type arguments for specialization are
// threaded through structurally by RegisterOpenGeneric bindings, not
// re-derived from this string.
func genericTypeArgNames(t reflect.Type) []string {
	s := t.String()
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	inner := s[start+1 : end]
	depth := 0
	var parts []string
	last := 0
	for i, r := range inner {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(inner[last:i]))
				last = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(inner[last:]))
	return parts
}
