package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryKey identifies a cached read. Two keys are equal when every element
// encodes to the same canonical JSON, so ["recipes","list",{"page":1}] built
// from a map or a struct with the same fields hits the same entry.
type QueryKey []any

// Key builds a QueryKey from its elements
func Key(parts ...any) QueryKey {
	return QueryKey(parts)
}

// Append returns a new key extended with parts. k is never modified.
func (k QueryKey) Append(parts ...any) QueryKey {
	out := make(QueryKey, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// String returns the canonical form of the key, used as the map key
func (k QueryKey) String() string {
	return "[" + strings.Join(k.encode(), ",") + "]"
}

// HasPrefix reports whether the first len(prefix) elements of k equal prefix.
// An empty prefix matches every key.
func (k QueryKey) HasPrefix(prefix QueryKey) bool {
	return hasPrefix(k.encode(), prefix.encode())
}

// Equal reports structural equality
func (k QueryKey) Equal(other QueryKey) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func (k QueryKey) encode() []string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = encodePart(p)
	}
	return parts
}

func encodePart(p any) string {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprintf("%#v", p))
	}
	// json.Marshal sorts map keys, so maps encode canonically. Round-trip
	// through a generic value so a struct and a map with the same fields match.
	var generic any
	if json.Unmarshal(b, &generic) == nil {
		if canon, err := json.Marshal(generic); err == nil {
			return string(canon)
		}
	}
	return string(b)
}

func hasPrefix(parts, prefix []string) bool {
	if len(prefix) > len(parts) {
		return false
	}
	for i := range prefix {
		if parts[i] != prefix[i] {
			return false
		}
	}
	return true
}
