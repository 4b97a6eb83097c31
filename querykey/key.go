// Package querykey builds the canonical identities the query cache is keyed by.
//
// A Key is an ordered tuple of strings. Two reads share cached data iff their
// keys are structurally equal. The canonical string form length-prefixes every
// part, so no two distinct tuples can render to the same string:
//
//	Key{"todos", "1", "10"}  -> "5:todos1:12:10"
//	Key{"todos", "11", "0"}  -> "5:todos2:111:0"
package querykey

import (
	"strconv"
	"strings"
)

// Key is an ordered tuple of strings. Treat it as immutable.
type Key []string

// New copies parts into a Key.
func New(parts ...string) Key {
	k := make(Key, len(parts))
	copy(k, parts)
	return k
}

// String renders the canonical, injective form of the key.
func (k Key) String() string {
	var b strings.Builder
	for _, p := range k {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Resource is the first component: the resource class whose version counter
// governs the key.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Equal reports structural equality.
func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a tuple prefix of k. Matching is per
// component: Key{"todos"} is a prefix of Key{"todos","1"} but not of Key{"todos-archive"}.
// The empty prefix matches everything.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return k[:len(prefix)].Equal(prefix)
}
