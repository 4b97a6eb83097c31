package util

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// StorageKey maps a canonical query key to a bounded provider key:
// q:<ns>:<xxhash64 hex>. Collisions are resolved by the full key stored in the frame.
func StorageKey(ns, canonical string) string {
	return "q:" + ns + ":" + strconv.FormatUint(xxhash.Sum64String(canonical), 16)
}
