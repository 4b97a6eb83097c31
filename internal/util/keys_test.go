package util

import (
	"strings"
	"testing"
)

func TestStorageKeyStableAndNamespaced(t *testing.T) {
	a := StorageKey("todos", "5:todos1:12:10")
	if a != StorageKey("todos", "5:todos1:12:10") {
		t.Fatalf("StorageKey must be deterministic")
	}
	if !strings.HasPrefix(a, "q:todos:") {
		t.Fatalf("missing namespace prefix: %q", a)
	}
	if a == StorageKey("other", "5:todos1:12:10") {
		t.Fatalf("namespaces must not share storage keys")
	}
	if a == StorageKey("todos", "5:todos2:111:0") {
		t.Fatalf("distinct canonical keys hashed identically")
	}
}
