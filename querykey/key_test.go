package querykey

import "testing"

func TestKeyStringIsInjective(t *testing.T) {
	a := Key{"todos", "1", "10"}
	b := Key{"todos", "11", "0"}
	if a.String() == b.String() {
		t.Fatalf("keys collided: %q", a.String())
	}
	if got, want := a.String(), "5:todos1:12:10"; got != want {
		t.Fatalf("String()=%q want %q", got, want)
	}

	// separators inside parts must not be able to forge a boundary
	c := Key{"a:b", "c"}
	d := Key{"a", "b:c"}
	if c.String() == d.String() {
		t.Fatalf("keys with embedded separators collided: %q", c.String())
	}
}

func TestKeyHasPrefix(t *testing.T) {
	k := Key{"todos", "1", "10", "descending"}

	if !k.HasPrefix(Key{"todos"}) {
		t.Fatalf("expected todos prefix")
	}
	if !k.HasPrefix(nil) {
		t.Fatalf("empty prefix should match")
	}
	if !k.HasPrefix(k) {
		t.Fatalf("key should be its own prefix")
	}
	if k.HasPrefix(Key{"todo"}) {
		t.Fatalf("prefix matching must be per component")
	}
	if (Key{"todos-archive", "1"}).HasPrefix(Key{"todos"}) {
		t.Fatalf("todos-archive must not match todos")
	}
	if (Key{"todos"}).HasPrefix(k) {
		t.Fatalf("longer prefix cannot match")
	}
}

func TestNewCopies(t *testing.T) {
	parts := []string{"todos", "owner"}
	k := New(parts...)
	parts[0] = "users"
	if k.Resource() != "todos" {
		t.Fatalf("New must copy its input, got resource %q", k.Resource())
	}
	if (Key{}).Resource() != "" {
		t.Fatalf("empty key has no resource")
	}
}
