// Package codec converts cached response values to and from bytes for the
// value provider. JSON is the default; Msgpack and CBOR are more compact.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the codec registered under name ("json", "msgpack", "cbor").
// ok is false for unknown names.
func ByName[V any](name string) (c Codec[V], ok bool) {
	switch name {
	case "", "json":
		return JSON[V]{}, true
	case "msgpack":
		return Msgpack[V]{}, true
	case "cbor":
		cb, err := NewCBOR[V](false)
		if err != nil {
			return nil, false
		}
		return cb, true
	}
	return nil, false
}
