package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// maxCBORItems caps array and map sizes on decode; a todo page holds at most
// 100 items, an owner list a few thousand.
const maxCBORItems = 1 << 16

// CBOR serializes with fxamacker/cbor. Struct fields use their json tags when
// no cbor tag is present. Build it with NewCBOR; the zero value panics.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds the codec. deterministic selects RFC 8949 core deterministic
// encoding (byte-stable output); times are always RFC3339Nano strings so
// CreatedAt survives a round trip with its zone.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}

	dm, err := cbor.DecOptions{
		MaxArrayElements: maxCBORItems,
		MaxMapPairs:      maxCBORItems,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
