package codec

import "encoding/json"

// JSON is the default codec. Response types already carry json tags for the
// API, so no extra annotation is needed.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
