package cache

import "encoding/json"

// Codec turns provider values into the bytes a Store persists. Unmarshal must
// return a value structurally equal to the one passed to Marshal.
type Codec[V any] interface {
	Marshal(V) ([]byte, error)
	Unmarshal([]byte) (V, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Marshal(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// BytesCodec stores []byte values unchanged.
type BytesCodec struct{}

func (BytesCodec) Marshal(v []byte) ([]byte, error) { return v, nil }

func (BytesCodec) Unmarshal(data []byte) ([]byte, error) { return data, nil }
