// Package codec centralizes JSON encoding of session results and frame
// footers.
//
// Frame blobs record the codec name in their trailer; readers resolve it
// with ByName.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Decode unmarshals data with c (Default if nil) and annotates failures with
// the codec name.
func Decode(c Codec, data []byte, v any) error {
	if c == nil {
		c = Default
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec %s: %w", c.Name(), err)
	}
	return nil
}
