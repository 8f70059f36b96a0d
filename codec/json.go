package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// It decodes the same documents as GoJSON and is kept for frames written
// with it and for comparison in benchmarks.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for new frames and session results.
var Default Codec = GoJSON{}
