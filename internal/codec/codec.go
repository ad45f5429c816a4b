// Package codec is the shared self-describing payload encoding every
// CRDT's export/import and the versioned facade's Custom payloads build
// on. It wraps CBOR in canonical mode so map-valued CRDT state (G-Counter
// slots, OR-Set tags, ...) serializes to the same bytes regardless of Go's
// unordered map iteration, satisfying the "stable serialization"
// requirement for ordered-comparable value types.
package codec

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	once    sync.Once
)

func mode() cbor.EncMode {
	once.Do(func() {
		opts := cbor.CanonicalEncOptions()
		m, err := opts.EncMode()
		if err != nil {
			panic("codec: building canonical CBOR encoder: " + err.Error())
		}
		encMode = m
	})
	return encMode
}

// Marshal encodes v as canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return mode().Marshal(v)
}

// Unmarshal decodes CBOR-encoded data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
