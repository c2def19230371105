package feeder

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// encodeRecord returns the wire bytes of r.
func encodeRecord(r Record) ([]byte, error) {
	switch v := r.(type) {
	case nil:
		return nil, errors.New("nil record")
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// encodeDocument turns r into a document for the document-shaped backends.
// Plain text becomes {"message": text}.
func encodeDocument(r Record) (map[string]any, error) {
	switch v := r.(type) {
	case nil:
		return nil, errors.New("nil record")
	case map[string]any:
		return v, nil
	case string:
		return map[string]any{"message": v}, nil
	case []byte:
		return decodeDocument(v)
	case json.RawMessage:
		return decodeDocument(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return decodeDocument(b)
	}
}

func decodeDocument(b []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return map[string]any{"message": string(b)}, nil
	}
	if doc == nil {
		return nil, errors.New("record is not a document")
	}
	return doc, nil
}
