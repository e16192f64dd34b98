package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

// WrapperField is the object field that wraps a record list in upstream responses.
const WrapperField = "result"

// Decode parses raw as a single JSON value, keeping numbers as [json.Number].
func Decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", shared.ErrInvalidInput)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", shared.ErrInvalidInput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", shared.ErrInvalidInput)
	}
	return v, nil
}

// Normalize converts a payload into a record sequence.
//
// A top-level array yields its elements. An object whose "result" field is a non-empty
// array yields that array; any other object yields itself. Every yielded element must be
// an object. Scalars, null and malformed JSON fail with [shared.ErrInvalidInput].
func Normalize(raw []byte) ([]models.ExternalRecord, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return NormalizeValue(v)
}

// NormalizeValue applies the [Normalize] rules to an already decoded value.
func NormalizeValue(v any) ([]models.ExternalRecord, error) {
	switch payload := v.(type) {
	case []any:
		return objects(payload)
	case map[string]any:
		if items, ok := payload[WrapperField].([]any); ok && len(items) > 0 {
			return objects(items)
		}
		return []models.ExternalRecord{payload}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected payload format", shared.ErrInvalidInput)
	}
}

func objects(items []any) ([]models.ExternalRecord, error) {
	records := make([]models.ExternalRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", shared.ErrInvalidInput, i)
		}
		records = append(records, obj)
	}
	return records, nil
}
