package ndjson

import (
	"bytes"

	"github.com/buger/jsonparser"
	json "github.com/goccy/go-json"

	"jsonl2parquet/internal/schema"
)

// extractor converts one raw JSON value into a cell for its column. Returning
// nil stores NULL.
type extractor func(value []byte, dt jsonparser.ValueType) any

func extractorFor(k schema.Kind) extractor {
	switch k {
	case schema.Int:
		return extractInt
	case schema.JSON:
		return extractJSON
	default:
		return extractText
	}
}

func extractText(value []byte, dt jsonparser.ValueType) any {
	if dt != jsonparser.String {
		return nil
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return nil
	}
	return s
}

func extractInt(value []byte, dt jsonparser.ValueType) any {
	if dt != jsonparser.Number {
		return nil
	}
	n, err := jsonparser.ParseInt(value)
	if err != nil {
		return nil
	}
	return n
}

// extractJSON keeps the value as compact JSON text. jsonparser hands string
// values over without their quotes, so they are put back.
func extractJSON(value []byte, dt jsonparser.ValueType) any {
	switch dt {
	case jsonparser.Null, jsonparser.NotExist, jsonparser.Unknown:
		return nil
	case jsonparser.String:
		b := make([]byte, 0, len(value)+2)
		b = append(b, '"')
		b = append(b, value...)
		b = append(b, '"')
		return string(b)
	case jsonparser.Object, jsonparser.Array:
		var buf bytes.Buffer
		buf.Grow(len(value))
		if err := json.Compact(&buf, value); err != nil {
			return nil
		}
		return buf.String()
	default:
		return string(value)
	}
}
