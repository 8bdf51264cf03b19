package jsonv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tailscale/hujson"
)

// ErrInvalidFormat indicates text that is not valid JSON or JSONC.
var ErrInvalidFormat = errors.New("invalid format")

// indent is the per-level indentation written by [Marshal].
const indent = "  "

// Parse decodes JSON or JSONC text into the value model.
//
// Comments and trailing commas are accepted and dropped. On failure the
// returned error wraps [ErrInvalidFormat] and no value is returned.
func Parse(data []byte) (any, error) {
	standardized, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after value", ErrInvalidFormat)
	}

	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		// nil, bool, json.Number, string
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := NewObject()

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, want string", tok)
		}

		if obj.Has(key) {
			return nil, fmt.Errorf("duplicate object key %q", key)
		}

		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		obj.Set(key, v)
	}

	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return obj, nil
}

func decodeArray(dec *json.Decoder) (*Array, error) {
	arr := &Array{Elems: []any{}}

	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		arr.Elems = append(arr.Elems, v)
	}

	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return arr, nil
}

// Marshal encodes v in the canonical form: two-space indentation, ": "
// separators, no HTML escaping, numbers verbatim and one trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	err := writeValue(&buf, v, 0)
	if err != nil {
		return nil, err
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// MarshalCompact encodes v on a single line without insignificant whitespace.
func MarshalCompact(v any) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	err = json.Compact(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("compact: %w", err)
	}

	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any, depth int) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		if !json.Valid([]byte(val)) {
			return fmt.Errorf("%w: invalid number %q", ErrUnsupported, string(val))
		}

		buf.WriteString(string(val))
	case string:
		return writeString(buf, val)
	case *Object:
		return writeObject(buf, val, depth)
	case *Array:
		return writeArray(buf, val, depth)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, v)
	}

	return nil
}

func writeObject(buf *bytes.Buffer, obj *Object, depth int) error {
	if obj.Len() == 0 {
		buf.WriteString("{}")

		return nil
	}

	buf.WriteString("{\n")

	for i, k := range obj.keys {
		writeIndent(buf, depth+1)

		err := writeString(buf, k)
		if err != nil {
			return err
		}

		buf.WriteString(": ")

		err = writeValue(buf, obj.vals[k], depth+1)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}

		if i < len(obj.keys)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	writeIndent(buf, depth)
	buf.WriteByte('}')

	return nil
}

func writeArray(buf *bytes.Buffer, arr *Array, depth int) error {
	if arr.Len() == 0 {
		buf.WriteString("[]")

		return nil
	}

	buf.WriteString("[\n")

	for i, elem := range arr.Elems {
		writeIndent(buf, depth+1)

		err := writeValue(buf, elem, depth+1)
		if err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}

		if i < len(arr.Elems)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	writeIndent(buf, depth)
	buf.WriteByte(']')

	return nil
}

func writeIndent(buf *bytes.Buffer, depth int) {
	for range depth {
		buf.WriteString(indent)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer

	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("encode string: %w", err)
	}

	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))

	return nil
}
