package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// DecodeJSON parses a JSON document into a Value, preserving object key order.
// The stdlib map decoding would randomize key order, so this walks the token
// stream instead.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeToken(dec)
	if err != nil {
		return Null(), err
	}

	// A valid document holds exactly one value.
	if dec.More() {
		return Null(), fmt.Errorf("structured: trailing data after JSON value")
	}

	return v, nil
}

func decodeToken(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), fmt.Errorf("structured: invalid JSON: %w", err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return Null(), fmt.Errorf("structured: unexpected delimiter %q", t)
		}
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("structured: invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case nil:
		return Null(), nil
	default:
		return Null(), fmt.Errorf("structured: unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	m := Map()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Null(), fmt.Errorf("structured: invalid JSON object: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Null(), fmt.Errorf("structured: object key is %T, not string", keyTok)
		}
		val, err := decodeToken(dec)
		if err != nil {
			return Null(), err
		}
		m.Set(key, val)
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return Null(), fmt.Errorf("structured: unterminated JSON object: %w", err)
	}
	return m, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	l := List()
	for dec.More() {
		item, err := decodeToken(dec)
		if err != nil {
			return Null(), err
		}
		l.Append(item)
	}
	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return Null(), fmt.Errorf("structured: unterminated JSON array: %w", err)
	}
	return l, nil
}

// MarshalJSON implements json.Marshaler, preserving map key insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJSONIndent renders the value as pretty-printed JSON with map key
// insertion order preserved.
func EncodeJSONIndent(v Value) (string, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// writeJSON serializes v into buf. When canonical is true, map keys are
// written in sorted order instead of insertion order.
func writeJSON(buf *bytes.Buffer, v Value, canonical bool) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		raw, err := json.Marshal(v.num)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindString:
		raw, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item, canonical); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		keys := v.keys
		if canonical {
			keys = append([]string(nil), v.keys...)
			sort.Strings(keys)
		}
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			rawKey, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(rawKey)
			buf.WriteByte(':')
			if err := writeJSON(buf, v.fields[k], canonical); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("structured: cannot marshal %s value", v.kind)
	}
	return nil
}
