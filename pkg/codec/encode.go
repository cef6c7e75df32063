package codec

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// Encoded is the result of serializing a structured value. JSON, CSV, and XML
// targets produce text; tabular and list targets produce a normalized value.
type Encoded struct {
	Format Format

	// Text holds the serialized output for text targets.
	Text string

	// Value holds the normalized output for tabular and list targets.
	Value structured.Value
}

// Encode serializes a value into the target format.
func Encode(v structured.Value, format Format) (*Encoded, error) {
	switch format {
	case FormatJSON:
		text, err := structured.EncodeJSONIndent(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return &Encoded{Format: FormatJSON, Text: text}, nil

	case FormatCSV:
		text, err := encodeCSV(v)
		if err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
		return &Encoded{Format: FormatCSV, Text: text}, nil

	case FormatXML:
		text, err := encodeXML(v)
		if err != nil {
			return nil, fmt.Errorf("encode xml: %w", err)
		}
		return &Encoded{Format: FormatXML, Text: text}, nil

	case FormatTabular:
		return &Encoded{Format: FormatTabular, Value: toTabular(v)}, nil

	case FormatList:
		return &Encoded{Format: FormatList, Value: toList(v)}, nil

	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// encodeCSV renders a map (one row) or a list of maps (one row per record)
// as CSV. The header comes from the first record's keys in order; a record
// whose key set differs from the header is a caller error.
func encodeCSV(v structured.Value) (string, error) {
	var records []structured.Value

	switch v.Kind() {
	case structured.KindMap:
		records = []structured.Value{v}
	case structured.KindList:
		items := v.Items()
		if len(items) == 0 {
			return "", fmt.Errorf("empty list has no header row")
		}
		for i, item := range items {
			if item.Kind() != structured.KindMap {
				return "", fmt.Errorf("record %d is %s, not map", i, item.Kind())
			}
			records = append(records, item)
		}
	default:
		return "", fmt.Errorf("value of kind %s cannot be rendered as CSV", v.Kind())
	}

	header := records[0].Keys()
	headerSet := make(map[string]bool, len(header))
	for _, k := range header {
		headerSet[k] = true
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, rec := range records {
		if rec.Len() != len(header) {
			return "", fmt.Errorf("record %d has %d fields, header has %d", i, rec.Len(), len(header))
		}
		row := make([]string, 0, len(header))
		for _, k := range rec.Keys() {
			if !headerSet[k] {
				return "", fmt.Errorf("record %d has field %q not present in header", i, k)
			}
		}
		for _, k := range header {
			field, ok := rec.Get(k)
			if !ok {
				return "", fmt.Errorf("record %d is missing header field %q", i, k)
			}
			row = append(row, cellString(field))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// cellString renders a value as a single CSV cell. Nested structures are
// embedded as compact JSON.
func cellString(v structured.Value) string {
	switch v.Kind() {
	case structured.KindList, structured.KindMap:
		raw, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return scalarString(v)
	}
}

func scalarString(v structured.Value) string {
	switch v.Kind() {
	case structured.KindNull:
		return ""
	case structured.KindBool:
		return strconv.FormatBool(v.BoolVal())
	case structured.KindNumber:
		return strconv.FormatFloat(v.NumberVal(), 'f', -1, 64)
	case structured.KindString:
		return v.StringVal()
	default:
		return ""
	}
}

// encodeXML renders the value under a <root> element. Maps become nested
// elements, lists become repeated elements under the same tag, and top-level
// list entries without a key get index-derived item_<i> tags.
func encodeXML(v structured.Value) (string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{Name: xml.Name{Local: "root"}}
	if err := enc.EncodeToken(root); err != nil {
		return "", err
	}

	switch v.Kind() {
	case structured.KindMap:
		for _, k := range v.Keys() {
			field, _ := v.Get(k)
			if err := encodeXMLElement(enc, k, field); err != nil {
				return "", err
			}
		}
	case structured.KindList:
		for i, item := range v.Items() {
			if err := encodeXMLElement(enc, fmt.Sprintf("item_%d", i), item); err != nil {
				return "", err
			}
		}
	default:
		if err := enc.EncodeToken(xml.CharData(scalarString(v))); err != nil {
			return "", err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeXMLElement(enc *xml.Encoder, name string, v structured.Value) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}

	switch v.Kind() {
	case structured.KindMap:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, k := range v.Keys() {
			field, _ := v.Get(k)
			if err := encodeXMLElement(enc, k, field); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())

	case structured.KindList:
		// Repeated elements under the same tag.
		for _, item := range v.Items() {
			if err := encodeXMLElement(enc, name, item); err != nil {
				return err
			}
		}
		return nil

	default:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(scalarString(v))); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	}
}

// toTabular normalizes any value into a list of maps: a list of maps passes
// through, a single map wraps in a one-element list, a plain list wraps each
// item as {value, index}, and a scalar becomes a single {value} record.
func toTabular(v structured.Value) structured.Value {
	switch v.Kind() {
	case structured.KindList:
		items := v.Items()
		if len(items) > 0 && items[0].Kind() == structured.KindMap {
			return v
		}
		out := structured.List()
		for i, item := range items {
			row := structured.Map()
			row.Set("value", item)
			row.Set("index", structured.Int(i))
			out.Append(row)
		}
		return out
	case structured.KindMap:
		return structured.List(v)
	default:
		row := structured.Map()
		row.Set("value", v)
		return structured.List(row)
	}
}

// toList wraps non-list values in a single-element list.
func toList(v structured.Value) structured.Value {
	if v.Kind() == structured.KindList {
		return v
	}
	return structured.List(v)
}
