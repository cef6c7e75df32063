// Package codec parses raw HTTP response bodies into structured values and
// serializes structured values into output representations (JSON, CSV, XML,
// tabular, list).
//
// Decoding never fails a response outright: when the body does not parse as
// its advertised content type, the codec degrades to plain text and reports a
// parse error marker, because a response object is still useful even if type
// detection is wrong.
package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// Format identifies a decoded or target representation.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatXML     Format = "xml"
	FormatTabular Format = "tabular"
	FormatList    Format = "list"
	FormatText    Format = "text"
)

// Decoded is the result of parsing a response body.
type Decoded struct {
	// Data is the structured form of the body.
	Data structured.Value

	// Format records how the body was interpreted (json, xml, or text).
	Format Format

	// ParseError is set when the declared content type failed to parse and
	// the body was kept as raw text instead.
	ParseError string
}

// Decode parses a response body according to its content type. JSON and XML
// bodies become structured trees; anything else, or anything that fails to
// parse, becomes a plain string (with ParseError set on failure).
func Decode(contentType string, body []byte) Decoded {
	ct := strings.ToLower(contentType)

	switch {
	case strings.Contains(ct, "json"):
		v, err := structured.DecodeJSON(body)
		if err != nil {
			return Decoded{
				Data:       structured.String(string(body)),
				Format:     FormatText,
				ParseError: fmt.Sprintf("JSON parse failed: %v", err),
			}
		}
		return Decoded{Data: v, Format: FormatJSON}

	case strings.Contains(ct, "xml"):
		v, err := decodeXML(body)
		if err != nil {
			return Decoded{
				Data:       structured.String(string(body)),
				Format:     FormatText,
				ParseError: fmt.Sprintf("XML parse failed: %v", err),
			}
		}
		return Decoded{Data: v, Format: FormatXML}

	default:
		return Decoded{Data: structured.String(string(body)), Format: FormatText}
	}
}

// xmlElement is an intermediate node built from the XML token stream.
type xmlElement struct {
	name     string
	attrs    []xml.Attr
	children []*xmlElement
	text     strings.Builder
}

// decodeXML parses an XML document into a structured value:
//   - attributes become an "@attributes" map
//   - repeated child tags collapse into a list
//   - a leaf element with only text becomes a plain string
//   - mixed content (children plus non-empty text) keeps the text under "#text"
func decodeXML(body []byte) (structured.Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var root *xmlElement
	var stack []*xmlElement

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return structured.Null(), err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			} else {
				return structured.Null(), fmt.Errorf("multiple root elements")
			}
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) == 0 {
				return structured.Null(), fmt.Errorf("unbalanced end element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return structured.Null(), fmt.Errorf("empty document")
	}
	if len(stack) != 0 {
		return structured.Null(), fmt.Errorf("unterminated element %q", stack[len(stack)-1].name)
	}

	doc := structured.Map()
	doc.Set(root.name, elementToValue(root))
	return doc, nil
}

func elementToValue(el *xmlElement) structured.Value {
	result := structured.Map()

	if len(el.attrs) > 0 {
		attrs := structured.Map()
		for _, a := range el.attrs {
			attrs.Set(a.Name.Local, structured.String(a.Value))
		}
		result.Set("@attributes", attrs)
	}

	for _, child := range el.children {
		childVal := elementToValue(child)
		if existing, ok := result.Get(child.name); ok {
			// Repeated tag: collapse into a list.
			if existing.Kind() == structured.KindList {
				existing.Append(childVal)
				result.Set(child.name, existing)
			} else {
				result.Set(child.name, structured.List(existing, childVal))
			}
		} else {
			result.Set(child.name, childVal)
		}
	}

	text := strings.TrimSpace(el.text.String())
	if text != "" {
		if result.Len() > 0 {
			result.Set("#text", structured.String(text))
		} else {
			return structured.String(text)
		}
	}

	if result.Len() == 0 {
		return structured.Null()
	}
	return result
}
