package transform

import (
	"fmt"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// PreviewOptions bounds how much of a value Preview renders.
type PreviewOptions struct {
	MaxRows        int // list items shown per level (default 10)
	MaxCols        int // map fields shown per level (default 10)
	MaxDepth       int // nesting depth before stringifying (default 3)
	TruncateLength int // max characters per scalar (default 100)
}

func (o PreviewOptions) withDefaults() PreviewOptions {
	if o.MaxRows <= 0 {
		o.MaxRows = 10
	}
	if o.MaxCols <= 0 {
		o.MaxCols = 10
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 3
	}
	if o.TruncateLength <= 0 {
		o.TruncateLength = 100
	}
	return o
}

// Preview returns a bounded rendering of a value for display: long lists and
// wide maps are cut with an elision marker, deep nesting collapses to text,
// and long scalars are truncated.
func (t *Transformer) Preview(v structured.Value, opts PreviewOptions) structured.Value {
	opts = opts.withDefaults()
	return previewValue(v, opts, opts.MaxDepth)
}

func previewValue(v structured.Value, opts PreviewOptions, depth int) structured.Value {
	switch v.Kind() {
	case structured.KindMap:
		if depth <= 0 {
			return structured.String(truncate(stringify(v), opts.TruncateLength))
		}
		out := structured.Map()
		for i, k := range v.Keys() {
			if i >= opts.MaxCols {
				out.Set("...", structured.String(fmt.Sprintf("%d more fields", v.Len()-i)))
				break
			}
			field, _ := v.Get(k)
			out.Set(k, previewValue(field, opts, depth-1))
		}
		return out

	case structured.KindList:
		if depth <= 0 {
			return structured.String(truncate(stringify(v), opts.TruncateLength))
		}
		out := structured.List()
		for i, item := range v.Items() {
			if i >= opts.MaxRows {
				out.Append(structured.String(fmt.Sprintf("... %d more items", v.Len()-i)))
				break
			}
			out.Append(previewValue(item, opts, depth-1))
		}
		return out

	case structured.KindString:
		return structured.String(truncate(v.StringVal(), opts.TruncateLength))

	default:
		return v
	}
}

// Info summarizes a value's shape: its kind, size, field names and kinds for
// record-shaped data, and a small sample.
func (t *Transformer) Info(v structured.Value) structured.Value {
	info := structured.Map()
	info.Set("type", structured.String(v.Kind().String()))

	switch v.Kind() {
	case structured.KindList:
		info.Set("size", structured.Int(v.Len()))
		items := v.Items()
		if len(items) > 0 {
			if items[0].Kind() == structured.KindMap {
				info.Set("structure", fieldStructure(items[0]))
			}
			sample := structured.List()
			for i, item := range items {
				if i >= 2 {
					break
				}
				sample.Append(item)
			}
			info.Set("sample", sample)
		}

	case structured.KindMap:
		info.Set("size", structured.Int(v.Len()))
		info.Set("structure", fieldStructure(v))
		info.Set("sample", v)

	default:
		info.Set("size", structured.Int(1))
		info.Set("sample", v)
	}

	return info
}

func fieldStructure(rec structured.Value) structured.Value {
	fields := structured.List()
	kinds := structured.Map()
	for _, k := range rec.Keys() {
		fields.Append(structured.String(k))
		field, _ := rec.Get(k)
		kinds.Set(k, structured.String(field.Kind().String()))
	}
	s := structured.Map()
	s.Set("fields", fields)
	s.Set("field_kinds", kinds)
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
