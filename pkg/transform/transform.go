// Package transform applies declarative field and record operations to
// structured values. Every operation is total: a step that cannot be applied
// is skipped with a warning, preserving the value as of the prior step, so a
// single malformed field never aborts the pipeline.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// Transformer applies transform specs. It is stateless apart from its logger
// and safe for concurrent use.
type Transformer struct {
	logger hclog.Logger
}

// New creates a transformer.
func New(logger hclog.Logger) *Transformer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Transformer{logger: logger.Named("transform")}
}

// Apply runs the spec's operations in their fixed order. The returned value
// is always usable; the returned error, when non-nil, aggregates the steps
// that were skipped and is advisory only.
func (t *Transformer) Apply(v structured.Value, spec *Spec) (structured.Value, error) {
	if spec.IsZero() {
		return v, nil
	}

	var warnings *multierror.Error

	if len(spec.SelectFields) > 0 {
		v = selectFields(v, spec.SelectFields)
	}

	if len(spec.RenameFields) > 0 {
		v = renameFields(v, spec.RenameFields)
	}

	if len(spec.Filters) > 0 && v.Kind() == structured.KindList {
		v = filterRecords(v, spec.Filters)
	}

	if spec.SortBy != "" && v.Kind() == structured.KindList {
		sorted, err := sortRecords(v, spec.SortBy, spec.SortDesc)
		if err != nil {
			t.logger.Warn("sort step skipped", "field", spec.SortBy, "error", err)
			warnings = multierror.Append(warnings, fmt.Errorf("sort_by %q: %w", spec.SortBy, err))
		} else {
			v = sorted
		}
	}

	if spec.Limit != nil && v.Kind() == structured.KindList {
		v = limitRecords(v, *spec.Limit)
	}

	if len(spec.TypeConversions) > 0 {
		v = convertTypes(v, spec.TypeConversions)
	}

	if len(spec.ComputedFields) > 0 {
		v = computeFields(v, spec.ComputedFields)
	}

	return v, warnings.ErrorOrNil()
}

// selectFields keeps only the named keys of a map, or of every map record in
// a list. Names not present are simply absent from the result.
func selectFields(v structured.Value, fields []string) structured.Value {
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}

	return mapRecords(v, func(rec structured.Value) structured.Value {
		out := structured.Map()
		for _, k := range rec.Keys() {
			if keep[k] {
				val, _ := rec.Get(k)
				out.Set(k, val)
			}
		}
		return out
	})
}

func renameFields(v structured.Value, renames map[string]string) structured.Value {
	return mapRecords(v, func(rec structured.Value) structured.Value {
		out := structured.Map()
		for _, k := range rec.Keys() {
			val, _ := rec.Get(k)
			if newName, ok := renames[k]; ok {
				out.Set(newName, val)
			} else {
				out.Set(k, val)
			}
		}
		return out
	})
}

// mapRecords applies fn to a map value directly, or to every map item of a
// list. Non-map items pass through untouched.
func mapRecords(v structured.Value, fn func(structured.Value) structured.Value) structured.Value {
	switch v.Kind() {
	case structured.KindMap:
		return fn(v)
	case structured.KindList:
		out := structured.List()
		for _, item := range v.Items() {
			if item.Kind() == structured.KindMap {
				out.Append(fn(item))
			} else {
				out.Append(item)
			}
		}
		return out
	default:
		return v
	}
}

func filterRecords(v structured.Value, conditions []Condition) structured.Value {
	out := structured.List()
	for _, item := range v.Items() {
		if matchesAll(item, conditions) {
			out.Append(item)
		}
	}
	return out
}

// matchesAll reports whether every condition holds for the record. Conditions
// on absent fields hold vacuously; non-map records have no fields, so every
// condition holds for them.
func matchesAll(record structured.Value, conditions []Condition) bool {
	if record.Kind() != structured.KindMap {
		return true
	}

	for _, cond := range conditions {
		field, ok := record.Get(cond.Field)
		if !ok {
			continue
		}
		if !evalCondition(field, cond) {
			return false
		}
	}
	return true
}

func evalCondition(field structured.Value, cond Condition) bool {
	want, err := structured.FromGo(cond.Value)
	if err != nil {
		return false
	}

	switch cond.Operator {
	case "eq", "":
		return field.Equal(want)
	case "ne":
		return !field.Equal(want)
	case "gt", "gte", "lt", "lte":
		cmp, ok := compareValues(field, want)
		if !ok {
			return false
		}
		switch cond.Operator {
		case "gt":
			return cmp > 0
		case "gte":
			return cmp >= 0
		case "lt":
			return cmp < 0
		default:
			return cmp <= 0
		}
	case "contains":
		return strings.Contains(stringify(field), stringify(want))
	case "startswith":
		return strings.HasPrefix(stringify(field), stringify(want))
	case "endswith":
		return strings.HasSuffix(stringify(field), stringify(want))
	default:
		return false
	}
}

// compareValues orders two values of the same scalar kind. Numbers compare
// numerically (booleans count as 0/1), strings lexicographically. Mixed or
// non-scalar kinds are incomparable.
func compareValues(a, b structured.Value) (int, bool) {
	an, aNum := asNumber(a)
	bn, bNum := asNumber(b)
	if aNum && bNum {
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}

	if a.Kind() == structured.KindString && b.Kind() == structured.KindString {
		return strings.Compare(a.StringVal(), b.StringVal()), true
	}

	return 0, false
}

func asNumber(v structured.Value) (float64, bool) {
	switch v.Kind() {
	case structured.KindNumber:
		return v.NumberVal(), true
	case structured.KindBool:
		if v.BoolVal() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// sortRecords stably sorts a list by the named field. A map record missing
// the field sorts as the sentinel 0; a non-map record sorts by itself. If the
// sort keys are not mutually comparable the step fails (and is skipped by the
// caller).
func sortRecords(v structured.Value, field string, desc bool) (structured.Value, error) {
	items := v.Items()
	keys := make([]structured.Value, len(items))
	for i, item := range items {
		if item.Kind() == structured.KindMap {
			if fv, ok := item.Get(field); ok {
				keys[i] = fv
			} else {
				keys[i] = structured.Int(0)
			}
		} else {
			keys[i] = item
		}
	}

	// Verify comparability up front so a mid-sort mismatch cannot leave a
	// half-ordered result.
	for i := 1; i < len(keys); i++ {
		if _, ok := compareValues(keys[0], keys[i]); !ok {
			return v, fmt.Errorf("values of kind %s and %s are not comparable",
				keys[0].Kind(), keys[i].Kind())
		}
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		cmp, _ := compareValues(keys[idx[a]], keys[idx[b]])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})

	out := structured.List()
	for _, i := range idx {
		out.Append(items[i])
	}
	return out, nil
}

func limitRecords(v structured.Value, n int) structured.Value {
	if n < 0 {
		n = 0
	}
	items := v.Items()
	if len(items) <= n {
		return v
	}
	out := structured.List()
	for _, item := range items[:n] {
		out.Append(item)
	}
	return out
}

func convertTypes(v structured.Value, conversions map[string]string) structured.Value {
	return mapRecords(v, func(rec structured.Value) structured.Value {
		out := structured.Map()
		for _, k := range rec.Keys() {
			val, _ := rec.Get(k)
			if target, ok := conversions[k]; ok {
				val = convertValue(val, target)
			}
			out.Set(k, val)
		}
		return out
	})
}

func computeFields(v structured.Value, computed map[string]string) structured.Value {
	names := make([]string, 0, len(computed))
	for name := range computed {
		names = append(names, name)
	}
	sort.Strings(names)

	return mapRecords(v, func(rec structured.Value) structured.Value {
		out := structured.Map()
		for _, k := range rec.Keys() {
			val, _ := rec.Get(k)
			out.Set(k, val)
		}
		for _, name := range names {
			out.Set(name, evalExpression(out, computed[name]))
		}
		return out
	})
}

// stringify renders any value the way a string operator sees it.
func stringify(v structured.Value) string {
	switch v.Kind() {
	case structured.KindString:
		return v.StringVal()
	case structured.KindList, structured.KindMap:
		raw, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return scalarText(v)
	}
}
