package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

func record(entries ...structured.Entry) structured.Value {
	return structured.Map(entries...)
}

func e(k string, v structured.Value) structured.Entry {
	return structured.Entry{Key: k, Value: v}
}

func intPtr(n int) *int { return &n }

func TestApplyRunsOperationsInFixedOrder(t *testing.T) {
	// Filter runs before sort and limit regardless of spec field order: with
	// limit-first semantics the result would be [{a:2,b:1}].
	v := structured.List(
		record(e("a", structured.Int(2)), e("b", structured.Int(1))),
		record(e("a", structured.Int(1)), e("b", structured.Int(2))),
		record(e("a", structured.Int(-1)), e("b", structured.Int(3))),
	)

	spec := &Spec{
		Filters: []Condition{{Field: "a", Operator: "gt", Value: 0}},
		SortBy:  "a",
		Limit:   intPtr(1),
	}

	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	a, _ := out.Items()[0].Get("a")
	assert.Equal(t, float64(1), a.NumberVal())
}

func TestSelectAndRename(t *testing.T) {
	v := structured.List(
		record(e("id", structured.Int(1)), e("name", structured.String("x")), e("junk", structured.Bool(true))),
	)

	spec := &Spec{
		SelectFields: []string{"id", "name"},
		RenameFields: map[string]string{"name": "title"},
	}

	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	rec := out.Items()[0]
	assert.Equal(t, []string{"id", "title"}, rec.Keys())
}

func TestFilterAbsentFieldIsVacuouslyTrue(t *testing.T) {
	v := structured.List(
		record(e("score", structured.Int(5))),
		record(e("other", structured.String("no score"))),
	)

	spec := &Spec{Filters: []Condition{{Field: "score", Operator: "gte", Value: 3}}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	// The record without the field is kept.
	assert.Equal(t, 2, out.Len())
}

func TestFilterIncomparableOperandsFail(t *testing.T) {
	v := structured.List(
		record(e("score", structured.String("high"))),
	)

	spec := &Spec{Filters: []Condition{{Field: "score", Operator: "gt", Value: 3}}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestFilterStringOperators(t *testing.T) {
	v := structured.List(
		record(e("name", structured.String("conduit-server"))),
		record(e("name", structured.String("client"))),
	)

	spec := &Spec{Filters: []Condition{{Field: "name", Operator: "startswith", Value: "conduit"}}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	name, _ := out.Items()[0].Get("name")
	assert.Equal(t, "conduit-server", name.StringVal())
}

func TestSortDescendingAndMissingFieldSentinel(t *testing.T) {
	v := structured.List(
		record(e("n", structured.Int(1))),
		record(e("other", structured.String("x"))), // missing n sorts as 0
		record(e("n", structured.Int(3))),
	)

	spec := &Spec{SortBy: "n", SortDesc: true}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	first, _ := out.Items()[0].Get("n")
	assert.Equal(t, float64(3), first.NumberVal())
	_, hasN := out.Items()[2].Get("n")
	assert.False(t, hasN)
}

func TestSortMixedKindsSkipsStepWithWarning(t *testing.T) {
	v := structured.List(
		record(e("n", structured.Int(2))),
		record(e("n", structured.String("one"))),
	)

	spec := &Spec{SortBy: "n"}
	out, err := New(nil).Apply(v, spec)

	// Step skipped: input order preserved, advisory error returned.
	require.Error(t, err)
	first, _ := out.Items()[0].Get("n")
	assert.Equal(t, float64(2), first.NumberVal())
}

func TestLimitZeroAndAbsentDiffer(t *testing.T) {
	v := structured.List(record(e("a", structured.Int(1))))

	out, err := New(nil).Apply(v, &Spec{Limit: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())

	out, err = New(nil).Apply(v, &Spec{SortBy: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestTypeConversions(t *testing.T) {
	v := record(
		e("count", structured.String("42")),
		e("price", structured.String("3.5")),
		e("active", structured.String("yes")),
		e("label", structured.Int(7)),
		e("when", structured.String("2024-06-01")),
		e("nothing", structured.Null()),
	)

	spec := &Spec{TypeConversions: map[string]string{
		"count":   "int",
		"price":   "float",
		"active":  "bool",
		"label":   "str",
		"when":    "datetime",
		"nothing": "int",
	}}

	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	count, _ := out.Get("count")
	assert.Equal(t, float64(42), count.NumberVal())

	price, _ := out.Get("price")
	assert.Equal(t, 3.5, price.NumberVal())

	active, _ := out.Get("active")
	assert.True(t, active.BoolVal())

	label, _ := out.Get("label")
	assert.Equal(t, "7", label.StringVal())

	when, _ := out.Get("when")
	assert.Equal(t, "2024-06-01T00:00:00Z", when.StringVal())

	// Null passes through conversion untouched.
	nothing, _ := out.Get("nothing")
	assert.True(t, nothing.IsNull())
}

func TestComputedFieldSum(t *testing.T) {
	v := record(e("a", structured.Int(2)), e("b", structured.Int(3)))

	spec := &Spec{ComputedFields: map[string]string{"total": "${a} + ${b}"}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	total, ok := out.Get("total")
	require.True(t, ok)
	assert.Equal(t, float64(5), total.NumberVal())
}

func TestComputedFieldSumMissingFieldIsZero(t *testing.T) {
	v := record(e("a", structured.Int(2)))

	spec := &Spec{ComputedFields: map[string]string{"total": "${a} + ${missing}"}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	total, _ := out.Get("total")
	assert.Equal(t, float64(2), total.NumberVal())
}

func TestComputedFieldConcat(t *testing.T) {
	v := record(e("first", structured.String("Ada")), e("last", structured.String("Lovelace")))

	spec := &Spec{ComputedFields: map[string]string{"full": `${first} || " " || ${last}`}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	full, _ := out.Get("full")
	assert.Equal(t, "Ada Lovelace", full.StringVal())
}

func TestComputedFieldReferenceAndLiteral(t *testing.T) {
	v := record(e("x", structured.List(structured.Int(1))))

	spec := &Spec{ComputedFields: map[string]string{
		"copy":    "${x}",
		"missing": "${nope}",
		"label":   "fixed",
	}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	copied, _ := out.Get("copy")
	assert.Equal(t, structured.KindList, copied.Kind())

	missing, _ := out.Get("missing")
	assert.True(t, missing.IsNull())

	label, _ := out.Get("label")
	assert.Equal(t, "fixed", label.StringVal())
}

func TestComputedFieldsSeeEarlierComputedFields(t *testing.T) {
	// Deterministic name order: "a_sum" evaluates before "b_double".
	v := record(e("n", structured.Int(4)))

	spec := &Spec{ComputedFields: map[string]string{
		"a_sum":    "${n} + ${n}",
		"b_double": "${a_sum} + ${a_sum}",
	}}
	out, err := New(nil).Apply(v, spec)
	require.NoError(t, err)

	d, _ := out.Get("b_double")
	assert.Equal(t, float64(16), d.NumberVal())
}

func TestSpecFromMap(t *testing.T) {
	spec, err := SpecFromMap(map[string]interface{}{
		"select_fields": []interface{}{"a", "b"},
		"rename_fields": map[string]interface{}{"a": "x"},
		"filter_conditions": []interface{}{
			map[string]interface{}{"field": "x", "operator": "gt", "value": 1},
		},
		"sort_by":          "x",
		"sort_desc":        true,
		"limit":            5,
		"type_conversions": map[string]interface{}{"x": "int"},
		"computed_fields":  map[string]interface{}{"y": "${x}"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, spec.SelectFields)
	assert.Equal(t, "x", spec.RenameFields["a"])
	require.Len(t, spec.Filters, 1)
	assert.Equal(t, "gt", spec.Filters[0].Operator)
	assert.True(t, spec.SortDesc)
	require.NotNil(t, spec.Limit)
	assert.Equal(t, 5, *spec.Limit)
	assert.False(t, spec.IsZero())
}

func TestApplyEmptySpecIsIdentity(t *testing.T) {
	v := record(e("a", structured.Int(1)))
	out, err := New(nil).Apply(v, &Spec{})
	require.NoError(t, err)
	assert.True(t, out.Equal(v))
}
