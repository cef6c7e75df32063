package transform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

var fieldRefPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)

// evalExpression evaluates a computed-field expression against one record.
// Supported forms, checked in order:
//
//	a + b   operands ${field} or numeric literals, summed as floats
//	a || b  operands ${field} or quoted literals, concatenated as strings
//	${f}    the field's value (null when absent)
//
// Anything else is returned verbatim as a literal string. Evaluation is per
// record with no cross-record state.
func evalExpression(record structured.Value, expr string) structured.Value {
	trimmed := strings.TrimSpace(expr)

	if strings.Contains(trimmed, "+") {
		if v, ok := evalSum(record, trimmed); ok {
			return v
		}
		return structured.String(expr)
	}

	if strings.Contains(trimmed, "||") {
		return evalConcat(record, trimmed)
	}

	if m := fieldRefPattern.FindStringSubmatch(trimmed); m != nil {
		if v, ok := record.Get(m[1]); ok {
			return v
		}
		return structured.Null()
	}

	return structured.String(expr)
}

func evalSum(record structured.Value, expr string) (structured.Value, bool) {
	sum := 0.0
	for _, part := range strings.Split(expr, "+") {
		part = strings.TrimSpace(part)

		if m := fieldRefPattern.FindStringSubmatch(part); m != nil {
			// Absent fields sum as 0.
			if v, ok := record.Get(m[1]); ok {
				if f, ok := toFloat(v); ok {
					sum += f
				}
			}
			continue
		}

		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return structured.Null(), false
		}
		sum += f
	}
	return structured.Number(sum), true
}

func evalConcat(record structured.Value, expr string) structured.Value {
	var b strings.Builder
	for _, part := range strings.Split(expr, "||") {
		part = strings.TrimSpace(part)

		if m := fieldRefPattern.FindStringSubmatch(part); m != nil {
			if v, ok := record.Get(m[1]); ok {
				b.WriteString(scalarText(v))
			}
			continue
		}

		b.WriteString(strings.Trim(part, `"'`))
	}
	return structured.String(b.String())
}
