package sfapi

import (
	"fmt"
	"strings"
)

// RenderSOQL renders a query in the platform query language
func RenderSOQL(q Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Fields, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.Object)

	if len(q.Filter) > 0 {
		clauses := make([]string, 0, len(q.Filter))
		for _, c := range q.Filter {
			clause, err := renderCondition(c)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}

	return b.String(), nil
}

func renderCondition(c Condition) (string, error) {
	switch c.Op {
	case OpEq, OpLike:
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, quoteSOQL(c.Values[0])), nil
	case OpIn:
		quoted := make([]string, len(c.Values))
		for i, v := range c.Values {
			quoted[i] = quoteSOQL(v)
		}
		return fmt.Sprintf("%s IN (%s)", c.Field, strings.Join(quoted, ", ")), nil
	case OpIsNull:
		return fmt.Sprintf("%s = null", c.Field), nil
	default:
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteSOQL(v string) string {
	return "'" + soqlEscaper.Replace(v) + "'"
}
