package txquery

import (
	"fmt"
	"strings"

	"github.com/roach88/stepper/internal/ir"
)

// Columns is the transaction column list every compiled query selects.
const Columns = "id, seq, payer, status, error, return_program, return_data, max_height, engine_version"

// Compile converts q to SQL and its parameters.
func Compile(q Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + Columns + " FROM transactions")

	var params []any
	if q.Filter != nil {
		where, p := compilePredicate(q.Filter)
		sb.WriteString(" WHERE " + where)
		params = p
	}

	sb.WriteString(" ORDER BY seq ASC")
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

// compilePredicate assumes p has been validated.
func compilePredicate(p Predicate) (string, []any) {
	switch pred := p.(type) {
	case Equals:
		return string(pred.Field) + " = ?", []any{param(pred.Value)}
	case After:
		return "seq > ?", []any{pred.Seq}
	case AtLeast:
		return string(pred.Field) + " >= ?", []any{pred.Value}
	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, inner := range pred.Predicates {
			sql, p := compilePredicate(inner)
			if _, nested := inner.(And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		return strings.Join(parts, " AND "), params
	}
	panic(fmt.Sprintf("txquery: unvalidated predicate %T", p))
}

// param converts a value to its stored representation.
func param(v any) any {
	if pk, ok := v.(ir.Pubkey); ok {
		return pk.String()
	}
	return v
}
