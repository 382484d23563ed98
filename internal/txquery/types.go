package txquery

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/stepper/internal/ir"
)

// Field is a filterable transaction column.
type Field string

const (
	FieldID        Field = "id"
	FieldPayer     Field = "payer"
	FieldStatus    Field = "status"
	FieldMaxHeight Field = "max_height"
	FieldSeq       Field = "seq"
)

var knownFields = map[Field]bool{
	FieldID:        true,
	FieldPayer:     true,
	FieldStatus:    true,
	FieldMaxHeight: true,
	FieldSeq:       true,
}

// Predicate is a filter condition. Sealed.
type Predicate interface {
	predicateNode()
}

// Equals matches rows where Field equals Value.
// Value is a string, an int, an int64 or an ir.Pubkey.
type Equals struct {
	Field Field
	Value any
}

func (Equals) predicateNode() {}

// After matches rows with seq strictly greater than Seq.
type After struct {
	Seq int64
}

func (After) predicateNode() {}

// AtLeast matches rows where Field is at least Value.
type AtLeast struct {
	Field Field
	Value int64
}

func (AtLeast) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Query selects transactions. A zero Limit means no limit.
type Query struct {
	Filter Predicate
	Limit  int
}

// Where returns a query for the conjunction of preds.
func Where(preds ...Predicate) Query {
	if len(preds) == 1 {
		return Query{Filter: preds[0]}
	}
	return Query{Filter: And{Predicates: preds}}
}

// WithLimit returns q limited to n rows.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate reports every problem in q.
func (q Query) Validate() error {
	var result *multierror.Error
	if q.Limit < 0 {
		result = multierror.Append(result, fmt.Errorf("limit must not be negative, got %d", q.Limit))
	}
	if q.Filter != nil {
		validatePredicate(q.Filter, "filter", &result)
	}
	return result.ErrorOrNil()
}

func validatePredicate(p Predicate, path string, result **multierror.Error) {
	switch pred := p.(type) {
	case Equals:
		if !knownFields[pred.Field] {
			*result = multierror.Append(*result, fmt.Errorf("%s: unknown field %q", path, pred.Field))
		}
		switch pred.Value.(type) {
		case string, int, int64, ir.Pubkey:
		default:
			*result = multierror.Append(*result, fmt.Errorf("%s: unsupported value type %T", path, pred.Value))
		}
	case After:
	case AtLeast:
		if pred.Field != FieldSeq && pred.Field != FieldMaxHeight {
			*result = multierror.Append(*result, fmt.Errorf("%s: %q is not numeric", path, pred.Field))
		}
	case And:
		for i, inner := range pred.Predicates {
			if inner == nil {
				*result = multierror.Append(*result, fmt.Errorf("%s.and[%d]: nil predicate", path, i))
				continue
			}
			validatePredicate(inner, fmt.Sprintf("%s.and[%d]", path, i), result)
		}
	default:
		*result = multierror.Append(*result, fmt.Errorf("%s: unsupported predicate %T", path, p))
	}
}
