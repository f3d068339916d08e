package queryir

import (
	"fmt"
	"regexp"
)

// identPattern restricts table and column names. Identifiers are the only
// part of a query that reaches SQL text unparameterized.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdent reports whether name is an acceptable table or column name.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Errors is empty.
	Valid bool

	Errors []string
}

// Validate checks a query for malformed identifiers, missing columns,
// unknown operators and nil literals. Backends must refuse queries that
// fail validation.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		errors: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

// validator accumulates errors during traversal.
type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) ident(kind, name string) {
	if !ValidIdent(name) {
		v.addError("invalid %s name %q", kind, name)
	}
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.ident("table", sel.From)

	if len(sel.Columns) == 0 {
		v.addError("select from %q has no columns", sel.From)
	}
	for _, c := range sel.Columns {
		v.ident("column", c)
	}
	for _, c := range sel.OrderBy {
		v.ident("order", c)
	}
	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addError("nil predicate")
	case Equals:
		v.ident("field", pred.Field)
		v.literal(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case In:
		v.ident("field", pred.Field)
		for _, lit := range pred.Values {
			v.literal(pred.Field, lit)
		}
	case *In:
		v.validatePredicate(*pred)
	case Compare:
		v.ident("field", pred.Field)
		if !pred.Op.Valid() {
			v.addError("unknown operator %q on %q", pred.Op, pred.Field)
		}
		v.literal(pred.Field, pred.Value)
	case *Compare:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) literal(field string, lit Literal) {
	if lit == nil {
		v.addError("field %q compared to nil literal", field)
	}
}
