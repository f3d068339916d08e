package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/queryir"
)

// TiebreakColumn is appended to every ORDER BY. Every table carries an
// autoincrement seq, so rows with equal sort keys come back in insertion
// order.
const TiebreakColumn = "seq"

// SQLCompiler compiles query IR to parameterized SQL for SQLite.
//
// All values are parameterized, never interpolated. Identifiers reach the
// SQL text only after queryir.Validate has accepted them.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to SQL text and its positional parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if result := queryir.Validate(q); !result.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(result.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(filterSQL)
		params = filterParams
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(q.OrderBy))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}

	return b.String(), params, nil
}

// orderClause always ends with the insertion sequence.
func orderClause(keys []string) string {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		if k == TiebreakColumn {
			continue
		}
		parts = append(parts, k+" ASC")
	}
	parts = append(parts, TiebreakColumn+" ASC")
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compareSQL(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return c.compareSQL(pred.Field, "=", pred.Value)
	case queryir.Compare:
		return c.compareSQL(pred.Field, string(pred.Op), pred.Value)
	case *queryir.Compare:
		return c.compareSQL(pred.Field, string(pred.Op), pred.Value)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compareSQL(field, op string, lit queryir.Literal) (string, []any, error) {
	param, err := literalToParam(lit)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", field, err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

// compileIn expands to "field IN (?, ?, ...)". An empty set compiles to a
// predicate that is always false.
func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}

	params := make([]any, 0, len(in.Values))
	for _, lit := range in.Values {
		param, err := literalToParam(lit)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", in.Field, err)
		}
		params = append(params, param)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", in.Field, placeholders), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested && len(and.Predicates) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}

	return strings.Join(parts, " AND "), params, nil
}

// literalToParam converts a literal to a database/sql driver value.
func literalToParam(lit queryir.Literal) (any, error) {
	switch v := lit.(type) {
	case queryir.String:
		return string(v), nil
	case queryir.Int:
		return int64(v), nil
	case queryir.Bool:
		return bool(v), nil
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", lit)
	}
}
