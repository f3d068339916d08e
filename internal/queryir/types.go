package queryir

// Query is a readable source of rows.
//
// Sealed: only Select implements it.
type Query interface {
	queryNode()
}

// Predicate is a filter condition over the columns of a Select.
//
// Sealed: Equals, In, Compare and And implement it. OR is deliberately
// absent; callers issue separate queries instead.
type Predicate interface {
	predicateNode()
}

// Literal is a constant compared against a column.
//
// Sealed: String, Int and Bool implement it. Floats are excluded so
// comparisons against stored timestamps and sequence numbers stay exact.
type Literal interface {
	literal()
}

// String is a text literal.
type String string

// Int is an integer literal (timestamps, sequence numbers).
type Int int64

// Bool is a boolean literal.
type Bool bool

func (String) literal() {}
func (Int) literal() {}
func (Bool) literal() {}

// Select reads Columns from a table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by>, seq
//
// Example:
//
//	Select{
//	  From:    "events",
//	  Columns: []string{"id", "timestamp", "entity_id"},
//	  Filter: And{Predicates: []Predicate{
//	    In{Field: "entity_id", Values: []Literal{String("a"), String("b")}},
//	    Compare{Field: "timestamp", Op: OpLE, Value: Int(1000)},
//	  }},
//	  OrderBy: []string{"timestamp"},
//	}
type Select struct {
	From    string    // Table name
	Columns []string  // Explicit column list, in result order
	Filter  Predicate // WHERE conditions (nil = no filter)
	OrderBy []string  // Ascending sort keys; seq is always appended
	Limit   int       // 0 = unlimited
}

func (Select) queryNode() {}

// Equals matches rows where Field equals Value.
type Equals struct {
	Field string
	Value Literal
}

func (Equals) predicateNode() {}

// In matches rows where Field equals any of Values. An empty Values list
// matches nothing.
type In struct {
	Field  string
	Values []Literal
}

func (In) predicateNode() {}

// CompareOp is an ordering comparison operator.
type CompareOp string

const (
	OpLT CompareOp = "<"
	OpLE CompareOp = "<="
	OpGT CompareOp = ">"
	OpGE CompareOp = ">="
)

// Valid reports whether op is one of the defined operators.
func (op CompareOp) Valid() bool {
	switch op {
	case OpLT, OpLE, OpGT, OpGE:
		return true
	}
	return false
}

// Compare matches rows where `Field Op Value` holds.
type Compare struct {
	Field string
	Op    CompareOp
	Value Literal
}

func (Compare) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
