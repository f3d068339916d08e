package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/queryir"
)

func TestCompile_SimpleSelect(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		From:    "events",
		Columns: []string{"id", "timestamp"},
		Filter:  queryir.Equals{Field: "entity_id", Value: queryir.String("char-1")},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, timestamp FROM events WHERE entity_id = ? ORDER BY seq ASC", sql)
	assert.NotContains(t, sql, "char-1")
	assert.Equal(t, []any{"char-1"}, params)
}

func TestCompile_PointerSelect(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(&queryir.Select{
		From:    "entities",
		Columns: []string{"id"},
		Filter:  &queryir.Equals{Field: "id", Value: queryir.String("e")},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM entities WHERE id = ? ORDER BY seq ASC", sql)
	assert.Equal(t, []any{"e"}, params)
}

func TestCompile_OrderByAlwaysEndsWithSeq(t *testing.T) {
	compiler := NewSQLCompiler()

	tests := []struct {
		name    string
		orderBy []string
		want    string
	}{
		{name: "no keys", orderBy: nil, want: "ORDER BY seq ASC"},
		{name: "timestamp", orderBy: []string{"timestamp"}, want: "ORDER BY timestamp ASC, seq ASC"},
		{name: "explicit seq not repeated", orderBy: []string{"seq", "timestamp"}, want: "ORDER BY timestamp ASC, seq ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := compiler.Compile(queryir.Select{
				From:    "events",
				Columns: []string{"id"},
				OrderBy: tt.orderBy,
			})
			require.NoError(t, err)
			assert.Contains(t, sql, tt.want)
		})
	}
}

func TestCompile_EventFilter(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		From:    "events",
		Columns: []string{"id"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.In{Field: "entity_id", Values: []queryir.Literal{queryir.String("a"), queryir.String("b")}},
			queryir.Equals{Field: "attribute_id", Value: queryir.String("age")},
			queryir.Compare{Field: "timestamp", Op: queryir.OpGE, Value: queryir.Int(10)},
			queryir.Compare{Field: "timestamp", Op: queryir.OpLE, Value: queryir.Int(20)},
		}},
		OrderBy: []string{"timestamp"},
		Limit:   5,
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM events WHERE entity_id IN (?, ?) AND attribute_id = ? AND timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC, seq ASC LIMIT ?",
		sql)
	assert.Equal(t, []any{"a", "b", "age", int64(10), int64(20), int64(5)}, params)
}

func TestCompile_EmptyIn(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		From:    "events",
		Columns: []string{"id"},
		Filter:  queryir.In{Field: "entity_id"},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE 1 = 0")
	assert.Empty(t, params)
}

func TestCompile_EmptyAnd(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, _, err := compiler.Compile(queryir.Select{
		From:    "events",
		Columns: []string{"id"},
		Filter:  queryir.And{},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE 1 = 1")
}

func TestCompile_NestedAndParenthesized(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		From:    "events",
		Columns: []string{"id"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "entity_id", Value: queryir.String("a")},
			queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "attribute_id", Value: queryir.String("x")},
				queryir.Equals{Field: "tombstone", Value: queryir.Bool(false)},
			}},
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE entity_id = ? AND (attribute_id = ? AND tombstone = ?)")
	assert.Equal(t, []any{"a", "x", false}, params)
}

func TestCompile_RejectsInvalidQueries(t *testing.T) {
	compiler := NewSQLCompiler()

	tests := []struct {
		name  string
		query queryir.Query
	}{
		{name: "nil", query: nil},
		{name: "no columns", query: queryir.Select{From: "events"}},
		{name: "injected column", query: queryir.Select{From: "events", Columns: []string{"id FROM x --"}}},
		{name: "injected field", query: queryir.Select{
			From:    "events",
			Columns: []string{"id"},
			Filter:  queryir.Equals{Field: "1=1 OR id", Value: queryir.Int(1)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := compiler.Compile(tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid query")
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	compiler := NewSQLCompiler()
	query := queryir.Select{
		From:    "events",
		Columns: []string{"id", "entity_id"},
		Filter:  queryir.In{Field: "entity_id", Values: []queryir.Literal{queryir.String("b"), queryir.String("a")}},
	}

	sql1, params1, err := compiler.Compile(query)
	require.NoError(t, err)
	sql2, params2, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t, sql1, sql2)
	assert.Equal(t, params1, params2)
}
