package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"zebra": 1,
		"apple": "a",
		"Mango": true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"Mango":true,"apple":"a","zebra":1}`, string(data))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical(Text("<dead & gone>"))
	require.NoError(t, err)
	assert.Equal(t, `"<dead & gone>"`, string(data))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed, err := MarshalCanonical(Text("e\u0301"))
	require.NoError(t, err)
	precomposed, err := MarshalCanonical(Text("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, precomposed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	data, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(data))

	// A literal backslash followed by u2028 text must stay escaped.
	data, err = MarshalCanonical("\u2028\\u2028")
	require.NoError(t, err)
	assert.Equal(t, "\"\u2028\\\\u2028\"", string(data))
}

func TestMarshalCanonicalNumbers(t *testing.T) {
	data, err := MarshalCanonical(Number(26))
	require.NoError(t, err)
	assert.Equal(t, "26", string(data))

	data, err = MarshalCanonical(Number(0.5))
	require.NoError(t, err)
	assert.Equal(t, "0.5", string(data))

	_, err = MarshalCanonical(Number(math.Inf(1)))
	assert.Error(t, err)
}

func TestMarshalCanonicalSnapshotValues(t *testing.T) {
	data, err := MarshalCanonical(map[string]Value{
		"status": Choice("dead"),
		"age":    Number(26),
		"note":   Null{},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"age":26,"note":null,"status":"dead"}`, string(data))
}

func TestMarshalCanonicalUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestSortedKeysUTF16Order(t *testing.T) {
	keys := SortedKeys(map[string]int{"a": 1, "A": 2, "aa": 3, "AA": 4})
	assert.Equal(t, []string{"A", "AA", "a", "aa"}, keys)
}
