package vpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareTotalOrder(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want int
	}{
		{"null_lt_false", Null(), Bool(false), -1},
		{"equal_arrays", Array(Bool(true)), Array(Bool(true)), 0},
		{"number_precedes_string", Number(1), String("-1"), -1},
		{"false_lt_true", Bool(false), Bool(true), 1 * -1},
		{"string_lexicographic", String("a"), String("b"), -1},
		{"array_prefix_shorter_is_less", Array(Number(1)), Array(Number(1), Number(2)), -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, CompareValues(c.a, c.b))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Number(42.5),
		String("hello"),
		Array(Number(1), String("x"), Array(Bool(true))),
	}
	for _, v := range values {
		encoded := Encode(v)
		decoded, n, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.Equal(t, 0, CompareValues(v, decoded))
	}
}

func TestCompareBytes(t *testing.T) {
	a := Encode(Null())
	b := Encode(Bool(false))
	got, err := Compare(a, b)
	require.NoError(t, err)
	require.Equal(t, -1, got)
}

func TestDecodeCorrupted(t *testing.T) {
	_, _, err := Decode(nil)
	require.Error(t, err)
	_, _, err = Decode([]byte{tagString, 0xFF, 0xFF})
	require.Error(t, err)
}
