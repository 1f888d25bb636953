package gridsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want Value
	}{
		{"10", Number(10)},
		{" 2.5 ", Number(2.5)},
		{"-3e2", Number(-300)},
		{"Alice", Text("Alice")},
		{"", Text("")},
		{"NaN", Text("NaN")},
		{"inf", Text("inf")},
		{"0x10", Text("0x10")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseValue(tt.raw)
			assert.True(t, tt.want.Equal(got), "got %v (%s)", got, got.Kind())
		})
	}
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "", Null.String())
	assert.Equal(t, "30", Number(30).String())
	assert.Equal(t, "0.1", Number(0.1).String())
	assert.Equal(t, "Bob", Text("Bob").String())
}

func TestValue_JSON(t *testing.T) {
	out, err := json.Marshal([]Value{Null, Text("x"), Number(1.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `[null,"x",1.5]`, string(out))

	var got []Value
	require.NoError(t, json.Unmarshal([]byte(`[null,"7",7,true]`), &got))
	require.Len(t, got, 4)
	assert.True(t, got[0].IsNull())
	assert.Equal(t, KindText, got[1].Kind())
	assert.Equal(t, KindNumber, got[2].Kind())
	assert.True(t, Text("true").Equal(got[3]))

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestValue_Compare(t *testing.T) {
	assert.Equal(t, -1, Number(100).Compare(Text("1")))
	assert.Equal(t, 1, Null.Compare(Text("a")))
	assert.Equal(t, -1, Number(1).Compare(Number(2)))
	assert.Equal(t, 0, Text("a").Compare(Text("a")))
	assert.Equal(t, 1, Text("b").Compare(Text("a")))
}
