package event

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func TestValueJSONRoundTrip(t *testing.T) {
	v := Map(map[string]Value{
		"messages": List(
			Map(map[string]Value{"role": String("user"), "content": String("hi")}),
			Map(map[string]Value{"role": String("assistant"), "content": Null()}),
		),
		"temperature": Number(0.2),
		"stream":      Bool(false),
		"n":           Int(2),
	})
	b, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, v.Equal(decoded), "decoded %s", string(b))
	assert.Equal(t, []string{"messages", "n", "stream", "temperature"}, decoded.Keys())
}

func TestValueZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestValueEmptyContainers(t *testing.T) {
	b, err := json.Marshal(List())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	b, err = json.Marshal(Map(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestValueRejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(Number(math.Inf(1)))
	assert.Error(t, err)
	_, err = json.Marshal(Map(map[string]Value{"x": Number(math.NaN())}))
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]interface{}{
		"a": []interface{}{1, "two", true, nil},
		"b": int64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, MapKind, v.Kind())

	a, ok := v.Get("a")
	require.True(t, ok)
	items, ok := a.AsList()
	require.True(t, ok)
	require.Len(t, items, 4)
	n, _ := items[0].AsNumber()
	assert.Equal(t, 1.0, n)
	assert.True(t, items[3].IsNull())

	assert.Equal(t, map[string]interface{}{
		"a": []interface{}{1.0, "two", true, nil},
		"b": 7.0,
	}, v.Interface())

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestValueKindString(t *testing.T) {
	assert.Equal(t, "map", MapKind.String())
	assert.Equal(t, "null", Null().Kind().String())
}
