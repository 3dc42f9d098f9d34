package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	assert.True(t, NullValue().IsNull())
	assert.Equal(t, KindString, StringValue("x").Kind())
	assert.Equal(t, KindInt, IntValue(3).Kind())
	assert.Equal(t, KindFloat, FloatValue(3.5).Kind())
	assert.Equal(t, KindBool, BoolValue(true).Kind())

	s, ok := StringValue("safaniya").AsString()
	require.True(t, ok)
	assert.Equal(t, "safaniya", s)

	// Ints widen to float, floats do not narrow to int.
	f, ok := IntValue(7).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 7.0, f)
	_, ok = FloatValue(7.5).AsInt()
	assert.False(t, ok)
}

func TestValueEqualNumeric(t *testing.T) {
	assert.True(t, IntValue(5).Equal(FloatValue(5.0)))
	assert.True(t, FloatValue(5.0).Equal(IntValue(5)))
	assert.False(t, IntValue(5).Equal(FloatValue(5.1)))
	assert.False(t, StringValue("5").Equal(IntValue(5)))
	assert.True(t, NullValue().Equal(NullValue()))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "safaniya", StringValue("safaniya").String())
	assert.Equal(t, "42", IntValue(42).String())
	assert.Equal(t, "31.5", FloatValue(31.5).String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "", NullValue().String())

	d := DateValue(time.Date(2021, 3, 14, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, "2021-03-14", d.String())
}

func TestValueJSONRoundTrip(t *testing.T) {
	attrs := map[string]Value{
		"field_name": StringValue("Safaniya"),
		"depth":      FloatValue(5200.5),
		"wells":      IntValue(32),
		"offshore":   BoolValue(true),
		"discovered": DateValue(time.Date(1951, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)

	var got map[string]Value
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, KindString, got["field_name"].Kind())
	assert.Equal(t, KindFloat, got["depth"].Kind())
	assert.Equal(t, KindInt, got["wells"].Kind())
	assert.Equal(t, KindBool, got["offshore"].Kind())
	assert.Equal(t, KindDate, got["discovered"].Kind())

	for k, v := range attrs {
		assert.True(t, v.Equal(got[k]), "attribute %s survives the round trip", k)
	}
}

func TestValueUnmarshalDateTime(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`"2024-06-01T12:00:00Z"`), &v))
	assert.Equal(t, KindDateTime, v.Kind())

	ts, ok := v.AsTime()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
}

func TestValueUnmarshalNull(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.True(t, v.IsNull())
}
