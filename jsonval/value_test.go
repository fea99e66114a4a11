package jsonval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	v, err := Parse(`{"name":"Lake Cabin","price":"$89","rating":4.8,"tags":["a",null],"ok":true}`)
	require.NoError(t, err)
	require.Equal(t, Object, v.Kind())

	name, ok := v.Get("name")
	require.True(t, ok)
	assert.Equal(t, String, name.Kind())
	assert.Equal(t, "Lake Cabin", name.Str())

	rating, _ := v.Get("rating")
	assert.Equal(t, Number, rating.Kind())
	assert.Equal(t, "4.8", rating.Text())
	assert.InDelta(t, 4.8, rating.Num(), 1e-9)

	tags, _ := v.Get("tags")
	require.Equal(t, Array, tags.Kind())
	require.Len(t, tags.Items(), 2)
	assert.Equal(t, Null, tags.Items()[1].Kind())

	okVal, _ := v.Get("ok")
	assert.Equal(t, Bool, okVal.Kind())
	assert.True(t, okVal.Truthy())
}

func TestParseKeepsFieldOrder(t *testing.T) {
	v, err := Parse(`{"b":1,"a":2,"c":3}`)
	require.NoError(t, err)

	var keys []string
	for _, f := range v.Fields() {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"b", "a", "c"}, keys)
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "{", `{"a":}`, "not json"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidJSON, "input %q", in)
	}
}

func TestFirstSkipsFalsyValues(t *testing.T) {
	v, err := Parse(`{"rating":0,"starRating":"","avgRating":4.6}`)
	require.NoError(t, err)

	got, ok := v.First("rating", "starRating", "avgRating")
	require.True(t, ok)
	assert.Equal(t, "4.6", got.Text())

	_, ok = v.First("missing")
	assert.False(t, ok)
}

func TestTextOfContainers(t *testing.T) {
	v, err := Parse(`{"price":{"amount":120}}`)
	require.NoError(t, err)

	price, _ := v.Get("price")
	assert.Equal(t, `{"amount":120}`, price.Text())
}
