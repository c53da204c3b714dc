package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresent(t *testing.T) {
	t.Parallel()

	var nilPtr *string
	word := "x"

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"whitespace", " \t\n", false},
		{"string", "40HC", true},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"int", 2, true},
		{"zero float", 0.0, false},
		{"float", 12.5, true},
		{"nan", math.NaN(), false},
		{"json zero", json.Number("0"), false},
		{"json number", json.Number("18.2"), true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"a": 1}, true},
		{"empty fields", Fields{}, false},
		{"empty slice", []any{}, false},
		{"slice", []string{"a"}, true},
		{"nil pointer", nilPtr, false},
		{"pointer", &word, true},
		{"int8 zero", int8(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Present(tt.v))
		})
	}
}

func TestFields_Accessors(t *testing.T) {
	t.Parallel()

	f := Fields{"origin": "  Shanghai ", "count": 2, "blank": "", "flag": false}

	assert.True(t, f.Has("origin"))
	assert.False(t, f.Has("blank"))
	assert.False(t, f.Has("flag"))
	assert.False(t, f.Has("missing"))
	assert.Equal(t, "Shanghai", f.String("origin"))
	assert.Equal(t, "2", f.String("count"))
	assert.Equal(t, "", f.String("blank"))
	assert.False(t, f.Empty())
	assert.True(t, Fields{"a": "", "b": 0}.Empty())
	assert.True(t, Fields(nil).Empty())
}

func TestFields_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := Fields{
		"container_type": map[string]any{"standardized_type": "40HC"},
		"marks":          []any{"a", map[string]any{"b": 1}},
		"tags":           []string{"x"},
	}
	c := orig.Clone()

	c["container_type"].(map[string]any)["standardized_type"] = "20GP"
	c["marks"].([]any)[1].(map[string]any)["b"] = 2
	c["tags"].([]string)[0] = "y"
	c["new"] = true

	assert.Equal(t, "40HC", orig["container_type"].(map[string]any)["standardized_type"])
	assert.Equal(t, 1, orig["marks"].([]any)[1].(map[string]any)["b"])
	assert.Equal(t, "x", orig["tags"].([]string)[0])
	assert.NotContains(t, orig, "new")
	assert.Nil(t, Fields(nil).Clone())
}
