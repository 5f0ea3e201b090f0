package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{name: "plain", in: `{"score": 15}`, want: map[string]any{"score": 15.0}},
		{name: "json fence", in: "```json\n{\"score\": 15}\n```", want: map[string]any{"score": 15.0}},
		{name: "bare fence", in: "```\n{\"ok\": true}\n```", want: map[string]any{"ok": true}},
		{name: "surrounding prose", in: `Here you go: {"a": "b"} hope that helps`, want: map[string]any{"a": "b"}},
		{name: "garbage", in: "not json at all", want: map[string]any{}},
		{name: "empty", in: "", want: map[string]any{}},
		{name: "array", in: `[1,2,3]`, want: map[string]any{}},
		{name: "broken braces", in: `{"a": }`, want: map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseJSON(tt.in))
		})
	}
}

func TestGetters(t *testing.T) {
	m := ParseJSON(`{
		"name": "  Acme  ",
		"count": 250,
		"count_str": "42.5",
		"b2b": true,
		"b2b_str": "false",
		"tags": ["a", "", "b", null],
		"single": "solo",
		"nested": {"linkedin": "x"},
		"nothing": null
	}`)
	require.NotEmpty(t, m)

	assert.Equal(t, "Acme", String(m, "name"))
	assert.Equal(t, "250", String(m, "count"))
	assert.Equal(t, "true", String(m, "b2b"))
	assert.Equal(t, "", String(m, "nothing"))
	assert.Equal(t, "", String(m, "missing"))

	f, ok := Float(m, "count_str")
	assert.True(t, ok)
	assert.InDelta(t, 42.5, f, 1e-9)
	_, ok = Float(m, "name")
	assert.False(t, ok)

	n, ok := Int(m, "count")
	assert.True(t, ok)
	assert.Equal(t, 250, n)

	require.NotNil(t, Bool(m, "b2b"))
	assert.True(t, *Bool(m, "b2b"))
	require.NotNil(t, Bool(m, "b2b_str"))
	assert.False(t, *Bool(m, "b2b_str"))
	assert.Nil(t, Bool(m, "name"))
	assert.Nil(t, Bool(m, "missing"))

	assert.Equal(t, []string{"a", "b"}, Strings(m, "tags"))
	assert.Equal(t, []string{"solo"}, Strings(m, "single"))
	assert.Nil(t, Strings(m, "missing"))

	assert.Equal(t, "x", String(Object(m, "nested"), "linkedin"))
	assert.Empty(t, Object(m, "name"))
}

func TestRequestSystemPrompt(t *testing.T) {
	r := Request{System: "You are a scorer.", Format: FormatJSON}
	assert.Equal(t, "You are a scorer.\nYou MUST respond with valid JSON only. No markdown, no explanations.", r.SystemPrompt())

	r.Format = FormatText
	assert.Equal(t, "You are a scorer.", r.SystemPrompt())
}
