package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c, err := New(nil, "")
	require.NoError(t, err)

	assert.Len(t, c.Keys(), 10)
	assert.Equal(t, "af_heart", c.Keys()[0])
	assert.Equal(t, DefaultKey, c.DefaultKey())
}

func TestResolve(t *testing.T) {
	c, err := New(nil, "")
	require.NoError(t, err)

	tests := []struct {
		key  string
		want string
	}{
		{"af_heart", "en-US-AriaNeural"},
		{"am_puck", "en-US-SteffanNeural"},
		{"am_echo", "en-US-JasonNeural"},
		{"", "en-US-AriaNeural"},
		{"nope", "en-US-AriaNeural"},
		{"AF_HEART", "en-US-AriaNeural"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Resolve(tt.key))
		})
	}
}

func TestNewOverrides(t *testing.T) {
	c, err := New(map[string]string{
		"af_bella": "en-GB-SoniaNeural",
		"zz_last":  "en-AU-NatashaNeural",
		"bf_emma":  "en-GB-LibbyNeural",
	}, "bf_emma")
	require.NoError(t, err)

	keys := c.Keys()
	require.Len(t, keys, 12)
	assert.Equal(t, "af_bella", keys[1], "overrides keep their listing position")
	assert.Equal(t, []string{"bf_emma", "zz_last"}, keys[10:])
	assert.Equal(t, "en-GB-SoniaNeural", c.Resolve("af_bella"))
	assert.Equal(t, "en-GB-LibbyNeural", c.Resolve("unknown"))
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, "missing")
	assert.Error(t, err)

	_, err = New(map[string]string{"x": ""}, "")
	assert.Error(t, err)
}

func TestKeysReturnsCopy(t *testing.T) {
	c, err := New(nil, "")
	require.NoError(t, err)

	keys := c.Keys()
	keys[0] = "mutated"
	assert.Equal(t, "af_heart", c.Keys()[0])
}
