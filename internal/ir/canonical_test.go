package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedCompact(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"b": uint64(5),
		"a": []any{"x", true, int64(-1)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",true,-1],"b":5}`, string(out))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	out, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(out))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	out, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+10000 encodes as a surrogate pair (0xD800...) which sorts before U+E000.
	out, err := MarshalCanonical(map[string]any{
		"\ue000":     1,
		"\U00010000": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\ue000\":1}", string(out))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"k": struct{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"k"`)
}

func TestMarshalCanonical_Pubkey(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"owner": SystemProgramID})
	require.NoError(t, err)
	assert.Equal(t, `{"owner":"11111111111111111111111111111111"}`, string(out))
}
