package persist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{CodecJSON, CodecYAML, CodecGob} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			codec, err := CodecByName(name)
			require.NoError(t, err)
			assert.Equal(t, "."+name, codec.Extension())

			original := Snapshot[int]{Name: "numbers", Values: []int{-3, 0, 7}}

			var buf bytes.Buffer

			require.NoError(t, codec.Encode(&buf, &original))

			var decoded Snapshot[int]

			require.NoError(t, codec.Decode(&buf, &decoded))
			assert.Equal(t, original, decoded)
		})
	}
}

func TestCodecByName_Unknown(t *testing.T) {
	t.Parallel()

	_, err := CodecByName("xml")
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestJSONCodec_CompactNoIndent(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{Indent: ""}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, Snapshot[string]{Name: "c", Values: []string{"a"}}))
	assert.Equal(t, "{\"name\":\"c\",\"values\":[\"a\"]}\n", buf.String())
}

func TestCodecs_DecodeGarbage(t *testing.T) {
	t.Parallel()

	var state Snapshot[int]

	require.Error(t, NewJSONCodec().Decode(bytes.NewBufferString("{not json"), &state))
	require.Error(t, GobCodec{}.Decode(bytes.NewBufferString("garbage"), &state))
	require.Error(t, YAMLCodec{}.Decode(bytes.NewBufferString("values: [1, {"), &state))
}
