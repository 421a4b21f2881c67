package tag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBinary_ShortRecords(t *testing.T) {
	msg := Message{Records: []Record{
		{TNF: TNFWellKnown, Type: TypeURI, Payload: []byte{0x00, 'a'}},
		{TNF: TNFWellKnown, Type: TypeText, Payload: []byte{0x02, 'e', 'n', 'b'}},
	}}
	raw, err := msg.MarshalBinary()
	require.NoError(t, err)

	want := []byte{
		0x91, 0x01, 0x02, 0x55, 0x00, 'a', // MB|SR|TNF=1
		0x51, 0x01, 0x04, 0x54, 0x02, 'e', 'n', 'b', // ME|SR|TNF=1
	}
	assert.Equal(t, want, raw)
	assert.Equal(t, len(want), msg.Len())
}

func TestMarshalBinary_LongRecordRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 300)
	msg := Message{Records: []Record{
		{TNF: TNFWellKnown, Type: TypeText, ID: []byte("id"), Payload: payload},
	}}
	raw, err := msg.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, byte(0xC9), raw[0]) // MB|ME|IL|TNF=1, no SR
	assert.Equal(t, msg.Len(), len(raw))

	got, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, []byte("id"), got.Records[0].ID)
	assert.Equal(t, payload, got.Records[0].Payload)
}

func TestParseMessage_StopsAtMessageEnd(t *testing.T) {
	raw := []byte{0xD1, 0x01, 0x01, 0x55, 0x00, 0xFE, 0x00, 0x00}
	got, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, []byte{0x00}, got.Records[0].Payload)
}

func TestParseMessage_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"header only":       {0xD1},
		"chunked":           {0xB1, 0x01, 0x01, 0x55, 0x00},
		"short body":        {0xD1, 0x01, 0x05, 0x55, 0x00},
		"long length":       {0xC1, 0x01, 0x00, 0x00},
		"huge long payload": {0xC1, 0x01, 0xff, 0xff, 0xff, 0xff, 0x55},
		"missing id length": {0xD9, 0x01, 0x00},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage(raw)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestParseMessage_Empty(t *testing.T) {
	got, err := ParseMessage(nil)
	require.NoError(t, err)
	assert.Empty(t, got.Records)
}
