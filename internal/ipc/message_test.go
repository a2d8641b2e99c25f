package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := &Message{Type: TypeLoginRequest, Flags: 0, Payload: []byte("hello")}
	buf := Encode(m)

	got, err := ReadMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, m.Type, got.Type)
	assert.Equal(t, m.Flags, got.Flags)
	assert.Equal(t, m.Payload, got.Payload)
}

func TestEncodeEmptyPayload(t *testing.T) {
	m := &Message{Type: TypeHeartbeat, Payload: nil}
	buf := Encode(m)
	assert.Len(t, buf, HeaderSize)

	got, err := ReadMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Empty(t, got.Payload)
}

func TestReadMessageRejectsTruncatedHeader(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	var hdr [HeaderSize]byte
	hdr[0] = 0xff
	hdr[1] = 0xff
	hdr[2] = 0xff
	hdr[3] = 0xff
	_, err := ReadMessage(bytes.NewReader(hdr[:]))
	assert.Error(t, err)
}

func TestExpectSize(t *testing.T) {
	assert.True(t, ExpectSize([]byte{1, 2, 3}, 3))
	assert.False(t, ExpectSize([]byte{1, 2}, 3))
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "LoginRequest", TypeLoginRequest.String())
	assert.Contains(t, Type(999).String(), "999")
}
