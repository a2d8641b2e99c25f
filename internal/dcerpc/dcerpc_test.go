package dcerpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{VersionMajor: 5, VersionMinor: 0, PacketType: PDURequest, Flags: FlagFirstFrag | FlagLastFrag,
		DataRep: DataRepLittleEndian, FragLength: 42, AuthLength: 0, CallID: 7}
	encoded := h.Encode()
	assert.Len(t, encoded, HeaderSize)

	parsed, err := ParseHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseRequest(t *testing.T) {
	stub := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	req := &Request{Header: Header{VersionMajor: 5, PacketType: PDURequest, DataRep: DataRepLittleEndian,
		FragLength: uint16(HeaderSize + 8 + len(stub)), CallID: 9}, AllocHint: uint32(len(stub)), ContextID: 0, OpNum: 15, StubData: stub}

	buf := make([]byte, 0, HeaderSize+8+len(stub))
	buf = append(buf, req.Header.Encode()...)
	buf = append(buf, 0, 0, 0, 0) // alloc_hint (left zero; not asserted below)
	buf = append(buf, 0, 0)       // context_id
	buf = append(buf, 15, 0)      // opnum = 15
	buf = append(buf, stub...)

	parsed, err := ParseRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(15), parsed.OpNum)
	assert.Equal(t, stub, parsed.StubData)
}

func TestParseRequestRejectsWrongType(t *testing.T) {
	h := Header{VersionMajor: 5, PacketType: PDUResponse, DataRep: DataRepLittleEndian, FragLength: HeaderSize + 8}
	buf := append(h.Encode(), make([]byte, 8)...)
	_, err := ParseRequest(buf)
	assert.Error(t, err)
}

func TestFrameResponseSinglePDU(t *testing.T) {
	stub := make([]byte, 64)
	pdus := FrameResponse(1, 0, stub, 4096, true, true)
	require.Len(t, pdus, 1)

	hdr, err := ParseHeader(pdus[0])
	require.NoError(t, err)
	assert.Equal(t, FlagFirstFrag|FlagLastFrag, hdr.Flags)
}

func TestFrameResponseMultiplePDUs(t *testing.T) {
	stub := make([]byte, 300)
	for i := range stub {
		stub[i] = byte(i)
	}
	pdus := FrameResponse(1, 0, stub, 100, true, true)
	require.Greater(t, len(pdus), 1)

	var reassembled []byte
	for i, pdu := range pdus {
		hdr, err := ParseHeader(pdu)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(pdu), 100)
		if i == 0 {
			assert.NotZero(t, hdr.Flags&FlagFirstFrag)
		} else {
			assert.Zero(t, hdr.Flags&FlagFirstFrag)
		}
		if i == len(pdus)-1 {
			assert.NotZero(t, hdr.Flags&FlagLastFrag)
		} else {
			assert.Zero(t, hdr.Flags&FlagLastFrag)
		}
		reassembled = append(reassembled, pdu[HeaderSize+8:]...)
	}
	assert.Equal(t, stub, reassembled)
}

func TestFrameResponseMiddleOfSequenceCarriesNoFlags(t *testing.T) {
	stub := make([]byte, 32)
	pdus := FrameResponse(1, 0, stub, 4096, false, false)
	require.Len(t, pdus, 1)

	hdr, err := ParseHeader(pdus[0])
	require.NoError(t, err)
	assert.Zero(t, hdr.Flags)
}

func TestFrameResponseOpensOrClosesIndependently(t *testing.T) {
	stub := make([]byte, 32)

	opening, err := ParseHeader(FrameResponse(1, 0, stub, 4096, true, false)[0])
	require.NoError(t, err)
	assert.Equal(t, FlagFirstFrag, opening.Flags)

	closing, err := ParseHeader(FrameResponse(1, 0, stub, 4096, false, true)[0])
	require.NoError(t, err)
	assert.Equal(t, FlagLastFrag, closing.Flags)
}

func TestFaultEncode(t *testing.T) {
	f := &Fault{CallID: 3, ContextID: 0, Status: 0x1C010003}
	buf := f.Encode()
	hdr, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, PDUFault, hdr.PacketType)
	assert.Equal(t, FlagFirstFrag|FlagLastFrag, hdr.Flags)
}
