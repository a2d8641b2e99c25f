// Package dcerpc implements the connection-oriented DCE/RPC PDU framing
// this daemon needs: header parse/emit, Request/Response/Fault bodies,
// and fragment-flag back-patching.
//
// Reference: [C706] DCE 1.1 Chapter 12 (Connection-oriented RPC).
package dcerpc

import (
	"encoding/binary"
	"fmt"
)

// PDU types in scope for this core (spec.md §6: only REQUEST and RESPONSE
// are emitted; FAULT is defined for the Fault type below, which
// internal/srvsvc does not emit).
const (
	PDURequest  uint8 = 0x00
	PDUResponse uint8 = 0x02
	PDUFault    uint8 = 0x03
)

// pfc_flags bits.
const (
	FlagFirstFrag uint8 = 0x01
	FlagLastFrag  uint8 = 0x02
)

// HeaderSize is the size of the common 16-byte DCE/RPC PDU header.
const HeaderSize = 16

// DataRepLittleEndian is packed_drep for little-endian/ASCII/IEEE float,
// the only transfer syntax this daemon emits.
var DataRepLittleEndian = [4]byte{0x10, 0x00, 0x00, 0x00}

// Header is the common connection-oriented PDU header.
type Header struct {
	VersionMajor uint8
	VersionMinor uint8
	PacketType   uint8
	Flags        uint8
	DataRep      [4]byte
	FragLength   uint16
	AuthLength   uint16
	CallID       uint32
}

// ParseHeader parses the 16-byte common header from the front of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("dcerpc: short header: %d bytes", len(data))
	}
	h := Header{
		VersionMajor: data[0],
		VersionMinor: data[1],
		PacketType:   data[2],
		Flags:        data[3],
		FragLength:   binary.LittleEndian.Uint16(data[8:10]),
		AuthLength:   binary.LittleEndian.Uint16(data[10:12]),
		CallID:       binary.LittleEndian.Uint32(data[12:16]),
	}
	copy(h.DataRep[:], data[4:8])
	return h, nil
}

// Encode serializes the header.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.VersionMajor
	buf[1] = h.VersionMinor
	buf[2] = h.PacketType
	buf[3] = h.Flags
	copy(buf[4:8], h.DataRep[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.FragLength)
	binary.LittleEndian.PutUint16(buf[10:12], h.AuthLength)
	binary.LittleEndian.PutUint32(buf[12:16], h.CallID)
	return buf
}

// Request is a parsed Request PDU (ptype 0x00).
type Request struct {
	Header    Header
	AllocHint uint32
	ContextID uint16
	OpNum     uint16
	StubData  []byte
}

// ParseRequest parses a full Request PDU, including its common header.
func ParseRequest(data []byte) (*Request, error) {
	if len(data) < HeaderSize+8 {
		return nil, fmt.Errorf("dcerpc: short request PDU: %d bytes", len(data))
	}
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.PacketType != PDURequest {
		return nil, fmt.Errorf("dcerpc: not a request PDU: ptype=%d", hdr.PacketType)
	}
	req := &Request{
		Header:    hdr,
		AllocHint: binary.LittleEndian.Uint32(data[16:20]),
		ContextID: binary.LittleEndian.Uint16(data[20:22]),
		OpNum:     binary.LittleEndian.Uint16(data[22:24]),
	}
	stubEnd := int(hdr.FragLength) - int(hdr.AuthLength)
	if stubEnd < HeaderSize+8 || stubEnd > len(data) {
		return nil, fmt.Errorf("dcerpc: inconsistent frag_length=%d auth_length=%d", hdr.FragLength, hdr.AuthLength)
	}
	req.StubData = data[HeaderSize+8 : stubEnd]
	return req, nil
}

// Response is one Response PDU (ptype 0x02). Flags is set by the framer
// when splitting a logical reply across multiple PDUs.
type Response struct {
	CallID      uint32
	ContextID   uint16
	AllocHint   uint32
	CancelCount uint8
	Flags       uint8
	StubData    []byte
}

// Encode serializes the Response PDU including its header.
func (r *Response) Encode() []byte {
	fragLen := HeaderSize + 8 + len(r.StubData)
	hdr := Header{
		VersionMajor: 5,
		VersionMinor: 0,
		PacketType:   PDUResponse,
		Flags:        r.Flags,
		DataRep:      DataRepLittleEndian,
		FragLength:   uint16(fragLen),
		CallID:       r.CallID,
	}
	buf := make([]byte, fragLen)
	copy(buf[0:HeaderSize], hdr.Encode())
	binary.LittleEndian.PutUint32(buf[16:20], r.AllocHint)
	binary.LittleEndian.PutUint16(buf[20:22], r.ContextID)
	buf[22] = r.CancelCount
	buf[23] = 0
	copy(buf[24:], r.StubData)
	return buf
}

// Fault is a FAULT PDU. internal/srvsvc does not emit one: it answers a
// malformed request PDU with a BadData status instead.
type Fault struct {
	CallID    uint32
	ContextID uint16
	Status    uint32
}

// Encode serializes the Fault PDU.
func (f *Fault) Encode() []byte {
	fragLen := HeaderSize + 16
	hdr := Header{
		VersionMajor: 5,
		VersionMinor: 0,
		PacketType:   PDUFault,
		Flags:        FlagFirstFrag | FlagLastFrag,
		DataRep:      DataRepLittleEndian,
		FragLength:   uint16(fragLen),
		CallID:       f.CallID,
	}
	buf := make([]byte, fragLen)
	copy(buf[0:HeaderSize], hdr.Encode())
	binary.LittleEndian.PutUint32(buf[16:20], 0) // alloc_hint
	binary.LittleEndian.PutUint16(buf[20:22], f.ContextID)
	buf[22] = 0 // cancel_count
	buf[23] = 0 // reserved
	binary.LittleEndian.PutUint32(buf[24:28], f.Status)
	binary.LittleEndian.PutUint32(buf[28:32], 0) // reserved
	return buf
}

// FrameResponse splits stubData into one or more Response PDUs, each no
// larger than maxFragSize total bytes on the wire. firstOfSequence and
// lastOfSequence say whether stubData is, respectively, the opening and
// closing part of the logical reply this call id is answering — a
// caller pipelining several independent WRITE/READ-driven fragments
// across separate calls (spec.md §4.3's resume-handle pagination) passes
// false/false for a fragment in the middle of that pagination, so only
// the true first and true last physical PDU across the whole exchange
// carry FIRST_FRAG/LAST_FRAG (spec.md §4.2), never an interior one.
// maxFragSize <= 0 disables the byte-level splitting.
func FrameResponse(callID uint32, contextID uint16, stubData []byte, maxFragSize int, firstOfSequence, lastOfSequence bool) [][]byte {
	const pduOverhead = HeaderSize + 8
	if maxFragSize <= 0 || pduOverhead+len(stubData) <= maxFragSize {
		var flags uint8
		if firstOfSequence {
			flags |= FlagFirstFrag
		}
		if lastOfSequence {
			flags |= FlagLastFrag
		}
		r := &Response{CallID: callID, ContextID: contextID, AllocHint: uint32(len(stubData)),
			Flags: flags, StubData: stubData}
		return [][]byte{r.Encode()}
	}

	chunkSize := maxFragSize - pduOverhead
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var pdus [][]byte
	for off := 0; off < len(stubData); off += chunkSize {
		end := off + chunkSize
		if end > len(stubData) {
			end = len(stubData)
		}
		var flags uint8
		if off == 0 && firstOfSequence {
			flags |= FlagFirstFrag
		}
		if end == len(stubData) && lastOfSequence {
			flags |= FlagLastFrag
		}
		r := &Response{CallID: callID, ContextID: contextID, AllocHint: uint32(len(stubData)),
			Flags: flags, StubData: stubData[off:end]}
		pdus = append(pdus, r.Encode())
	}
	return pdus
}
