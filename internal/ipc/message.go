// Package ipc implements the kernel-to-daemon message envelope and the
// Channel abstraction over which it travels (spec.md §6's KernelChannel
// collaborator).
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Type tags the fixed struct layout carried in a Message's payload.
type Type uint32

const (
	TypeLoginRequest Type = iota + 1
	TypeLoginResponse
	TypeTreeConnectRequest
	TypeTreeConnectResponse
	TypeTreeDisconnectRequest
	TypeLogoutRequest
	TypeShareConfigRequest
	TypeShareConfigResponse
	TypeHeartbeat
	TypeRpcRequest
	TypeRpcResponse
)

func (t Type) String() string {
	switch t {
	case TypeLoginRequest:
		return "LoginRequest"
	case TypeLoginResponse:
		return "LoginResponse"
	case TypeTreeConnectRequest:
		return "TreeConnectRequest"
	case TypeTreeConnectResponse:
		return "TreeConnectResponse"
	case TypeTreeDisconnectRequest:
		return "TreeDisconnectRequest"
	case TypeLogoutRequest:
		return "LogoutRequest"
	case TypeShareConfigRequest:
		return "ShareConfigRequest"
	case TypeShareConfigResponse:
		return "ShareConfigResponse"
	case TypeHeartbeat:
		return "Heartbeat"
	case TypeRpcRequest:
		return "RpcRequest"
	case TypeRpcResponse:
		return "RpcResponse"
	default:
		return fmt.Sprintf("Type(%d)", uint32(t))
	}
}

// HeaderSize is the fixed on-wire size of a Message's envelope: length,
// type and flags, each a u32 (spec.md §6, "Kernel IPC message envelope").
const HeaderSize = 12

// MaxPayloadSize bounds a single message's payload, guarding the reader
// against a corrupt or hostile length field before it allocates.
const MaxPayloadSize = 4 << 20

// Message is one framed request or response crossing the kernel channel.
type Message struct {
	Type    Type
	Flags   uint32
	Payload []byte
}

// Encode serializes m as length-prefixed bytes: the length field is the
// total frame size (header + payload), matching spec.md's "length -
// header_size == sizeof(expected)" validation rule handlers apply.
func Encode(m *Message) []byte {
	total := HeaderSize + len(m.Payload)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Type))
	binary.LittleEndian.PutUint32(buf[8:12], m.Flags)
	copy(buf[HeaderSize:], m.Payload)
	return buf
}

// ReadMessage reads one framed message from r, validating the declared
// length against MaxPayloadSize before allocating the payload buffer.
func ReadMessage(r io.Reader) (*Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	total := binary.LittleEndian.Uint32(hdr[0:4])
	if total < HeaderSize {
		return nil, fmt.Errorf("ipc: frame length %d smaller than header", total)
	}
	payloadLen := total - HeaderSize
	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("ipc: frame payload %d exceeds max %d", payloadLen, MaxPayloadSize)
	}
	m := &Message{
		Type:    Type(binary.LittleEndian.Uint32(hdr[4:8])),
		Flags:   binary.LittleEndian.Uint32(hdr[8:12]),
		Payload: make([]byte, payloadLen),
	}
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WriteMessage writes m's wire encoding to w in a single call.
func WriteMessage(w io.Writer, m *Message) error {
	_, err := w.Write(Encode(m))
	return err
}

// ExpectSize reports whether payload has exactly the expected fixed
// struct size (spec.md §9, VALID_IPC_MSG). internal/handlers' Decode*
// functions make the same length comparison inline rather than calling
// this.
func ExpectSize(payload []byte, want int) bool {
	return len(payload) == want
}
