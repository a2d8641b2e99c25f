package handlers

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Fixed field widths for the IPC structs below. The kernel engine emits
// these as fixed-layout messages (spec.md §6); names longer than the
// budget are truncated by the kernel side before framing, matching
// original_source/cifsd's GLib-string-into-fixed-buffer convention.
const (
	maxNameLen = 256
	maxHostLen = 256
	maxPathLen = 4096
)

// Login status flags (original_source's CIFSD_USER_FLAG_* bitset).
const (
	LoginSuccess uint32 = 1 << iota
	LoginGuest
	LoginInvalid
	LoginExpired
)

// Tree-connect status codes.
const (
	TreeConnectOK uint32 = iota
	TreeConnectErrorNoSuchShare
	TreeConnectErrorAccessDenied
	TreeConnectErrorTooManyConnections
)

// Tree-connect response flags.
const (
	TreeConnFlagWritable uint32 = 1 << iota
	TreeConnFlagGuestOnly
)

// RPC method bits (original_source's CIFSD_RPC_*_METHOD).
const (
	RPCMethodOpen  uint32 = 1 << iota // OPEN
	RPCMethodWrite                   // WRITE
	RPCMethodRead                    // READ
	RPCMethodIoctl                   // IOCTL
	RPCMethodClose                   // CLOSE
	RPCMethodRAP                     // RAP, always rejected
)

// RPC status codes echoed in RpcResponse.Status.
const (
	RPCStatusOK             uint32 = 0
	RPCStatusNotImplemented uint32 = 0xC0000002
)

func fixedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putFixedString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// LoginRequest is CIFSD_EVENT_LOGIN_REQUEST's payload.
type LoginRequest struct {
	Handle      uint64
	AccountName [maxNameLen]byte
	NTHash      [16]byte // pre-hashed NT hash of the entered password
}

const loginRequestSize = 8 + maxNameLen + 16

func DecodeLoginRequest(payload []byte) (*LoginRequest, error) {
	if len(payload) != loginRequestSize {
		return nil, fmt.Errorf("handlers: LoginRequest size %d, want %d", len(payload), loginRequestSize)
	}
	r := &LoginRequest{}
	r.Handle = binary.LittleEndian.Uint64(payload[0:8])
	copy(r.AccountName[:], payload[8:8+maxNameLen])
	copy(r.NTHash[:], payload[8+maxNameLen:])
	return r, nil
}

// LoginResponse is CIFSD_EVENT_LOGIN_RESPONSE's payload.
type LoginResponse struct {
	Handle    uint64
	Status    uint32
	SessionID uint64
}

func EncodeLoginResponse(r *LoginResponse) []byte {
	buf := make([]byte, 8+4+8)
	binary.LittleEndian.PutUint64(buf[0:8], r.Handle)
	binary.LittleEndian.PutUint32(buf[8:12], r.Status)
	binary.LittleEndian.PutUint64(buf[12:20], r.SessionID)
	return buf
}

// TreeConnectRequest is CIFSD_EVENT_TREE_CONNECT_REQUEST's payload.
type TreeConnectRequest struct {
	Handle     uint64
	SessionID  uint64
	ShareName  [maxNameLen]byte
	ClientHost [maxHostLen]byte
}

const treeConnectRequestSize = 8 + 8 + maxNameLen + maxHostLen

func DecodeTreeConnectRequest(payload []byte) (*TreeConnectRequest, error) {
	if len(payload) != treeConnectRequestSize {
		return nil, fmt.Errorf("handlers: TreeConnectRequest size %d, want %d", len(payload), treeConnectRequestSize)
	}
	r := &TreeConnectRequest{}
	r.Handle = binary.LittleEndian.Uint64(payload[0:8])
	r.SessionID = binary.LittleEndian.Uint64(payload[8:16])
	off := 16
	copy(r.ShareName[:], payload[off:off+maxNameLen])
	off += maxNameLen
	copy(r.ClientHost[:], payload[off:off+maxHostLen])
	return r, nil
}

// TreeConnectResponse is CIFSD_EVENT_TREE_CONNECT_RESPONSE's payload.
type TreeConnectResponse struct {
	Handle          uint64
	Status          uint32
	ConnectionFlags uint32
	ConnectID       uint64
}

func EncodeTreeConnectResponse(r *TreeConnectResponse) []byte {
	buf := make([]byte, 8+4+4+8)
	binary.LittleEndian.PutUint64(buf[0:8], r.Handle)
	binary.LittleEndian.PutUint32(buf[8:12], r.Status)
	binary.LittleEndian.PutUint32(buf[12:16], r.ConnectionFlags)
	binary.LittleEndian.PutUint64(buf[16:24], r.ConnectID)
	return buf
}

// TreeDisconnectRequest is CIFSD_EVENT_TREE_DISCONNECT_REQUEST's payload.
// No response is sent (original_source's tree_disconnect_request only
// validates size and applies the side effect).
type TreeDisconnectRequest struct {
	SessionID uint64
	ConnectID uint64
}

const treeDisconnectRequestSize = 8 + 8

func DecodeTreeDisconnectRequest(payload []byte) (*TreeDisconnectRequest, error) {
	if len(payload) != treeDisconnectRequestSize {
		return nil, fmt.Errorf("handlers: TreeDisconnectRequest size %d, want %d", len(payload), treeDisconnectRequestSize)
	}
	return &TreeDisconnectRequest{
		SessionID: binary.LittleEndian.Uint64(payload[0:8]),
		ConnectID: binary.LittleEndian.Uint64(payload[8:16]),
	}, nil
}

// LogoutRequest is CIFSD_EVENT_LOGOUT_REQUEST's payload. No response.
type LogoutRequest struct {
	SessionID uint64
}

const logoutRequestSize = 8

func DecodeLogoutRequest(payload []byte) (*LogoutRequest, error) {
	if len(payload) != logoutRequestSize {
		return nil, fmt.Errorf("handlers: LogoutRequest size %d, want %d", len(payload), logoutRequestSize)
	}
	return &LogoutRequest{SessionID: binary.LittleEndian.Uint64(payload[0:8])}, nil
}

// ShareConfigRequest is CIFSD_EVENT_SHARE_CONFIG_REQUEST's payload.
type ShareConfigRequest struct {
	Handle    uint64
	ShareName [maxNameLen]byte
}

const shareConfigRequestSize = 8 + maxNameLen

func DecodeShareConfigRequest(payload []byte) (*ShareConfigRequest, error) {
	if len(payload) != shareConfigRequestSize {
		return nil, fmt.Errorf("handlers: ShareConfigRequest size %d, want %d", len(payload), shareConfigRequestSize)
	}
	r := &ShareConfigRequest{}
	r.Handle = binary.LittleEndian.Uint64(payload[0:8])
	copy(r.ShareName[:], payload[8:])
	return r, nil
}

// ShareConfigResponse is CIFSD_EVENT_SHARE_CONFIG_RESPONSE's payload. The
// fixed prefix is followed by three variable-length byte blocks whose
// sizes it declares, matching original_source's
// shm_share_config_payload_size(), computed before allocation.
type ShareConfigResponse struct {
	Handle         uint64
	Status         uint32
	Flags          uint32
	CreateMask     uint32
	DirectoryMask  uint32
	MaxConnections uint32
	Path           string
	Comment        string
	VetoList       string
}

const shareConfigResponseFixedSize = 8 + 4*5 + 4*3 // header + three length words

// ShareConfigPayloadSize mirrors shm_share_config_payload_size: compute
// the total response size before allocation so the emission never
// resizes mid-write.
func ShareConfigPayloadSize(r *ShareConfigResponse) int {
	return shareConfigResponseFixedSize + len(r.Path) + len(r.Comment) + len(r.VetoList)
}

func EncodeShareConfigResponse(r *ShareConfigResponse) []byte {
	buf := make([]byte, ShareConfigPayloadSize(r))
	binary.LittleEndian.PutUint64(buf[0:8], r.Handle)
	binary.LittleEndian.PutUint32(buf[8:12], r.Status)
	binary.LittleEndian.PutUint32(buf[12:16], r.Flags)
	binary.LittleEndian.PutUint32(buf[16:20], r.CreateMask)
	binary.LittleEndian.PutUint32(buf[20:24], r.DirectoryMask)
	binary.LittleEndian.PutUint32(buf[24:28], r.MaxConnections)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(r.Path)))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(len(r.Comment)))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(len(r.VetoList)))
	off := shareConfigResponseFixedSize
	off += copy(buf[off:], r.Path)
	off += copy(buf[off:], r.Comment)
	copy(buf[off:], r.VetoList)
	return buf
}

// Heartbeat carries the kernel's timestamp, used only for the heartbeat
// interval metric (original_source's heartbeat_request validates just
// the size).
type Heartbeat struct {
	Timestamp uint64
}

const heartbeatSize = 8

func DecodeHeartbeat(payload []byte) (*Heartbeat, error) {
	if len(payload) != heartbeatSize {
		return nil, fmt.Errorf("handlers: Heartbeat size %d, want %d", len(payload), heartbeatSize)
	}
	return &Heartbeat{Timestamp: binary.LittleEndian.Uint64(payload[0:8])}, nil
}

// RpcRequest is CIFSD_EVENT_RPC_REQUEST's payload: a fixed header
// followed by the DCE/RPC stub bytes for OPEN/WRITE/READ/IOCTL/CLOSE.
type RpcRequest struct {
	Handle   uint64
	PipeID   uint64
	Flags    uint32
	MaxSize  uint32
	StubData []byte
}

const rpcRequestFixedSize = 8 + 8 + 4 + 4

func DecodeRpcRequest(payload []byte) (*RpcRequest, error) {
	if len(payload) < rpcRequestFixedSize {
		return nil, fmt.Errorf("handlers: RpcRequest size %d smaller than header %d", len(payload), rpcRequestFixedSize)
	}
	r := &RpcRequest{
		Handle:  binary.LittleEndian.Uint64(payload[0:8]),
		PipeID:  binary.LittleEndian.Uint64(payload[8:16]),
		Flags:   binary.LittleEndian.Uint32(payload[16:20]),
		MaxSize: binary.LittleEndian.Uint32(payload[20:24]),
	}
	r.StubData = append([]byte(nil), payload[rpcRequestFixedSize:]...)
	return r, nil
}

// RpcResponse mirrors RpcRequest's shape: fixed header, trailing stub
// payload.
type RpcResponse struct {
	Handle   uint64
	Status   uint32
	StubData []byte
}

func EncodeRpcResponse(r *RpcResponse) []byte {
	buf := make([]byte, 8+4+len(r.StubData))
	binary.LittleEndian.PutUint64(buf[0:8], r.Handle)
	binary.LittleEndian.PutUint32(buf[8:12], r.Status)
	copy(buf[12:], r.StubData)
	return buf
}
