// Package handlers implements the stateless dispatch from a typed IPC
// request to a typed IPC response (spec.md §4.4), backed by the share,
// user and session registries and the RPC pipe engine.
package handlers

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipc"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipcerr"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/metrics"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/session"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/user"
)

// PipeManager is the RPC engine collaborator: internal/srvsvc's pipe
// dispatcher satisfies this so Handlers.Rpc never imports that package
// directly (it would otherwise be a dependency cycle — internal/srvsvc
// imports this package for the RPCMethod* constants and this interface).
type PipeManager interface {
	// Dispatch runs one RPC sub-request against pipeID and returns the
	// produced stub bytes (possibly empty for OPEN/CLOSE) plus a status
	// code (RPCStatusOK, RPCStatusNotImplemented, ...).
	Dispatch(ctx context.Context, pipeID uint64, method uint32, maxSize int, stub []byte) (out []byte, status uint32, err error)
}

// Handlers wires every IPC message type to the registries and pipe
// engine it needs (original_source/cifsd's worker.c free functions,
// turned into methods so they can be unit-tested without globals).
type Handlers struct {
	Shares   *share.Registry
	Users    *user.Registry
	Sessions *session.Registry
	Pipes    PipeManager

	// Metrics records per-message-type dispatch outcomes and heartbeat
	// cadence; nil is a valid no-op (see internal/metrics.Null).
	Metrics *metrics.Metrics

	lastHeartbeat atomic.Uint64 // unix seconds, 0 means "none yet"
}

// New constructs a Handlers bound to the given registries.
func New(shares *share.Registry, users *user.Registry, sessions *session.Registry, pipes PipeManager) *Handlers {
	return &Handlers{Shares: shares, Users: users, Sessions: sessions, Pipes: pipes, Metrics: metrics.Null()}
}

// Dispatch routes one IPC message to its handler and returns the
// response message to send back, or nil if the message type has no
// response (TreeDisconnect, Logout). It never returns an error for a
// well-formed-but-business-rejected request — those are carried as
// status fields in the response payload, per spec.md §7.
func (h *Handlers) Dispatch(ctx context.Context, m *ipc.Message) (resp *ipc.Message, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.Metrics.RecordIPCRequest(m.Type.String(), outcome)
	}()

	switch m.Type {
	case ipc.TypeLoginRequest:
		return h.Login(ctx, m.Payload)
	case ipc.TypeTreeConnectRequest:
		return h.TreeConnect(ctx, m.Payload)
	case ipc.TypeTreeDisconnectRequest:
		return nil, h.TreeDisconnect(ctx, m.Payload)
	case ipc.TypeLogoutRequest:
		return nil, h.Logout(ctx, m.Payload)
	case ipc.TypeShareConfigRequest:
		return h.ShareConfig(ctx, m.Payload)
	case ipc.TypeHeartbeat:
		return nil, h.Heartbeat(ctx, m.Payload)
	case ipc.TypeRpcRequest:
		return h.Rpc(ctx, m.Payload)
	default:
		return nil, ipcerr.New(ipcerr.BadMessage, "unknown IPC message type %d", m.Type)
	}
}

// Login matches the account against UserRegistry and, on success,
// allocates and registers a session.
func (h *Handlers) Login(ctx context.Context, payload []byte) (*ipc.Message, error) {
	req, err := DecodeLoginRequest(payload)
	if err != nil {
		return nil, ipcerr.New(ipcerr.BadMessage, "%v", err)
	}

	resp := &LoginResponse{Handle: req.Handle, Status: LoginInvalid}
	name := fixedString(req.AccountName[:])

	u, ok := h.Users.Lookup(name)
	switch {
	case !ok:
		logger.WarnCtx(ctx, "login rejected: unknown account", "username", name)
	case !u.CheckNTHash(user.NTHash(req.NTHash)):
		logger.WarnCtx(ctx, "login rejected: hash mismatch", "username", name)
	default:
		status := LoginSuccess
		if u.Is(user.FlagGuest) {
			status = LoginGuest
		}
		sess := h.Sessions.Create(name, u.Is(user.FlagGuest))
		resp.Status = status
		resp.SessionID = sess.ID
		logger.InfoCtx(ctx, "login accepted", "username", name, "sessionID", sess.ID)
	}

	return &ipc.Message{Type: ipc.TypeLoginResponse, Payload: EncodeLoginResponse(resp)}, nil
}

// TreeConnect resolves the share, applies host and user access control,
// and admits the connection if under MaxConnections.
func (h *Handlers) TreeConnect(ctx context.Context, payload []byte) (*ipc.Message, error) {
	req, err := DecodeTreeConnectRequest(payload)
	if err != nil {
		return nil, ipcerr.New(ipcerr.BadMessage, "%v", err)
	}

	resp := &TreeConnectResponse{Handle: req.Handle, Status: TreeConnectErrorNoSuchShare}
	shareName := fixedString(req.ShareName[:])
	host := fixedString(req.ClientHost[:])

	s, ok := h.Shares.Lookup(shareName)
	if !ok {
		logger.WarnCtx(ctx, "tree connect: no such share", "share", shareName)
		return &ipc.Message{Type: ipc.TypeTreeConnectResponse, Payload: EncodeTreeConnectResponse(resp)}, nil
	}
	defer s.Release()

	if !s.HostAllowed(host) {
		resp.Status = TreeConnectErrorAccessDenied
		logger.WarnCtx(ctx, "tree connect: host denied", "share", shareName, "host", host)
		return &ipc.Message{Type: ipc.TypeTreeConnectResponse, Payload: EncodeTreeConnectResponse(resp)}, nil
	}

	sess, ok := h.Sessions.Get(req.SessionID)
	if ok && s.HasUser(share.InvalidUsers, sess.Username()) {
		resp.Status = TreeConnectErrorAccessDenied
		logger.WarnCtx(ctx, "tree connect: invalid user", "share", shareName, "username", sess.Username())
		return &ipc.Message{Type: ipc.TypeTreeConnectResponse, Payload: EncodeTreeConnectResponse(resp)}, nil
	}

	if !s.OpenConnection() {
		resp.Status = TreeConnectErrorTooManyConnections
		logger.WarnCtx(ctx, "tree connect: connection limit reached", "share", shareName)
		return &ipc.Message{Type: ipc.TypeTreeConnectResponse, Payload: EncodeTreeConnectResponse(resp)}, nil
	}

	var flags uint32
	if !s.HasFlag(share.FlagReadOnly) {
		flags |= TreeConnFlagWritable
	}
	if ok && s.HasUser(share.ReadListUsers, sess.Username()) && !s.HasUser(share.WriteListUsers, sess.Username()) {
		flags &^= TreeConnFlagWritable
	}
	if ok && sess.IsGuest() {
		flags |= TreeConnFlagGuestOnly
	}

	resp.Status = TreeConnectOK
	resp.ConnectionFlags = flags
	resp.ConnectID = req.Handle

	if ok {
		sess.AddTreeConnect(resp.ConnectID, s.Name())
	}

	logger.InfoCtx(ctx, "tree connect accepted", "share", shareName, "connectID", resp.ConnectID)
	return &ipc.Message{Type: ipc.TypeTreeConnectResponse, Payload: EncodeTreeConnectResponse(resp)}, nil
}

// TreeDisconnect releases a tree-connect and the share's connection
// slot. No response is sent (original_source's tree_disconnect_request).
func (h *Handlers) TreeDisconnect(ctx context.Context, payload []byte) error {
	req, err := DecodeTreeDisconnectRequest(payload)
	if err != nil {
		return ipcerr.New(ipcerr.BadMessage, "%v", err)
	}

	sess, ok := h.Sessions.Get(req.SessionID)
	if !ok {
		return nil
	}
	shareName := sess.RemoveTreeConnect(req.ConnectID)
	if shareName == "" {
		return nil
	}
	if s, ok := h.Shares.Lookup(shareName); ok {
		s.CloseConnection()
		s.Release()
	}
	logger.InfoCtx(ctx, "tree disconnect", "share", shareName, "connectID", req.ConnectID)
	return nil
}

// Logout destroys a session. No response is sent.
func (h *Handlers) Logout(ctx context.Context, payload []byte) error {
	req, err := DecodeLogoutRequest(payload)
	if err != nil {
		return ipcerr.New(ipcerr.BadMessage, "%v", err)
	}
	h.Sessions.Delete(req.SessionID)
	logger.InfoCtx(ctx, "logout", "sessionID", req.SessionID)
	return nil
}

// ShareConfig serializes a share's effective configuration. The payload
// size is computed (ShareConfigPayloadSize) before encoding, matching
// original_source's two-pass alloc-then-fill discipline.
func (h *Handlers) ShareConfig(ctx context.Context, payload []byte) (*ipc.Message, error) {
	req, err := DecodeShareConfigRequest(payload)
	if err != nil {
		return nil, ipcerr.New(ipcerr.BadMessage, "%v", err)
	}

	resp := &ShareConfigResponse{Handle: req.Handle}
	shareName := fixedString(req.ShareName[:])

	s, ok := h.Shares.Lookup(shareName)
	if !ok {
		resp.Status = TreeConnectErrorNoSuchShare
		return &ipc.Message{Type: ipc.TypeShareConfigResponse, Payload: EncodeShareConfigResponse(resp)}, nil
	}
	defer s.Release()

	resp.Status = TreeConnectOK
	resp.Flags = uint32(s.Flags())
	resp.CreateMask = s.CreateMask()
	resp.DirectoryMask = s.DirectoryMask()
	resp.MaxConnections = uint32(s.MaxConnections())
	resp.Path = s.Path()
	resp.Comment = s.Comment()
	vetoList := s.VetoList()
	for i, p := range vetoList {
		if i > 0 {
			resp.VetoList += "\x00"
		}
		resp.VetoList += p
	}

	return &ipc.Message{Type: ipc.TypeShareConfigResponse, Payload: EncodeShareConfigResponse(resp)}, nil
}

// Heartbeat validates size and sends no response. Besides a debug log
// line it stores the timestamp and records the heartbeat, with the
// interval since the previous timestamp when that one is known and
// older, in Metrics.
func (h *Handlers) Heartbeat(ctx context.Context, payload []byte) error {
	hb, err := DecodeHeartbeat(payload)
	if err != nil {
		return ipcerr.New(ipcerr.BadMessage, "%v", err)
	}
	logger.DebugCtx(ctx, "heartbeat")

	prev := h.lastHeartbeat.Swap(hb.Timestamp)
	if prev != 0 && hb.Timestamp > prev {
		h.Metrics.RecordHeartbeat(float64(hb.Timestamp-prev), true)
	} else {
		h.Metrics.RecordHeartbeat(0, false)
	}
	return nil
}

// Rpc dispatches on the request's method bitset to the pipe engine.
// Exactly one method bit is expected to be set; RAP is always rejected
// as not implemented (original_source never added RAP support either).
func (h *Handlers) Rpc(ctx context.Context, payload []byte) (*ipc.Message, error) {
	req, err := DecodeRpcRequest(payload)
	if err != nil {
		return nil, ipcerr.New(ipcerr.BadMessage, "%v", err)
	}

	resp := &RpcResponse{Handle: req.Handle}

	switch {
	case req.Flags&RPCMethodRAP != 0:
		resp.Status = RPCStatusNotImplemented
	case req.Flags&(RPCMethodOpen|RPCMethodWrite|RPCMethodRead|RPCMethodIoctl|RPCMethodClose) != 0:
		method := req.Flags & (RPCMethodOpen | RPCMethodWrite | RPCMethodRead | RPCMethodIoctl | RPCMethodClose)
		out, status, derr := h.Pipes.Dispatch(ctx, req.PipeID, method, int(req.MaxSize), req.StubData)
		if derr != nil {
			return nil, fmt.Errorf("rpc dispatch: %w", derr)
		}
		resp.StubData = out
		resp.Status = status
	default:
		resp.Status = RPCStatusNotImplemented
	}

	return &ipc.Message{Type: ipc.TypeRpcResponse, Payload: EncodeRpcResponse(resp)}, nil
}
