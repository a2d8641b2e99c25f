package ipc

import (
	"context"
	"net"
	"sync"
	"time"
)

// Channel is the KernelChannel external collaborator from spec.md §6:
// it delivers framed requests from the kernel engine and accepts framed
// responses back. Both implementations here wrap a net.Conn so the
// framing logic (ReadMessage/WriteMessage) is shared; ChannelPipe uses
// net.Pipe() for in-process tests, UnixChannel a real Unix-domain
// socket connection to stand in for the kernel's netlink-style socket.
type Channel interface {
	// Recv blocks for the next framed message, or returns ctx.Err() if
	// ctx is done first.
	Recv(ctx context.Context) (*Message, error)
	// Send writes a framed message, or returns ctx.Err() if ctx is
	// already done. A ctx deadline bounds the write; cancelling a ctx
	// that has no deadline does not interrupt a write in progress.
	Send(ctx context.Context, m *Message) error
	// Close tears down the underlying connection.
	Close() error
}

// connChannel adapts a net.Conn to Channel, serializing writes (the
// worker pool may answer several in-flight requests concurrently) and
// mapping ctx onto net.Conn deadlines: Recv stops when ctx is done,
// Send honours only a ctx deadline.
type connChannel struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// NewUnixChannel wraps an established Unix-domain-socket connection as
// a Channel.
func NewUnixChannel(conn net.Conn) Channel {
	return &connChannel{conn: conn}
}

// NewChannelPipe returns a connected pair of in-memory Channels backed
// by net.Pipe(), one for the simulated kernel side and one for the
// daemon side. Used by tests and by cmd/cifsd when --kernel-socket is
// unset.
func NewChannelPipe() (daemon Channel, kernel Channel) {
	a, b := net.Pipe()
	return &connChannel{conn: a}, &connChannel{conn: b}
}

func (c *connChannel) Recv(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()
	m, err := ReadMessage(c.conn)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return m, err
}

func (c *connChannel) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	return WriteMessage(c.conn, m)
}

func (c *connChannel) Close() error {
	return c.conn.Close()
}
