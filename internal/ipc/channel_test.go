package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPipeSendRecv(t *testing.T) {
	daemon, kernel := NewChannelPipe()
	defer daemon.Close()
	defer kernel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := &Message{Type: TypeHeartbeat, Payload: []byte{0x01}}

	errCh := make(chan error, 1)
	go func() { errCh <- kernel.Send(ctx, want) }()

	got, err := daemon.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Payload, got.Payload)
}

func TestChannelRecvRespectsCancelledContext(t *testing.T) {
	daemon, kernel := NewChannelPipe()
	defer daemon.Close()
	defer kernel.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := daemon.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelCloseUnblocksRecv(t *testing.T) {
	daemon, kernel := NewChannelPipe()
	defer kernel.Close()

	done := make(chan error, 1)
	go func() {
		_, err := daemon.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, daemon.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}
