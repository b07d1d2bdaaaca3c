package mgmtproto

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBoard echoes back a response with the same ID for every request it
// receives, simulating a well-behaved microcontroller.
func fakeBoard(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		req, err := decode(r)
		if err != nil {
			return
		}
		resp := Response{ID: req.ID, Opcode: req.Opcode, Payload: []byte("ok")}
		if err := encodeResponse(conn, resp); err != nil {
			return
		}
	}
}

func TestChannelSendPacketRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go fakeBoard(serverConn)

	ch := NewChannel(clientConn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := ch.SendPacket(ctx, Packet{Opcode: 0x01, Payload: []byte("hi")})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Payload)
}

func TestChannelAssignsSequentialIDs(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go fakeBoard(serverConn)

	ch := NewChannel(clientConn)
	ctx := context.Background()

	r1, err := ch.SendPacket(ctx, Packet{Opcode: 0x01})
	require.NoError(t, err)
	r2, err := ch.SendPacket(ctx, Packet{Opcode: 0x01})
	require.NoError(t, err)

	assert.Equal(t, byte(0), r1.ID)
	assert.Equal(t, byte(1), r2.ID)
}

func TestChannelReadTimeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	// The board reads the request but never answers.
	go func() {
		r := bufio.NewReader(serverConn)
		_, _ = decode(r)
	}()

	ch := NewChannel(clientConn)
	ctx := context.Background()

	_, err := ch.SendPacket(ctx, Packet{Opcode: 0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestChannelResponseErrorCodeSurfaced(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		r := bufio.NewReader(serverConn)
		req, err := decode(r)
		if err != nil {
			return
		}
		_ = encodeResponse(serverConn, Response{ID: req.ID, Opcode: req.Opcode, ErrCode: 7})
	}()

	ch := NewChannel(clientConn)
	_, err := ch.SendPacket(context.Background(), Packet{Opcode: 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control protocol error")
}
