package stratum

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jbride/mujina/internal/mjerr"
)

// dialTimeout bounds the initial TCP connect.
const dialTimeout = 10 * time.Second

// connection owns one TCP socket to a pool, framing JSON-RPC messages as
// newline-delimited lines in both directions. Writes are serialized by
// writeMu; reads go through readLine and are not locked.
type connection struct {
	conn    net.Conn
	writeMu sync.Mutex
	reader  *bufio.Reader

	nextID atomic.Uint64
}

func dial(ctx context.Context, addr string) (*connection, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, mjerr.WrapPool(err, "dialing pool %s", addr)
	}
	return &connection{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (c *connection) close() error {
	return c.conn.Close()
}

// call sends a JSON-RPC request and returns the ID it was stamped with.
// Replies are not matched against outstanding IDs.
func (c *connection) call(method string, params []any) (uint64, error) {
	id := c.nextID.Add(1)
	req := request{ID: id, Method: method, Params: params}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return 0, mjerr.WrapProtocol(err, "encoding %s request", method)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return 0, mjerr.WrapPool(err, "writing %s request", method)
	}
	return id, nil
}

// readLine reads one newline-delimited JSON message. Returns io.EOF (via
// mjerr.WrapPool) when the pool closes the connection.
func (c *connection) readLine() ([]byte, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, mjerr.WrapPool(err, "reading from pool")
	}
	return line, nil
}
