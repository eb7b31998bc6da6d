// internal/protocol/conn_channel.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"dive-service/internal/model"
)

// ConnChannel adapts an established net.Conn to the Channel interface. It is
// used for accepted simulator connections and in-process pipes.
type ConnChannel struct {
	statsRecorder

	conn    net.Conn
	address string
	timeout time.Duration
	mutex   sync.Mutex
	closed  bool
}

// NewConnChannel wraps conn
func NewConnChannel(conn net.Conn, address string) *ConnChannel {
	c := &ConnChannel{conn: conn, address: address}
	c.setConnected(true)
	return c
}

func (c *ConnChannel) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	c.mutex.Lock()
	closed, timeout := c.closed, c.timeout
	c.mutex.Unlock()
	if closed {
		return nil, ErrChannelClosed
	}

	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}

	buffer := make([]byte, maxBytes)
	n, err := c.conn.Read(buffer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return buffer[:0], nil
		}
		c.recordError()
		return nil, fmt.Errorf("read %s: %w", c.address, err)
	}

	c.recordRead(n)
	return buffer[:n], nil
}

func (c *ConnChannel) Write(ctx context.Context, data []byte) error {
	c.mutex.Lock()
	closed := c.closed
	c.mutex.Unlock()
	if closed {
		return ErrChannelClosed
	}

	stop := context.AfterFunc(ctx, func() { c.conn.SetWriteDeadline(time.Now()) })
	defer stop()

	n, err := c.conn.Write(data)
	if err != nil {
		c.recordError()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("write %s: %w", c.address, err)
	}

	c.recordWrite(n)
	return nil
}

func (c *ConnChannel) SetTimeout(timeout time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.timeout = timeout
	return nil
}

func (c *ConnChannel) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.setConnected(false)
	return c.conn.Close()
}

func (c *ConnChannel) IsOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return !c.closed
}

func (c *ConnChannel) Address() string           { return c.address }
func (c *ConnChannel) Kind() model.TransportKind { return model.TransportTCP }
