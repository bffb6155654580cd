// internal/handlers/conn.go
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// maxLineSize bounds a single NDJSON message.
const maxLineSize = 64 * 1024

// ErrMalformedFrame is returned by Read when a frame arrived but could not be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Conn is one client connection, framed into messages.
// Read is only called from the session goroutine; Write may be called concurrently.
type Conn interface {
	Read(ctx context.Context) (ClientMessage, error)
	Write(ctx context.Context, msg ServerMessage) error
	Close() error
	RemoteAddr() string
	Transport() string
}

// tcpConn speaks newline-delimited JSON over a stream.
type tcpConn struct {
	conn        net.Conn
	scanner     *bufio.Scanner
	idleTimeout time.Duration
}

// NewTCPConn wraps conn. Reads fail once the client has been silent for idleTimeout.
func NewTCPConn(conn net.Conn, idleTimeout time.Duration) Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &tcpConn{conn: conn, scanner: scanner, idleTimeout: idleTimeout}
}

func (c *tcpConn) Read(ctx context.Context) (ClientMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return ClientMessage{}, err
		}
		if c.idleTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
				return ClientMessage{}, err
			}
		}
		if !c.scanner.Scan() {
			err := c.scanner.Err()
			if err == nil {
				return ClientMessage{}, io.EOF
			}
			if errors.Is(err, bufio.ErrTooLong) {
				return ClientMessage{}, fmt.Errorf("%w: line longer than %d bytes", ErrMalformedFrame, maxLineSize)
			}
			return ClientMessage{}, err
		}
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return msg, nil
	}
}

func (c *tcpConn) Write(ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Transport() string {
	return "tcp"
}

// wsConn carries one JSON message per text frame.
type wsConn struct {
	conn        *websocket.Conn
	remote      string
	idleTimeout time.Duration
}

// NewWSConn wraps an accepted websocket.
func NewWSConn(conn *websocket.Conn, remote string, idleTimeout time.Duration) Conn {
	return &wsConn{conn: conn, remote: remote, idleTimeout: idleTimeout}
}

func (c *wsConn) Read(ctx context.Context) (ClientMessage, error) {
	if c.idleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.idleTimeout)
		defer cancel()
	}
	msgType, data, err := c.conn.Read(ctx)
	if err != nil {
		return ClientMessage{}, err
	}
	if msgType != websocket.MessageText {
		return ClientMessage{}, fmt.Errorf("%w: expected a text frame", ErrMalformedFrame)
	}
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return msg, nil
}

func (c *wsConn) Write(ctx context.Context, msg ServerMessage) error {
	return wsjson.Write(ctx, c.conn, msg)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}

func (c *wsConn) Transport() string {
	return "websocket"
}
