package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsPongTimeout    = 60 * time.Second
	wsPingInterval   = 54 * time.Second
	wsMaxMessageSize = 512 * 1024
)

// ErrClientClosed is returned by Call after Close.
var ErrClientClosed = errors.New("websocket client is closed")

// WSClient is a Caller over one WebSocket connection. Requests carry the
// rippled command form {command, id, ...params} and responses are correlated
// back to the caller by id, so calls from multiple goroutines may be in
// flight at once.
type WSClient struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan wsResult
	closed  bool

	writeCh chan []byte
	done    chan struct{}
}

type wsResult struct {
	result json.RawMessage
	err    *RPCError
}

// wsResponse is the WebSocket response envelope. Unlike the HTTP transport,
// errors arrive at the top level alongside status.
type wsResponse struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// WSOption configures a WSClient.
type WSOption func(*WSClient)

// WithWSTimeout sets the default per-call timeout.
func WithWSTimeout(d time.Duration) WSOption {
	return func(c *WSClient) { c.timeout = d }
}

// WithWSLogger sets the logger.
func WithWSLogger(log *zap.Logger) WSOption {
	return func(c *WSClient) { c.log = log }
}

// DialWS connects to a WebSocket endpoint and starts the read and write
// pumps. The caller owns the client and must Close it.
func DialWS(ctx context.Context, endpoint string, opts ...WSOption) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapCtxErr(ctxErr)
		}
		return nil, transportError(fmt.Sprintf("dialing %s", endpoint), err)
	}

	c := &WSClient{
		conn:    conn,
		timeout: DefaultCallTimeout,
		log:     zap.NewNop(),
		pending: make(map[uint64]chan wsResult),
		writeCh: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readPump()
	go c.writePump()
	return c, nil
}

// Call issues one command and waits for the matching response, the ctx
// deadline, or connection teardown, whichever comes first.
func (c *WSClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Merge command and id into the parameter object.
	fields := map[string]any{}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, transportError("encoding params", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, transportError("params must encode to an object", err)
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, transportError("call on closed client", ErrClientClosed)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan wsResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	fields["command"] = method
	fields["id"] = id
	msg, err := json.Marshal(fields)
	if err != nil {
		c.dropPending(id)
		return nil, transportError("encoding command", err)
	}

	select {
	case c.writeCh <- msg:
	case <-c.done:
		c.dropPending(id)
		return nil, transportError("connection closed", ErrClientClosed)
	case <-ctx.Done():
		c.dropPending(id)
		return nil, wrapCtxErr(ctx.Err())
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-c.done:
		c.dropPending(id)
		return nil, transportError("connection closed", ErrClientClosed)
	case <-ctx.Done():
		c.dropPending(id)
		return nil, wrapCtxErr(ctx.Err())
	}
}

// Close tears down the connection and fails all pending calls.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	return c.conn.Close()
}

func (c *WSClient) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WSClient) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var resp wsResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.log.Debug("discarding malformed message", zap.Error(err))
			continue
		}
		if resp.ID == 0 {
			// Unsolicited stream message; this client does not subscribe.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if !ok {
			continue
		}

		if resp.Status == "error" || resp.Error != "" {
			msg := resp.ErrorMessage
			if msg == "" {
				msg = resp.Error
			}
			ch <- wsResult{err: &RPCError{Kind: KindProtocol, Code: resp.Error, Message: msg}}
			continue
		}
		ch <- wsResult{result: resp.Result}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.writeCh:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

var _ Caller = (*WSClient)(nil)
