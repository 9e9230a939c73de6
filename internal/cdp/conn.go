// Package cdp is a small Chrome DevTools Protocol client: a websocket
// connection with request/response correlation and event subscriptions, the
// HTTP discovery endpoints, and the Tab operations the benchmarks need.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Trace chunks from Tracing.dataCollected can be large.
const readLimit = 256 * 1024 * 1024

var ErrClosed = errors.New("cdp connection closed")

// Message is a CDP frame in either direction.
type Message struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Error is a protocol level error returned for a command.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

type subscription struct {
	methods  map[string]struct{}
	ch       chan Message
	done     chan struct{}
	doneOnce sync.Once
}

// Conn is a single DevTools websocket connection.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *Message
	subs    map[*subscription]struct{}

	closed    chan struct{}
	closeOnce sync.Once
	err       error
	cancel    context.CancelFunc
}

// Dial connects to a DevTools websocket URL and starts the read loop.
func Dial(ctx context.Context, wsURL string, logger *slog.Logger) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools %s: %w", wsURL, err)
	}
	ws.SetReadLimit(readLimit)

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:      ws,
		logger:  logger,
		pending: make(map[int64]chan *Message),
		subs:    make(map[*subscription]struct{}),
		closed:  make(chan struct{}),
		cancel:  cancel,
	}
	go c.readLoop(loopCtx)
	return c, nil
}

// Call sends a command and waits for its response. A non-nil result is
// decoded from the response's result object.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan *Message, 1)

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return c.closeErr()
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.logger.Debug("cdp send", slog.String("method", method), slog.Int64("id", id))
	if err := wsjson.Write(ctx, c.ws, request{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return fmt.Errorf("%s: %w", method, msg.Error)
		}
		if result != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("%s: %w", method, c.closeErr())
	}
}

// Subscribe delivers events whose method is in methods, in arrival order.
// The channel is closed when the connection goes away. Subscribers must keep
// reading or call cancel; the read loop waits on a full channel.
func (c *Conn) Subscribe(methods ...string) (<-chan Message, func()) {
	sub := &subscription{
		methods: make(map[string]struct{}, len(methods)),
		ch:      make(chan Message, 16),
		done:    make(chan struct{}),
	}
	for _, m := range methods {
		sub.methods[m] = struct{}{}
	}

	c.mu.Lock()
	if c.isClosed() {
		close(sub.ch)
	} else {
		c.subs[sub] = struct{}{}
	}
	c.mu.Unlock()

	cancel := func() {
		sub.doneOnce.Do(func() {
			close(sub.done)
			c.mu.Lock()
			delete(c.subs, sub)
			c.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Close shuts the websocket and fails pending calls.
func (c *Conn) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	<-c.closed
	return err
}

// Done is closed once the read loop has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) readLoop(ctx context.Context) {
	var loopErr error
	defer func() { c.shutdown(loopErr) }()

	for {
		var msg Message
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			loopErr = err
			return
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- &msg
			} else {
				c.logger.Debug("cdp response without caller", slog.Int64("id", msg.ID))
			}
			continue
		}

		if msg.Method == "" {
			continue
		}
		if !c.dispatch(ctx, msg) {
			loopErr = ctx.Err()
			return
		}
	}
}

func (c *Conn) dispatch(ctx context.Context, msg Message) bool {
	c.mu.Lock()
	var targets []*subscription
	for sub := range c.subs {
		if _, ok := sub.methods[msg.Method]; ok {
			targets = append(targets, sub)
		}
	}
	c.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if err == nil {
			err = ErrClosed
		}
		c.err = err
		for sub := range c.subs {
			close(sub.ch)
			delete(c.subs, sub)
		}
		close(c.closed)
		c.mu.Unlock()
		c.logger.Debug("cdp connection closed", slog.String("err", err.Error()))
	})
}

// isClosed must be called with mu held.
func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}
