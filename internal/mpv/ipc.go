// Package mpv implements domain.MediaHandle on top of an mpv process controlled
// through mpv's JSON IPC protocol.
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned for requests on a closed connection
var ErrClosed = errors.New("mpv: connection closed")

// Event is an asynchronous message from mpv (property-change, seek, playback-restart, ...)
type Event struct {
	Name string          `json:"event"`
	ID   int64           `json:"id,omitempty"`
	Prop string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type response struct {
	RequestID *int64          `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
}

type result struct {
	data json.RawMessage
	err  error
}

// call is a command waiting for its reply. Exactly one of reply and onError is used:
// Request waits on reply, Send reports failures through onError.
type call struct {
	reply   chan result
	onError func(error)
}

// Conn is the IPC surface a Handle needs
type Conn interface {
	// Send writes a command without waiting for its reply. A write failure is
	// returned; a failing reply from mpv is passed to onError, if set, on the read
	// goroutine.
	Send(onError func(error), args ...any) error
	// Request writes a command and waits for its reply
	Request(ctx context.Context, args ...any) (json.RawMessage, error)
	// Events returns the stream of asynchronous mpv events; it is closed with the connection
	Events() <-chan Event
	Close() error
}

// Client speaks mpv's line-delimited JSON IPC over a socket
type Client struct {
	logger *zap.Logger
	conn   net.Conn

	nextID  atomic.Int64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]call
	names   map[int64]string
	closed  bool

	events   chan Event
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// Dial connects to the IPC socket of a running mpv
func Dial(ctx context.Context, logger *zap.Logger, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpv socket: %w", err)
	}
	return newClient(logger, conn), nil
}

func newClient(logger *zap.Logger, conn net.Conn) *Client {
	c := &Client{
		logger:  logger,
		conn:    conn,
		pending: make(map[int64]call),
		names:   make(map[int64]string),
		events:  make(chan Event, 256),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.read()
	return c
}

// Events returns the stream of asynchronous mpv events
func (c *Client) Events() <-chan Event {
	return c.events
}

// Send writes a command without waiting for its reply. onError receives the error
// reply, if mpv rejects the command.
func (c *Client) Send(onError func(error), args ...any) error {
	_, err := c.write(args, call{onError: onError})
	return err
}

// Request writes a command and waits for its reply
func (c *Client) Request(ctx context.Context, args ...any) (json.RawMessage, error) {
	reply := make(chan result, 1)
	if _, err := c.write(args, call{reply: reply}); err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) write(args []any, pc call) (int64, error) {
	id := c.nextID.Add(1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.pending[id] = pc
	if len(args) > 0 {
		c.names[id] = fmt.Sprint(args[0])
	}
	c.mu.Unlock()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return 0, fmt.Errorf("failed to encode command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return 0, fmt.Errorf("failed to write command: %w", err)
	}
	return id, nil
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	delete(c.names, id)
	c.mu.Unlock()
}

// read dispatches replies to waiting requests and events to the events channel
func (c *Client) read() {
	defer c.shutdown()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Debug("Ignoring malformed mpv message", zap.Error(err))
			continue
		}

		if resp.Event != "" {
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			select {
			case c.events <- ev:
			case <-c.quit:
				return
			}
			continue
		}

		if resp.RequestID != nil {
			c.complete(*resp.RequestID, resp)
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Debug("mpv connection read ended", zap.Error(err))
	}
}

func (c *Client) complete(id int64, resp response) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	name := c.names[id]
	delete(c.pending, id)
	delete(c.names, id)
	c.mu.Unlock()

	if !ok {
		return
	}

	var err error
	if resp.Error != "" && resp.Error != "success" {
		err = fmt.Errorf("mpv %s: %s", name, resp.Error)
	}

	if pc.reply == nil {
		if err != nil {
			c.logger.Debug("mpv command failed", zap.Error(err))
			if pc.onError != nil {
				pc.onError(err)
			}
		}
		return
	}
	pc.reply <- result{data: resp.Data, err: err}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]call)
	c.mu.Unlock()

	close(c.done)
	for _, pc := range pending {
		if pc.reply != nil {
			pc.reply <- result{err: ErrClosed}
		}
	}
	close(c.events)
}

// Close closes the socket; the read loop then releases pending requests
func (c *Client) Close() error {
	c.quitOnce.Do(func() { close(c.quit) })
	err := c.conn.Close()
	<-c.done
	return err
}
