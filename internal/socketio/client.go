package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
)

// Handler receives the JSON arguments of one inbound event. Handlers run on
// the read goroutine, one at a time, in channel-delivery order.
type Handler func(args []json.RawMessage)

type handlerEntry struct {
	id int
	fn Handler
}

// Subscription is the cleanup handle returned by On. Off is idempotent.
type Subscription struct {
	client *Client
	event  string
	id     int
}

func (s *Subscription) Off() {
	if s == nil || s.client == nil {
		return
	}
	s.client.off(s.event, s.id)
	s.client = nil
}

// Client is the dialing side of the realtime channel.
type Client struct {
	ws  *websocket.Conn
	log *logger.Logger

	sendMu sync.Mutex

	mu       sync.Mutex
	handlers map[string][]handlerEntry
	nextID   int

	closed atomic.Bool
	done   chan struct{}
}

type DialOptions struct {
	// URL is the socket base, e.g. ws://localhost:3000.
	URL   string
	Token string
	// HandshakeTimeout bounds the engine open + namespace connect exchange.
	// Defaults to 10s. Once connected, reads have no deadline: a silent
	// server leaves the client waiting, it never times out on its own.
	HandshakeTimeout time.Duration
}

func Dial(opts DialOptions, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	endpoint := strings.TrimSuffix(opts.URL, "/") + "/socket.io/?EIO=4&transport=websocket"
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", endpoint, err)
	}

	if err := handshake(ws, opts.Token, timeout); err != nil {
		_ = ws.Close()
		return nil, err
	}

	c := &Client{
		ws:       ws,
		log:      log,
		handlers: make(map[string][]handlerEntry),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func handshake(ws *websocket.Conn, token string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if err := ws.SetReadDeadline(deadline); err != nil {
		return err
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	if _, err := parseOpenPacket(string(data)); err != nil {
		return fmt.Errorf("open packet: %w", err)
	}

	connectPkt, err := buildSocketConnectPacket("/", connectAuth{Token: token})
	if err != nil {
		return err
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte(string(engineMessage)+connectPkt)); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	// Wait for the namespace ack; answer engine pings meanwhile.
	for time.Now().Before(deadline) {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read connect ack: %w", err)
		}
		msg := string(data)
		if msg == string(enginePing) {
			_ = ws.WriteMessage(websocket.TextMessage, []byte{byte(enginePong)})
			continue
		}
		if strings.HasPrefix(msg, string(engineMessage)+string(socketConnect)) {
			return ws.SetReadDeadline(time.Time{})
		}
		if pkt, err := parseSocketEventPacket(strings.TrimPrefix(msg, string(engineMessage))); err == nil && pkt.Event == "error" {
			var body struct {
				Message string `json:"message"`
			}
			if len(pkt.Args) > 0 {
				_ = json.Unmarshal(pkt.Args[0], &body)
			}
			return fmt.Errorf("connect rejected: %s", body.Message)
		}
	}
	return errors.New("connect ack timeout")
}

// Emit sends one event with its arguments.
func (c *Client) Emit(event string, args ...any) error {
	if c.closed.Load() {
		return errors.New("client closed")
	}
	payload, err := buildSocketEventPacket("/", event, args...)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(string(engineMessage)+payload))
}

// On registers a handler for an event name and returns its subscription.
// Callers must Off the subscription on teardown; re-registering across
// repeated view-focus cycles without cleanup duplicates deliveries.
func (c *Client) On(event string, fn Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: id, fn: fn})
	return &Subscription{client: c, event: event, id: id}
}

func (c *Client) off(event string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.handlers[event]
	for i, e := range entries {
		if e.id == id {
			c.handlers[event] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(c.handlers[event]) == 0 {
		delete(c.handlers, event)
	}
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.ws.Close()
	return err
}

func (c *Client) readLoop() {
	defer func() {
		c.closed.Store(true)
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.log.Debug("socket read ended", zap.Error(err))
			}
			return
		}
		msg := string(data)
		if msg == "" {
			continue
		}

		switch enginePacketType(msg[0]) {
		case enginePing:
			c.sendMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.ws.WriteMessage(websocket.TextMessage, []byte{byte(enginePong)})
			c.sendMu.Unlock()
		case engineMessage:
			c.dispatch(msg[1:])
		case engineClose:
			return
		}
	}
}

func (c *Client) dispatch(payload string) {
	if payload == "" || payload[0] != byte(socketEvent) {
		return
	}
	pkt, err := parseSocketEventPacket(payload)
	if err != nil {
		return
	}

	c.mu.Lock()
	entries := make([]handlerEntry, len(c.handlers[pkt.Event]))
	copy(entries, c.handlers[pkt.Event])
	c.mu.Unlock()

	for _, e := range entries {
		e.fn(pkt.Args)
	}
}
