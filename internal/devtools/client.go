package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codefionn/devtap/internal/console"
	"github.com/codefionn/devtap/internal/logger"
	"github.com/codefionn/devtap/internal/protocol"
)

// session is one logical connection and everything it owns: the socket,
// the outbound queue and the two pump goroutines. Created by Connect,
// destroyed by Disconnect; the client holds at most one at a time.
type session struct {
	id    string
	conn  *websocket.Conn
	queue *logQueue

	senderDone   chan struct{}
	listenerDone chan struct{}

	// open flips false on Disconnect or when either pump hits a
	// transport failure.
	open atomic.Bool
	// closing marks an orderly local shutdown, so the listener's read
	// error from the closed socket is expected and not reported.
	closing atomic.Bool
}

func newSession(conn *websocket.Conn, queueSize int) *session {
	s := &session{
		id:           uuid.New().String(),
		conn:         conn,
		queue:        newLogQueue(queueSize),
		senderDone:   make(chan struct{}),
		listenerDone: make(chan struct{}),
	}
	s.open.Store(true)
	return s
}

// Client ships captured console output to a devtools server. Log is safe
// to call from latency-sensitive code: it never blocks, never fails
// visibly and drops records instead of growing memory when the link is
// saturated.
type Client struct {
	config  *Config
	console *console.Console
	log     *logger.Logger

	// connectMu serializes Connect and Disconnect against each other.
	// Held across the dial and the shutdown waits, so it must never be
	// taken from the Log path.
	connectMu sync.Mutex

	// mu guards the session pointer, the callback and the producer-side
	// sequence in LogAt (enqueue, spillover notice, counter reset), which
	// must not interleave between concurrent callers. Only ever held for
	// non-blocking work, which keeps Log non-blocking.
	mu        sync.Mutex
	sess      *session
	spillover int

	connectionLost func(error)
}

// NewClient creates a client for the given server address with defaults
// for everything else.
func NewClient(host string, port int) *Client {
	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Host == "" {
		config.Host = protocol.DefaultHost
	}
	if config.Port <= 0 {
		config.Port = protocol.DefaultPort
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = protocol.ConnectTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = protocol.LogQueueMaxSize
	}

	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		config:  config,
		console: console.New(),
		log:     log.WithPrefix("devtools"),
	}
}

// Console returns the capture surface backing this client. Applications
// render through it implicitly via Log; the listener updates its geometry
// from server_info frames.
func (c *Client) Console() *console.Console {
	return c.console
}

// SetConnectionLostCallback registers a callback fired when a pump
// terminates on a mid-session transport failure. Optional; without it
// such failures only show up in the diagnostic log and in IsConnected.
func (c *Client) SetConnectionLostCallback(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectionLost = fn
}

// URL returns the websocket endpoint this client dials.
func (c *Client) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port)),
		Path:   protocol.WebsocketPath,
	}
	return u.String()
}

// Connect dials the devtools server and starts the sender and listener
// pumps. It suspends the caller until the handshake completes or the
// connect timeout elapses. On any dial or handshake failure it returns a
// *ConnectionError and leaves no session behind.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	connected := c.sess != nil
	c.mu.Unlock()
	if connected {
		return errors.New("already connected")
	}

	endpoint := c.URL()
	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.log.Debug("connect to %s failed: %v", endpoint, err)
		return &ConnectionError{URL: endpoint, Err: err}
	}

	sess := newSession(conn, c.config.QueueSize)

	c.mu.Lock()
	c.sess = sess
	c.spillover = 0
	c.mu.Unlock()

	go c.sender(sess)
	go c.listener(sess)

	c.log.Info("session %s connected to %s", sess.id, endpoint)
	return nil
}

// IsConnected reports whether a session exists and neither side has
// closed it.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	return sess != nil && sess.open.Load()
}

// Spillover returns the number of records dropped since the last
// successfully queued spillover notice.
func (c *Client) Spillover() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spillover
}

// Log renders objects through the capture surface and queues the result
// for shipping, tagged with the caller's file and line. It never blocks
// and never fails visibly; when the queue is full the record is dropped
// and counted as spillover.
func (c *Client) Log(objects ...any) {
	path, line := callSite(2)
	c.LogAt(path, line, objects...)
}

// LogAt is Log with an explicit source location, for embedders that
// already track call sites themselves.
func (c *Client) LogAt(path string, line int, objects ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.console.Print(objects...)
	segments := c.console.ExportSegments()

	encoded, err := protocol.EncodeSegments(segments)
	if err != nil {
		c.log.Debug("segment encoding failed: %v", err)
		return
	}

	env := protocol.NewClientLog(protocol.ClientLogPayload{
		Timestamp:       time.Now().UTC().Unix(),
		Path:            path,
		LineNumber:      line,
		EncodedSegments: encoded,
	})

	sess := c.sess
	if sess == nil {
		return
	}

	if !sess.queue.tryEnqueue(env) {
		c.spillover++
		return
	}

	// Piggyback the backpressure report on ordinary traffic: after a
	// successful enqueue, try once to queue a notice for earlier drops.
	// If that fails the counter survives for a later attempt.
	if c.spillover > 0 {
		notice := protocol.NewClientSpillover(c.spillover)
		if sess.queue.tryEnqueue(notice) {
			c.log.Debug("session %s reported %d spilled records", sess.id, c.spillover)
			c.spillover = 0
		}
	}
}

// Disconnect shuts the session down in two phases. First the shutdown
// sentinel goes onto the queue and the sender drains everything queued
// ahead of it. Then the socket closes, which wakes the listener. The call
// returns once both pumps have exited; it has no timeout.
func (c *Client) Disconnect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}

	sess.closing.Store(true)

	sess.queue.enqueueShutdown(sess.senderDone)
	<-sess.senderDone

	sess.open.Store(false)
	err := sess.conn.Close()
	<-sess.listenerDone

	c.log.Info("session %s disconnected", sess.id)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// sender drains the outbound queue and writes one frame per record until
// it dequeues the shutdown sentinel or a write fails. Failed writes are
// not retried; the record is lost and the pump exits.
func (c *Client) sender(sess *session) {
	defer close(sess.senderDone)

	for {
		item := sess.queue.dequeue()
		if item.shutdown {
			return
		}

		data, err := item.env.Encode()
		if err != nil {
			c.log.Debug("session %s dropped unencodable frame: %v", sess.id, err)
			continue
		}

		if c.config.WriteTimeout > 0 {
			_ = sess.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		}
		if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.handleTransportFailure(sess, "send", err)
			return
		}
	}
}

// listener reads frames until the socket closes and applies server-driven
// geometry updates to the capture surface. Malformed frames and unknown
// message types are skipped; either can come from a newer server.
func (c *Client) listener(sess *session) {
	defer close(sess.listenerDone)

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if !sess.closing.Load() {
				c.handleTransportFailure(sess, "receive", err)
			}
			return
		}

		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			continue
		}

		switch env.Type {
		case protocol.TypeServerInfo:
			var info protocol.ServerInfoPayload
			if err := json.Unmarshal(env.Payload, &info); err != nil {
				continue
			}
			c.console.SetSize(info.Width, info.Height)
			c.log.Debug("session %s resized to %dx%d", sess.id, info.Width, info.Height)
		default:
			// Unrecognized types are ignored for forward compatibility.
		}
	}
}

// handleTransportFailure marks the session broken and notifies the
// embedding application if it asked to hear about it.
func (c *Client) handleTransportFailure(sess *session, op string, err error) {
	if !sess.open.CompareAndSwap(true, false) {
		return
	}
	c.log.Debug("session %s %s failed: %v", sess.id, op, err)

	c.mu.Lock()
	fn := c.connectionLost
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// callSite resolves the file and line of the frame skip levels above it.
func callSite(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", 0
	}
	return file, line
}
