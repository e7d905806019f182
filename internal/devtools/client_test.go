package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/devtap/internal/protocol"
)

// stubServer accepts the devtools handshake at the fixed endpoint path and
// records every envelope the client sends.
type stubServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	frames []*protocol.Envelope
	conns  []*websocket.Conn

	// onConnect runs on the server connection right after the upgrade,
	// before the read loop starts.
	onConnect func(conn *websocket.Conn)
}

func newStubServer(t *testing.T) *stubServer {
	s := &stubServer{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.WebsocketPath, s.handle)
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *stubServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	onConnect := s.onConnect
	s.mu.Unlock()

	if onConnect != nil {
		onConnect(conn)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.frames = append(s.frames, env)
		s.mu.Unlock()
	}
}

func (s *stubServer) hostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(s.server.URL, "http://"))
	require.NoError(s.t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(s.t, err)
	return host, port
}

func (s *stubServer) receivedFrames() []*protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.Envelope(nil), s.frames...)
}

func (s *stubServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

func newTestClient(t *testing.T, s *stubServer) *Client {
	host, port := s.hostPort()
	return NewClient(host, port)
}

func connectTestClient(t *testing.T, s *stubServer) *Client {
	c := newTestClient(t, s)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Disconnect() })
	return c
}

// TestConnectDisconnectLifecycle verifies both pumps come up and go down
// cleanly and IsConnected tracks it
func TestConnectDisconnectLifecycle(t *testing.T) {
	s := newStubServer(t)
	c := newTestClient(t, s)

	assert.False(t, c.IsConnected())

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())

	// Second disconnect is a no-op.
	require.NoError(t, c.Disconnect())
}

// TestConnectRefused verifies a dead endpoint yields ConnectionError and no
// session
func TestConnectRefused(t *testing.T) {
	// Grab a port that is guaranteed closed.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	c := NewClient("127.0.0.1", port)
	err = c.Connect(context.Background())
	require.Error(t, err)

	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
	assert.False(t, c.IsConnected())
}

// TestConnectTwice verifies a second Connect on an open session is refused
func TestConnectTwice(t *testing.T) {
	s := newStubServer(t)
	c := connectTestClient(t, s)

	assert.Error(t, c.Connect(context.Background()))
}

// TestServerInfoResizesConsole verifies the listener applies server
// geometry and ignores unknown and malformed frames
func TestServerInfoResizesConsole(t *testing.T) {
	s := newStubServer(t)
	s.onConnect = func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"server_info","payload":{"width":100,"height":40}}`)))
	}

	c := connectTestClient(t, s)

	require.Eventually(t, func() bool {
		w, h := c.Console().Size()
		return w == 100 && h == 40
	}, 2*time.Second, 10*time.Millisecond)

	s.mu.Lock()
	conn := s.conns[0]
	s.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown","payload":{}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type": not json`)))

	time.Sleep(150 * time.Millisecond)
	w, h := c.Console().Size()
	assert.Equal(t, 100, w)
	assert.Equal(t, 40, h)
	assert.True(t, c.IsConnected())
}

// TestLogTransmitsClientLog verifies the full path from Log to a decoded
// client_log frame on the server
func TestLogTransmitsClientLog(t *testing.T) {
	s := newStubServer(t)
	c := connectTestClient(t, s)

	c.LogAt("app.py", 5, "hello")

	require.Eventually(t, func() bool {
		return len(s.receivedFrames()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	frames := s.receivedFrames()
	require.Equal(t, protocol.TypeClientLog, frames[0].Type)

	var payload protocol.ClientLogPayload
	require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
	assert.Equal(t, "app.py", payload.Path)
	assert.Equal(t, 5, payload.LineNumber)
	assert.Greater(t, payload.Timestamp, int64(0))

	segments, err := protocol.DecodeSegments(payload.EncodedSegments)
	require.NoError(t, err)

	var text strings.Builder
	for _, seg := range segments {
		text.WriteString(seg.Text)
	}
	assert.Contains(t, text.String(), "hello")
}

// TestLogCapturesCallSite verifies Log records this file and a plausible
// line number
func TestLogCapturesCallSite(t *testing.T) {
	s := newStubServer(t)
	c := connectTestClient(t, s)

	c.Log("where am I")

	require.Eventually(t, func() bool {
		return len(s.receivedFrames()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var payload protocol.ClientLogPayload
	require.NoError(t, json.Unmarshal(s.receivedFrames()[0].Payload, &payload))
	assert.Contains(t, payload.Path, "client_test.go")
	assert.Greater(t, payload.LineNumber, 0)
}

// TestSpilloverAccounting drives the producer side against a session with
// no running sender, so the queue fills deterministically
func TestSpilloverAccounting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	c := NewClientWithConfig(cfg)

	sess := newSession(nil, cfg.QueueSize)
	c.sess = sess

	// Fill the queue, then overflow it.
	c.LogAt("a.go", 1, "kept one")
	c.LogAt("a.go", 2, "kept two")
	c.LogAt("a.go", 3, "dropped")
	c.LogAt("a.go", 4, "dropped")
	c.LogAt("a.go", 5, "dropped")

	assert.Equal(t, 3, c.Spillover())
	assert.Equal(t, 2, sess.queue.len())

	// Drain both slots; the next successful log piggybacks exactly one
	// spillover notice and resets the counter.
	sess.queue.dequeue()
	sess.queue.dequeue()
	c.LogAt("a.go", 6, "after drain")

	assert.Equal(t, 0, c.Spillover())
	require.Equal(t, 2, sess.queue.len())

	first := sess.queue.dequeue()
	require.Equal(t, protocol.TypeClientLog, first.env.Type)

	second := sess.queue.dequeue()
	require.Equal(t, protocol.TypeClientSpillover, second.env.Type)

	var notice protocol.ClientSpilloverPayload
	require.NoError(t, json.Unmarshal(second.env.Payload, &notice))
	assert.Equal(t, 3, notice.Spillover)

	// Detach the dead session so Spillover bookkeeping above is the whole
	// story.
	c.sess = nil
}

// TestSpilloverNoticeSurvivesFailedFlush verifies the counter is kept when
// the notice itself finds no room
func TestSpilloverNoticeSurvivesFailedFlush(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	c := NewClientWithConfig(cfg)

	sess := newSession(nil, cfg.QueueSize)
	c.sess = sess

	c.LogAt("a.go", 1, "kept")
	c.LogAt("a.go", 2, "kept")
	c.LogAt("a.go", 3, "dropped")

	// One slot opens; the record fits but the notice does not.
	sess.queue.dequeue()
	c.LogAt("a.go", 4, "kept")

	assert.Equal(t, 1, c.Spillover())
	assert.Equal(t, 2, sess.queue.len())

	c.sess = nil
}

// TestDisconnectFlushesQueuedRecords verifies phase one of shutdown drains
// everything queued before the sentinel
func TestDisconnectFlushesQueuedRecords(t *testing.T) {
	s := newStubServer(t)
	c := connectTestClient(t, s)

	const records = 20
	for i := 0; i < records; i++ {
		c.LogAt("flush.go", i+1, "record", i)
	}
	require.NoError(t, c.Disconnect())

	require.Eventually(t, func() bool {
		return len(s.receivedFrames()) == records
	}, 2*time.Second, 10*time.Millisecond)

	for i, frame := range s.receivedFrames() {
		var payload protocol.ClientLogPayload
		require.NoError(t, json.Unmarshal(frame.Payload, &payload))
		assert.Equal(t, i+1, payload.LineNumber)
	}
}

// TestConnectionLostCallback verifies a server-side drop surfaces through
// the optional callback and IsConnected
func TestConnectionLostCallback(t *testing.T) {
	s := newStubServer(t)
	c := connectTestClient(t, s)

	lost := make(chan error, 2)
	c.SetConnectionLostCallback(func(err error) {
		lost <- err
	})

	s.dropConnections()

	select {
	case err := <-lost:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection loss was never reported")
	}

	require.Eventually(t, func() bool {
		return !c.IsConnected()
	}, 2*time.Second, 10*time.Millisecond)
}
