package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// detachTimeout bounds the Target.detachFromTarget calls made by Close.
const detachTimeout = 2 * time.Second

// eventBuffer is how many undelivered events a subscriber may hold before
// further events for it are dropped.
const eventBuffer = 100

// Client is one WebSocket connection to a browser's DevTools endpoint.
//
// Commands are matched to replies by message ID. Page commands travel on
// flattened target sessions, one per attached page, multiplexed over the
// same socket. A single reader goroutine owns the read side; writes are
// serialized by writeMu.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan callResult

	subsMu sync.Mutex
	subs   map[string][]chan json.RawMessage // by eventKey

	sessionsMu sync.Mutex
	sessions   map[string]string // target ID to session ID

	closed    atomic.Bool
	closeOnce sync.Once
	closeCh   chan struct{}
}

type callResult struct {
	Result json.RawMessage
	Error  *ProtocolError
}

// cdpRequest is an outgoing command.
type cdpRequest struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// cdpMessage is anything the browser sends: a reply carries ID, an event
// carries Method.
type cdpMessage struct {
	ID        int64           `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ProtocolError  `json:"error,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Connect looks up the browser endpoint on host:port and dials it.
func Connect(ctx context.Context, host string, port int) (*Client, error) {
	wsURL, err := debuggerURL(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return ConnectURL(ctx, wsURL)
}

// debuggerURL reads webSocketDebuggerUrl from the /json/version endpoint.
func debuggerURL(ctx context.Context, host string, port int) (string, error) {
	versionURL := fmt.Sprintf("http://%s/json/version", net.JoinHostPort(host, strconv.Itoa(port)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connecting to Chrome: %w", err)
	}
	defer resp.Body.Close()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("decoding %s: %w", versionURL, err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("%s has no webSocketDebuggerUrl", versionURL)
	}
	return version.WebSocketDebuggerURL, nil
}

// ConnectURL dials a browser-level DevTools WebSocket URL.
func ConnectURL(ctx context.Context, wsURL string) (*Client, error) {
	var dialer websocket.Dialer
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", wsURL, err)
	}

	c := &Client{
		conn:     conn,
		pending:  make(map[int64]chan callResult),
		subs:     make(map[string][]chan json.RawMessage),
		sessions: make(map[string]string),
		closeCh:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close detaches every page session the client attached, closes the socket
// and fails all in-flight calls with ErrConnectionClosed. Later calls are
// no-ops.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.sessionsMu.Lock()
		sessions := c.sessions
		c.sessions = make(map[string]string)
		c.sessionsMu.Unlock()

		// Skip detaching when the browser already hung up.
		if !c.closed.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
			for _, sessionID := range sessions {
				c.Call(ctx, "Target.detachFromTarget", map[string]interface{}{"sessionId": sessionID})
			}
			cancel()
		}

		c.closed.Store(true)
		close(c.closeCh)
		err = c.conn.Close()

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	})
	return err
}

// CloseBrowser asks the browser process to exit. The browser drops the
// connection instead of replying, so ErrConnectionClosed counts as success.
func (c *Client) CloseBrowser(ctx context.Context) error {
	_, err := c.Call(ctx, "Browser.close", nil)
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// attachToTarget returns the flattened session for targetID, attaching on
// first use.
func (c *Client) attachToTarget(ctx context.Context, targetID string) (string, error) {
	c.sessionsMu.Lock()
	sessionID, ok := c.sessions[targetID]
	c.sessionsMu.Unlock()
	if ok {
		return sessionID, nil
	}

	result, err := c.Call(ctx, "Target.attachToTarget", map[string]interface{}{
		"targetId": targetID,
		"flatten":  true,
	})
	if err != nil {
		return "", fmt.Errorf("attaching to target: %w", err)
	}
	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &attached); err != nil {
		return "", fmt.Errorf("parsing attach response: %w", err)
	}

	c.sessionsMu.Lock()
	c.sessions[targetID] = attached.SessionID
	c.sessionsMu.Unlock()
	return attached.SessionID, nil
}

func (c *Client) forgetTarget(targetID string) {
	c.sessionsMu.Lock()
	delete(c.sessions, targetID)
	c.sessionsMu.Unlock()
}

// Call sends a browser-level command and waits for its reply.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.send(ctx, "", method, params)
}

// CallSession sends a command on a target session and waits for its reply.
func (c *Client) CallSession(ctx context.Context, sessionID string, method string, params interface{}) (json.RawMessage, error) {
	return c.send(ctx, sessionID, method, params)
}

func (c *Client) send(ctx context.Context, sessionID string, method string, params interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	req := cdpRequest{ID: c.nextID.Add(1), SessionID: sessionID, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s params: %w", method, err)
		}
		req.Params = data
	}

	reply := make(chan callResult, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case result, ok := <-reply:
		if !ok {
			return nil, ErrConnectionClosed
		}
		if result.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, result.Error)
		}
		return result.Result, nil
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop routes every incoming message until the socket fails, then
// closes the client.
func (c *Client) readLoop() {
	defer c.Close()

	for {
		var msg cdpMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.closed.Store(true)
			return
		}
		if msg.ID > 0 {
			c.deliverReply(msg)
		}
		if msg.Method != "" {
			c.deliverEvent(msg)
		}
	}
}

// deliverReply hands a reply to the caller waiting on its ID. Replies for
// callers that already gave up are discarded.
func (c *Client) deliverReply(msg cdpMessage) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if reply, ok := c.pending[msg.ID]; ok {
		reply <- callResult{Result: msg.Result, Error: msg.Error}
	}
}

// deliverEvent fans an event out to its subscribers without blocking the
// reader; a subscriber with a full buffer misses the event.
func (c *Client) deliverEvent(msg cdpMessage) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for _, ch := range c.subs[eventKey(msg.SessionID, msg.Method)] {
		select {
		case ch <- msg.Params:
		default:
		}
	}
}

func eventKey(sessionID, method string) string {
	return sessionID + ":" + method
}

// subscribeEvent returns a channel receiving the params of every method
// event on sessionID until unsubscribeEvent is called with it.
func (c *Client) subscribeEvent(sessionID, method string) chan json.RawMessage {
	ch := make(chan json.RawMessage, eventBuffer)
	key := eventKey(sessionID, method)

	c.subsMu.Lock()
	c.subs[key] = append(c.subs[key], ch)
	c.subsMu.Unlock()
	return ch
}

// unsubscribeEvent removes and closes ch.
func (c *Client) unsubscribeEvent(sessionID, method string, ch chan json.RawMessage) {
	key := eventKey(sessionID, method)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	subs := c.subs[key]
	for i, sub := range subs {
		if sub == ch {
			c.subs[key] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}
