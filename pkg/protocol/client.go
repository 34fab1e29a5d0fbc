// ABOUTME: WebSocket client for the blockq stream protocol
// ABOUTME: Handles connection, handshake, and routing of frames and control messages
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Path is the websocket endpoint served by stream servers
	Path = "/blockq"

	// Version is the protocol version spoken by this package
	Version = 1

	handshakeTimeout = 5 * time.Second
)

// Config holds client configuration
type Config struct {
	ServerAddr       string
	ClientID         string
	Name             string
	SupportedFormats []AudioFormat
	Buffer           BufferAttr
	Debug            bool
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	Frames      chan Frame
	StreamStart chan StreamStart
	StreamSeek  chan StreamSeek
	StreamFlush chan StreamFlush
	StreamEnd   chan StreamEnd
	Commands    chan PlayerCommand

	// Server identity from server/hello
	Server ServerHello

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		Frames:      make(chan Frame, 256),
		StreamStart: make(chan StreamStart, 1),
		StreamSeek:  make(chan StreamSeek, 10),
		StreamFlush: make(chan StreamFlush, 10),
		StreamEnd:   make(chan StreamEnd, 1),
		Commands:    make(chan PlayerCommand, 10),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:         c.config.ClientID,
		Name:             c.config.Name,
		Version:          Version,
		SupportedFormats: c.config.SupportedFormats,
		Buffer:           c.config.Buffer,
	}

	if c.config.Debug {
		helloJSON, _ := json.MarshalIndent(hello, "", "  ")
		log.Printf("Sending client/hello:\n%s", string(helloJSON))
	}

	if err := c.send(TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if msg.Type != TypeServerHello {
		return fmt.Errorf("expected %s, got %s", TypeServerHello, msg.Type)
	}
	if err := msg.Decode(&c.Server); err != nil {
		return err
	}

	log.Printf("Handshake complete with server %s (ID: %s)", c.Server.Name, c.Server.ServerID)
	return nil
}

// send writes one JSON message
func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(Message{Type: msgType, Payload: payload})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer close(c.done)
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

// handleBinaryMessage routes chunk frames
func (c *Client) handleBinaryMessage(data []byte) {
	f, err := DecodeFrame(data)
	if err != nil {
		log.Printf("Invalid binary message: %v", err)
		return
	}

	select {
	case c.Frames <- f:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes control messages to their channels
func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	if c.config.Debug {
		log.Printf("Received message type: %s", msg.Type)
	}

	switch msg.Type {
	case TypeStreamStart:
		var start StreamStart
		if err := msg.Decode(&start); err != nil {
			log.Printf("%v", err)
			return
		}
		deliver(c.ctx, c.StreamStart, start)

	case TypeStreamSeek:
		var seek StreamSeek
		if err := msg.Decode(&seek); err != nil {
			log.Printf("%v", err)
			return
		}
		deliver(c.ctx, c.StreamSeek, seek)

	case TypeStreamFlush:
		var flush StreamFlush
		if err := msg.Decode(&flush); err != nil {
			log.Printf("%v", err)
			return
		}
		deliver(c.ctx, c.StreamFlush, flush)

	case TypeStreamEnd:
		var end StreamEnd
		if err := msg.Decode(&end); err != nil {
			log.Printf("%v", err)
			return
		}
		deliver(c.ctx, c.StreamEnd, end)

	case TypeServerCommand:
		var cmd ServerCommandMessage
		if err := msg.Decode(&cmd); err != nil {
			log.Printf("%v", err)
			return
		}
		if cmd.Player != nil {
			deliver(c.ctx, c.Commands, *cmd.Player)
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// deliver blocks until v is received or ctx is done. Control messages are
// ordered with frames, so they are never dropped.
func deliver[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

// SendRequest asks the server for bytes more PCM data
func (c *Client) SendRequest(bytes int) error {
	return c.send(TypeStreamRequest, StreamRequest{Bytes: bytes})
}

// SendState sends a client/state message
func (c *Client) SendState(state ClientState) error {
	return c.send(TypeClientState, state)
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.send(TypeClientGoodbye, ClientGoodbye{Reason: reason})
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
