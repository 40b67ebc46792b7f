// ABOUTME: WebSocket client for the console feed
// ABOUTME: Handles connection, handshake, clock sync and message routing
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/sdrconsole/internal/protocol"
	clocksync "github.com/harperreed/sdrconsole/internal/sync"
)

const (
	// DefaultPath is the feed endpoint on the console
	DefaultPath = "/ws"

	handshakeTimeout = 5 * time.Second
)

// Config holds client configuration
type Config struct {
	ServerAddr    string
	Path          string
	ClientID      string
	Name          string
	Version       int
	Subscriptions []string
	DeviceInfo    *protocol.DeviceInfo
}

// Client is a connection to a console feed
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  protocol.ServerHello

	// Spectrum and Status drop messages when full; Replies blocks the reader
	Spectrum chan protocol.SpectrumFrame
	Status   chan protocol.ConsoleStatus
	Replies  chan protocol.CommandReply

	clock     *clocksync.Estimator
	clockBase time.Time

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:    config,
		Spectrum:  make(chan protocol.SpectrumFrame, 4),
		Status:    make(chan protocol.ConsoleStatus, 4),
		Replies:   make(chan protocol.CommandReply, 10),
		clock:     clocksync.NewEstimator(),
		clockBase: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect dials the console and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
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

func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID:      c.config.ClientID,
		Name:          c.config.Name,
		Version:       c.config.Version,
		Subscriptions: c.config.Subscriptions,
		DeviceInfo:    c.config.DeviceInfo,
	}
	if err := c.sendJSON(protocol.Message{Type: "client/hello", Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case "server/hello":
	case "server/error":
		var serverErr protocol.ServerError
		if err := decodePayload(msg.Payload, &serverErr); err != nil {
			return fmt.Errorf("failed to parse server/error: %w", err)
		}
		return fmt.Errorf("server rejected hello: %s: %s", serverErr.Error, serverErr.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var sh protocol.ServerHello
	if err := decodePayload(msg.Payload, &sh); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	c.mu.Lock()
	c.hello = sh
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (client ID %s, fft size %d)", sh.Name, sh.ClientID, sh.FFTSize)
	return nil
}

// ServerHello returns the handshake reply
func (c *Client) ServerHello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// sendJSON sends a JSON message. Writes are serialized under the write lock.
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
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
		}
	}
}

func (c *Client) handleBinaryMessage(data []byte) {
	frame, err := protocol.DecodeSpectrum(data)
	if err != nil {
		log.Printf("Invalid binary message: %v", err)
		return
	}

	select {
	case c.Spectrum <- frame:
	default:
		// Reader is behind; a newer frame follows shortly
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case "console/status":
		var st protocol.ConsoleStatus
		if err := decodePayload(msg.Payload, &st); err != nil {
			log.Printf("Bad console/status: %v", err)
			return
		}
		select {
		case c.Status <- st:
		default:
		}

	case "server/reply":
		var reply protocol.CommandReply
		if err := decodePayload(msg.Payload, &reply); err != nil {
			log.Printf("Bad server/reply: %v", err)
			return
		}
		select {
		case c.Replies <- reply:
		case <-c.ctx.Done():
		}

	case "server/time":
		t4 := c.clockMicros()
		var st protocol.ServerTime
		if err := decodePayload(msg.Payload, &st); err != nil {
			log.Printf("Bad server/time: %v", err)
			return
		}
		c.clock.Observe(st.ClientTransmitted, st.ServerReceived, st.ServerTransmitted, t4)

	case "server/error":
		var serverErr protocol.ServerError
		if err := decodePayload(msg.Payload, &serverErr); err == nil {
			log.Printf("Server error: %s: %s", serverErr.Error, serverErr.Message)
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SendCommand sends a CAT or TCI command; the reply arrives on Replies
func (c *Client) SendCommand(cmd string) error {
	return c.sendJSON(protocol.Message{
		Type:    "client/command",
		Payload: protocol.ClientCommand{Command: cmd},
	})
}

// SendTimeSync sends a client/time message stamped with the local clock
func (c *Client) SendTimeSync() error {
	return c.sendJSON(protocol.Message{
		Type:    "client/time",
		Payload: protocol.ClientTime{ClientTransmitted: c.clockMicros()},
	})
}

// RunTimeSync sends a time sync every interval until ctx or the connection ends
func (c *Client) RunTimeSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.SendTimeSync(); err != nil {
			log.Printf("Time sync failed: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.clock.CheckQuality()
		}
	}
}

// Clock returns the server clock estimate
func (c *Client) Clock() *clocksync.Estimator {
	return c.clock
}

func (c *Client) clockMicros() int64 {
	return time.Since(c.clockBase).Microseconds()
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
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

func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
