// ABOUTME: Websocket feed for spectrum frames, console status and remote commands
// ABOUTME: Manages client handshakes, per-client writers and latest-wins fan-out
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/sdrconsole/internal/console"
	"github.com/harperreed/sdrconsole/internal/protocol"
	"github.com/harperreed/sdrconsole/internal/spectrum"
	"github.com/harperreed/sdrconsole/internal/version"
)

const (
	ProtocolVersion = 1

	DefaultPort = 8927
	Path        = "/ws"

	// Default cap on spectrum frames per second per client
	DefaultFrameRate = 20

	statusInterval = time.Second
	sendBuffer     = 32
)

// Spectrum is the frame source
type Spectrum interface {
	Size() int
	Latest() *spectrum.Frame
	Subscribe() (<-chan struct{}, func())
}

// StatusSource provides console snapshots
type StatusSource interface {
	Status() console.Status
}

// Commander executes CAT/TCI command strings
type Commander interface {
	Execute(cmd string) string
}

// Config holds server configuration
type Config struct {
	Port      int
	Name      string
	FrameRate int
	Debug     bool
}

// Server is the websocket hub
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// Server clock (monotonic microseconds)
	clockStart time.Time

	spectrum Spectrum
	status   StatusSource
	ctl      Commander

	framesSent    uint64
	framesDropped uint64
	statsMu       sync.Mutex

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is a connected websocket client
type Client struct {
	ID            string
	Name          string
	Conn          *websocket.Conn
	Subscriptions []string

	sendChan chan interface{}
}

// New creates a server. Any source may be nil.
func New(config Config, spec Spectrum, status StatusSource, ctl Commander) *Server {
	if config.FrameRate <= 0 {
		config.FrameRate = DefaultFrameRate
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The feed is meant for the local network
				origin := r.Header.Get("Origin")
				if origin != "" && config.Debug {
					log.Printf("[DEBUG] Accepting websocket from origin: %s", origin)
				}
				return true
			},
		},
		clients:    make(map[string]*Client),
		clockStart: time.Now(),
		spectrum:   spec,
		status:     status,
		ctl:        ctl,
		stopChan:   make(chan struct{}),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the websocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the fan-out loops and serves HTTP until Stop or ctx is done
func (s *Server) Run(ctx context.Context) error {
	log.Printf("Websocket feed starting: %s (ID: %s)", s.config.Name, s.serverID)

	s.StartBroadcast()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	log.Printf("Websocket feed listening on %s%s", addr, Path)

	var serverErr error
	select {
	case <-ctx.Done():
		log.Printf("Websocket feed shutting down...")
	case <-s.stopChan:
		log.Printf("Websocket feed shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	s.closeClients()

	s.wg.Wait()
	log.Printf("Websocket feed stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// StartBroadcast launches the spectrum and status loops. Run calls it; tests
// serving Handler directly call it themselves.
func (s *Server) StartBroadcast() {
	if s.spectrum != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.spectrumLoop()
		}()
	}
	if s.status != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statusLoop()
		}()
	}
}

// Stop marks the server as shutting down and ends the broadcast loops
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()
		close(s.stopChan)
	})
}

func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// FrameStats returns spectrum messages queued and dropped
func (s *Server) FrameStats() (sent, dropped uint64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.framesSent, s.framesDropped
}

// spectrumLoop forwards the newest frame at most FrameRate times per second
func (s *Server) spectrumLoop() {
	ready, cancel := s.spectrum.Subscribe()
	defer cancel()

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FrameRate))
	defer ticker.Stop()

	var lastSeq uint64
	pending := false
	for {
		select {
		case <-s.stopChan:
			return
		case <-ready:
			pending = true
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false

			frame := s.spectrum.Latest()
			if frame == nil || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq
			s.broadcastBinary(protocol.SubscribeSpectrum,
				protocol.EncodeSpectrum(frame.Seq, frame.CenterHz, frame.BandwidthHz, frame.Bins))
		}
	}
}

func (s *Server) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.broadcastStatus()
		}
	}
}

func (s *Server) broadcastStatus() {
	msg := protocol.Message{Type: "console/status", Payload: statusPayload(s.status.Status())}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if !c.subscribed(protocol.SubscribeStatus) {
			continue
		}
		select {
		case c.sendChan <- msg:
		default:
		}
	}
}

// broadcastBinary queues data to subscribed clients, dropping it for clients
// that are behind so they only ever receive recent frames
func (s *Server) broadcastBinary(topic string, data []byte) {
	var sent, dropped uint64

	s.clientsMu.RLock()
	for _, c := range s.clients {
		if !c.subscribed(topic) {
			continue
		}
		if err := s.sendBinary(c, data); err != nil {
			dropped++
			continue
		}
		sent++
	}
	s.clientsMu.RUnlock()

	s.statsMu.Lock()
	s.framesSent += sent
	s.framesDropped += dropped
	s.statsMu.Unlock()
}

func statusPayload(st console.Status) protocol.ConsoleStatus {
	return protocol.ConsoleStatus{
		Frequency:     st.Radio.Frequency,
		FrequencyB:    st.Radio.FrequencyB,
		VFO:           st.Radio.VFO.String(),
		Mode:          st.Radio.Mode.String(),
		FilterLow:     st.Radio.FilterLow,
		FilterHigh:    st.Radio.FilterHigh,
		Bandwidth:     st.Radio.Bandwidth,
		SampleRate:    st.Radio.SampleRate,
		PreampDB:      st.Radio.PreampDB,
		Playing:       st.Playing,
		PlayingPath:   st.PlayingPath,
		Recording:     st.Recording,
		RecordingPath: st.RecordingPath,
		RecordedBytes: st.RecordedBytes,
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != "client/hello" {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error unmarshaling client hello: %v", err)
		return
	}
	if hello.Name == "" {
		log.Printf("Client hello missing Name")
		return
	}
	if hello.ClientID == "" {
		hello.ClientID = uuid.New().String()
	}
	if len(hello.Subscriptions) == 0 {
		hello.Subscriptions = []string{protocol.SubscribeSpectrum, protocol.SubscribeStatus}
	}

	client := &Client{
		ID:            hello.ClientID,
		Name:          hello.Name,
		Conn:          conn,
		Subscriptions: hello.Subscriptions,
		sendChan:      make(chan interface{}, sendBuffer),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", client.ID, existing.Name)

		errorMsg := protocol.Message{
			Type: "server/error",
			Payload: protocol.ServerError{
				Error:   "duplicate_client_id",
				Message: "Client ID already connected",
			},
		}
		if data, err := json.Marshal(errorMsg); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	log.Printf("Client hello: %s (ID: %s, subscriptions: %v)", client.Name, client.ID, client.Subscriptions)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		log.Printf("Client disconnected: %s", client.Name)
	}()

	fftSize := 0
	if s.spectrum != nil {
		fftSize = s.spectrum.Size()
	}
	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		ClientID: client.ID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
		FFTSize:  fftSize,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := s.sendMessage(client, "server/hello", serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleClientMessage(client, data)
	}
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Error writing binary message: %v", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
					return
				}
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case "client/time":
		s.handleTimeSync(client, msg.Payload)
	case "client/command":
		s.handleCommand(client, msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// handleTimeSync responds to time synchronization requests
func (s *Server) handleTimeSync(client *Client, payload interface{}) {
	serverRecv := s.getClockMicros()

	var clientTime protocol.ClientTime
	if err := decodePayload(payload, &clientTime); err != nil {
		log.Printf("Error unmarshaling client time: %v", err)
		return
	}

	serverSend := s.getClockMicros()
	if s.config.Debug {
		log.Printf("[DEBUG] Time sync for %s: t1=%d, t2=%d, t3=%d",
			client.Name, clientTime.ClientTransmitted, serverRecv, serverSend)
	}

	response := protocol.ServerTime{
		ClientTransmitted: clientTime.ClientTransmitted,
		ServerReceived:    serverRecv,
		ServerTransmitted: serverSend,
	}
	if err := s.sendMessage(client, "server/time", response); err != nil {
		log.Printf("Error sending server time: %v", err)
	}
}

// handleCommand runs a CAT/TCI command and replies with its result
func (s *Server) handleCommand(client *Client, payload interface{}) {
	var cmd protocol.ClientCommand
	if err := decodePayload(payload, &cmd); err != nil {
		log.Printf("Error unmarshaling client command: %v", err)
		return
	}
	if s.ctl == nil {
		return
	}

	reply := protocol.CommandReply{
		Command: cmd.Command,
		Reply:   s.ctl.Execute(cmd.Command),
	}
	if err := s.sendMessage(client, "server/reply", reply); err != nil {
		log.Printf("Error sending command reply: %v", err)
	}
}

// decodePayload re-decodes a generic JSON payload into v
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// sendMessage queues a JSON message to a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// sendBinary queues binary data to a client
func (s *Server) sendBinary(client *Client, data []byte) error {
	select {
	case client.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// getClockMicros returns the server clock in microseconds
func (s *Server) getClockMicros() int64 {
	return time.Since(s.clockStart).Microseconds()
}

func (c *Client) subscribed(topic string) bool {
	return slices.Contains(c.Subscriptions, topic)
}
