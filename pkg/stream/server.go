// ABOUTME: WebSocket stream server with credit-based flow control
// ABOUTME: Encodes source audio per client and sends it only as far as the client has requested
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/blockq/internal/discovery"
	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/Resonate-Protocol/blockq/pkg/audio/encode"
	"github.com/Resonate-Protocol/blockq/pkg/audio/resample"
	"github.com/Resonate-Protocol/blockq/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultPort is the port servers listen on when none is configured
	DefaultPort = 8927

	// Audio format defaults for generated sources
	DefaultSampleRate = 48000
	DefaultChannels   = 2

	// ChunkDurationMs is the audio carried by one frame
	ChunkDurationMs = 20

	sendBufferSize = 256
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// ServerConfig configures a stream server
type ServerConfig struct {
	// Port to listen on (default: 8927)
	Port int

	// Name of the server for identification
	Name string

	// Audio source to stream (required)
	Source AudioSource

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	// Registry receives server metrics and is served on /metrics.
	// A new registry is created when nil.
	Registry *prometheus.Registry

	// Debug enables debug logging
	Debug bool
}

// Server streams one audio source to any number of players
type Server struct {
	config   ServerConfig
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*client
	clientsMu sync.RWMutex

	audioSource AudioSource
	format      audio.Format
	metrics     *serverMetrics

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	streamOnce sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// client is a connected player
type client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	// wire is the negotiated codec format; pcm is the decoded format frame
	// offsets are counted in
	wire    audio.Format
	pcm     audio.Format
	encoder encode.Encoder

	// set when pcm runs at a different rate than the source
	resampler *resample.Resampler
	resampled []int32

	offset    int64 // stream position of the next frame
	credit    int64 // requested bytes not yet sent
	streaming bool  // set by the first stream/request
	state     protocol.ClientState

	sendChan chan interface{}
	mu       sync.Mutex
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID     string
	Name   string
	Format string
	Offset int64
	Credit int64
	State  protocol.ClientState
}

// NewServer creates a new stream server
func NewServer(config ServerConfig) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "blockq server"
	}
	if config.Source == nil {
		return nil, fmt.Errorf("audio source is required")
	}
	format := config.Source.Format()
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source format: %w", err)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	metrics, err := newServerMetrics(config.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s := &Server{
		config:      config,
		serverID:    uuid.New().String(),
		mux:         http.NewServeMux(),
		audioSource: config.Source,
		format:      format,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			// local network deployments accept all origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}

	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	s.mux.Handle("/metrics", promhttp.HandlerFor(config.Registry, promhttp.HandlerOpts{}))

	return s, nil
}

// Handler returns the HTTP handler serving the websocket and /metrics
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the server and blocks until Stop is called
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)
	log.Printf("Audio source: %s (%s)", s.audioSource.Title(), s.format)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.Path,
			Format:      s.format.String(),
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.startStreaming()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s", addr, protocol.Path)

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

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		s.Stop()
		s.shutdown(nil)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.shutdown(ctx)

	log.Printf("Server stopped cleanly")
	return nil
}

// shutdown stops mDNS, the HTTP server and the streaming loop, then closes
// the source. ctx bounds the HTTP shutdown; nil skips it.
func (s *Server) shutdown(ctx context.Context) {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	if ctx != nil && s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()

	if err := s.audioSource.Close(); err != nil {
		log.Printf("Error closing audio source: %v", err)
	}
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Clients returns information about all connected clients
func (s *Server) Clients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		c.mu.Lock()
		clients = append(clients, ClientInfo{
			ID:     c.ID,
			Name:   c.Name,
			Format: c.wire.String(),
			Offset: c.offset,
			Credit: c.credit,
			State:  c.state,
		})
		c.mu.Unlock()
	}

	return clients
}

// Flush tells every client to discard what it has queued but not played
func (s *Server) Flush(reason string) {
	s.broadcast(protocol.TypeStreamFlush, protocol.StreamFlush{Reason: reason})
}

// Skip inserts d of silence into every client's stream. The skipped range
// counts against the client's credit like data would.
func (s *Server) Skip(d time.Duration) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		c.mu.Lock()
		n := int64(c.pcm.DurationToBytes(d))
		if n == 0 || !c.streaming {
			c.mu.Unlock()
			continue
		}
		c.offset += n
		c.credit = max(c.credit-n, 0)
		c.mu.Unlock()

		s.sendMessage(c, protocol.TypeStreamSeek, protocol.StreamSeek{
			Offset:  n,
			Mode:    "relative",
			Account: true,
		})
	}
}

// startStreaming launches the streaming loop once
func (s *Server) startStreaming() {
	s.streamOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.streamAudio()
		}()
	})
}

// streamAudio reads one chunk per tick and hands it to every client
func (s *Server) streamAudio() {
	log.Printf("Audio streaming started")

	ticker := time.NewTicker(time.Duration(ChunkDurationMs) * time.Millisecond)
	defer ticker.Stop()

	frames := s.format.SampleRate * ChunkDurationMs / 1000
	samples := make([]int32, frames*s.format.Channels)

	for {
		select {
		case <-ticker.C:
			if err := s.sendChunk(samples); err != nil {
				if errors.Is(err, io.EOF) {
					log.Printf("Audio source finished")
					s.broadcast(protocol.TypeStreamEnd, protocol.StreamEnd{Reason: "eof"})
				} else {
					log.Printf("Error reading audio source: %v", err)
					s.broadcast(protocol.TypeStreamEnd, protocol.StreamEnd{Reason: "error"})
				}
				return
			}
		case <-s.stopChan:
			log.Printf("Audio streaming stopping")
			return
		}
	}
}

// sendChunk reads a chunk from the source and sends it to every client
// with enough credit. A short read is padded with silence.
func (s *Server) sendChunk(samples []int32) error {
	n, err := s.audioSource.Read(samples)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		return err
	}
	clear(samples[n:])

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		s.sendToClient(c, samples)
	}
	return nil
}

// sendToClient encodes samples for c, or skips them when c has not asked
// for that much. A skipped chunk still advances c's stream position, so the
// next frame lands at its live offset and the client hears a gap.
func (s *Server) sendToClient(c *client, samples []int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return
	}

	if c.resampler != nil {
		n := c.resampler.Resample(samples, c.resampled)
		samples = c.resampled[:n]
	}

	size := int64(len(samples) / c.pcm.Channels * c.pcm.FrameSize())
	offset := c.offset
	c.offset += size

	if c.credit < size {
		c.credit = 0
		s.metrics.skipped.Add(float64(size))
		if s.config.Debug {
			log.Printf("Client %s has no credit, skipping %d bytes at %d", c.Name, size, offset)
		}
		return
	}
	c.credit -= size

	data, err := c.encoder.Encode(samples)
	if err != nil {
		log.Printf("Encode error for %s: %v", c.Name, err)
		return
	}

	frame := protocol.EncodeFrame(protocol.Frame{
		Mode:   protocol.FrameAbsolute,
		Offset: offset,
		Data:   data,
	})
	if err := s.sendBinary(c, frame); err != nil {
		s.metrics.skipped.Add(float64(size))
		if s.config.Debug {
			log.Printf("Error sending audio to %s: %v", c.Name, err)
		}
		return
	}

	s.metrics.frames.Inc()
	s.metrics.bytes.Add(float64(len(frame)))
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

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		return
	}

	log.Printf("Client hello: %s (ID: %s, %d formats)", hello.Name, hello.ClientID, len(hello.SupportedFormats))

	wire, pcm := negotiateFormat(s.format, hello.SupportedFormats)
	encoder, err := encode.New(wire)
	if err != nil && wire.Codec != "pcm" {
		log.Printf("Failed to create %s encoder for %s, falling back to PCM: %v", wire.Codec, hello.Name, err)
		wire = pcm
		encoder, err = encode.New(wire)
	}
	if err != nil {
		log.Printf("Failed to create encoder for %s: %v", hello.Name, err)
		return
	}

	c := &client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		wire:     wire,
		pcm:      pcm,
		encoder:  encoder,
		sendChan: make(chan interface{}, sendBufferSize),
	}
	if pcm.SampleRate != s.format.SampleRate {
		c.resampler = resample.New(s.format.SampleRate, pcm.SampleRate, pcm.Channels)
		chunk := s.format.SampleRate * ChunkDurationMs / 1000 * s.format.Channels
		c.resampled = make([]int32, c.resampler.OutputSamplesNeeded(chunk)+2*pcm.Channels)
		log.Printf("Resampling %dHz to %dHz for %s", s.format.SampleRate, pcm.SampleRate, hello.Name)
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[c.ID]; exists {
		s.clientsMu.Unlock()
		encoder.Close()
		log.Printf("Client ID %s already connected, rejecting duplicate", c.ID)
		return
	}
	s.clients[c.ID] = c
	s.metrics.clients.Set(float64(len(s.clients)))
	s.clientsMu.Unlock()

	writerDone := make(chan struct{})
	defer func() {
		s.removeClient(c)
		<-writerDone
		log.Printf("Client disconnected: %s", c.Name)
	}()

	s.sendMessage(c, protocol.TypeServerHello, protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
	})
	s.sendMessage(c, protocol.TypeStreamStart, protocol.StreamStart{
		Format:      protocol.FromFormat(wire),
		StartOffset: 0,
	})
	log.Printf("Added client %s with format %s", c.Name, wire)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		s.handleClientMessage(c, data)
	}
}

// readHello waits for client/hello and validates it
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("failed to read hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := msg.Decode(&hello); err != nil {
		return hello, err
	}
	if hello.ClientID == "" || hello.Name == "" {
		return hello, fmt.Errorf("client hello missing required fields")
	}
	return hello, nil
}

// clientWriter sends queued messages to the client until its channel closes
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}

			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			var err error
			switch v := msg.(type) {
			case []byte:
				err = c.Conn.WriteMessage(websocket.BinaryMessage, v)
			default:
				err = c.Conn.WriteJSON(v)
			}
			if err != nil {
				c.Conn.Close()
				for range c.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				c.Conn.Close()
				for range c.sendChan {
				}
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(c *client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeStreamRequest:
		var req protocol.StreamRequest
		if err := msg.Decode(&req); err != nil {
			log.Printf("%v", err)
			return
		}
		s.handleRequest(c, req)

	case protocol.TypeClientState:
		var state protocol.ClientState
		if err := msg.Decode(&state); err != nil {
			log.Printf("%v", err)
			return
		}
		c.mu.Lock()
		c.state = state
		c.mu.Unlock()
		if s.config.Debug {
			log.Printf("Client %s state: %s (queue %d bytes, underruns %d)", c.Name, state.State, state.QueueLength, state.Underruns)
		}

	case protocol.TypeClientGoodbye:
		var goodbye protocol.ClientGoodbye
		if err := msg.Decode(&goodbye); err != nil {
			return
		}
		log.Printf("Client %s goodbye: %s", c.Name, goodbye.Reason)

	default:
		if s.config.Debug {
			log.Printf("Unknown message type: %s", msg.Type)
		}
	}
}

// handleRequest adds to the client's credit
func (s *Server) handleRequest(c *client, req protocol.StreamRequest) {
	if req.Bytes <= 0 {
		return
	}

	c.mu.Lock()
	c.credit += int64(req.Bytes)
	c.streaming = true
	credit := c.credit
	c.mu.Unlock()

	s.metrics.requested.Add(float64(req.Bytes))
	if s.config.Debug {
		log.Printf("Client %s requested %d bytes (credit %d)", c.Name, req.Bytes, credit)
	}
}

// removeClient unregisters c and closes its send channel
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c.ID)
	s.metrics.clients.Set(float64(len(s.clients)))

	c.mu.Lock()
	if c.encoder != nil {
		c.encoder.Close()
		c.encoder = nil
	}
	c.streaming = false
	close(c.sendChan)
	c.mu.Unlock()
	s.clientsMu.Unlock()
}

// broadcast sends a control message to every client
func (s *Server) broadcast(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if err := s.sendMessage(c, msgType, payload); err != nil && s.config.Debug {
			log.Printf("Error sending %s to %s: %v", msgType, c.Name, err)
		}
	}
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(c *client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// sendBinary queues a binary frame for a client
func (s *Server) sendBinary(c *client, data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// negotiateFormat picks the first client format the source can be sent in
// without resampling, then the first PCM format it can be resampled to. It
// returns the wire format and the decoded PCM format stream offsets count
// in. Without a match the source is sent as PCM.
func negotiateFormat(source audio.Format, supported []protocol.AudioFormat) (wire, pcm audio.Format) {
	for _, f := range supported {
		if f.SampleRate != source.SampleRate || f.Channels != source.Channels {
			continue
		}
		switch f.Codec {
		case "pcm":
			if f.BitDepth == 16 || f.BitDepth == 24 {
				wire = f.Format()
				return wire, wire
			}
		case "opus":
			if source.SampleRate == 48000 && source.Channels <= 2 {
				wire = f.Format()
				wire.BitDepth = 16
				pcm = wire
				pcm.Codec = "pcm"
				return wire, pcm
			}
		}
	}

	// opus needs fixed size frames, which resampled chunks are not
	for _, f := range supported {
		if f.Codec == "pcm" && f.Channels == source.Channels && f.SampleRate > 0 &&
			(f.BitDepth == 16 || f.BitDepth == 24) {
			wire = f.Format()
			return wire, wire
		}
	}

	wire = source
	wire.Codec = "pcm"
	return wire, wire
}
