// ABOUTME: WebSocket monitor for a running audio engine
// ABOUTME: Pushes engine stats to clients and accepts mute and region requests
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/retroaudio/retroaudio/internal/version"
	"github.com/retroaudio/retroaudio/pkg/engine"
)

const (
	DefaultPort     = 8930
	DefaultInterval = 250 * time.Millisecond
	Path            = "/monitor"
)

// Target is the engine being monitored
type Target interface {
	Stats() engine.Stats
	SetMuted(muted bool)
}

// Config holds monitor configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Interval   time.Duration

	// OnRegion handles core/region requests; nil rejects them
	OnRegion func(region string) error
}

// Server serves the monitor endpoint
type Server struct {
	config   Config
	target   Target
	serverID string

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server
	mdns       *advertiser

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a monitor for target
func NewServer(config Config, target Target) (*Server, error) {
	if target == nil {
		return nil, fmt.Errorf("monitor target is required")
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = version.Product
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	s := &Server{
		config:   config,
		target:   target,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Monitor clients are local tools
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]struct{}),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)

	return s, nil
}

// Handler returns the HTTP handler serving the monitor endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called
func (s *Server) Start() error {
	if s.config.EnableMDNS {
		s.mdns = newAdvertiser(s.config.Name, s.config.Port)
		if err := s.mdns.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Monitor listening on %s%s", addr, Path)

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
	case err := <-errChan:
		return fmt.Errorf("monitor server failed: %w", err)
	}

	if s.mdns != nil {
		s.mdns.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Monitor shutdown error: %v", err)
	}

	s.waitClients()
	return nil
}

// waitClients waits for every client goroutine to finish after Stop
func (s *Server) waitClients() {
	s.wg.Wait()
}

// Stop closes every client and ends Start
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		// stopChan closes under clientsMu so no client registers after it
		s.clientsMu.Lock()
		close(s.stopChan)

		// Hijacked connections are not closed by http.Server.Shutdown
		for conn := range s.clients {
			conn.Close()
		}
		s.clientsMu.Unlock()
	})
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	select {
	case <-s.stopChan:
		s.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	s.clients[conn] = struct{}{}
	// One for this handler, one for its writer
	s.wg.Add(2)
	s.clientsMu.Unlock()
	defer s.wg.Done()

	log.Printf("Monitor client connected from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection runs one client until it disconnects
func (s *Server) handleConnection(conn *websocket.Conn) {
	sendChan := make(chan Message, 16)
	done := make(chan struct{})

	defer func() {
		close(done)
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
		log.Printf("Monitor client disconnected")
	}()

	sendChan <- Message{
		Type: TypeHello,
		Payload: Hello{
			ServerID: s.serverID,
			Name:     s.config.Name,
			Version:  version.Version,
		},
	}

	go func() {
		defer s.wg.Done()
		s.clientWriter(conn, sendChan, done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Monitor WebSocket error: %v", err)
			}
			return
		}

		if reply, ok := s.handleClientMessage(data); ok {
			select {
			case sendChan <- reply:
			default:
				log.Printf("Warning: monitor reply dropped (channel full)")
			}
		}
	}
}

// clientWriter pushes queued messages and periodic stats
func (s *Server) clientWriter(conn *websocket.Conn, sendChan <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	write := func(msg Message) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		select {
		case <-done:
			return
		case <-s.stopChan:
			return
		case msg := <-sendChan:
			if err := write(msg); err != nil {
				return
			}
		case <-ticker.C:
			stats := Message{Type: TypeStats, Payload: NewStats(s.target.Stats())}
			if err := write(stats); err != nil {
				return
			}
		}
	}
}

// handleClientMessage applies a control request and returns an optional reply
func (s *Server) handleClientMessage(data []byte) (Message, bool) {
	var msg incoming
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorReply("", fmt.Sprintf("malformed message: %v", err)), true
	}

	switch msg.Type {
	case TypeMute:
		var m Mute
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return errorReply(msg.Type, err.Error()), true
		}
		s.target.SetMuted(m.Muted)
		return Message{Type: TypeStats, Payload: NewStats(s.target.Stats())}, true

	case TypeRegion:
		var r Region
		if err := json.Unmarshal(msg.Payload, &r); err != nil {
			return errorReply(msg.Type, err.Error()), true
		}
		if s.config.OnRegion == nil {
			return errorReply(msg.Type, "region switching not supported by this core"), true
		}
		if err := s.config.OnRegion(r.Region); err != nil {
			return errorReply(msg.Type, err.Error()), true
		}
		return Message{}, false

	default:
		return errorReply(msg.Type, "unknown message type"), true
	}
}

func errorReply(request, message string) Message {
	return Message{Type: TypeError, Payload: Error{Request: request, Message: message}}
}
