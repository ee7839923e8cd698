package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

// Version is advertised in the system.hello handshake
const Version = "1.0.0"

const writeWait = 10 * time.Second

// ErrServerClosed is reported to upgrade requests arriving after Shutdown
var ErrServerClosed = errors.New("dispatcher: server closed")

// Server accepts WebSocket connections and dispatches every inbound request
// on its own goroutine, so slow handlers never hold up their siblings.
// Responses on one connection are serialised by a per-connection write lock.
type Server struct {
	dispatcher *Dispatcher
	name       string
	logger     *logging.Logger
	upgrader   websocket.Upgrader

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	conns    map[*peerConn]struct{}
	closed   bool
	inflight sync.WaitGroup
}

// NewServer creates a server announcing itself as name. The dispatcher's
// registry is sealed.
func NewServer(d *Dispatcher, name string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetDispatchLogger()
	}
	d.registry.Seal()

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		dispatcher: d,
		name:       name,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		baseCtx: ctx,
		cancel:  cancel,
		conns:   make(map[*peerConn]struct{}),
	}
}

// Handler returns a mux serving the RPC endpoint at path and a liveness probe at /healthz
func (s *Server) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"connections": s.ConnectionCount(),
		})
	})
	return mux
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	pc := &peerConn{ws: ws, cancel: cancel}
	if !s.track(pc) {
		cancel()
		ws.Close()
		return
	}
	defer s.untrack(pc)

	s.serve(ctx, pc, r.RemoteAddr)
}

func (s *Server) serve(ctx context.Context, pc *peerConn, remote string) {
	logger := s.logger.WithField("remote", remote)
	logger.Info("Peer connected")
	defer logger.Info("Peer disconnected")

	if err := s.sendHello(pc); err != nil {
		logger.Warn("Failed to send handshake", "error", err.Error())
		pc.close()
		return
	}

	for {
		_, data, err := pc.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Read loop ended", "error", err.Error())
			}
			break
		}

		if !s.begin() {
			break
		}
		go func(frame []byte) {
			defer s.inflight.Done()
			resp := s.dispatcher.DispatchFrame(ctx, frame)
			if resp == nil {
				return
			}
			if err := pc.write(resp); err != nil {
				logger.Debug("Dropping response for closed connection", "error", err.Error())
			}
		}(data)
	}

	pc.close()
}

func (s *Server) sendHello(pc *peerConn) error {
	hello, err := jsonrpc.NewNotification(interfaces.MethodHello, interfaces.Handshake{
		Server:  s.name,
		Version: Version,
		Methods: s.dispatcher.registry.Methods(),
	})
	if err != nil {
		return err
	}
	frame, err := jsonrpc.Encode(hello)
	if err != nil {
		return err
	}
	return pc.write(frame)
}

// ConnectionCount returns the number of live connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseConnections drops every live connection without stopping the server.
// Clients observe this as an unsolicited loss.
func (s *Server) CloseConnections() int {
	s.mu.Lock()
	conns := make([]*peerConn, 0, len(s.conns))
	for pc := range s.conns {
		conns = append(conns, pc)
	}
	s.mu.Unlock()

	for _, pc := range conns {
		pc.close()
	}
	return len(conns)
}

// Shutdown refuses new connections, closes live ones and waits for in-flight
// handlers. When ctx expires first, outstanding handlers are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.CloseConnections()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Server) track(pc *peerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[pc] = struct{}{}
	return true
}

// begin registers an in-flight handler unless Shutdown has started
func (s *Server) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.inflight.Add(1)
	return true
}

func (s *Server) untrack(pc *peerConn) {
	s.mu.Lock()
	delete(s.conns, pc)
	s.mu.Unlock()
}

// peerConn is one accepted connection; handlers share it through writeMu
type peerConn struct {
	ws        *websocket.Conn
	cancel    context.CancelFunc
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (pc *peerConn) write(frame []byte) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	pc.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return pc.ws.WriteMessage(websocket.TextMessage, frame)
}

// close cancels handlers of this connection and closes the socket without a
// close handshake, which the client sees as an abrupt loss
func (pc *peerConn) close() {
	pc.closeOnce.Do(func() {
		pc.cancel()
		pc.ws.Close()
	})
}
