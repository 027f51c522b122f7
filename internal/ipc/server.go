package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const (
	maxMessageSize = 1 << 20
	writeTimeout   = 5 * time.Second
)

// Server accepts protocol clients on a unix socket and feeds their requests
// into the loop.
type Server struct {
	socketPath   string
	listener     net.Listener
	display      *Display
	loop         *Loop
	queueSize    int
	logger       *slog.Logger
	shuttingDown bool
	shutdownMu   sync.Mutex
	wg           sync.WaitGroup
}

// NewServer creates a socket server for display. queueSize bounds each
// client's outbound queue.
func NewServer(socketPath string, display *Display, loop *Loop, queueSize int, logger *slog.Logger) *Server {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		display:    display,
		loop:       loop,
		queueSize:  queueSize,
		logger:     logger,
	}
}

// SocketPath returns the listening path.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for connections.
func (s *Server) Start() error {
	// Remove a stale socket left by a previous run.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			stopping := s.shuttingDown
			s.shutdownMu.Unlock()
			if stopping {
				return
			}
			s.logger.Warn("accept error", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	sink := newConnSink(conn, s.queueSize, s.logger)
	go sink.writeLoop()

	ready := make(chan *Client, 1)
	if !s.loop.Post(func() { ready <- s.display.AddClient(sink) }) {
		sink.Close()
		return
	}
	var client *Client
	select {
	case client = <-ready:
	case <-s.loop.Done():
		sink.Close()
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := ParseMessage(line)
		if err != nil {
			text := err.Error()
			s.loop.Post(func() {
				client.PostError(DisplayID, ErrorInvalidMethod, text)
				s.display.Reap()
			})
			break
		}
		if !s.loop.Post(func() {
			client.Dispatch(msg)
			s.display.Reap()
		}) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("read error", "client", client.ID(), "error", err)
	}
	s.loop.Post(client.Destroy)
}

// Stop closes the listener and removes the socket file. Connected clients
// are closed by destroying the display.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

// connSink queues outbound messages for a connection. Deliver never blocks
// the loop; a full queue fails delivery and the client is dropped.
type connSink struct {
	conn      net.Conn
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func newConnSink(conn net.Conn, size int, logger *slog.Logger) *connSink {
	return &connSink{
		conn:   conn,
		out:    make(chan Message, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *connSink) Deliver(msg Message) error {
	select {
	case <-s.done:
		return ErrClientGone
	default:
	}
	select {
	case s.out <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the writer after it flushes what is already queued.
func (s *connSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *connSink) writeLoop() {
	enc := json.NewEncoder(s.conn)
	defer s.conn.Close()
	for {
		select {
		case msg := <-s.out:
			if err := s.write(enc, msg); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			for {
				select {
				case msg := <-s.out:
					if err := s.write(enc, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *connSink) write(enc *json.Encoder, msg Message) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := enc.Encode(msg); err != nil {
		s.logger.Debug("write failed", "error", err)
		return err
	}
	return nil
}
