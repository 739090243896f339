// Package control lets CLI commands talk to a running "taskpilot serve"
// process over a Unix domain socket. The server holds the database lock, so
// this socket is how other processes ask it for status, a maintenance cycle,
// or the current ranking.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Command types understood by the server
const (
	CommandStatus  = "status"
	CommandTrigger = "trigger"
	CommandRank    = "rank"
)

// SocketName is the control socket file created next to the database
const SocketName = "control.sock"

// SocketPath returns the control socket location for a database path
func SocketPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), SocketName)
}

// Command represents a control command sent to the server
type Command struct {
	Type      string    `json:"type"`            // "status", "trigger", "rank"
	Limit     int       `json:"limit,omitempty"` // Result limit (for rank)
	Timestamp time.Time `json:"timestamp"`       // When command was sent
}

// Response represents a response to a control command
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Handler executes a command and returns response data
type Handler func(cmd Command) (map[string]any, error)

// ErrUnknownCommand is returned by handlers for command types they do not support
var ErrUnknownCommand = errors.New("unknown command")

// Server manages the control socket
type Server struct {
	socketPath string
	logger     *slog.Logger
	listener   net.Listener
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}

	onCommand Handler
}

// NewServer creates a new control server. A socket file left behind by a
// crashed server is removed.
func NewServer(socketPath string, onCommand Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	return &Server{
		socketPath: socketPath,
		logger:     logger,
		onCommand:  onCommand,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins listening for control commands
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("control server already running")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create control socket: %w", err)
	}

	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("control server listening", "socket", s.socketPath)
	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		// Accept timeout lets the loop notice ctx and stopCh
		if err := s.listener.(*net.UnixListener).SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Warn("control: failed to set deadline", "error", err)
			continue
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.logger.Warn("control: accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection processes a single control connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Read deadline keeps a silent client from holding the goroutine
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		s.logger.Warn("control: failed to set read deadline", "error", err)
		return
	}

	var cmd Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		s.sendError(conn, fmt.Sprintf("failed to decode command: %v", err))
		return
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}

	var resp Response
	if s.onCommand != nil {
		data, err := s.onCommand(cmd)
		if err != nil {
			resp = Response{
				Success: false,
				Message: fmt.Sprintf("Command failed: %v", err),
				Error:   err.Error(),
			}
		} else {
			resp = Response{
				Success: true,
				Message: fmt.Sprintf("Command '%s' completed successfully", cmd.Type),
				Data:    data,
			}
		}
	} else {
		resp = Response{
			Success: false,
			Message: "No command handler registered",
			Error:   "server misconfiguration",
		}
	}

	s.logger.Debug("control command handled", "type", cmd.Type, "success", resp.Success)
	if err := s.sendResponse(conn, resp); err != nil {
		s.logger.Warn("control: failed to send response", "error", err)
	}
}

func (s *Server) sendError(conn net.Conn, message string) {
	resp := Response{
		Success: false,
		Message: message,
		Error:   message,
	}
	_ = s.sendResponse(conn, resp) // Ignore errors on error path
}

func (s *Server) sendResponse(conn net.Conn, resp Response) error {
	return json.NewEncoder(conn).Encode(resp)
}

// Stop stops the control server and removes the socket file
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	// Closing the listener unblocks Accept
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("control: error closing listener", "error", err)
		}
	}

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		s.logger.Warn("control: timeout waiting for server shutdown")
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.logger.Warn("control: failed to remove socket file", "error", err)
	}
	s.logger.Info("control server stopped")
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SocketPath returns the path to the control socket
func (s *Server) SocketPath() string {
	return s.socketPath
}
