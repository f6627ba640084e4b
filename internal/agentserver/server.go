// SPDX-License-Identifier: MPL-2.0

package agentserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/secret"
)

const (
	// StateCreated indicates the server has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopped indicates the server has stopped (terminal state).
	StateStopped
	// StateFailed indicates the server failed to start (terminal state).
	StateFailed
)

// launchFailedStatus is the exit status reported when a process could not be
// started at all. The reason is written to stderr as a JSON Response.
const launchFailedStatus = 255

// ErrNoToken is returned by Start when no authentication token is configured.
var ErrNoToken = errors.New("agent server requires an authentication token")

type (
	// State is the lifecycle state of a Server.
	State int32

	// Config holds the server configuration.
	Config struct {
		// Address to listen on (default 127.0.0.1:0).
		Address string
		// Token is the shared secret clients send as their password.
		Token secret.Secret
		// HostKeyPath is an optional persistent host key. When empty an
		// ephemeral key is generated.
		HostKeyPath string
		// Node is the agent answering requests (default: a Local agent).
		Node *agent.Local
		// ShutdownTimeout bounds graceful shutdown (default 10s).
		ShutdownTimeout time.Duration
		// Logger receives diagnostics (default: stderr with an "agent-server" prefix).
		Logger *log.Logger
	}

	// Server is a single-use agent server.
	Server struct {
		cfg    Config
		logger *log.Logger
		state  atomic.Int32

		mu       sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string
		lastErr  error

		wg sync.WaitGroup
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// New creates a server. Call Start to begin accepting connections.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:0"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Node == nil {
		cfg.Node = &agent.Local{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "agent-server"})
	}
	s := &Server{cfg: cfg, logger: logger}
	s.state.Store(int32(StateCreated))
	return s
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Token.IsSet() {
		return s.fail(ErrNoToken)
	}
	if err := ctx.Err(); err != nil {
		return s.fail(fmt.Errorf("context cancelled before start: %w", err))
	}
	if State(s.state.Load()) != StateCreated {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return s.fail(fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err))
	}

	opts := []ssh.Option{
		wish.WithAddress(listener.Addr().String()),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithMiddleware(s.verbMiddleware()),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = listener.Close()
		return s.fail(fmt.Errorf("failed to create SSH server: %w", err))
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.state.Store(int32(StateRunning))
	s.wg.Add(1)
	go s.serve(srv, listener)

	s.logger.Info("agent server started", "address", s.addr)
	return nil
}

func (s *Server) serve(srv *ssh.Server, listener net.Listener) {
	defer s.wg.Done()
	if err := srv.Serve(listener); err != nil &&
		!errors.Is(err, ssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("serve error", "error", err)
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	s.wg.Wait()
	s.logger.Info("agent server stopped")
	return err
}

// Wait blocks until the server stops and returns the startup error, if any.
func (s *Server) Wait() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// State returns the current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// Address returns the bound address, or "" before Start succeeds.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.state.Store(int32(StateFailed))
	return err
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	want := s.cfg.Token.PlainText()
	if subtle.ConstantTimeCompare([]byte(password), []byte(want)) != 1 {
		s.logger.Warn("invalid token authentication attempt", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	return true
}

// publicKeyHandler rejects all public key authentication.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}
