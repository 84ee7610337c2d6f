package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wiliyo/wiliyo/internal/logging"
	"github.com/wiliyo/wiliyo/internal/server/users"
)

// Server accepts TCP connections and hands each one to its own session
// goroutine. All sessions share the presence registry and the credential
// service; everything else is session-local.
type Server struct {
	address         string
	logger          logging.Logger
	users           *users.Service
	registry        *Registry
	authReadTimeout time.Duration
	chatIdleTimeout time.Duration
	wg              sync.WaitGroup
}

func NewServer(address string, l logging.Logger, us *users.Service, authReadTimeout, chatIdleTimeout time.Duration) *Server {
	return &Server{
		address:         address,
		logger:          l.With("module", "chat_server"),
		users:           us,
		registry:        NewRegistry(),
		authReadTimeout: authReadTimeout,
		chatIdleTimeout: chatIdleTimeout,
	}
}

// Run binds the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections from an existing listener until ctx is canceled,
// then closes the listener and every live connection and waits for session
// goroutines to finish.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	registered, err := s.users.Count(ctx)
	if err != nil {
		listen.Close()
		return fmt.Errorf("count registered users: %w", err)
	}

	s.logger.Info(ctx, "ready for connections",
		"address", listen.Addr().String(), "registered_users", registered)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping chat server")
		listen.Close()
		for _, sess := range s.registry.Snapshot() {
			sess.conn.Close()
		}
	}()

	for {
		conn, err := listen.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn(ctx, "accept failed", "error", err)
			continue
		}

		sess := newSession(s, conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.run(ctx)
		}()
	}

	s.wg.Wait()
	return nil
}

// broadcast writes one message (plus line terminator) to a snapshot of the
// connected sessions, skipping the excluded one. Per-recipient failures are
// logged and swallowed independently; a dead peer never aborts the fan-out.
func (s *Server) broadcast(ctx context.Context, msg string, exclude *Session) {
	for _, sess := range s.registry.Snapshot() {
		if sess == exclude {
			continue
		}
		if err := sess.sendLine(msg); err != nil {
			s.logger.Warn(ctx, "broadcast delivery failed",
				"recipient", sess.username, "error", err)
		}
	}
}

// Registry exposes the presence registry, mainly for tests and diagnostics.
func (s *Server) Registry() *Registry {
	return s.registry
}
