package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wiliyo/wiliyo/internal/common"
	"github.com/wiliyo/wiliyo/internal/logging"
	"github.com/wiliyo/wiliyo/internal/server/users"
)

// State is the lifecycle phase of a session. Closed is terminal and
// reachable from every other state.
type State string

const (
	StateConnecting         State = "connecting"
	StateAwaitingMenuChoice State = "awaiting_menu_choice"
	StateLoggingIn          State = "logging_in"
	StateRegistering        State = "registering"
	StateAuthenticated      State = "authenticated"
	StateChatting           State = "chatting"
	StateClosed             State = "closed"
)

const writeTimeout = 10 * time.Second

// Session is the per-connection state machine. It exclusively owns its
// net.Conn: all reads happen on the session goroutine, and writes (which may
// come from other sessions routing messages here) are serialized by writeMu
// so delivery order per recipient matches the order writes were issued.
type Session struct {
	id       string
	srv      *Server
	conn     net.Conn
	reader   *bufio.Reader
	writeMu  sync.Mutex
	peerIP   string
	username string
	state    State
	logger   logging.Logger
}

func newSession(srv *Server, conn net.Conn) *Session {
	ip := ""
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ip = addr.IP.String()
	} else if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		ip = host
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		srv:    srv,
		conn:   conn,
		reader: bufio.NewReader(conn),
		peerIP: ip,
		state:  StateConnecting,
		logger: srv.logger.With("session", id, "ip", ip),
	}
}

// run drives the session from accept to close: auth gate, then chat loop.
// The deferred teardown performs the Closed-state cleanup exactly once no
// matter which path ended the session.
func (s *Session) run(ctx context.Context) {
	defer s.teardown(ctx)

	s.logger.Info(ctx, "new connection")

	if err := s.authenticate(ctx); err != nil {
		s.logger.Info(ctx, "auth failed", "error", err)
		return
	}

	if err := s.chatLoop(ctx); err != nil {
		s.logger.Warn(ctx, "session ended with error", "username", s.username, "error", err)
	}
}

// teardown moves the session to Closed, removes it from the registry
// (a no-op for sessions that never authenticated), announces the departure
// to the remaining sessions, and releases the connection.
func (s *Session) teardown(ctx context.Context) {
	s.state = StateClosed

	if s.srv.registry.Leave(s) {
		s.logger.Info(ctx, "user disconnected", "username", s.username)
		s.srv.broadcast(ctx, fmt.Sprintf("[-] %s left", s.username), nil)
	}

	s.conn.Close()
}

// send writes raw bytes to the peer. Serialized per session; a bounded write
// deadline keeps one stuck recipient from blocking its senders forever.
func (s *Session) send(msg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write([]byte(msg))
	return err
}

func (s *Session) sendLine(msg string) error {
	return s.send(msg + "\n")
}

// readLine reads one line with the given inactivity bound. The trailing
// newline is trimmed; a partial line terminated by EOF is still returned,
// mirroring how interactive peers often close mid-line.
func (s *Session) readLine(timeout time.Duration) (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(strings.TrimSpace(line)) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readAuthLine is the auth-phase read: short bound, expiry is a hard failure.
func (s *Session) readAuthLine() (string, error) {
	line, err := s.readLine(s.srv.authReadTimeout)
	if err != nil {
		if isTimeout(err) {
			_ = s.send("Timeout!\n")
			return "", common.ErrAuthTimeout
		}
		if errors.Is(err, io.EOF) {
			return "", common.ErrPeerDisconnected
		}
		return "", err
	}
	return line, nil
}

// authenticate negotiates login or registration and, on success, registers
// the session into the presence registry. The already-online check happens
// only after credentials are verified, and the join notice goes out strictly
// after the registry mutation it announces.
func (s *Session) authenticate(ctx context.Context) error {
	s.state = StateAwaitingMenuChoice

	if err := s.send("\n=== WILIYO CHAT ===\n"); err != nil {
		return err
	}
	if err := s.send("1. Login\n2. Register\n\nChoice (1/2): "); err != nil {
		return err
	}

	choice, err := s.readAuthLine()
	if err != nil {
		return err
	}

	var user *users.User

	switch choice {
	case "1":
		s.state = StateLoggingIn
		user, err = s.login(ctx)
	case "2":
		s.state = StateRegistering
		user, err = s.register(ctx)
	default:
		_ = s.send("Invalid choice!\n")
		return common.ErrInvalidChoice
	}

	if err != nil {
		return err
	}

	s.username = user.Username
	s.state = StateAuthenticated

	if err := s.srv.registry.Join(s); err != nil {
		_ = s.send("Already logged in!\n")
		return err
	}

	s.logger.Info(ctx, "user logged in", "username", s.username)

	welcome := fmt.Sprintf("\nWelcome %s!\nOnline: %d users\nType /help\n\n",
		s.username, s.srv.registry.OnlineCount())
	if err := s.send(welcome); err != nil {
		return err
	}

	s.srv.broadcast(ctx, fmt.Sprintf("[+] %s joined", s.username), s)
	return nil
}

func (s *Session) login(ctx context.Context) (*users.User, error) {
	if err := s.send("\n--- LOGIN ---\nUsername: "); err != nil {
		return nil, err
	}

	username, err := s.readAuthLine()
	if err != nil {
		return nil, err
	}

	if _, err := s.srv.users.Lookup(ctx, username); err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			_ = s.send("User not found!\n")
		}
		return nil, err
	}

	if err := s.send("Password: "); err != nil {
		return nil, err
	}

	password, err := s.readAuthLine()
	if err != nil {
		return nil, err
	}

	user, err := s.srv.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrBadCredentials) {
			_ = s.send("Wrong password!\n")
		}
		return nil, err
	}

	if err := s.send("\nLogin OK!\n"); err != nil {
		return nil, err
	}
	return user, nil
}

// register prompts for a username until a free, non-empty one is supplied,
// then asks for the password exactly once. The asymmetry (username re-prompts,
// an empty password closes the connection) is deliberate protocol behavior.
func (s *Session) register(ctx context.Context) (*users.User, error) {
	if err := s.send("\n--- REGISTER ---\n"); err != nil {
		return nil, err
	}

	var username string
	for {
		if err := s.send("Username: "); err != nil {
			return nil, err
		}

		name, err := s.readAuthLine()
		if err != nil {
			return nil, err
		}

		if name == "" {
			if err := s.send("Username required!\n"); err != nil {
				return nil, err
			}
			continue
		}

		taken, err := s.srv.users.Exists(ctx, name)
		if err != nil {
			return nil, err
		}
		if taken {
			if err := s.send("Username taken! Try another.\n"); err != nil {
				return nil, err
			}
			continue
		}

		username = name
		break
	}

	if err := s.send("Password: "); err != nil {
		return nil, err
	}

	password, err := s.readAuthLine()
	if err != nil {
		return nil, err
	}
	if password == "" {
		_ = s.send("Password required!\n")
		return nil, common.ErrPasswordRequired
	}

	user, err := s.srv.users.Register(ctx, username, password, s.peerIP)
	if err != nil {
		// Lost a registration race after the availability check.
		if errors.Is(err, common.ErrUsernameTaken) {
			_ = s.send("Username taken! Try another.\n")
		}
		return nil, err
	}

	if err := s.send("\nRegistration OK!\n"); err != nil {
		return nil, err
	}
	return user, nil
}

// chatLoop reads and dispatches commands until quit, EOF, or an I/O error.
// An expired idle deadline is a keepalive cycle, not a disconnect.
func (s *Session) chatLoop(ctx context.Context) error {
	s.state = StateChatting

	for {
		line, err := s.readLine(s.srv.chatIdleTimeout)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if line == "" {
			continue
		}

		s.logger.Debug(ctx, "chat message", "username", s.username, "preview", preview(line))

		if quit := s.dispatch(ctx, line); quit {
			return nil
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// preview truncates a message for logging.
func preview(msg string) string {
	if len(msg) > 50 {
		return msg[:50]
	}
	return msg
}
