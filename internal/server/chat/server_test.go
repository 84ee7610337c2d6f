package chat

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiliyo/wiliyo/internal/logging"
	"github.com/wiliyo/wiliyo/internal/server/users"
)

const waitTimeout = 3 * time.Second

// startTestServer runs a server with a fresh file-backed credential store on
// an ephemeral port and returns it together with its dial address.
func startTestServer(t *testing.T, authTimeout, idleTimeout time.Duration) (*Server, string) {
	t.Helper()

	repo, err := users.NewFileRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := NewServer("127.0.0.1:0", logger, users.NewService(repo), authTimeout, idleTimeout)

	listen, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, listen)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Log("server did not stop in time")
		}
	})

	return srv, listen.Addr().String()
}

// testClient is a scripted chat peer. waitFor consumes the byte stream up to
// and including the wanted substring, so assertions about "what arrived in
// between" can inspect the returned segment.
type testClient struct {
	t       *testing.T
	conn    net.Conn
	pending string
}

func dialTest(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, waitTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) sendLine(line string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(waitTimeout)))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) waitFor(substr string) string {
	c.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	buf := make([]byte, 1024)
	for {
		if i := strings.Index(c.pending, substr); i >= 0 {
			segment := c.pending[:i+len(substr)]
			c.pending = c.pending[i+len(substr):]
			return segment
		}
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.pending += string(buf[:n])
		}
		if err != nil {
			c.t.Fatalf("waiting for %q: %v (received so far: %q)", substr, err, c.pending)
		}
	}
}

// waitClosed asserts the server closes the connection.
func (c *testClient) waitClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	buf := make([]byte, 1024)
	for {
		_, err := c.conn.Read(buf)
		if err != nil {
			return
		}
	}
}

func register(t *testing.T, c *testClient, username, password string) {
	t.Helper()
	c.waitFor("Choice (1/2): ")
	c.sendLine("2")
	c.waitFor("Username: ")
	c.sendLine(username)
	c.waitFor("Password: ")
	c.sendLine(password)
	c.waitFor("Registration OK!")
	c.waitFor("Type /help")
}

func TestRegisterThenLoginRoundTrip(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	register(t, c, "alice", "secret")
	c.sendLine("/exit")
	c.waitFor("Goodbye!")
	c.waitClosed()

	c2 := dialTest(t, addr)
	c2.waitFor("Choice (1/2): ")
	c2.sendLine("1")
	c2.waitFor("Username: ")
	c2.sendLine("alice")
	c2.waitFor("Password: ")
	c2.sendLine("secret")
	c2.waitFor("Login OK!")
	c2.waitFor("Welcome alice!")
}

func TestLogin_UnknownUser(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	c.waitFor("Choice (1/2): ")
	c.sendLine("1")
	c.waitFor("Username: ")
	c.sendLine("ghost")
	c.waitFor("User not found!")
	c.waitClosed()
}

func TestLogin_WrongPassword(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	register(t, c, "alice", "secret")
	c.sendLine("/quit")
	c.waitFor("Goodbye!")
	c.waitClosed()

	c2 := dialTest(t, addr)
	c2.waitFor("Choice (1/2): ")
	c2.sendLine("1")
	c2.waitFor("Username: ")
	c2.sendLine("alice")
	c2.waitFor("Password: ")
	c2.sendLine("hunter2")
	c2.waitFor("Wrong password!")
	c2.waitClosed()
}

func TestAuth_InvalidChoice(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	c.waitFor("Choice (1/2): ")
	c.sendLine("9")
	c.waitFor("Invalid choice!")
	c.waitClosed()
}

func TestAuth_TimeoutClosesConnection(t *testing.T) {
	_, addr := startTestServer(t, 150*time.Millisecond, time.Hour)

	c := dialTest(t, addr)
	c.waitFor("Choice (1/2): ")
	// Send nothing: the auth-phase deadline is a hard failure.
	c.waitFor("Timeout!")
	c.waitClosed()
}

func TestRegister_EmptyUsernameReprompts(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	c.waitFor("Choice (1/2): ")
	c.sendLine("2")
	c.waitFor("Username: ")
	c.sendLine("")
	c.waitFor("Username required!")
	c.waitFor("Username: ")
	c.sendLine("alice")
	c.waitFor("Password: ")
	c.sendLine("secret")
	c.waitFor("Registration OK!")
}

func TestRegister_EmptyPasswordCloses(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	c.waitFor("Choice (1/2): ")
	c.sendLine("2")
	c.waitFor("Username: ")
	c.sendLine("alice")
	c.waitFor("Password: ")
	c.sendLine("")
	c.waitFor("Password required!")
	c.waitClosed()

	// The record must not exist: the name is free for the next attempt.
	c2 := dialTest(t, addr)
	register(t, c2, "alice", "secret")
}

func TestRegister_TakenUsernameReprompts(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	register(t, c, "alice", "secret")

	c2 := dialTest(t, addr)
	c2.waitFor("Choice (1/2): ")
	c2.sendLine("2")
	c2.waitFor("Username: ")
	c2.sendLine("alice")
	c2.waitFor("Username taken! Try another.")
	c2.waitFor("Username: ")
	c2.sendLine("bob")
	c2.waitFor("Password: ")
	c2.sendLine("hunter2")
	c2.waitFor("Registration OK!")
}

func TestSecondLogin_RejectedAfterCredentialCheck(t *testing.T) {
	srv, addr := startTestServer(t, 2*time.Second, time.Hour)

	c := dialTest(t, addr)
	register(t, c, "alice", "secret")

	// Correct credentials pass, then the presence gate rejects.
	c2 := dialTest(t, addr)
	c2.waitFor("Choice (1/2): ")
	c2.sendLine("1")
	c2.waitFor("Username: ")
	c2.sendLine("alice")
	c2.waitFor("Password: ")
	c2.sendLine("secret")
	c2.waitFor("Login OK!")
	c2.waitFor("Already logged in!")
	c2.waitClosed()

	assert.Equal(t, 1, srv.Registry().OnlineCount())
}

func TestEndToEnd_DirectAndBroadcast(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	bob := dialTest(t, addr)
	register(t, bob, "bob", "hunter2")
	alice.waitFor("[+] bob joined")

	alice.sendLine("@bob hi there")
	bob.waitFor("[PM from alice]: hi there")
	alice.waitFor("Sent to @bob")

	alice.sendLine("hello all")
	bob.waitFor("alice: hello all")

	// The broadcast must not echo to the sender: everything alice receives
	// up to the /users reply is inspected for her own message.
	alice.sendLine("/users")
	segment := alice.waitFor("Total: 2")
	assert.NotContains(t, segment, "alice: hello all")

	assert.Contains(t, segment, "- alice\n- bob", "user list must be sorted")
}

func TestDirect_SelfTargetRejected(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	bob := dialTest(t, addr)
	register(t, bob, "bob", "hunter2")
	alice.waitFor("[+] bob joined")

	alice.sendLine("@alice talking to myself")
	alice.waitFor("Cannot message yourself!")

	// bob saw nothing of it: the next broadcast is the first thing after
	// his join.
	alice.sendLine("ping")
	segment := bob.waitFor("alice: ping")
	assert.NotContains(t, segment, "talking to myself")
}

func TestDirect_UnknownTarget(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	alice.sendLine("@ghost hello?")
	alice.waitFor("User @ghost not found")
}

func TestGroup_ImplicitJoinAndFanout(t *testing.T) {
	srv, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	bob := dialTest(t, addr)
	register(t, bob, "bob", "hunter2")
	alice.waitFor("[+] bob joined")

	// First group message creates the group with alice as sole member;
	// bob is connected but not a member.
	alice.sendLine("#dev standup in 5")
	alice.waitFor("Sent to #dev")
	assert.Equal(t, []string{"alice"}, srv.Registry().GroupMembers("dev"))

	// bob joins by sending; alice, already a member, receives it. bob's
	// receive segment must not contain alice's pre-join group message.
	bob.sendLine("#dev omw")
	alice.waitFor("[#dev] bob: omw")
	segment := bob.waitFor("Sent to #dev")
	assert.NotContains(t, segment, "standup in 5")
	assert.Equal(t, []string{"alice", "bob"}, srv.Registry().GroupMembers("dev"))
}

func TestChatIdle_TimeoutIsKeepalive(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, 100*time.Millisecond)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	// Stay silent well past several idle deadlines.
	time.Sleep(400 * time.Millisecond)

	alice.sendLine("/users")
	alice.waitFor("Total: 1")
}

func TestLeaveNoticeAndPresenceCleanup(t *testing.T) {
	srv, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	bob := dialTest(t, addr)
	register(t, bob, "bob", "hunter2")
	alice.waitFor("[+] bob joined")

	bob.sendLine("/exit")
	bob.waitFor("Goodbye!")
	alice.waitFor("[-] bob left")

	assert.Equal(t, []string{"alice"}, srv.Registry().OnlineUsers())
}

func TestAbruptDisconnect_BroadcastsLeave(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	bob := dialTest(t, addr)
	register(t, bob, "bob", "hunter2")
	alice.waitFor("[+] bob joined")

	// bob vanishes without /exit.
	bob.conn.Close()
	alice.waitFor("[-] bob left")
}

func TestEmptyLine_Ignored(t *testing.T) {
	_, addr := startTestServer(t, 2*time.Second, time.Hour)

	alice := dialTest(t, addr)
	register(t, alice, "alice", "secret")

	bob := dialTest(t, addr)
	register(t, bob, "bob", "hunter2")
	alice.waitFor("[+] bob joined")

	alice.sendLine("")
	alice.sendLine("marker")
	segment := bob.waitFor("alice: marker")
	assert.NotContains(t, segment, "alice: \n")
}
