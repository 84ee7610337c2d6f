// Package cli implements the interactive chat client: it dials the server,
// relays stdin lines to the connection, and prints everything the server
// sends back. Authentication happens entirely server-side; the client is a
// line pipe with a prompt.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/wiliyo/wiliyo/internal/client/config"
	"github.com/wiliyo/wiliyo/internal/netx"
)

const defaultPort = 6969

// getSimpleText is an indirection used to facilitate testing.
var getSimpleText = GetSimpleText

type App struct {
	config *config.Config
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{config: c, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// Run prompts for the server address (keeping the configured default),
// connects, and relays lines until the user quits or the server goes away.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "WILIYO CHAT CLIENT")

	addr := a.config.ServerEndpointAddr
	if stdinIsInteractive() {
		input, err := getSimpleText(a.reader, fmt.Sprintf("Server [%s]", addr), a.out)
		if err != nil && err != io.EOF {
			return err
		}
		if input != "" {
			addr = input
		}
	}

	addr, err := netx.EnsureHostPort(addr, defaultPort)
	if err != nil {
		return fmt.Errorf("bad server address: %w", err)
	}

	fmt.Fprintf(a.out, "\nConnecting to %s...\n", addr)

	conn, err := net.DialTimeout("tcp", addr, a.config.DialTimeout)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	fmt.Fprintln(a.out, "Connected!")

	return a.relay(ctx, conn)
}

// relay runs the two halves of the pipe: a receiver goroutine printing
// server lines, and the main loop forwarding stdin. Either side ending
// terminates the session.
func (a *App) relay(ctx context.Context, conn net.Conn) error {
	serverGone := make(chan struct{})

	go func() {
		defer close(serverGone)
		a.receive(conn)
	}()

	err := a.sendLoop(ctx, conn, serverGone)

	conn.Close()
	<-serverGone
	fmt.Fprintln(a.out, "Disconnected")
	return err
}

// receive prints every chunk the server sends. The server interleaves
// prompts (no trailing newline) with full lines, so output is copied as-is
// rather than line-buffered.
func (a *App) receive(conn net.Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			fmt.Fprint(a.out, string(buf[:n]))
		}
		if err != nil {
			if err != io.EOF {
				return
			}
			fmt.Fprintln(a.out, "\nServer disconnected")
			return
		}
	}
}

// sendLoop forwards stdin lines to the server until EOF, a local quit
// command, or the server side closing.
func (a *App) sendLoop(ctx context.Context, conn net.Conn, serverGone <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.reader)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-serverGone:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if _, err := conn.Write([]byte(line + "\n")); err != nil {
				return fmt.Errorf("write to server: %w", err)
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "/exit" || trimmed == "/quit" {
				return nil
			}
		}
	}
}
