// Package server initializes and runs the chat server application: it wires
// the credential store, presence registry, and TCP endpoint together and
// handles graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wiliyo/wiliyo/internal/logging"
	"github.com/wiliyo/wiliyo/internal/server/chat"
	"github.com/wiliyo/wiliyo/internal/server/config"
	"github.com/wiliyo/wiliyo/internal/server/users"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	userService *users.Service
	chatServer  *chat.Server
}

func NewApp(c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	repo, err := newRepository(c)
	if err != nil {
		return nil, fmt.Errorf("credential store init error: %w", err)
	}

	us := users.NewService(repo)
	cs := chat.NewServer(c.EndpointAddr, logger, us, c.AuthReadTimeout, c.ChatIdleTimeout)

	return &App{config: c, logger: logger, userService: us, chatServer: cs}, nil
}

// newRepository selects the credential store backend: a non-empty DSN means
// Postgres, otherwise the JSON file artifact.
func newRepository(c *config.Config) (users.Repository, error) {
	if c.DatabaseDSN != "" {
		return users.OpenPostgres(c.DatabaseDSN)
	}
	return users.NewFileRepository(c.UserDataFile)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startChatServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.chatServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startChatServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
