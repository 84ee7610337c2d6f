package main

import (
	"context"
	"log"
	"os"

	"github.com/wiliyo/wiliyo/internal/client/cli"
	clientconfig "github.com/wiliyo/wiliyo/internal/client/config"
	"github.com/wiliyo/wiliyo/internal/server"
	serverconfig "github.com/wiliyo/wiliyo/internal/server/config"
)

// One binary, two modes: "wiliyo server" runs the chat server, anything else
// runs the interactive client.
func main() {

	ctx := context.Background()

	if len(os.Args) > 1 && os.Args[1] == "server" {
		runServer(ctx)
		return
	}

	runClient(ctx)
}

func runServer(ctx context.Context) {
	cfg := serverconfig.LoadConfig()
	app, err := server.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}

func runClient(ctx context.Context) {
	cfg := clientconfig.LoadConfig()
	app := cli.NewApp(cfg)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
