package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aistack/controlpanel/internal/infrastructure/config"
	"github.com/aistack/controlpanel/internal/infrastructure/server"
)

const drainTimeout = 15 * time.Second

func main() {
	cfg := config.LoadOrDefault()

	// Flags win over the environment.
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	flag.StringVar(&cfg.Stack.ComposeFile, "compose", cfg.Stack.ComposeFile, "docker compose file of the stack")
	flag.StringVar(&cfg.Stack.DirectoryFile, "directory", cfg.Stack.DirectoryFile, "service directory file (yaml, toml or json)")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error")
	dev := flag.Bool("dev", cfg.Logging.Development, "console logs at debug level")
	flag.Parse()

	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("controlpanel: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.Run() }()

	select {
	case err := <-served:
		if err != nil {
			log.Fatalf("controlpanel: %v", err)
		}
		return
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Printf("controlpanel: shutdown: %v", err)
	}
}
