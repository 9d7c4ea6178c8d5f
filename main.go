package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pksebben/Napkin/client"
	"github.com/pksebben/Napkin/config"
	"github.com/pksebben/Napkin/dehydrate"
	"github.com/pksebben/Napkin/locator"
	"github.com/pksebben/Napkin/mermaid"
	"github.com/pksebben/Napkin/metrics"
	"github.com/pksebben/Napkin/persist"
	"github.com/pksebben/Napkin/registry"
	"github.com/pksebben/Napkin/server"
	"github.com/pksebben/Napkin/tools"
)

func main() {
	// Initialize config
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Generate a unique ID for this process instance
	instanceID := uuid.New().String()
	log.Printf("Starting napkin instance with ID: %s", instanceID)

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	mode := "mcp"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "mcp":
		runMCP(cfg)
	case "serve":
		runServe(cfg)
	default:
		fmt.Fprintf(os.Stderr, "usage: napkin [mcp|serve]\n\n"+
			"  mcp    serve design-session tools over stdio (default)\n"+
			"  serve  run the coordination server in the foreground\n")
		os.Exit(2)
	}
}

// newLocator builds the bind-race locator, wiring the persistence
// backend and registry into the server factory that runs only if this
// process wins the race.
func newLocator(cfg *config.AppConfig) *locator.Locator {
	return locator.New(&cfg.Server, func() *server.Server {
		store, err := buildStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize persistence backend: %v", err)
		}
		reg := registry.New(store, mermaid.Validate, dehydrate.Convert, cfg.History.Limit)
		return server.New(reg, &cfg.WebSocket)
	})
}

// buildStore selects the persistence backend from config. A nil store
// disables persistence entirely.
func buildStore(cfg *config.AppConfig) (persist.Store, error) {
	switch strings.ToLower(cfg.Persistence.Backend) {
	case "file":
		return persist.NewFileStore(cfg.Persistence.Dir), nil
	case "redis":
		rc := cfg.Persistence.Redis
		redisClient, err := persist.NewRedisClient(rc.Address, rc.Password, rc.DB, rc.PoolSize)
		if err != nil {
			return nil, err
		}
		return persist.NewRedisStore(redisClient), nil
	case "none":
		return nil, nil
	default:
		// Caught by config validation, checked again as a safeguard.
		return nil, fmt.Errorf("invalid persistence backend: %s", cfg.Persistence.Backend)
	}
}

// runMCP resolves the coordination server and serves the tool surface
// over stdio until the conversation ends.
func runMCP(cfg *config.AppConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	location, err := newLocator(cfg).Ensure(ctx)
	if err != nil {
		log.Fatalf("Failed to locate coordination server: %v", err)
	}
	if location.Owner {
		log.Printf("Hosting coordination server at %s", location.BaseURL)
	} else {
		log.Printf("Using existing coordination server at %s", location.BaseURL)
	}

	manager := client.NewSessionManager(location.BaseURL)
	mcpServer := tools.NewServer(manager)

	done := make(chan error, 1)
	go func() {
		done <- tools.ServeStdio(mcpServer)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		if err != nil {
			log.Printf("MCP server stopped: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("Shutdown signal received: %v", sig)
	}

	// Tear down only the sessions this conversation started, then the
	// server itself if we own it.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := manager.StopAll(shutdownCtx); err != nil {
		log.Printf("Failed to stop owned sessions: %v", err)
	}
	if err := location.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shut down coordination server: %v", err)
	}
}

// runServe runs the coordination server in the foreground, without the
// stdio tool surface. Useful for debugging and for hosting the server
// independently of any conversation.
func runServe(cfg *config.AppConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	location, err := newLocator(cfg).Ensure(ctx)
	if err != nil {
		log.Fatalf("Failed to locate coordination server: %v", err)
	}
	if !location.Owner {
		log.Fatalf("A coordination server is already running at %s", location.BaseURL)
	}
	log.Printf("Coordination server listening at %s", location.BaseURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := location.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shut down coordination server: %v", err)
	}
}
