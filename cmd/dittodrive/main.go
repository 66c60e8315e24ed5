package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/api"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/files"
	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/server"
)

const usage = `DittoDrive - user-owned file storage with sharing

Usage:
  dittodrive <command> [flags]

Commands:
  init     Write a default configuration file
  start    Start the server

Flags for init:
  --force           Overwrite an existing configuration file

Flags for start:
  --config string   Path to configuration file (default: $XDG_CONFIG_HOME/dittodrive/config.yaml)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := config.InitConfig(*force)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Edit auth.oidc (or switch auth.type to static) before running 'dittodrive start'.")
	return nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Step 1: Stores
	// ========================================================================

	startCtx, cancelStart := context.WithTimeout(ctx, config.StartupTimeout)
	defer cancelStart()

	m := config.InitializeMetrics(cfg)

	registry, err := config.CreateRegistry(startCtx, &cfg.Registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("Failed to close registry: %v", err)
		}
	}()
	logger.Info("Registry: %s", cfg.Registry.Type)

	blobs, err := config.CreateBlobStore(startCtx, &cfg.Blob, m.Blob)
	if err != nil {
		return err
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			logger.Error("Failed to close blob store: %v", err)
		}
	}()
	logger.Info("Blob store: %s", cfg.Blob.Type)

	// ========================================================================
	// Step 2: Authentication and service
	// ========================================================================

	authn, err := config.CreateAuthenticator(startCtx, &cfg.Auth, registry)
	if err != nil {
		return err
	}
	logger.Info("Authentication: %s", cfg.Auth.Type)

	service := files.NewService(registry, blobs, config.ServiceConfig(cfg), m.Files)

	collector, err := gc.NewCollector(registry, blobs, cfg.GC, m.GC)
	if err != nil {
		return err
	}

	// ========================================================================
	// Step 3: Components
	// ========================================================================

	srv := server.New(cfg.Server.ShutdownTimeout)

	if err := srv.Add(api.NewServer(service, authn, cfg.HTTP)); err != nil {
		return err
	}

	if err := srv.Add(server.Func{
		ComponentName: "GC",
		ServeFunc: func(ctx context.Context) error {
			collector.Start()
			<-ctx.Done()
			return nil
		},
		StopFunc: collector.Stop,
	}); err != nil {
		return err
	}

	if m.Server != nil {
		if err := srv.Add(server.Func{
			ComponentName: "Metrics",
			ServeFunc:     m.Server.Start,
			StopFunc:      m.Server.Stop,
		}); err != nil {
			return err
		}
	}

	logger.Info("DittoDrive is running. Press Ctrl+C to stop.")
	return srv.Serve(ctx)
}
