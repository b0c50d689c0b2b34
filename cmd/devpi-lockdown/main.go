package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/devpi/devpi-lockdown/internal/config"
	"github.com/devpi/devpi-lockdown/internal/nginx"
	"github.com/devpi/devpi-lockdown/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	genConfig := flag.Bool("gen-config", false, "write nginx-devpi-lockdown.conf and exit")
	genConfigDir := flag.String("gen-config-dir", ".", "directory to write the generated nginx config to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *genConfig {
		path, err := nginx.WriteConfig(nginx.GeneratorConfig{
			ServerName:  cfg.Nginx.ServerName,
			Port:        cfg.Nginx.Port,
			UpstreamURL: cfg.Upstream.URL.String(),
			ServerDir:   cfg.Nginx.ServerDir,
		}, *genConfigDir)
		if err != nil {
			log.Fatalf("Failed to generate nginx config: %v", err)
		}
		fmt.Printf("wrote %s\n", path)
		return
	}

	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutting down gracefully...")
	case err := <-errCh:
		fmt.Printf("Server error: %v\n", err)
	}

	if err := srv.Stop(context.Background()); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
}
