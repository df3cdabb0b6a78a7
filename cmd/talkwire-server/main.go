// ABOUTME: Entry point for the Talkwire relay server
// ABOUTME: Parses CLI flags and starts the server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Talkwire-Project/talkwire-go/internal/server"
)

var (
	port       = flag.Int("port", 9040, "WebSocket server port")
	name       = flag.String("name", "", "Server friendly name (default: hostname-talkwire)")
	logFile    = flag.String("log-file", "talkwire-server.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	authSecret = flag.String("auth-secret", "", "HMAC secret for auth tokens (empty accepts only anonymous)")
	redisAddr  = flag.String("redis", "", "Redis address for durable session storage (empty uses memory)")
	grace      = flag.Duration("room-grace", server.DefaultCleanupGrace, "How long an empty room survives before cleanup")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-talkwire", hostname)
	}

	log.Printf("Starting Talkwire relay: %s on port %d", serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	srv := server.New(server.Config{
		Port:         *port,
		Name:         serverName,
		EnableMDNS:   !*noMDNS,
		Debug:        *debug,
		AuthSecret:   *authSecret,
		RedisAddr:    *redisAddr,
		CleanupGrace: *grace,
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
