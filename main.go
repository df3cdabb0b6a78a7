// ABOUTME: Entry point for the Talkwire client
// ABOUTME: Parses CLI flags, discovers a relay, and starts the application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/app"
	"github.com/Talkwire-Project/talkwire-go/internal/discovery"
)

var (
	serverAddr = flag.String("server", "", "Manual relay address host:port (skip mDNS)")
	room       = flag.String("room", "lobby", "Room to join")
	name       = flag.String("name", "", "Display name (default: hostname)")
	token      = flag.String("token", "", "Auth token (default: anonymous)")
	fetchToken = flag.Bool("fetch-token", false, "Fetch a short-lived credential from the relay")
	vad        = flag.Bool("vad", false, "Voice-activated talk instead of push-to-talk")
	micFile    = flag.String("mic-file", "", "WAV file to use as the microphone source")
	exportDir  = flag.String("export-dir", "recordings", "Directory for downloaded segments")
	codecName  = flag.String("codec", "opus", "Audio codec: opus or pcm")
	logFile    = flag.String("log-file", "talkwire.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if *noTUI {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		// TUI mode: log only to file
		log.SetOutput(f)
	}

	userName := *name
	if userName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		userName = hostname
	}

	// Find a relay
	address := *serverAddr
	if address == "" {
		log.Printf("Starting relay discovery...")
		disc := discovery.NewManager(discovery.Config{
			ServiceName: userName,
			Port:        0,
		})
		disc.Browse()

		select {
		case server := <-disc.Servers():
			address = fmt.Sprintf("%s:%d", server.Host, server.Port)
			log.Printf("Discovered relay at %s", address)
		case <-time.After(10 * time.Second):
			disc.Stop()
			log.Fatalf("No relay found after 10 seconds")
		}
		disc.Stop()
	}

	application := app.New(app.Config{
		ServerAddr:     address,
		RoomID:         *room,
		Name:           userName,
		Token:          *token,
		FetchToken:     *fetchToken,
		VoiceActivated: *vad,
		MicFile:        *micFile,
		ExportDir:      *exportDir,
		Codec:          *codecName,
		NoTUI:          *noTUI,
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down", sig)
		application.Stop()
	}()

	if err := application.Start(); err != nil {
		log.Fatalf("Client error: %v", err)
	}
	application.Stop()

	log.Printf("Client stopped")
}
