// ABOUTME: Entry point for the blockq stream server
// ABOUTME: Parses CLI flags and config, opens the audio source and serves players
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

	"github.com/Resonate-Protocol/blockq/internal/config"
	"github.com/Resonate-Protocol/blockq/internal/version"
	"github.com/Resonate-Protocol/blockq/pkg/stream"
)

var (
	configFile = flag.String("config", "", "YAML config file")
	port       = flag.Int("port", stream.DefaultPort, "WebSocket server port")
	name       = flag.String("name", "", "Server friendly name (default: hostname-blockq-server)")
	logFile    = flag.String("log-file", "blockq-server.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	audioFile  = flag.String("audio", "", "Audio file to stream (MP3, FLAC). If not specified, plays test tone")
	noLoop     = flag.Bool("no-loop", false, "End the stream when the audio file ends")
	skipStep   = flag.Duration("skip", time.Second, "Silence inserted on SIGUSR2")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Set up logging (both file and console)
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := cfg.Server.Name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-blockq-server", hostname)
	}

	log.Printf("Starting %s server %s: %s on port %d", version.Product, version.Version, serverName, cfg.Server.Port)
	if cfg.Debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", cfg.LogFile)
	log.Printf("Press Ctrl-C to stop, SIGUSR1 to flush players, SIGUSR2 to skip %v", *skipStep)

	source, err := openSource(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to open audio source: %v", err)
	}

	srv, err := stream.NewServer(stream.ServerConfig{
		Port:       cfg.Server.Port,
		Name:       serverName,
		Source:     source,
		EnableMDNS: cfg.Server.MDNS,
		Debug:      cfg.Debug,
	})
	if err != nil {
		source.Close()
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGUSR1:
				log.Printf("Flushing players")
				srv.Flush("signal")
			case syscall.SIGUSR2:
				log.Printf("Skipping %v", *skipStep)
				srv.Skip(*skipStep)
			default:
				log.Printf("Received %v signal, shutting down gracefully...", sig)
				srv.Stop()
				return
			}
		}
	}()

	if cfg.Debug {
		go logClients(srv)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}

// loadConfig reads the config file, then lets explicitly set flags win
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "name":
			cfg.Server.Name = *name
		case "log-file":
			cfg.LogFile = *logFile
		case "debug":
			cfg.Debug = *debug
		case "no-mdns":
			cfg.Server.MDNS = !*noMDNS
		case "audio":
			cfg.Server.Audio = *audioFile
		case "no-loop":
			cfg.Server.Loop = !*noLoop
		}
	})
	if cfg.LogFile == "" {
		cfg.LogFile = *logFile
	}

	return cfg, cfg.Validate()
}

// openSource opens the configured file, or a test tone when none is set
func openSource(cfg config.ServerConfig) (stream.AudioSource, error) {
	if cfg.Audio == "" {
		return stream.NewTestTone(stream.DefaultSampleRate, stream.DefaultChannels), nil
	}
	source, err := stream.NewFileSource(cfg.Audio, cfg.Loop)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// logClients periodically logs each player's position and credit
func logClients(srv *stream.Server) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		for _, c := range srv.Clients() {
			log.Printf("Client %s: %s offset=%d credit=%d state=%s queue=%d underruns=%d",
				c.Name, c.Format, c.Offset, c.Credit, c.State.State, c.State.QueueLength, c.State.Underruns)
		}
	}
}
