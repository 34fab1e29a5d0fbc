// ABOUTME: Entry point for the blockq player
// ABOUTME: Parses CLI flags and config, discovers a server and runs the player
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/blockq/internal/config"
	"github.com/Resonate-Protocol/blockq/internal/discovery"
	"github.com/Resonate-Protocol/blockq/internal/ui"
	"github.com/Resonate-Protocol/blockq/internal/version"
	"github.com/Resonate-Protocol/blockq/pkg/stream"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	configFile  = flag.String("config", "", "YAML config file")
	serverAddr  = flag.String("server", "", "Manual server address (skip mDNS)")
	name        = flag.String("name", "", "Player friendly name (default: hostname-blockq-player)")
	targetMs    = flag.Int("target-ms", 0, "Target queue length in milliseconds")
	prebufMs    = flag.Int("prebuf-ms", 0, "Prebuffer level in milliseconds (-1 for target minus min request)")
	metricsAddr = flag.String("metrics-addr", "", "Serve queue metrics on this address")
	logFile     = flag.String("log-file", "blockq-player.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug       = flag.Bool("debug", false, "Enable queue debug logging")
	printConfig = flag.Bool("print-config", false, "Print the effective configuration and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s player %s\n", version.Product, version.Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *printConfig {
		data, err := cfg.YAML()
		if err != nil {
			log.Fatalf("Failed to render config: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := cfg.Player.Name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-blockq-player", hostname)
	}
	log.Printf("Starting %s player %s: %s", version.Product, version.Version, playerName)

	serverAddress := cfg.Player.Server
	if serverAddress == "" {
		log.Printf("Starting server discovery...")
		server, err := discovery.Discover(context.Background(), cfg.Player.Discovery)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		serverAddress = server.Addr()
		log.Printf("Discovered %s at %s (%s)", server.Name, serverAddress, server.Format)
	}

	// TUI setup
	var (
		tuiProg  *tea.Program
		controls *ui.Controls
	)
	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	playerConfig := stream.PlayerConfig{
		ServerAddr: serverAddress,
		Name:       playerName,
		Buffer:     cfg.Player.Buffer.Attr(),
		Formats:    cfg.Player.Formats(),
		Period:     cfg.Player.Period,
		Volume:     cfg.Player.Volume,
		Debug:      cfg.Debug,
		OnStatus: func(s stream.Status) {
			if tuiProg != nil {
				tuiProg.Send(ui.StatusMsg{Status: s})
			}
		},
	}

	if cfg.Player.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		playerConfig.Registerer = reg
		go serveMetrics(cfg.Player.MetricsAddr, reg)
	}

	player, err := stream.NewPlayer(playerConfig)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}
	if err := player.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}

	if controls != nil {
		go handleControls(player, controls)
		go runtimeStatsLoop(tuiProg)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan ui.QuitMsg
	if controls != nil {
		quit = controls.Quit
	}

	select {
	case <-quit:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-player.Done():
		log.Printf("Player stopped by server")
	}

	if err := player.Close(); err != nil {
		log.Printf("Error closing player: %v", err)
	}
	if tuiProg != nil {
		tuiProg.Quit()
	}

	log.Printf("Player stopped")
}

// loadConfig reads the config file, then lets explicitly set flags win
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Player.Server = *serverAddr
		case "name":
			cfg.Player.Name = *name
		case "target-ms":
			cfg.Player.Buffer.TargetMs = *targetMs
		case "prebuf-ms":
			cfg.Player.Buffer.PrebufMs = *prebufMs
		case "metrics-addr":
			cfg.Player.MetricsAddr = *metricsAddr
		case "log-file":
			cfg.LogFile = *logFile
		case "debug":
			cfg.Debug = *debug
		}
	})
	if cfg.LogFile == "" {
		cfg.LogFile = *logFile
	}

	return cfg, cfg.Validate()
}

// serveMetrics exposes the player's queue metrics
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Printf("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server error: %v", err)
	}
}

// handleControls applies TUI input to the player
func handleControls(player *stream.Player, controls *ui.Controls) {
	for {
		select {
		case vol := <-controls.Changes:
			log.Printf("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			if err := player.SetVolume(vol.Volume); err != nil {
				log.Printf("Failed to set volume: %v", err)
			}
			if err := player.Mute(vol.Muted); err != nil {
				log.Printf("Failed to set mute: %v", err)
			}
		case d := <-controls.Rewind:
			log.Printf("Rewinding %v", d)
			if err := player.Rewind(d); err != nil {
				log.Printf("Failed to rewind: %v", err)
			}
		case target := <-controls.Target:
			if err := player.SetTarget(target); err != nil {
				log.Printf("Failed to set target: %v", err)
			}
		case <-player.Done():
			return
		}
	}
}

// runtimeStatsLoop feeds process statistics to the TUI debug view
func runtimeStatsLoop(prog *tea.Program) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		prog.Send(ui.RuntimeMsg{
			Goroutines: runtime.NumGoroutine(),
			MemAlloc:   m.Alloc,
		})
	}
}
