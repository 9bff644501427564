package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/nrfd/pkg/config"
	"github.com/dougsko/nrfd/pkg/engine"
	"github.com/dougsko/nrfd/pkg/firmware"
	_ "github.com/dougsko/nrfd/pkg/firmware/nrf"
	"github.com/dougsko/nrfd/pkg/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	version    = flag.Bool("version", false, "Show version information")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("nrfd version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !registered(cfg.Radio.Firmware) {
		log.Fatalf("Invalid configuration: unknown firmware %q (available: %v)", cfg.Radio.Firmware, firmware.Names())
	}

	// Initialize logging system
	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("nrfd version %s starting...", engine.Version))
	logging.Info("main", fmt.Sprintf("Radio: %s, device class %s, band %d channel %d",
		cfg.Radio.Model, cfg.DeviceClass(), cfg.Radio.Band, cfg.Radio.Channel))
	logging.Info("main", fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))

	daemon, err := NewDaemon(cfg)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "nrfd started successfully")

	exitCode := 0
	select {
	case <-sigChan:
		logging.Info("main", "Shutting down...")
	case <-daemon.Done():
		logging.Error("main", fmt.Sprintf("Engine stopped: %v", daemon.Err()))
		exitCode = 1
	}

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "nrfd stopped")
	if exitCode != 0 {
		logging.CloseGlobalLogger()
		os.Exit(exitCode)
	}
}

func registered(name string) bool {
	for _, n := range firmware.Names() {
		if n == name {
			return true
		}
	}
	return false
}
