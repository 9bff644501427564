package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/nrfd/pkg/client"
	"github.com/dougsko/nrfd/pkg/config"
	"github.com/dougsko/nrfd/pkg/engine"
	"github.com/dougsko/nrfd/pkg/hardware"
	"github.com/dougsko/nrfd/pkg/logging"
	"github.com/dougsko/nrfd/pkg/storage"
)

// Daemon wires the engine to its radio, storage and web front end
type Daemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	engine       *engine.Engine
	radio        *hardware.MockRadio
	store        *storage.ObservationStore
	hub          *observationHub
	socketClient *client.SocketClient
	router       *gin.Engine
	webServer    *http.Server

	socketPath string
}

// NewDaemon creates a new daemon instance
func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if cfg.Radio.Model != "mock" {
		return nil, fmt.Errorf("unsupported radio model %q", cfg.Radio.Model)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		socketPath: cfg.API.UnixSocket,
		hub:        newObservationHub(),
		radio: hardware.NewMockRadio(hardware.RadioConfig{
			Model:          cfg.Radio.Model,
			SampleRate:     cfg.Radio.SampleRate,
			NoiseFloorDBFS: cfg.Radio.NoiseFloorDBFS,
		}),
	}
	d.socketClient = client.NewSocketClient(d.socketPath)

	opts := engine.Options{SocketPath: d.socketPath}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewObservationStore(cfg.Storage.DatabasePath, cfg.Storage.MaxObservations)
		if err != nil {
			cancel()
			return nil, err
		}
		d.store = store
		opts.History = store
	}

	e, err := engine.NewEngine(cfg, d.radio, opts)
	if err != nil {
		d.closeStore()
		cancel()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	d.engine = e

	if d.store != nil {
		e.AddObserver(d.store)
	}
	e.AddObserver(d.hub)

	if err := d.setupWebServer(); err != nil {
		d.closeStore()
		cancel()
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}

	return d, nil
}

// Start starts the daemon
func (d *Daemon) Start() error {
	logging.Info("daemon", "Starting nrfd daemon...")

	if err := d.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		d.engine.Stop()
		return fmt.Errorf("failed to connect to engine socket")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("daemon", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("daemon", "Web server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	logging.Info("daemon", "Stopping daemon...")

	d.cancel()
	d.hub.Stop()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("daemon", "Web server shutdown error: %v", err)
		}
	}

	if err := d.engine.Stop(); err != nil {
		logging.Warnf("daemon", "Engine shutdown error: %v", err)
	}

	d.wg.Wait()
	d.closeStore()

	logging.Info("daemon", "Daemon stopped")
	return nil
}

// Done is closed when the engine's dispatcher has returned
func (d *Daemon) Done() <-chan struct{} {
	return d.engine.Done()
}

// Err reports why the engine stopped on its own
func (d *Daemon) Err() error {
	return d.engine.Err()
}

func (d *Daemon) closeStore() {
	if d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		logging.Warnf("daemon", "Observation store close error: %v", err)
	}
}

// setupWebServer initializes the web server and routes
func (d *Daemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/deviceclasses", d.handleGetDeviceClasses)
		api.GET("/deviceclasses/:name", d.handleGetDeviceClass)
		api.GET("/observations", d.handleGetObservations)
		api.POST("/observations/cleanup", d.handleCleanupObservations)
		api.GET("/transmitters", d.handleGetTransmitters)
		api.GET("/stats", d.handleGetObservationStats)
		api.POST("/pcc", d.handleInjectPCC)
		api.POST("/scan", d.handleScan)
	}
	router.GET("/ws/observations", d.handleObservationWebSocket)

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}

	return nil
}
