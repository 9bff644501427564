// Package engine drives a firmware with PHY events and serves the unix
// socket control protocol.
//
// A single dispatcher goroutine owns the firmware. It calls OnStart once,
// then delivers queued events, regular ticks and requested irregular
// callbacks one at a time, and calls OnStop exactly once when the engine
// stops or a hook raises a firmware.ContractViolation.
package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dougsko/nrfd/pkg/channel"
	"github.com/dougsko/nrfd/pkg/chscan"
	"github.com/dougsko/nrfd/pkg/config"
	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/hardware"
	"github.com/dougsko/nrfd/pkg/logging"
	"github.com/dougsko/nrfd/pkg/phy"
	"github.com/dougsko/nrfd/pkg/plcf"
	"github.com/dougsko/nrfd/pkg/protocol"
	"github.com/dougsko/nrfd/pkg/rdc"
	"github.com/dougsko/nrfd/pkg/storage"
)

// Version is reported by STATUS.
const Version = "0.1.0-dev"

var (
	ErrNotRunning   = errors.New("engine not running")
	ErrQueueFull    = errors.New("event queue full")
	ErrUnknownEvent = errors.New("unknown event type")
)

// Radio is the hardware an engine drives.
type Radio interface {
	hardware.Controller
	hardware.Sampler
}

// History answers observation queries.
type History interface {
	GetObservations(query storage.ObservationQuery) ([]firmware.Observation, error)
}

// Options tunes an engine beyond its configuration.
type Options struct {
	// SocketPath overrides cfg.API.UnixSocket; empty disables the socket
	// when both are empty.
	SocketPath string
	// Logger defaults to the global logger.
	Logger *logging.Logger
	// History serves OBSERVATIONS; defaults to an in-memory ring.
	History History
}

// Engine runs one firmware instance.
type Engine struct {
	config      *config.Config
	deviceClass rdc.RadioDeviceClass
	center      channel.Carrier
	socketPath  string
	log         *logging.Logger

	radio    Radio
	firmware firmware.Firmware
	history  History
	recent   *ring

	events   chan interface{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	fwStop   sync.Once

	listener net.Listener

	mutex     sync.RWMutex
	running   bool
	started   bool
	startTime time.Time
	err       error

	observerMu sync.RWMutex
	observers  []firmware.Observer

	processed    uint64
	dropped      uint64
	observations uint64
}

// NewEngine validates cfg, constructs the configured firmware on radio and
// returns a stopped engine.
func NewEngine(cfg *config.Config, radio Radio, opts Options) (*Engine, error) {
	if radio == nil {
		return nil, fmt.Errorf("radio is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	acfn, err := channel.AbsoluteChannelFrequencyNumbering(cfg.Radio.Band)
	if err != nil {
		return nil, err
	}
	center, err := channel.CenterFrequency(acfn, cfg.Radio.Channel)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:      cfg,
		deviceClass: cfg.DeviceClass(),
		center:      center,
		socketPath:  opts.SocketPath,
		log:         opts.Logger,
		radio:       radio,
		recent:      newRing(recentCapacity),
		events:      make(chan interface{}, cfg.Engine.EventQueue),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if e.socketPath == "" {
		e.socketPath = cfg.API.UnixSocket
	}
	if e.log == nil {
		e.log = logging.GetGlobalLogger()
	}
	e.history = opts.History
	if e.history == nil {
		e.history = e.recent
	}

	fwCfg := firmware.Config{
		DeviceClass: e.deviceClass,
		Band:        cfg.Radio.Band,
		Channel:     cfg.Radio.Channel,
		TxPowerDBFS: float32(*cfg.Radio.TxPowerDBFS),
		RxPowerDBFS: float32(*cfg.Radio.RxPowerDBFS),
		Logger:      e.log,
		Observer:    firmware.ObserverFunc(e.observe),
	}
	fw, err := firmware.New(cfg.Radio.Firmware, fwCfg, radio)
	if err != nil {
		return nil, fmt.Errorf("failed to create firmware: %w", err)
	}
	e.firmware = fw

	return e, nil
}

// AddObserver forwards every future observation to o.
func (e *Engine) AddObserver(o firmware.Observer) {
	e.observerMu.Lock()
	defer e.observerMu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) observe(obs firmware.Observation) {
	atomic.AddUint64(&e.observations, 1)
	e.recent.add(obs)

	e.observerMu.RLock()
	observers := e.observers
	e.observerMu.RUnlock()

	for _, o := range observers {
		o.Observe(obs)
	}
}

// Start starts the dispatcher and, when a socket path is set, the unix
// socket server. An engine can be started once.
func (e *Engine) Start() error {
	e.mutex.Lock()
	if e.started {
		e.mutex.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.running = true
	e.startTime = time.Now()
	e.mutex.Unlock()

	if e.socketPath != "" {
		if err := e.listen(); err != nil {
			e.mutex.Lock()
			e.running = false
			e.mutex.Unlock()
			close(e.done)
			return err
		}
	}

	e.log.Info("engine", "engine started", map[string]interface{}{
		"firmware":     e.firmware.Name(),
		"device_class": e.deviceClass.Name,
		"fc_mhz":       e.center.FC / 1e6,
	})

	go e.dispatch()
	return nil
}

// Stop stops the dispatcher, waits for OnStop and closes the socket.
// It is safe to call more than once.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		close(e.stop)
	})

	e.mutex.RLock()
	started := e.started
	e.mutex.RUnlock()
	if started {
		<-e.done
	}

	if e.listener != nil {
		e.listener.Close()
		os.Remove(e.socketPath)
	}
	return nil
}

// Done is closed once the dispatcher has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns the contract violation that stopped the engine, if any.
func (e *Engine) Err() error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.err
}

func (e *Engine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// Submit queues a PHY event for the firmware without blocking. Accepted
// events are phy.ControlChannelEvent, phy.DataChannelEvent,
// phy.ApplicationEvent and phy.ChannelScan.
func (e *Engine) Submit(event interface{}) error {
	switch event.(type) {
	case phy.ControlChannelEvent, phy.DataChannelEvent, phy.ApplicationEvent, phy.ChannelScan:
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}

	if !e.isRunning() {
		return ErrNotRunning
	}

	select {
	case e.events <- event:
		return nil
	default:
		atomic.AddUint64(&e.dropped, 1)
		return ErrQueueFull
	}
}

// InjectPCC decodes raw PLCF headers and submits them as one received
// packet. Either header may be nil.
func (e *Engine) InjectPCC(type1, type2 []byte) error {
	if type1 == nil && type2 == nil {
		return fmt.Errorf("no PLCF given")
	}

	d := &plcf.Decoder{}
	if type1 != nil {
		if err := d.Decode(plcf.Type1, type1); err != nil {
			return fmt.Errorf("type 1 PLCF: %w", err)
		}
	}
	if type2 != nil {
		if err := d.Decode(plcf.Type2, type2); err != nil {
			return fmt.Errorf("type 2 PLCF: %w", err)
		}
	}

	return e.Submit(phy.ControlChannelEvent{
		Sync: phy.SyncReport{FinePeakTime: now()},
		PCC:  phy.PCCReport{Decoder: d},
	})
}

// ScanChannel measures the tuned channel and hands the result to the
// firmware.
func (e *Engine) ScanChannel() (phy.ChannelScan, error) {
	bandwidth := float64(e.deviceClass.BMin * 64 * e.deviceClass.SubcarrierSpacing())
	if sr := e.radio.SampleRate(); bandwidth <= 0 || bandwidth > sr {
		bandwidth = sr
	}

	scan, err := chscan.Scan(e.radio, e.config.Engine.ScanSamples, chscan.Params{
		Frequency: e.center.FC,
		Bandwidth: bandwidth,
		Threshold: e.config.Engine.BusyThreshold,
	})
	if err != nil {
		return phy.ChannelScan{}, err
	}

	if err := e.Submit(scan); err != nil {
		return scan, err
	}
	return scan, nil
}

// Observations returns recent observations, newest first.
func (e *Engine) Observations(query storage.ObservationQuery) ([]firmware.Observation, error) {
	return e.history.GetObservations(query)
}

// DeviceClass returns the configured radio device class.
func (e *Engine) DeviceClass() rdc.RadioDeviceClass {
	return e.deviceClass
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() protocol.Status {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	status := protocol.Status{
		Firmware:        e.firmware.Name(),
		DeviceClass:     e.deviceClass.Name,
		Band:            e.config.Radio.Band,
		Channel:         e.config.Radio.Channel,
		Frequency:       e.center.FC,
		Running:         e.running,
		StartTime:       e.startTime,
		Version:         Version,
		EventsProcessed: atomic.LoadUint64(&e.processed),
		EventsDropped:   atomic.LoadUint64(&e.dropped),
		Observations:    atomic.LoadUint64(&e.observations),
	}
	if !e.startTime.IsZero() {
		status.Uptime = time.Since(e.startTime).Truncate(time.Second).String()
	}
	if e.err != nil {
		status.Error = e.err.Error()
	}
	return status
}

// dispatch is the only goroutine that calls into the firmware.
func (e *Engine) dispatch() {
	defer close(e.done)
	defer e.stopFirmware()
	defer e.recoverViolation()

	irregular := time.NewTimer(time.Hour)
	irregular.Stop()
	defer irregular.Stop()

	schedule := func(r phy.IrregularReport) {
		if !r.Scheduled() {
			return
		}
		delay := time.Duration(r.CallAt - now())
		if delay < 0 {
			delay = 0
		}
		if !irregular.Stop() {
			select {
			case <-irregular.C:
			default:
			}
		}
		irregular.Reset(delay)
	}

	schedule(e.firmware.OnStart(now()))

	ticker := time.NewTicker(e.config.Engine.RegularInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return

		case <-ticker.C:
			e.handleHigh(e.firmware.OnRegular(phy.RegularReport{Time: now()}), schedule)

		case <-irregular.C:
			e.handleHigh(e.firmware.OnIrregular(phy.IrregularReport{CallAt: now()}), schedule)

		case event := <-e.events:
			e.deliver(event, schedule)
			atomic.AddUint64(&e.processed, 1)
		}
	}
}

func (e *Engine) deliver(event interface{}, schedule func(phy.IrregularReport)) {
	switch ev := event.(type) {
	case phy.ControlChannelEvent:
		e.firmware.OnControlChannel(ev)
	case phy.DataChannelEvent:
		if ev.CRCError {
			e.handleHigh(e.firmware.OnDataChannelError(ev), schedule)
		} else {
			e.handleHigh(e.firmware.OnDataChannel(ev), schedule)
		}
	case phy.ApplicationEvent:
		e.handleHigh(e.firmware.OnApplicationEvent(ev), schedule)
	case phy.ChannelScan:
		resp := e.firmware.OnChannelScan(ev)
		e.logTx(resp.Tx)
	}
}

func (e *Engine) handleHigh(resp phy.MacHighResponse, schedule func(phy.IrregularReport)) {
	e.logTx(resp.Tx)
	schedule(resp.Irregular)
}

// logTx reports transmissions the firmware asked for; the radio is driven
// receive-only.
func (e *Engine) logTx(tx []phy.TxDescriptor) {
	for _, d := range tx {
		e.log.Debugf("engine", "dropping TX request: header type %d, %d byte payload at %d",
			d.HeaderType, len(d.Payload), d.Start)
	}
}

func (e *Engine) recoverViolation() {
	r := recover()
	if r == nil {
		return
	}

	cv, ok := r.(*firmware.ContractViolation)
	if !ok {
		panic(r)
	}

	e.log.Error("engine", "firmware stopped", map[string]interface{}{
		"firmware": cv.Firmware,
		"error":    cv.Detail,
	})

	e.mutex.Lock()
	e.err = cv
	e.mutex.Unlock()
}

func (e *Engine) stopFirmware() {
	e.mutex.Lock()
	e.running = false
	e.mutex.Unlock()

	e.fwStop.Do(e.firmware.OnStop)
}

func (e *Engine) listen() error {
	// Remove existing socket file
	os.Remove(e.socketPath)

	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	e.listener = listener

	if err := os.Chmod(e.socketPath, 0660); err != nil {
		e.log.Warnf("engine", "failed to set socket permissions: %v", err)
	}

	e.log.Infof("engine", "listening on %s", e.socketPath)
	go e.acceptConnections()
	return nil
}

// acceptConnections accepts and handles socket connections
func (e *Engine) acceptConnections() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			e.log.Warnf("engine", "socket accept error: %v", err)
			continue
		}

		go e.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection
func (e *Engine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.HandleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand processes a single command
func (e *Engine) HandleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"status": e.Status(),
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdPCC:
		return e.handlePCC(cmd)

	case protocol.CmdObservations:
		return e.handleObservations(cmd)

	case protocol.CmdDeviceClass:
		return e.handleDeviceClass(cmd)

	case protocol.CmdScan:
		scan, err := e.ScanChannel()
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"scan": scan,
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (e *Engine) handlePCC(cmd *protocol.Command) *protocol.Response {
	type1, _ := cmd.Args["type1"].([]byte)
	type2, _ := cmd.Args["type2"].([]byte)

	if err := e.InjectPCC(type1, type2); err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"status": "queued",
	})
}

func (e *Engine) handleObservations(cmd *protocol.Command) *protocol.Response {
	query := storage.ObservationQuery{Limit: defaultObservationLimit}

	if s, ok := cmd.Args["limit"].(string); ok {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid limit: %s", s))
		}
		query.Limit = limit
	}
	if s, ok := cmd.Args["since"].(string); ok {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid since: %s", s))
		}
		since := time.Unix(secs, 0)
		query.Since = &since
		query.Limit = 0
	}

	observations, err := e.Observations(query)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	if observations == nil {
		observations = []firmware.Observation{}
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"observations": observations,
		"count":        len(observations),
	})
}

func (e *Engine) handleDeviceClass(cmd *protocol.Command) *protocol.Response {
	dc := e.deviceClass
	if name, ok := cmd.Args["name"].(string); ok {
		var err error
		if dc, err = rdc.Resolve(name); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"device_class":       dc,
		"subcarrier_spacing": dc.SubcarrierSpacing(),
		"catalog":            rdc.Names(),
	})
}

func now() int64 {
	return time.Now().UnixNano()
}
