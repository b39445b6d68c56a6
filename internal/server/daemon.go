package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/clipdot/clipd/internal/clipboard"
	"github.com/clipdot/clipd/internal/config"
	"github.com/clipdot/clipd/internal/ipc"
	"github.com/clipdot/clipd/internal/storage"
	"github.com/clipdot/clipd/internal/types"
)

// ErrAlreadyRunning is returned by New when another instance owns the
// command endpoint. The live instance has already been pinged awake;
// the caller should exit cleanly.
var ErrAlreadyRunning = errors.New("another instance is already running")

// SystemClipboard is the collaborator that owns the OS clipboard. The
// daemon calls Set whenever row 0 of the history changes so the system
// selection tracks the front item.
type SystemClipboard interface {
	Set(*types.Bundle) error
}

// NopClipboard discards clipboard updates; used headless and in tests.
type NopClipboard struct{}

// Set implements SystemClipboard.
func (NopClipboard) Set(*types.Bundle) error { return nil }

// Daemon owns the history, its persistence, and the two listening
// endpoints. Connection read loops run on their own goroutines and
// forward work to a single mutator goroutine, so the history itself is
// only ever touched from one goroutine.
type Daemon struct {
	cfg     *config.Config
	logger  *zap.Logger
	history *clipboard.History
	store   *storage.BoltStore
	system  SystemClipboard

	cmdPath string
	monPath string
	cmdLn   net.Listener
	monLn   net.Listener

	apply chan func()
	done  chan struct{}
	wg    sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	frontChanged bool // set by the history observer, read by the apply loop
}

// New binds both endpoints, opens the snapshot store and restores the
// persisted history. ErrAlreadyRunning means another instance owns the
// command endpoint (or won the bind race, which is indistinguishable
// and treated the same).
func New(cfg *config.Config, logger *zap.Logger, system SystemClipboard) (*Daemon, error) {
	if system == nil {
		system = NopClipboard{}
	}

	cmdPath := ipc.SocketPath(cfg.SystemPaths.SocketDir, ipc.CommandServerBase)
	cmdLn, bound := ipc.BindOrDetectExisting(cmdPath, cfg.ConnectTimeout())
	if !bound {
		return nil, ErrAlreadyRunning
	}

	monPath := ipc.SocketPath(cfg.SystemPaths.SocketDir, ipc.MonitorServerBase)
	monLn, bound := ipc.BindOrDetectExisting(monPath, cfg.ConnectTimeout())
	if !bound {
		cmdLn.Close()
		os.Remove(cmdPath)
		return nil, ErrAlreadyRunning
	}

	store, err := storage.NewBoltStore(storage.StoreConfig{
		DBPath: cfg.SystemPaths.DBFile,
		Logger: logger,
	})
	if err != nil {
		cmdLn.Close()
		monLn.Close()
		os.Remove(cmdPath)
		os.Remove(monPath)
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	history := clipboard.NewHistory(cfg.History.MaxItems, cfg.History.FormatsToHash)
	if err := store.LoadHistory(history); err != nil {
		logger.Warn("Failed to restore history snapshot", zap.Error(err))
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		history: history,
		store:   store,
		system:  system,
		cmdPath: cmdPath,
		monPath: monPath,
		cmdLn:   cmdLn,
		monLn:   monLn,
		apply:   make(chan func()),
		done:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
	history.Subscribe(d.onHistoryEvent)
	return d, nil
}

// onHistoryEvent runs on the mutator goroutine (observers are
// synchronous) and records whether row 0 changed.
func (d *Daemon) onHistoryEvent(ev clipboard.Event) {
	switch ev.Kind {
	case clipboard.EventInserted, clipboard.EventRemoved:
		if ev.From == 0 {
			d.frontChanged = true
		}
	case clipboard.EventMoved:
		if ev.From == 0 || ev.To == 0 {
			d.frontChanged = true
		}
	case clipboard.EventDataChanged:
		if ev.Row == 0 {
			d.frontChanged = true
		}
	}
}

// Start launches the accept loops and the mutator goroutine.
func (d *Daemon) Start() {
	d.logger.Info("Daemon started",
		zap.String("command_endpoint", d.cmdPath),
		zap.String("monitor_endpoint", d.monPath),
		zap.Int("history_items", d.history.Len()))

	d.wg.Add(3)
	go d.mutatorLoop()
	go d.acceptLoop(d.cmdLn, d.handleCommandConn)
	go d.acceptLoop(d.monLn, d.handleMonitorConn)
}

// Stop shuts down the listeners, drains the mutator, persists the
// history and removes the socket files.
func (d *Daemon) Stop() {
	close(d.done)
	d.cmdLn.Close()
	d.monLn.Close()
	d.connsMu.Lock()
	for conn := range d.conns {
		conn.Close()
	}
	d.connsMu.Unlock()
	d.wg.Wait()

	if err := d.store.SaveHistory(d.history); err != nil {
		d.logger.Error("Failed to save history on shutdown", zap.Error(err))
	}
	if err := d.store.Close(); err != nil {
		d.logger.Error("Failed to close snapshot store", zap.Error(err))
	}
	os.Remove(d.cmdPath)
	os.Remove(d.monPath)
	d.logger.Info("Daemon stopped")
}

// mutatorLoop is the single goroutine allowed to touch the history.
func (d *Daemon) mutatorLoop() {
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.apply:
			fn()
			d.refreshSystemClipboard()
		case <-d.done:
			return
		}
	}
}

func (d *Daemon) refreshSystemClipboard() {
	if !d.frontChanged {
		return
	}
	d.frontChanged = false
	front := d.history.BundleAt(0)
	if front == nil {
		return
	}
	if err := d.system.Set(front); err != nil {
		d.logger.Error("Failed to update system clipboard", zap.Error(err))
	}
}

// do runs fn on the mutator goroutine and waits for it to finish.
func (d *Daemon) do(fn func()) {
	ran := make(chan struct{})
	select {
	case d.apply <- func() { fn(); close(ran) }:
		<-ran
	case <-d.done:
	}
}

func (d *Daemon) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	defer d.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-d.done:
				return
			default:
				d.logger.Warn("Accept failed", zap.Error(err))
				continue
			}
		}
		d.connsMu.Lock()
		d.conns[conn] = struct{}{}
		d.connsMu.Unlock()

		// a connection accepted while Stop runs would miss its close sweep
		select {
		case <-d.done:
			conn.Close()
		default:
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() {
				conn.Close()
				d.connsMu.Lock()
				delete(d.conns, conn)
				d.connsMu.Unlock()
			}()
			handle(conn)
		}()
	}
}

// handleMonitorConn consumes clipboard snapshots from the monitor
// channel. Each frame is one serialized bundle; a zero-length frame is
// a wake ping. Any read failure is channel-fatal.
func (d *Daemon) handleMonitorConn(conn net.Conn) {
	for {
		payload, ok := ipc.ReadFrame(conn, d.cfg.ReadPoll())
		if !ok {
			return
		}
		if len(payload) == 0 {
			continue
		}

		bundle, err := types.DeserializeBundle(payload)
		if err != nil {
			d.logger.Warn("Malformed clipboard snapshot", zap.Error(err))
			return
		}
		// Drop transient formats before the bundle enters the history.
		snapshot := clipboard.CloneBundle(bundle, nil)
		if snapshot.Len() == 0 {
			continue
		}

		d.do(func() {
			if d.history.InsertFront(snapshot, false) {
				d.persist()
			}
		})
	}
}

// handleCommandConn answers framed JSON requests on the command
// channel. A zero-length frame is the wake ping sent by a second
// instance during startup detection; it gets no reply.
func (d *Daemon) handleCommandConn(conn net.Conn) {
	for {
		payload, ok := ipc.ReadFrame(conn, d.cfg.ReadPoll())
		if !ok {
			return
		}
		if len(payload) == 0 {
			continue
		}

		var req ipc.Request
		var resp *ipc.Response
		if err := json.Unmarshal(payload, &req); err != nil {
			resp = ipc.Error("invalid request: " + err.Error())
		} else {
			resp = d.dispatch(&req)
		}

		out, err := json.Marshal(resp)
		if err != nil {
			d.logger.Error("Failed to encode response", zap.Error(err))
			return
		}
		if err := ipc.WriteMessage(conn, out); err != nil {
			return
		}
	}
}

// dispatch runs one command against the history on the mutator
// goroutine and builds the response.
func (d *Daemon) dispatch(req *ipc.Request) *ipc.Response {
	var resp *ipc.Response
	d.do(func() {
		resp = d.handle(req)
	})
	if resp == nil {
		return ipc.Error("daemon is shutting down")
	}
	return resp
}

func (d *Daemon) handle(req *ipc.Request) *ipc.Response {
	switch req.Command {
	case "ping":
		return ipc.Ok()

	case "history":
		limit := intArg(req.Args, "limit")
		n := d.history.Len()
		if limit > 0 && limit < n {
			n = limit
		}
		bundles := make([]*types.Bundle, 0, n)
		for i := 0; i < n; i++ {
			bundles = append(bundles, d.history.BundleAt(i))
		}
		return ipc.OkData(bundles)

	case "copy":
		bundle, err := bundleArg(req.Args, "bundle")
		if err != nil {
			return ipc.Error(err.Error())
		}
		inserted := d.history.InsertFront(bundle, boolArg(req.Args, "force"))
		if inserted {
			d.persist()
		}
		return ipc.OkData(map[string]bool{"inserted": inserted})

	case "paste":
		row := intArg(req.Args, "row")
		if !d.history.MoveToFront(row) {
			return ipc.Error(fmt.Sprintf("row %d out of range", row))
		}
		d.persist()
		return ipc.OkData(d.history.BundleAt(0))

	case "clear":
		d.history.Clear()
		d.persist()
		return ipc.Ok()

	default:
		return ipc.Error("unknown command: " + req.Command)
	}
}

// persist runs on the mutator goroutine after a state change.
func (d *Daemon) persist() {
	if err := d.store.SaveHistory(d.history); err != nil {
		d.logger.Error("Failed to save history snapshot", zap.Error(err))
	}
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64: // JSON numbers decode as float64
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolArg(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func bundleArg(args map[string]interface{}, key string) (*types.Bundle, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing %q argument", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", key, err)
	}
	bundle := types.NewBundle()
	if err := json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", key, err)
	}
	if bundle.Len() == 0 {
		return nil, fmt.Errorf("empty bundle")
	}
	return bundle, nil
}
