package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/engine"
	"github.com/pars5555/tailbridge/internal/infra"
	"github.com/pars5555/tailbridge/internal/usecase"
)

// Config holds bridge daemon configuration.
type Config struct {
	StateDir        string        // deny-list database, key file, logs
	SocketPath      string        // request/response stream socket
	EventSocketPath string        // fire-and-forget datagram socket
	ClientBin       string        // VPN client binary driven by the controller
	Workers         int           // job queue worker pool size
	PollInterval    time.Duration // engine state refresh interval
	Version         string
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	stateDir := infra.DefaultStateDir()
	return Config{
		StateDir:        stateDir,
		SocketPath:      filepath.Join(stateDir, "bridge.sock"),
		EventSocketPath: filepath.Join(stateDir, "events.sock"),
		ClientBin:       "tailscale",
		Workers:         4,
		PollInterval:    10 * time.Second,
	}
}

// Bridge owns every component of the running daemon.
type Bridge struct {
	config     Config
	store      *infra.DenyListStore
	queue      *usecase.JobQueueImpl
	controller *engine.CLIController
	server     *Server
	events     *EventListener
	logger     *zap.Logger
}

// NewBridge wires up the full daemon: store, engine glue, job queue,
// dispatcher, and both inbound channels. Nothing is listening yet; call Run.
func NewBridge(config Config, logger *zap.Logger) (*Bridge, error) {
	keys := infra.NewFileKeyProvider(config.StateDir)
	key, err := keys.EnsureKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load store key: %w", err)
	}

	store, err := infra.NewDenyListStore(config.StateDir, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open deny-list store: %w", err)
	}

	state := engine.NewState()
	controller := engine.NewCLIController(config.ClientBin, state, logger)
	packages := infra.NewPackageRegistry()

	queue := usecase.NewJobQueue(config.Workers, store, packages, controller, logger)
	snapshot := usecase.NewSnapshotReader(state)
	sink := infra.NewZapDiagnosticSink(logger)
	dispatcher := usecase.NewDispatcher(store, queue, snapshot, sink, logger)

	return &Bridge{
		config:     config,
		store:      store,
		queue:      queue,
		controller: controller,
		server:     NewServer(config.SocketPath, config.Version, dispatcher, logger),
		events:     NewEventListener(config.EventSocketPath, dispatcher, logger),
		logger:     logger,
	}, nil
}

// Run starts both channels and the engine state poller, then blocks until
// the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.server.Start(); err != nil {
		return err
	}
	if err := b.events.Start(); err != nil {
		b.server.Stop()
		return err
	}

	go b.controller.Poll(ctx, b.config.PollInterval)

	b.logger.Info("bridge started",
		zap.String("socket", b.config.SocketPath),
		zap.String("event_socket", b.config.EventSocketPath),
		zap.String("client", b.config.ClientBin))

	<-ctx.Done()
	b.logger.Info("bridge shutting down")

	b.events.Stop()
	b.server.Stop()
	b.queue.Close()
	if err := b.store.Close(); err != nil {
		b.logger.Warn("failed to close deny-list store", zap.Error(err))
	}
	return nil
}
