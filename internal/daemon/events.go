package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/ipc"
	"github.com/pars5555/tailbridge/internal/usecase"
)

const maxEventSize = 64 * 1024

// EventListener receives fire-and-forget events on a unixgram socket and
// hands them to the dispatcher. Nothing is ever written back: malformed
// datagrams are dropped with a log entry.
type EventListener struct {
	socketPath string
	dispatcher *usecase.Dispatcher
	logger     *zap.Logger
	conn       net.PacketConn
	wg         sync.WaitGroup
}

// NewEventListener creates an event listener.
func NewEventListener(socketPath string, dispatcher *usecase.Dispatcher, logger *zap.Logger) *EventListener {
	return &EventListener{
		socketPath: socketPath,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start removes any stale socket and begins reading datagrams.
func (l *EventListener) Start() error {
	if _, err := os.Stat(l.socketPath); err == nil {
		os.Remove(l.socketPath)
	}

	conn, err := net.ListenPacket("unixgram", l.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.socketPath, err)
	}

	os.Chmod(l.socketPath, 0600)
	l.conn = conn

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.readLoop()
	}()

	return nil
}

// Stop closes the socket and waits for the read loop to exit.
func (l *EventListener) Stop() {
	if l.conn != nil {
		l.conn.Close()
	}
	l.wg.Wait()
	os.Remove(l.socketPath)
}

func (l *EventListener) readLoop() {
	buf := make([]byte, maxEventSize)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			return // socket closed
		}

		var ev ipc.Event
		if err := json.Unmarshal(buf[:n], &ev); err != nil {
			l.logger.Warn("dropping malformed event datagram", zap.Error(err))
			continue
		}

		l.dispatcher.Deliver(ev.Event, ev.Extras)
	}
}
