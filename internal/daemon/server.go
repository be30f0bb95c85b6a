// Package daemon runs the bridge: the request/response server, the event
// listener, and the wiring between them and the dispatch core.
package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/ipc"
	"github.com/pars5555/tailbridge/internal/usecase"
)

// Server accepts request/response connections on a Unix stream socket and
// routes them through the dispatcher.
type Server struct {
	socketPath string
	version    string
	dispatcher *usecase.Dispatcher
	logger     *zap.Logger
	listener   net.Listener
	wg         sync.WaitGroup
}

// NewServer creates a request/response server.
func NewServer(socketPath, version string, dispatcher *usecase.Dispatcher, logger *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		version:    version,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start removes any stale socket and begins accepting connections.
func (s *Server) Start() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		os.Remove(s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}

	// Local control surface only.
	os.Chmod(s.socketPath, 0600)

	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	return nil
}

// Stop closes the listener, waits for in-flight requests, and removes the socket.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req ipc.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(ipc.Response{Error: "invalid request"})
			continue
		}

		encoder.Encode(s.handle(&req))
	}
}

func (s *Server) handle(req *ipc.Request) ipc.Response {
	switch req.Method {
	case ipc.MethodPing:
		return resultJSON(ipc.PingResult{Version: s.version, PID: os.Getpid()})

	case ipc.MethodQuery:
		table, err := s.dispatcher.Query(req.Arg)
		if err != nil {
			return ipc.Response{Error: err.Error()}
		}
		return resultJSON(ipc.TableResult{Columns: table.Columns, Rows: table.Rows})

	default:
		// Everything else is a dispatch method; the dispatcher itself
		// rejects unknown names.
		res := s.dispatcher.Dispatch(req.Method, req.Arg, req.Extras)
		return ipc.Response{OK: res.Succeeded, Error: res.Err}
	}
}

func resultJSON(v any) ipc.Response {
	data, err := json.Marshal(v)
	if err != nil {
		return ipc.Response{Error: err.Error()}
	}
	return ipc.Response{OK: true, Result: data}
}
