// Package ipc defines the bridge IPC protocol over Unix sockets.
//
// The request/response channel is newline-delimited JSON on a stream
// socket. The event channel is one JSON document per datagram on a
// unixgram socket, with no response path at all.
package ipc

import "encoding/json"

// Control methods understood by the server in addition to the dispatch
// methods themselves.
const (
	MethodPing  = "ping"
	MethodQuery = "query"
)

// Request is sent from client to server on the request/response socket.
// Method is either a control method above or a dispatch method name
// (connect_vpn, disconnect_vpn, use_exit_node, disallow_app, allow_app).
type Request struct {
	Method string                 `json:"method"`
	Arg    string                 `json:"arg,omitempty"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// Response is sent from server to client. OK mirrors CommandResult
// semantics: true means the command was accepted, not that it has been
// applied.
type Response struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Event is one fire-and-forget datagram on the event socket.
type Event struct {
	Event  string                 `json:"event"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// PingResult is the response payload for the ping method.
type PingResult struct {
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

// TableResult is the response payload for the query method.
type TableResult struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}
