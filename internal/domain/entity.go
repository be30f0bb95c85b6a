// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

// CommandKind identifies one variant of the closed command set.
type CommandKind int

const (
	CmdConnectVPN CommandKind = iota
	CmdDisconnectVPN
	CmdUseExitNode
	CmdDisallowApp
	CmdAllowApp
	CmdQueryExitNode
	CmdQueryDisallowedApps
)

// String returns the request/response method name for the kind.
func (k CommandKind) String() string {
	switch k {
	case CmdConnectVPN:
		return "connect_vpn"
	case CmdDisconnectVPN:
		return "disconnect_vpn"
	case CmdUseExitNode:
		return "use_exit_node"
	case CmdDisallowApp:
		return "disallow_app"
	case CmdAllowApp:
		return "allow_app"
	case CmdQueryExitNode:
		return "query_exit_node"
	case CmdQueryDisallowedApps:
		return "query_disallowed_apps"
	}
	return "unknown"
}

// Command is the canonical internal representation of a request, regardless
// of which delivery channel it arrived on. Exactly one variant is populated.
type Command struct {
	Kind CommandKind

	// UseExitNode fields. Empty NodeID means "clear the current selection".
	NodeID         string
	AllowLANAccess bool

	// DisallowApp / AllowApp field.
	Package string
}

// CommandResult is returned synchronously on the request/response channel.
// Event-channel callers never see it; outcomes go to the diagnostic sink.
type CommandResult struct {
	Succeeded bool
	Err       string
}

// ExitNodeDescriptor describes the currently selected exit node, joined
// against the network map for a human-readable name.
type ExitNodeDescriptor struct {
	ID             string
	DisplayName    string
	AllowLANAccess bool
}

// Table is the tabular result of a read-only query. Zero rows means
// "nothing selected / empty set", never an error.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Prefs is a read-only projection of the engine's current preferences.
type Prefs struct {
	ExitNodeID             string
	ExitNodeAllowLANAccess bool
}

// Peer is one entry in the engine's network map.
type Peer struct {
	ID       string
	HostName string
}

// NetMap is a read-only projection of the engine's current network map.
type NetMap struct {
	Peers []Peer
}

// JobKind identifies the mutation a queued job performs.
type JobKind int

const (
	JobStartVPN JobKind = iota
	JobStopVPN
	JobSetExitNode
	JobMutateDenyList
)

// String returns a log-friendly name for the job kind.
func (k JobKind) String() string {
	switch k {
	case JobStartVPN:
		return "start_vpn"
	case JobStopVPN:
		return "stop_vpn"
	case JobSetExitNode:
		return "set_exit_node"
	case JobMutateDenyList:
		return "mutate_deny_list"
	}
	return "unknown"
}

// JobState tracks a job from enqueue to its terminal outcome.
type JobState int

const (
	JobEnqueued JobState = iota
	JobRunning
	JobSucceeded
	JobFailed
)

// String returns a log-friendly name for the job state.
func (s JobState) String() string {
	switch s {
	case JobEnqueued:
		return "enqueued"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	}
	return "unknown"
}

// DenyListDirection says whether a deny-list mutation adds or removes.
type DenyListDirection int

const (
	DenyListAdd DenyListDirection = iota
	DenyListRemove
)

// Job is a unit of asynchronous mutation work. The dispatcher creates jobs;
// the queue owns them until they reach a terminal state. Nobody re-reads a
// job after enqueue.
type Job struct {
	Kind  JobKind
	State JobState

	// SetExitNode payload.
	NodeID         string
	AllowLANAccess bool

	// MutateDenyList payload.
	Package   string
	Direction DenyListDirection
}
