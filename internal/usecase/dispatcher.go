package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/domain"
)

// Request/response method names. The two query methods have no entry in the
// request/response table; they exist so the GET_* events normalize through
// the same closed command set as everything else.
const (
	MethodConnectVPN          = "connect_vpn"
	MethodDisconnectVPN       = "disconnect_vpn"
	MethodUseExitNode         = "use_exit_node"
	MethodDisallowApp         = "disallow_app"
	MethodAllowApp            = "allow_app"
	MethodQueryExitNode       = "query_exit_node"
	MethodQueryDisallowedApps = "query_disallowed_apps"
)

// Fire-and-forget event names. A superset of the methods: the two GET_*
// events are read-only queries whose results go to the diagnostic sink.
const (
	EventConnectVPN        = "CONNECT_VPN"
	EventDisconnectVPN     = "DISCONNECT_VPN"
	EventUseExitNode       = "USE_EXIT_NODE"
	EventDisallowApp       = "DISALLOW_APP"
	EventAllowApp          = "ALLOW_APP"
	EventGetExitNode       = "GET_EXIT_NODE"
	EventGetDisallowedApps = "GET_DISALLOWED_APPS"
)

// Query resource paths.
const (
	ResourceExitNode       = "exit_node"
	ResourceDisallowedApps = "disallowed_apps"
)

// Diagnostic sink topics for the GET_* events.
const (
	TopicExitNode       = "exitnode"
	TopicDisallowedApps = "disallowedapps"
)

// Extras keys. The request/response channel uses snake_case; the event
// channel keeps the original camelCase extra names.
const (
	ExtraAllowLANAccess      = "allow_lan_access"
	EventExtraExitNode       = "exitNode"
	EventExtraAllowLANAccess = "allowLanAccess"
	EventExtraPackageName    = "packageName"
)

// Dispatcher is the single entry point for both delivery channels. It
// validates input, builds one canonical Command, and routes mutations to
// the job queue and reads to the snapshot reader or deny-list store.
type Dispatcher struct {
	store    domain.DenyListRepository
	queue    domain.JobQueue
	snapshot *SnapshotReader
	sink     domain.DiagnosticSink
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher with injected collaborators.
func NewDispatcher(
	store domain.DenyListRepository,
	queue domain.JobQueue,
	snapshot *SnapshotReader,
	sink domain.DiagnosticSink,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:    store,
		queue:    queue,
		snapshot: snapshot,
		sink:     sink,
		logger:   logger,
	}
}

// Dispatch handles one request/response call. It never panics out to the
// caller: validation failures and internal errors come back as a failed
// CommandResult. A successful result means "accepted for processing", not
// "applied" - execution happens asynchronously.
func (d *Dispatcher) Dispatch(method, arg string, extras map[string]interface{}) (result domain.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic during dispatch",
				zap.String("method", method),
				zap.Any("panic", r))
			result = domain.CommandResult{Err: fmt.Sprint(r)}
		}
	}()

	cmd, err := buildCommand(method, arg, extras)
	if err != nil {
		return domain.CommandResult{Err: err.Error()}
	}

	return d.execute(cmd)
}

// Deliver handles one fire-and-forget event. There is no error channel back
// to the sender: malformed events are dropped with a log entry, and GET_*
// results are emitted to the diagnostic sink.
func (d *Dispatcher) Deliver(event string, extras map[string]interface{}) {
	method, arg, translated, err := translateEvent(event, extras)
	if err != nil {
		d.logger.Warn("dropping event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	// Same validation and command-building path as the synchronous channel.
	res := d.Dispatch(method, arg, translated)
	if !res.Succeeded {
		d.logger.Warn("event dispatch failed",
			zap.String("event", event),
			zap.String("error", res.Err))
		return
	}
	d.logger.Info("event dispatched", zap.String("event", event))
}

// Query serves the read-only tabular surface. Zero rows is a valid result.
func (d *Dispatcher) Query(resource string) (domain.Table, error) {
	switch resource {
	case ResourceExitNode:
		table := domain.Table{Columns: []string{"id", "name", "allow_lan_access"}}
		if desc, ok := d.snapshot.CurrentExitNode(); ok {
			table.Rows = append(table.Rows, []string{
				desc.ID,
				desc.DisplayName,
				strconv.FormatBool(desc.AllowLANAccess),
			})
		}
		return table, nil

	case ResourceDisallowedApps:
		table := domain.Table{Columns: []string{"package_name"}}
		packages, err := d.store.Get()
		if err != nil {
			return domain.Table{}, err
		}
		for _, pkg := range packages {
			table.Rows = append(table.Rows, []string{pkg})
		}
		return table, nil

	default:
		return domain.Table{}, fmt.Errorf("unknown resource: %s", resource)
	}
}

// buildCommand normalizes a method call into the canonical Command. Both
// delivery channels funnel through here, so they can never diverge in
// validation behavior for equivalent operations.
func buildCommand(method, arg string, extras map[string]interface{}) (domain.Command, error) {
	switch method {
	case MethodConnectVPN:
		return domain.Command{Kind: domain.CmdConnectVPN}, nil

	case MethodDisconnectVPN:
		return domain.Command{Kind: domain.CmdDisconnectVPN}, nil

	case MethodUseExitNode:
		// Empty arg is a valid request: clear the current selection.
		return domain.Command{
			Kind:           domain.CmdUseExitNode,
			NodeID:         arg,
			AllowLANAccess: getBool(extras, ExtraAllowLANAccess),
		}, nil

	case MethodDisallowApp:
		if arg == "" {
			return domain.Command{}, fmt.Errorf("package name is required")
		}
		return domain.Command{Kind: domain.CmdDisallowApp, Package: arg}, nil

	case MethodAllowApp:
		if arg == "" {
			return domain.Command{}, fmt.Errorf("package name is required")
		}
		return domain.Command{Kind: domain.CmdAllowApp, Package: arg}, nil

	case MethodQueryExitNode:
		return domain.Command{Kind: domain.CmdQueryExitNode}, nil

	case MethodQueryDisallowedApps:
		return domain.Command{Kind: domain.CmdQueryDisallowedApps}, nil

	default:
		return domain.Command{}, fmt.Errorf("unknown method: %s", method)
	}
}

// translateEvent maps an event name and its camelCase extras onto the
// corresponding method call.
func translateEvent(event string, extras map[string]interface{}) (method, arg string, translated map[string]interface{}, err error) {
	switch event {
	case EventConnectVPN:
		return MethodConnectVPN, "", nil, nil

	case EventDisconnectVPN:
		return MethodDisconnectVPN, "", nil, nil

	case EventUseExitNode:
		translated = map[string]interface{}{
			ExtraAllowLANAccess: getBool(extras, EventExtraAllowLANAccess),
		}
		return MethodUseExitNode, getString(extras, EventExtraExitNode), translated, nil

	case EventDisallowApp:
		pkg := getString(extras, EventExtraPackageName)
		if pkg == "" {
			return "", "", nil, fmt.Errorf("%s requires %q extra", event, EventExtraPackageName)
		}
		return MethodDisallowApp, pkg, nil, nil

	case EventAllowApp:
		pkg := getString(extras, EventExtraPackageName)
		if pkg == "" {
			return "", "", nil, fmt.Errorf("%s requires %q extra", event, EventExtraPackageName)
		}
		return MethodAllowApp, pkg, nil, nil

	case EventGetExitNode:
		return MethodQueryExitNode, "", nil, nil

	case EventGetDisallowedApps:
		return MethodQueryDisallowedApps, "", nil, nil

	default:
		return "", "", nil, fmt.Errorf("unknown event: %s", event)
	}
}

// execute routes a canonical command: mutations are enqueued, never run on
// the caller's goroutine; query commands read inline and emit to the
// diagnostic sink.
func (d *Dispatcher) execute(cmd domain.Command) domain.CommandResult {
	switch cmd.Kind {
	case domain.CmdConnectVPN:
		d.queue.Enqueue(domain.Job{Kind: domain.JobStartVPN})

	case domain.CmdDisconnectVPN:
		d.queue.Enqueue(domain.Job{Kind: domain.JobStopVPN})

	case domain.CmdUseExitNode:
		d.queue.Enqueue(domain.Job{
			Kind:           domain.JobSetExitNode,
			NodeID:         cmd.NodeID,
			AllowLANAccess: cmd.AllowLANAccess,
		})

	case domain.CmdDisallowApp:
		d.queue.Enqueue(domain.Job{
			Kind:      domain.JobMutateDenyList,
			Package:   cmd.Package,
			Direction: domain.DenyListAdd,
		})

	case domain.CmdAllowApp:
		d.queue.Enqueue(domain.Job{
			Kind:      domain.JobMutateDenyList,
			Package:   cmd.Package,
			Direction: domain.DenyListRemove,
		})

	case domain.CmdQueryExitNode:
		d.emitExitNode()

	case domain.CmdQueryDisallowedApps:
		d.emitDisallowedApps()

	default:
		return domain.CommandResult{Err: fmt.Sprintf("unroutable command: %s", cmd.Kind)}
	}

	return domain.CommandResult{Succeeded: true}
}

// emitExitNode writes the current exit node to the diagnostic sink,
// mirroring the format external tooling greps for.
func (d *Dispatcher) emitExitNode() {
	desc, ok := d.snapshot.CurrentExitNode()
	if !ok {
		d.sink.Emit(TopicExitNode, "EXIT_NODE: none")
		return
	}
	d.sink.Emit(TopicExitNode, fmt.Sprintf("EXIT_NODE: id=%s, name=%s, allowLanAccess=%t",
		desc.ID, desc.DisplayName, desc.AllowLANAccess))
}

// emitDisallowedApps writes the deny list to the diagnostic sink.
func (d *Dispatcher) emitDisallowedApps() {
	packages, err := d.store.Get()
	if err != nil {
		d.sink.Emit(TopicDisallowedApps, "DISALLOWED_APPS: error - "+err.Error())
		return
	}

	if len(packages) == 0 {
		d.sink.Emit(TopicDisallowedApps, "DISALLOWED_APPS: none")
	} else {
		d.sink.Emit(TopicDisallowedApps, "DISALLOWED_APPS: "+strings.Join(packages, ", "))
	}
	d.sink.Emit(TopicDisallowedApps, fmt.Sprintf("DISALLOWED_APPS_COUNT: %d", len(packages)))
}
