package domain

// DenyListRepository is the persisted set of bypassed application packages.
// Implementation: SQLCipher-encrypted SQLite, one process-wide mutex.
type DenyListRepository interface {
	// Get returns the current set of packages. Order is unspecified.
	Get() ([]string, error)

	// Add inserts a package. Adding a present package is a successful no-op.
	Add(pkg string) error

	// Remove deletes a package. Removing an absent package is a successful no-op.
	Remove(pkg string) error

	// Clear empties the set.
	Clear() error

	// Close releases the underlying database connection.
	Close() error
}

// PackageRegistry answers whether an application package exists on this
// machine. Only a boolean existence query; installation itself is out of scope.
type PackageRegistry interface {
	IsInstalled(pkg string) bool
}

// EngineController is the restart/connect surface of the external VPN engine.
// Calls may block on engine I/O; only job workers invoke them.
type EngineController interface {
	// Connect brings the VPN up.
	Connect() error

	// Disconnect tears the VPN down.
	Disconnect() error

	// SetExitNode selects an exit node. Empty id clears the selection.
	SetExitNode(id string, allowLANAccess bool) error

	// Restart cycles the connection so deny-list changes take effect.
	Restart() error
}

// EngineState exposes the engine's two observable state cells. The engine
// owns and mutates them; this subsystem only takes point-in-time reads.
// Either read may return nil when the engine has not published a value yet.
type EngineState interface {
	Prefs() *Prefs
	NetMap() *NetMap
}

// JobQueue accepts mutation jobs for asynchronous execution. Enqueue returns
// without waiting for execution and exposes no backpressure signal: a
// successful dispatch means "accepted", not "applied".
type JobQueue interface {
	Enqueue(job Job)
}

// DiagnosticSink receives results of fire-and-forget read queries. Events
// have no response path, so this is the only place their output shows up.
type DiagnosticSink interface {
	Emit(topic, message string)
}
