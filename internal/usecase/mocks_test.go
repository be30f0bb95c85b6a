package usecase

import (
	"errors"
	"sync"

	"github.com/pars5555/tailbridge/internal/domain"
)

// memStore implements domain.DenyListRepository in memory for testing.
type memStore struct {
	mu     sync.Mutex
	set    map[string]bool
	getErr error
}

func newMemStore() *memStore {
	return &memStore{set: make(map[string]bool)}
}

func (m *memStore) Get() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var packages []string
	for pkg := range m.set {
		packages = append(packages, pkg)
	}
	return packages, nil
}

func (m *memStore) Add(pkg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[pkg] = true
	return nil
}

func (m *memStore) Remove(pkg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.set, pkg)
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = make(map[string]bool)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) contains(pkg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[pkg]
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.set)
}

// recordingQueue implements domain.JobQueue and records enqueued jobs
// without executing them.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (q *recordingQueue) Enqueue(job domain.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *recordingQueue) all() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Job(nil), q.jobs...)
}

// fakeEngineState implements domain.EngineState with fixed values.
type fakeEngineState struct {
	prefs  *domain.Prefs
	netmap *domain.NetMap
}

func (f *fakeEngineState) Prefs() *domain.Prefs   { return f.prefs }
func (f *fakeEngineState) NetMap() *domain.NetMap { return f.netmap }

// mockController implements domain.EngineController and records calls.
type mockController struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	restarts    int
	exitNodes   []string
	allowLAN    []bool

	connectErr error
	restartErr error
	setErr     error
}

func (c *mockController) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return c.connectErr
}

func (c *mockController) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return nil
}

func (c *mockController) SetExitNode(id string, allowLANAccess bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exitNodes = append(c.exitNodes, id)
	c.allowLAN = append(c.allowLAN, allowLANAccess)
	return c.setErr
}

func (c *mockController) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restarts++
	return c.restartErr
}

func (c *mockController) restartCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

// blockingController hangs Connect until released, simulating an engine
// that has stopped responding.
type blockingController struct {
	mockController
	release chan struct{}
}

func (c *blockingController) Connect() error {
	<-c.release
	return c.mockController.Connect()
}

// mockPackages implements domain.PackageRegistry over a fixed set.
type mockPackages struct {
	installed map[string]bool
}

func (p *mockPackages) IsInstalled(pkg string) bool {
	return p.installed[pkg]
}

// recordingSink implements domain.DiagnosticSink and records emissions.
type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSink) Emit(topic, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, topic+": "+message)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

var errStoreBroken = errors.New("store broken")
