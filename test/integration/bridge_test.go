//go:build integration

package integration

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/daemon"
	"github.com/pars5555/tailbridge/internal/domain"
	"github.com/pars5555/tailbridge/internal/infra"
	"github.com/pars5555/tailbridge/internal/ipc"
	"github.com/pars5555/tailbridge/internal/usecase"
)

// fakeController stands in for the external engine.
type fakeController struct {
	mu       sync.Mutex
	restarts int
	state    string
}

func (c *fakeController) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = "up"
	return nil
}

func (c *fakeController) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = "down"
	return nil
}

func (c *fakeController) SetExitNode(id string, allowLANAccess bool) error { return nil }

func (c *fakeController) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restarts++
	return nil
}

func (c *fakeController) restartCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

// allowAllPackages treats every package as installed.
type allowAllPackages struct{}

func (allowAllPackages) IsInstalled(pkg string) bool { return true }

// nopSink discards diagnostic output.
type nopSink struct{}

func (nopSink) Emit(topic, message string) {}

var _ = Describe("Bridge", func() {
	var (
		tmpDir     string
		store      *infra.DenyListStore
		queue      *usecase.JobQueueImpl
		controller *fakeController
		server     *daemon.Server
		events     *daemon.EventListener
		client     *ipc.Client
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "tailbridge-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key := make([]byte, 32)
		_, err = rand.Read(key)
		Expect(err).NotTo(HaveOccurred())

		store, err = infra.NewDenyListStore(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		controller = &fakeController{}
		queue = usecase.NewJobQueue(2, store, allowAllPackages{}, controller, logger)

		state := &staticState{}
		dispatcher := usecase.NewDispatcher(store, queue, usecase.NewSnapshotReader(state), nopSink{}, logger)

		sock := filepath.Join(tmpDir, "bridge.sock")
		eventSock := filepath.Join(tmpDir, "events.sock")

		server = daemon.NewServer(sock, "integration", dispatcher, logger)
		Expect(server.Start()).To(Succeed())

		events = daemon.NewEventListener(eventSock, dispatcher, logger)
		Expect(events.Start()).To(Succeed())

		client = ipc.NewClient(sock, eventSock)
	})

	AfterEach(func() {
		events.Stop()
		server.Stop()
		queue.Close()
		Expect(store.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	denyList := func() []string {
		resp, err := client.Call(ipc.Request{Method: ipc.MethodQuery, Arg: usecase.ResourceDisallowedApps})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Error).To(BeEmpty())

		var table ipc.TableResult
		Expect(json.Unmarshal(resp.Result, &table)).To(Succeed())

		var packages []string
		for _, row := range table.Rows {
			packages = append(packages, row[0])
		}
		return packages
	}

	It("accepts a disallow_app request and commits it to the store", func() {
		resp, err := client.Call(ipc.Request{Method: usecase.MethodDisallowApp, Arg: "com.example.app"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.OK).To(BeTrue())

		Eventually(denyList, time.Second, 10*time.Millisecond).Should(ContainElement("com.example.app"))
		Eventually(controller.restartCount, time.Second, 10*time.Millisecond).Should(Equal(1))
	})

	It("removes a package via the event channel", func() {
		resp, err := client.Call(ipc.Request{Method: usecase.MethodDisallowApp, Arg: "com.example.app"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.OK).To(BeTrue())
		Eventually(denyList, time.Second, 10*time.Millisecond).Should(ContainElement("com.example.app"))

		Expect(client.Send(ipc.Event{
			Event:  usecase.EventAllowApp,
			Extras: map[string]interface{}{usecase.EventExtraPackageName: "com.example.app"},
		})).To(Succeed())

		Eventually(denyList, time.Second, 10*time.Millisecond).ShouldNot(ContainElement("com.example.app"))
	})

	It("rejects invalid requests without touching the store", func() {
		resp, err := client.Call(ipc.Request{Method: usecase.MethodDisallowApp})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.OK).To(BeFalse())
		Expect(resp.Error).To(Equal("package name is required"))

		Consistently(denyList, 200*time.Millisecond, 20*time.Millisecond).Should(BeEmpty())
	})

	It("drives the engine through connect and disconnect", func() {
		resp, err := client.Call(ipc.Request{Method: usecase.MethodConnectVPN})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.OK).To(BeTrue())

		Eventually(func() string {
			controller.mu.Lock()
			defer controller.mu.Unlock()
			return controller.state
		}, time.Second, 10*time.Millisecond).Should(Equal("up"))
	})
})

// staticState implements domain.EngineState with no published values.
type staticState struct{}

func (staticState) Prefs() *domain.Prefs   { return nil }
func (staticState) NetMap() *domain.NetMap { return nil }
