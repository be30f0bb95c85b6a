package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/domain"
)

func newTestDispatcher(store *memStore, queue *recordingQueue, state *fakeEngineState, sink *recordingSink) *Dispatcher {
	if store == nil {
		store = newMemStore()
	}
	if queue == nil {
		queue = &recordingQueue{}
	}
	if state == nil {
		state = &fakeEngineState{}
	}
	if sink == nil {
		sink = &recordingSink{}
	}
	return NewDispatcher(store, queue, NewSnapshotReader(state), sink, zap.NewNop())
}

func TestDispatch_UnknownMethod(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	res := d.Dispatch("bogus_method", "x", nil)

	assert.False(t, res.Succeeded)
	assert.Equal(t, "unknown method: bogus_method", res.Err)
	assert.Empty(t, queue.all(), "no job should be enqueued for an unknown method")
}

func TestDispatch_DisallowAppRequiresPackage(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	for _, method := range []string{MethodDisallowApp, MethodAllowApp} {
		res := d.Dispatch(method, "", nil)
		assert.False(t, res.Succeeded, method)
		assert.Equal(t, "package name is required", res.Err, method)
	}
	assert.Empty(t, queue.all())
}

func TestDispatch_ConnectDisconnect(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	assert.True(t, d.Dispatch(MethodConnectVPN, "", nil).Succeeded)
	assert.True(t, d.Dispatch(MethodDisconnectVPN, "", nil).Succeeded)

	jobs := queue.all()
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobStartVPN, jobs[0].Kind)
	assert.Equal(t, domain.JobStopVPN, jobs[1].Kind)
}

func TestDispatch_UseExitNode(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	extras := map[string]interface{}{ExtraAllowLANAccess: true}
	res := d.Dispatch(MethodUseExitNode, "us-nyc-1", extras)

	require.True(t, res.Succeeded)
	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobSetExitNode, jobs[0].Kind)
	assert.Equal(t, "us-nyc-1", jobs[0].NodeID)
	assert.True(t, jobs[0].AllowLANAccess)
}

// An empty node id is a valid "clear selection" request, not an error.
func TestDispatch_UseExitNodeEmptyClearsSelection(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	res := d.Dispatch(MethodUseExitNode, "", nil)

	require.True(t, res.Succeeded)
	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "", jobs[0].NodeID)
	assert.False(t, jobs[0].AllowLANAccess, "allow_lan_access defaults to false")
}

func TestDispatch_DisallowApp(t *testing.T) {
	queue := &recordingQueue{}
	store := newMemStore()
	d := newTestDispatcher(store, queue, nil, nil)

	res := d.Dispatch(MethodDisallowApp, "com.example.app", nil)

	require.True(t, res.Succeeded)
	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobMutateDenyList, jobs[0].Kind)
	assert.Equal(t, domain.DenyListAdd, jobs[0].Direction)
	assert.Equal(t, "com.example.app", jobs[0].Package)
	assert.Equal(t, 0, store.size(), "dispatch itself must not mutate the store")
}

func TestDeliver_MatchesDispatchForEquivalentOperations(t *testing.T) {
	dispatchQueue := &recordingQueue{}
	deliverQueue := &recordingQueue{}

	dd := newTestDispatcher(nil, dispatchQueue, nil, nil)
	dv := newTestDispatcher(nil, deliverQueue, nil, nil)

	dd.Dispatch(MethodUseExitNode, "node-1", map[string]interface{}{ExtraAllowLANAccess: true})
	dv.Deliver(EventUseExitNode, map[string]interface{}{
		EventExtraExitNode:       "node-1",
		EventExtraAllowLANAccess: true,
	})

	require.Len(t, dispatchQueue.all(), 1)
	require.Len(t, deliverQueue.all(), 1)
	assert.Equal(t, dispatchQueue.all()[0], deliverQueue.all()[0],
		"both delivery channels must produce the same job")
}

func TestDeliver_DropsEventMissingRequiredExtra(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	d.Deliver(EventDisallowApp, nil)
	d.Deliver(EventAllowApp, map[string]interface{}{EventExtraPackageName: ""})

	assert.Empty(t, queue.all(), "malformed events are dropped without side effects")
}

func TestDeliver_UnknownEventDropped(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	d.Deliver("BOGUS_EVENT", nil)

	assert.Empty(t, queue.all())
}

func TestDeliver_MutatingEvents(t *testing.T) {
	queue := &recordingQueue{}
	d := newTestDispatcher(nil, queue, nil, nil)

	d.Deliver(EventConnectVPN, nil)
	d.Deliver(EventDisconnectVPN, nil)
	d.Deliver(EventDisallowApp, map[string]interface{}{EventExtraPackageName: "com.example.app"})
	d.Deliver(EventAllowApp, map[string]interface{}{EventExtraPackageName: "com.example.app"})

	jobs := queue.all()
	require.Len(t, jobs, 4)
	assert.Equal(t, domain.JobStartVPN, jobs[0].Kind)
	assert.Equal(t, domain.JobStopVPN, jobs[1].Kind)
	assert.Equal(t, domain.DenyListAdd, jobs[2].Direction)
	assert.Equal(t, domain.DenyListRemove, jobs[3].Direction)
}

func TestDeliver_GetExitNodeEmitsToSink(t *testing.T) {
	sink := &recordingSink{}
	state := &fakeEngineState{
		prefs: &domain.Prefs{ExitNodeID: "node-1", ExitNodeAllowLANAccess: true},
		netmap: &domain.NetMap{Peers: []domain.Peer{
			{ID: "node-1", HostName: "relay.example"},
		}},
	}
	d := newTestDispatcher(nil, nil, state, sink)

	d.Deliver(EventGetExitNode, nil)

	messages := sink.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "exitnode: EXIT_NODE: id=node-1, name=relay.example, allowLanAccess=true", messages[0])
}

func TestDeliver_GetExitNodeNone(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDispatcher(nil, nil, &fakeEngineState{}, sink)

	d.Deliver(EventGetExitNode, nil)

	messages := sink.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "exitnode: EXIT_NODE: none", messages[0])
}

func TestDeliver_GetDisallowedApps(t *testing.T) {
	sink := &recordingSink{}
	store := newMemStore()
	require.NoError(t, store.Add("com.example.app"))
	d := newTestDispatcher(store, nil, nil, sink)

	d.Deliver(EventGetDisallowedApps, nil)

	messages := sink.all()
	require.Len(t, messages, 2)
	assert.Equal(t, "disallowedapps: DISALLOWED_APPS: com.example.app", messages[0])
	assert.Equal(t, "disallowedapps: DISALLOWED_APPS_COUNT: 1", messages[1])
}

func TestDeliver_GetDisallowedAppsEmpty(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDispatcher(nil, nil, nil, sink)

	d.Deliver(EventGetDisallowedApps, nil)

	messages := sink.all()
	require.Len(t, messages, 2)
	assert.Equal(t, "disallowedapps: DISALLOWED_APPS: none", messages[0])
	assert.Equal(t, "disallowedapps: DISALLOWED_APPS_COUNT: 0", messages[1])
}

func TestQuery_ExitNodeEmpty(t *testing.T) {
	d := newTestDispatcher(nil, nil, &fakeEngineState{}, nil)

	table, err := d.Query(ResourceExitNode)

	require.NoError(t, err, "no selection is zero rows, not an error")
	assert.Equal(t, []string{"id", "name", "allow_lan_access"}, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestQuery_ExitNodeSelected(t *testing.T) {
	state := &fakeEngineState{
		prefs: &domain.Prefs{ExitNodeID: "node-1"},
		netmap: &domain.NetMap{Peers: []domain.Peer{
			{ID: "node-1", HostName: "relay.example"},
		}},
	}
	d := newTestDispatcher(nil, nil, state, nil)

	table, err := d.Query(ResourceExitNode)

	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"node-1", "relay.example", "false"}, table.Rows[0])
}

func TestQuery_DisallowedAppsEmpty(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	table, err := d.Query(ResourceDisallowedApps)

	require.NoError(t, err, "a fresh store is zero rows, not an error")
	assert.Equal(t, []string{"package_name"}, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestQuery_DisallowedApps(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Add("com.example.app"))
	require.NoError(t, store.Add("com.other.app"))
	d := newTestDispatcher(store, nil, nil, nil)

	table, err := d.Query(ResourceDisallowedApps)

	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestQuery_UnknownResource(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	_, err := d.Query("bogus_resource")

	assert.EqualError(t, err, "unknown resource: bogus_resource")
}

func TestQuery_StoreErrorPropagates(t *testing.T) {
	store := newMemStore()
	store.getErr = errStoreBroken
	d := newTestDispatcher(store, nil, nil, nil)

	_, err := d.Query(ResourceDisallowedApps)

	assert.ErrorIs(t, err, errStoreBroken)
}

// panickingQueue triggers the dispatcher's recover path.
type panickingQueue struct{}

func (panickingQueue) Enqueue(domain.Job) { panic("queue exploded") }

func TestDispatch_RecoversFromPanic(t *testing.T) {
	d := NewDispatcher(newMemStore(), panickingQueue{}, NewSnapshotReader(&fakeEngineState{}), &recordingSink{}, zap.NewNop())

	res := d.Dispatch(MethodConnectVPN, "", nil)

	assert.False(t, res.Succeeded)
	assert.Equal(t, "queue exploded", res.Err)
}
