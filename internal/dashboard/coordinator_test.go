package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wanboard/internal/clock"
	"grimm.is/wanboard/internal/wan"
)

type fakeBackend struct {
	mu        sync.Mutex
	conns     []wan.Connection
	pollErr   error
	preferErr error
	gate      chan struct{}
	events    chan string

	// ctx.Err() observed by Prefer once its gate opened
	preferCtxErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conns: []wan.Connection{
			{Label: "A", InterfaceName: "PPPoE-A", Running: true},
			{Label: "B", InterfaceName: "PPPoE-B", Running: true, Active: true, Preferred: true},
		},
		events: make(chan string, 64),
	}
}

func (b *fakeBackend) Connections(ctx context.Context) ([]wan.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events <- "poll"
	if b.pollErr != nil {
		return nil, b.pollErr
	}
	out := make([]wan.Connection, len(b.conns))
	copy(out, b.conns)
	return out, nil
}

func (b *fakeBackend) Prefer(ctx context.Context, name string) error {
	b.events <- "prefer:" + name

	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.preferCtxErr = ctx.Err()
	if b.preferErr != nil {
		return b.preferErr
	}
	for i := range b.conns {
		match := b.conns[i].InterfaceName == name
		b.conns[i].Preferred = match
		b.conns[i].Active = match
	}
	return nil
}

func (b *fakeBackend) Refresh(ctx context.Context, name string) error {
	b.events <- "refresh:" + name
	return nil
}

func (b *fakeBackend) setPollErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pollErr = err
}

type renderLog struct {
	mu    sync.Mutex
	views []View
}

func (r *renderLog) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *renderLog) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]View, len(r.views))
	copy(out, r.views)
	return out
}

func waitEvent(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backend call")
		return ""
	}
}

func expectNoEvent(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected backend call %q", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitState(t *testing.T, c *Coordinator, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == s }, 2*time.Second, time.Millisecond)
}

type harness struct {
	clock   *clock.MockClock
	backend *fakeBackend
	renders *renderLog
	coord   *Coordinator
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, settle time.Duration) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewMockClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)),
		backend: newFakeBackend(),
		renders: &renderLog{},
		done:    make(chan error, 1),
	}
	h.coord = New(h.backend,
		WithClock(h.clock),
		WithPollInterval(2*time.Second),
		WithSettleDelay(settle),
		WithRenderer(h.renders),
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func TestCoordinator_Polls(t *testing.T) {
	h := start(t, 2*time.Second)

	assert.Equal(t, "poll", waitEvent(t, h.backend.events))
	h.clock.BlockUntil(1)
	assert.Equal(t, Polling, h.coord.State())

	h.clock.Advance(time.Second)
	expectNoEvent(t, h.backend.events)

	h.clock.Advance(time.Second)
	assert.Equal(t, "poll", waitEvent(t, h.backend.events))

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, "poll", waitEvent(t, h.backend.events))

	snap := h.coord.Snapshot()
	require.Len(t, snap.Connections, 2)
	assert.True(t, snap.Connections[1].Preferred)
	assert.NoError(t, snap.Err)
}

func TestCoordinator_PreferSuspendsTimer(t *testing.T) {
	h := start(t, 3*time.Second)
	ev := h.backend.events

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))

	require.NoError(t, h.coord.Prefer("PPPoE-A"))
	assert.Equal(t, "prefer:PPPoE-A", waitEvent(t, ev))

	// Only the settle timer is armed; the poll ticker is stopped.
	h.clock.BlockUntil(1)
	assert.Equal(t, 1, h.clock.Pending())
	assert.Equal(t, MutationInFlight, h.coord.State())

	// A full poll period passes inside the settle delay without a poll.
	h.clock.Advance(2 * time.Second)
	expectNoEvent(t, ev)

	h.clock.Advance(time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))

	waitState(t, h.coord, Polling)
	h.clock.BlockUntil(1)
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))

	snap := h.coord.Snapshot()
	assert.True(t, snap.Connections[0].Preferred)
	assert.False(t, snap.Connections[1].Preferred)
}

func TestCoordinator_OptimisticRender(t *testing.T) {
	h := start(t, 2*time.Second)
	ev := h.backend.events

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)

	require.NoError(t, h.coord.Prefer("PPPoE-A"))
	assert.Equal(t, "prefer:PPPoE-A", waitEvent(t, ev))

	var optimistic *View
	for _, v := range h.renders.all() {
		if v.State == MutationInFlight {
			optimistic = &v
			break
		}
	}
	require.NotNil(t, optimistic, "optimistic view was not rendered")
	assert.Equal(t, "PPPoE-A", optimistic.Pending)
	assert.True(t, optimistic.Connections[0].Preferred)
	assert.True(t, optimistic.Connections[0].Active)
	assert.False(t, optimistic.Connections[1].Preferred)
	assert.False(t, optimistic.Connections[1].Active)

	h.clock.BlockUntil(1)
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))
	waitState(t, h.coord, Polling)
}

func TestCoordinator_RefreshForcesPoll(t *testing.T) {
	h := start(t, 5*time.Second)
	ev := h.backend.events

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)

	require.NoError(t, h.coord.Refresh("PPPoE-B"))
	assert.Equal(t, "refresh:PPPoE-B", waitEvent(t, ev))
	// No settle delay and no clock movement needed.
	assert.Equal(t, "poll", waitEvent(t, ev))

	for _, v := range h.renders.all() {
		if v.State == MutationInFlight {
			assert.True(t, v.Connections[1].Preferred, "refresh must not change the view optimistically")
		}
	}

	waitState(t, h.coord, Polling)
	h.clock.BlockUntil(1)
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))
}

func TestCoordinator_MutationErrorResumesPolling(t *testing.T) {
	h := start(t, time.Second)
	ev := h.backend.events
	h.backend.mu.Lock()
	h.backend.preferErr = fmt.Errorf("partial switch")
	h.backend.mu.Unlock()

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)

	require.NoError(t, h.coord.Prefer("PPPoE-A"))
	assert.Equal(t, "prefer:PPPoE-A", waitEvent(t, ev))

	h.clock.BlockUntil(1)
	h.clock.Advance(time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))

	// The reconcile poll restores ground truth over the optimistic view.
	waitState(t, h.coord, Polling)
	snap := h.coord.Snapshot()
	assert.False(t, snap.Connections[0].Preferred)
	assert.True(t, snap.Connections[1].Preferred)
	assert.NoError(t, snap.Err)

	h.clock.BlockUntil(1)
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))
}

func TestCoordinator_SingleMutation(t *testing.T) {
	h := start(t, time.Second)
	ev := h.backend.events
	gate := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.gate = gate
	h.backend.mu.Unlock()

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)

	require.NoError(t, h.coord.Prefer("PPPoE-A"))
	assert.Equal(t, "prefer:PPPoE-A", waitEvent(t, ev))

	assert.ErrorIs(t, h.coord.Prefer("PPPoE-B"), ErrMutationInFlight)
	assert.ErrorIs(t, h.coord.Refresh("PPPoE-A"), ErrMutationInFlight)

	close(gate)
	h.clock.BlockUntil(1)
	h.clock.Advance(time.Second)
	assert.Equal(t, "poll", waitEvent(t, ev))
	waitState(t, h.coord, Polling)

	require.NoError(t, h.coord.Refresh("PPPoE-A"))
	assert.Equal(t, "refresh:PPPoE-A", waitEvent(t, ev))
	assert.Equal(t, "poll", waitEvent(t, ev))
}

func TestCoordinator_PollErrorShownThenCleared(t *testing.T) {
	h := &harness{
		clock:   clock.NewMockClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)),
		backend: newFakeBackend(),
		renders: &renderLog{},
	}
	h.backend.pollErr = fmt.Errorf("router unreachable")
	c := New(h.backend, WithClock(h.clock), WithRenderer(h.renders))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Equal(t, "poll", waitEvent(t, h.backend.events))
	h.clock.BlockUntil(1)

	snap := c.Snapshot()
	assert.EqualError(t, snap.Err, "router unreachable")
	assert.Empty(t, snap.Connections)
	views := h.renders.all()
	require.NotEmpty(t, views)
	assert.Error(t, views[0].Err)

	h.backend.setPollErr(nil)
	h.clock.Advance(DefaultPollInterval)
	assert.Equal(t, "poll", waitEvent(t, h.backend.events))
	require.Eventually(t, func() bool { return c.Snapshot().Err == nil }, 2*time.Second, time.Millisecond)
	assert.Len(t, c.Snapshot().Connections, 2)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCoordinator_TeardownReleasesTicker(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	be := newFakeBackend()
	c := New(be, WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Equal(t, "poll", waitEvent(t, be.events))
	mock.BlockUntil(1)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, mock.Pending())
	assert.Equal(t, Idle, c.State())

	mock.Advance(time.Minute)
	expectNoEvent(t, be.events)
}

func TestCoordinator_TeardownDuringSettle(t *testing.T) {
	h := start(t, time.Minute)
	ev := h.backend.events

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)
	require.NoError(t, h.coord.Prefer("PPPoE-A"))
	assert.Equal(t, "prefer:PPPoE-A", waitEvent(t, ev))
	h.clock.BlockUntil(1)

	h.cancel()
	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return during settle delay")
	}
	expectNoEvent(t, ev)
	assert.Equal(t, Idle, h.coord.State())
}

func TestCoordinator_TeardownDoesNotCancelRouterWrite(t *testing.T) {
	h := start(t, time.Second)
	ev := h.backend.events
	gate := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.gate = gate
	h.backend.mu.Unlock()

	assert.Equal(t, "poll", waitEvent(t, ev))
	h.clock.BlockUntil(1)
	require.NoError(t, h.coord.Prefer("PPPoE-A"))
	assert.Equal(t, "prefer:PPPoE-A", waitEvent(t, ev))

	h.cancel()
	close(gate)
	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after teardown")
	}

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.NoError(t, h.backend.preferCtxErr)
	assert.True(t, h.backend.conns[0].Preferred)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "polling", Polling.String())
	assert.Equal(t, "mutation_in_flight", MutationInFlight.String())
}
