package updater

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plannerstack/graphupdater/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

// testUpdater is a scriptable GraphUpdater for lifecycle tests.
type testUpdater struct {
	name     string
	setup    func(ctx context.Context) error
	run      func(ctx context.Context) error
	teardown func() error

	setupCalls    atomic.Int32
	runCalls      atomic.Int32
	teardownCalls atomic.Int32
}

func (u *testUpdater) Setup(ctx context.Context) error {
	u.setupCalls.Add(1)
	if u.setup != nil {
		return u.setup(ctx)
	}
	return nil
}

func (u *testUpdater) Run(ctx context.Context) error {
	u.runCalls.Add(1)
	if u.run != nil {
		return u.run(ctx)
	}
	<-ctx.Done()
	return nil
}

func (u *testUpdater) Teardown() error {
	u.teardownCalls.Add(1)
	if u.teardown != nil {
		return u.teardown()
	}
	return nil
}

func (u *testUpdater) Describe() string {
	return "test updater " + u.name
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	return NewSupervisor("test", zerolog.Nop())
}

func mustStart(t *testing.T, s *Supervisor, u GraphUpdater) int {
	t.Helper()
	id, err := s.Start(u)
	if err != nil {
		t.Fatalf("start updater: %v", err)
	}
	return id
}

func TestSupervisorRunsLifecycleInOrder(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	running := make(chan struct{})
	u := &testUpdater{
		name: "a",
		run: func(ctx context.Context) error {
			close(running)
			<-ctx.Done()
			return nil
		},
	}

	id := mustStart(t, s, u)
	if id != 0 {
		t.Fatalf("unexpected first handle: %d", id)
	}
	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatalf("updater never reached run")
	}

	if got := s.StopAll(time.Second); got != 0 {
		t.Fatalf("unexpected abandoned count: %d", got)
	}
	if u.setupCalls.Load() != 1 || u.runCalls.Load() != 1 || u.teardownCalls.Load() != 1 {
		t.Fatalf("lifecycle counts off: setup=%d run=%d teardown=%d",
			u.setupCalls.Load(), u.runCalls.Load(), u.teardownCalls.Load())
	}
}

func TestSupervisorSetupFailureSkipsRunButNotTeardown(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	const workers = 3
	updaters := make([]*testUpdater, 0, workers)
	for i := 0; i < workers; i++ {
		u := &testUpdater{
			name:  "failing",
			setup: func(context.Context) error { return errors.New("no feed") },
		}
		updaters = append(updaters, u)
		mustStart(t, s, u)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		failed := 0
		for _, w := range s.List() {
			if w.State == StateSetupFailed {
				failed++
			}
		}
		if failed == workers {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("setup failures not observed: %+v", s.List())
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.StopAll(time.Second)
	for i, u := range updaters {
		if u.runCalls.Load() != 0 {
			t.Fatalf("updater %d: run must not be invoked after setup failure", i)
		}
		if u.teardownCalls.Load() != 1 {
			t.Fatalf("updater %d: teardown calls = %d, want 1", i, u.teardownCalls.Load())
		}
	}
}

func TestSupervisorAbandonsStuckWorkerWithinBudget(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	stuck := make(chan struct{})
	defer close(stuck)

	fast1 := &testUpdater{name: "fast1"}
	slow := &testUpdater{
		name: "slow",
		run: func(context.Context) error {
			// Ignores cancellation entirely.
			<-stuck
			return nil
		},
	}
	fast2 := &testUpdater{name: "fast2"}
	mustStart(t, s, fast1)
	mustStart(t, s, slow)
	mustStart(t, s, fast2)

	start := time.Now()
	abandoned := s.StopAll(300 * time.Millisecond)
	elapsed := time.Since(start)

	if abandoned != 1 {
		t.Fatalf("expected one abandoned worker, got %d", abandoned)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("StopAll exceeded its budget: %v", elapsed)
	}
	for i, u := range []*testUpdater{fast1, slow, fast2} {
		if u.teardownCalls.Load() != 1 {
			t.Fatalf("updater %d: teardown calls = %d, want 1", i, u.teardownCalls.Load())
		}
	}

	info, ok := s.Info(1)
	if !ok || info.State != StateAbandoned {
		t.Fatalf("expected slow worker abandoned: %+v ok=%v", info, ok)
	}
}

func TestSupervisorStopAllWithNoWorkers(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	start := time.Now()
	if got := s.StopAll(time.Second); got != 0 {
		t.Fatalf("unexpected abandoned count: %d", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("StopAll with no workers took %v", elapsed)
	}
}

func TestSupervisorTeardownFailureDoesNotBlockSiblings(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	bad := &testUpdater{name: "bad", teardown: func() error { return errors.New("cannot release") }}
	panicky := &testUpdater{name: "panicky", teardown: func() error { panic("teardown blew up") }}
	good := &testUpdater{name: "good"}
	mustStart(t, s, bad)
	mustStart(t, s, panicky)
	mustStart(t, s, good)

	s.StopAll(time.Second)
	if good.teardownCalls.Load() != 1 {
		t.Fatalf("healthy teardown must still run, calls=%d", good.teardownCalls.Load())
	}
}

func TestSupervisorRunPanicIsIsolated(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	p := &testUpdater{name: "panicky", run: func(context.Context) error { panic("run blew up") }}
	healthy := &testUpdater{name: "healthy"}
	pid := mustStart(t, s, p)
	mustStart(t, s, healthy)

	deadline := time.Now().Add(2 * time.Second)
	for {
		info, ok := s.Info(pid)
		if ok && info.State == StateRunFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("panicking run not recorded: %+v", info)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := s.StopAll(time.Second); got != 0 {
		t.Fatalf("healthy worker should not be abandoned, got %d", got)
	}
}

func TestSupervisorRejectsStartAfterStopAll(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	s.StopAll(time.Second)

	late := &testUpdater{name: "late"}
	if _, err := s.Start(late); !errors.Is(err, ErrSupervisorStopped) {
		t.Fatalf("expected ErrSupervisorStopped, got %v", err)
	}
	if late.setupCalls.Load() != 0 {
		t.Fatalf("rejected updater must never run setup")
	}
	if s.Count() != 0 {
		t.Fatalf("rejected updater must not be registered, count=%d", s.Count())
	}
}

func TestSupervisorListAndInfo(t *testing.T) {
	testlog.Start(t)

	s := newTestSupervisor(t)
	mustStart(t, s, &testUpdater{name: "a"})
	mustStart(t, s, &testUpdater{name: "b"})
	defer s.StopAll(time.Second)

	if s.Count() != 2 {
		t.Fatalf("unexpected count: %d", s.Count())
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != 0 || list[1].ID != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].Description != "test updater a" {
		t.Fatalf("unexpected descriptor: %q", list[0].Description)
	}
	if list[0].Type != "*updater.testUpdater" {
		t.Fatalf("unexpected type: %q", list[0].Type)
	}
	if _, ok := s.Info(99); ok {
		t.Fatalf("unknown handle must not resolve")
	}
}
