package server

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/TheGojiOG/masterserver/internal/config"
)

// MockService simulates one instance of the supervised service
type MockService struct {
	id         string
	factory    *MockFactory
	logging    bool
	eloRange   int
	disposed   int
	disposeErr error
}

func (m *MockService) ID() string { return m.id }

func (m *MockService) Dispose() error {
	m.factory.mu.Lock()
	defer m.factory.mu.Unlock()
	m.disposed++
	m.factory.events = append(m.factory.events, "dispose "+m.id)
	if m.disposed > 1 {
		m.factory.doubleDispose = true
	}
	return m.disposeErr
}

func (m *MockService) ToggleLogging() bool {
	m.logging = !m.logging
	return m.logging
}

func (m *MockService) SetRatingRange(rangeValue int) { m.eloRange = rangeValue }

func (m *MockService) IsRunning() bool {
	m.factory.mu.Lock()
	defer m.factory.mu.Unlock()
	return m.disposed == 0
}

// MockFactory records every create and dispose in order
type MockFactory struct {
	mu            sync.Mutex
	services      []*MockService
	events        []string
	createErr     error
	disposeErr    error
	doubleDispose bool
}

func (f *MockFactory) Create(host string, port uint16) (Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, svc := range f.services {
		if svc.disposed == 0 {
			return nil, fmt.Errorf("instance %s still live on %s:%d", svc.id, host, port)
		}
	}
	svc := &MockService{id: fmt.Sprintf("svc-%d", len(f.services)+1), factory: f, disposeErr: f.disposeErr}
	f.services = append(f.services, svc)
	f.events = append(f.events, "create "+svc.id)
	return svc, nil
}

func (f *MockFactory) last() *MockService {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.services) == 0 {
		return nil
	}
	return f.services[len(f.services)-1]
}

func (f *MockFactory) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func newTestSupervisor(t *testing.T, cfg *config.Configuration) (*Supervisor, *MockFactory, *bytes.Buffer) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Configuration{Host: "127.0.0.1", Port: config.DefaultPort}
	}
	factory := &MockFactory{}
	out := &bytes.Buffer{}
	return NewSupervisor(cfg, factory, out), factory, out
}

func expectEvents(t *testing.T, factory *MockFactory, expected ...string) {
	t.Helper()
	events := factory.eventLog()
	if strings.Join(events, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected events %v, got %v", expected, events)
	}
	if factory.doubleDispose {
		t.Fatalf("a service was disposed more than once")
	}
}

func TestStartEnablesLoggingAndAppliesEloRange(t *testing.T) {
	sup, factory, out := newTestSupervisor(t, &config.Configuration{Host: "10.0.0.2", Port: 2000, RatingRange: 150})

	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	svc := factory.last()
	if !svc.logging {
		t.Fatalf("expected logging enabled after start")
	}
	if svc.eloRange != 150 {
		t.Fatalf("expected elo range 150, got %d", svc.eloRange)
	}

	status := sup.Snapshot()
	if status.State != StateRunning || !status.LoggingEnabled || status.RatingRange != 150 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !strings.Contains(out.String(), "Hosting ip [10.0.0.2] on port [2000]") {
		t.Fatalf("missing hosting line: %q", out.String())
	}
}

func TestStartFailureLeavesSupervisorStopped(t *testing.T) {
	sup, factory, out := newTestSupervisor(t, nil)
	factory.createErr = errors.New("address already in use")

	if err := sup.Start(); err == nil {
		t.Fatalf("expected start error")
	}
	if sup.Snapshot().State != StateStopped {
		t.Fatalf("expected stopped state")
	}
	if !strings.Contains(out.String(), "Failed to start server: address already in use") {
		t.Fatalf("expected failure report, got %q", out.String())
	}

	factory.createErr = nil
	if err := sup.Restart(); err != nil {
		t.Fatalf("restart after failed start should succeed: %v", err)
	}
	if !sup.IsRunning() {
		t.Fatalf("expected running after restart")
	}
}

func TestStopDisposesOnce(t *testing.T) {
	sup, factory, out := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := sup.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := sup.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}

	expectEvents(t, factory, "create svc-1", "dispose svc-1")
	if sup.IsRunning() {
		t.Fatalf("expected stopped")
	}
	if !strings.Contains(out.String(), "Server stopped.") || !strings.Contains(out.String(), "Server is not running.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRestartDisposesBeforeCreate(t *testing.T) {
	sup, factory, _ := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := sup.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	expectEvents(t, factory, "create svc-1", "dispose svc-1", "create svc-2")
	if sup.Snapshot().InstanceID != "svc-2" {
		t.Fatalf("expected new instance to be current")
	}
}

func TestRestartWhenStoppedOnlyCreates(t *testing.T) {
	sup, factory, out := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sup.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	out.Reset()

	if err := sup.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	expectEvents(t, factory, "create svc-1", "dispose svc-1", "create svc-2")
	if strings.Contains(out.String(), "Server stopped.") {
		t.Fatalf("restart from stopped must not report a stop: %q", out.String())
	}
	if !strings.Contains(out.String(), "Restarting...") {
		t.Fatalf("missing restart line: %q", out.String())
	}
}

func TestRestartResetsLoggingAndEloRange(t *testing.T) {
	sup, factory, _ := newTestSupervisor(t, &config.Configuration{Host: "127.0.0.1", Port: 15940, RatingRange: 40})
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sup.SetRatingRange(75); err != nil {
		t.Fatalf("set elo failed: %v", err)
	}

	if err := sup.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	svc := factory.last()
	if svc.logging {
		t.Fatalf("restarted service must start with logging off")
	}
	if svc.eloRange != 0 {
		t.Fatalf("restarted service must start with elo range 0, got %d", svc.eloRange)
	}
	status := sup.Snapshot()
	if status.LoggingEnabled || status.RatingRange != 0 {
		t.Fatalf("supervisor state must reset on restart: %+v", status)
	}
}

func TestQuitDisposesOnce(t *testing.T) {
	sup, factory, _ := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := sup.Quit(); err != nil {
		t.Fatalf("quit failed: %v", err)
	}
	if err := sup.Quit(); err != nil {
		t.Fatalf("second quit failed: %v", err)
	}

	expectEvents(t, factory, "create svc-1", "dispose svc-1")
	if sup.Snapshot().State != StateTerminated {
		t.Fatalf("expected terminated state")
	}
	if err := sup.Restart(); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated after quit, got %v", err)
	}
}

func TestQuitAfterStopDoesNotDisposeAgain(t *testing.T) {
	sup, factory, _ := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sup.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := sup.Quit(); err != nil {
		t.Fatalf("quit failed: %v", err)
	}

	expectEvents(t, factory, "create svc-1", "dispose svc-1")
}

func TestDisposeFailureClearsHandle(t *testing.T) {
	sup, factory, out := newTestSupervisor(t, nil)
	factory.disposeErr = errors.New("listener close failed")
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := sup.Stop(); err == nil {
		t.Fatalf("expected dispose error to be returned")
	}
	if err := sup.Quit(); err != nil {
		t.Fatalf("quit after failed dispose should not dispose again: %v", err)
	}

	expectEvents(t, factory, "create svc-1", "dispose svc-1")
	if !strings.Contains(out.String(), "Failed to stop server cleanly: listener close failed") {
		t.Fatalf("missing failure report: %q", out.String())
	}
}

func TestCommandsOnStoppedServerDoNotMutate(t *testing.T) {
	sup, factory, _ := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sup.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	svc := factory.last()
	loggingBefore := svc.logging

	if _, err := sup.ToggleLogging(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := sup.SetRatingRange(5); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if svc.logging != loggingBefore || svc.eloRange != 0 {
		t.Fatalf("disposed service must not be mutated")
	}
}

func TestSnapshotIsSafeUnderConcurrentCallers(t *testing.T) {
	sup, factory, _ := newTestSupervisor(t, nil)
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = sup.IsRunning()
					_ = sup.Snapshot()
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if err := sup.Restart(); err != nil {
			t.Fatalf("restart %d failed: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	if factory.doubleDispose {
		t.Fatalf("a service was disposed more than once")
	}
	if len(factory.eventLog()) != 41 {
		t.Fatalf("expected 21 creates and 20 disposes, got %d events", len(factory.eventLog()))
	}
}

func TestServiceFactoryFuncReceivesConfiguredAddress(t *testing.T) {
	backing := &MockFactory{}
	var gotHost string
	var gotPort uint16
	factory := ServiceFactoryFunc(func(host string, port uint16) (Service, error) {
		gotHost, gotPort = host, port
		return backing.Create(host, port)
	})

	sup := NewSupervisor(&config.Configuration{Host: "10.1.2.3", Port: 4000}, factory, &bytes.Buffer{})
	if err := sup.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if gotHost != "10.1.2.3" || gotPort != 4000 {
		t.Fatalf("expected 10.1.2.3:4000, got %s:%d", gotHost, gotPort)
	}
	if err := sup.Quit(); err != nil {
		t.Fatalf("quit failed: %v", err)
	}
	expectEvents(t, backing, "create svc-1", "dispose svc-1")
}
