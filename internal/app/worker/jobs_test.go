package worker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"study_sync/internal/app/service"
	"study_sync/internal/common"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	ttls     map[string]time.Duration
	released int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}, ttls: map[string]time.Duration{}}
}

func (l *memLocker) Acquire(_ context.Context, job string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[job] {
		return nil, common.ErrLockHeld
	}
	l.held[job] = true
	l.ttls[job] = ttl
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, job)
		l.released++
	}, nil
}

type stubSubmissions struct {
	calls         int32
	remote, local string
	err           error
}

func (s *stubSubmissions) Run(_ context.Context, remote, local string) (*service.SyncSummary, error) {
	atomic.AddInt32(&s.calls, 1)
	s.remote, s.local = remote, local
	if s.err != nil {
		return nil, s.err
	}
	return &service.SyncSummary{Registered: 1}, nil
}

type stubCatalog struct{ calls int32 }

func (s *stubCatalog) Run(context.Context) (*service.IngestSummary, error) {
	atomic.AddInt32(&s.calls, 1)
	return &service.IngestSummary{Ingested: 2}, nil
}

func newTestJobs(subs SubmissionRunner, cat CatalogRunner, locker Locker) *Jobs {
	return NewJobs(subs, cat, locker, JobsConfig{
		RemoteUsername: "celana",
		LocalUsername:  "julius",
		SyncLockTTL:    time.Minute,
		IngestLockTTL:  time.Hour,
	}, zerolog.Nop())
}

func TestJobsRunUnderLock(t *testing.T) {
	locker := newMemLocker()
	subs := &stubSubmissions{}
	jobs := newTestJobs(subs, &stubCatalog{}, locker)

	summary, err := jobs.RunSubmissions(context.Background())
	if err != nil || summary.Registered != 1 {
		t.Fatalf("RunSubmissions() = %+v, %v", summary, err)
	}
	if subs.remote != "celana" || subs.local != "julius" {
		t.Errorf("usernames = %q, %q", subs.remote, subs.local)
	}
	if _, err := jobs.RunCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	if locker.released != 2 || len(locker.held) != 0 {
		t.Errorf("released = %d, held = %v", locker.released, locker.held)
	}
	if locker.ttls[JobSubmissions] != time.Minute || locker.ttls[JobCatalog] != time.Hour {
		t.Errorf("ttls = %v", locker.ttls)
	}
}

func TestJobsRejectConcurrentRun(t *testing.T) {
	locker := newMemLocker()
	locker.held[JobSubmissions] = true
	subs := &stubSubmissions{}

	_, err := newTestJobs(subs, nil, locker).RunSubmissions(context.Background())
	if !errors.Is(err, common.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}
	if subs.calls != 0 {
		t.Error("run must not start without the lock")
	}
}

func TestJobsReleaseLockOnFailure(t *testing.T) {
	locker := newMemLocker()
	subs := &stubSubmissions{err: common.ErrRemoteUnavailable}

	if _, err := newTestJobs(subs, nil, locker).RunSubmissions(context.Background()); !errors.Is(err, common.ErrRemoteUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if locker.held[JobSubmissions] {
		t.Error("lock still held after a failed run")
	}
}

func TestJobsWithoutLockerOrRunner(t *testing.T) {
	jobs := newTestJobs(&stubSubmissions{}, nil, nil)
	if _, err := jobs.RunSubmissions(context.Background()); err != nil {
		t.Errorf("unguarded run: %v", err)
	}
	if _, err := jobs.RunCatalog(context.Background()); !errors.Is(err, common.ErrServiceUnavailable) {
		t.Errorf("missing catalog runner: err = %v", err)
	}
}

func TestPeriodicJobRunsImmediatelyAndOnTicks(t *testing.T) {
	var runs int32
	job := NewPeriodicJob("test", 10*time.Millisecond, func(context.Context) error {
		if atomic.AddInt32(&runs, 1) == 2 {
			return common.ErrLockHeld
		}
		return nil
	}, zerolog.Nop())

	var _ suture.Service = job

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	if err := job.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context error", err)
	}
	if n := atomic.LoadInt32(&runs); n < 3 {
		t.Errorf("runs = %d, want the schedule to survive a skipped run", n)
	}
}

func TestPeriodicJobStopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var runs int32
	job := NewPeriodicJob("test", time.Hour, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- job.Serve(ctx) }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if job.String() != "periodic-test" {
		t.Errorf("String() = %q", job.String())
	}
}

type mockHTTPServer struct {
	listenErr error
	stopCh    chan struct{}
	shutdowns int32
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	atomic.AddInt32(&m.shutdowns, 1)
	close(m.stopCh)
	return nil
}

func TestHTTPServerServiceShutsDownOnCancel(t *testing.T) {
	srv := &mockHTTPServer{stopCh: make(chan struct{})}
	svc := NewHTTPServerService(srv, 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("default timeout = %v", svc.shutdownTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if atomic.LoadInt32(&srv.shutdowns) != 1 {
		t.Errorf("shutdowns = %d", srv.shutdowns)
	}
}

func TestHTTPServerServiceReportsListenFailure(t *testing.T) {
	srv := &mockHTTPServer{listenErr: errors.New("address already in use"), stopCh: make(chan struct{})}
	err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
	if err == nil {
		t.Fatal("want listen error")
	}
}

func TestJobsRunSubmissionsForOverridesUsers(t *testing.T) {
	subs := &stubSubmissions{}
	jobs := newTestJobs(subs, nil, nil)

	if _, err := jobs.RunSubmissionsFor(context.Background(), "other", ""); err != nil {
		t.Fatal(err)
	}
	if subs.remote != "other" || subs.local != "julius" {
		t.Errorf("usernames = %q, %q", subs.remote, subs.local)
	}
	if _, err := jobs.RunSubmissions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if subs.remote != "celana" || subs.local != "julius" {
		t.Errorf("override leaked into the configured pair: %q, %q", subs.remote, subs.local)
	}

	empty := NewJobs(subs, nil, nil, JobsConfig{}, zerolog.Nop())
	if _, err := empty.RunSubmissionsFor(context.Background(), "", ""); !errors.Is(err, common.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestJobsStartCatalogHoldsLockUntilDone(t *testing.T) {
	locker := newMemLocker()
	cat := &blockingCatalog{release: make(chan struct{}), done: make(chan struct{})}
	jobs := newTestJobs(nil, cat, locker)

	if err := jobs.StartCatalog(context.Background()); err != nil {
		t.Fatalf("StartCatalog() error = %v", err)
	}
	if err := jobs.StartCatalog(context.Background()); !errors.Is(err, common.ErrLockHeld) {
		t.Errorf("second start: err = %v, want ErrLockHeld", err)
	}
	close(cat.release)
	<-cat.done

	deadline := time.Now().Add(time.Second)
	for {
		locker.mu.Lock()
		held := locker.held[JobCatalog]
		locker.mu.Unlock()
		if !held {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lock not released after the run finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type blockingCatalog struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingCatalog) Run(context.Context) (*service.IngestSummary, error) {
	<-b.release
	close(b.done)
	return &service.IngestSummary{}, nil
}
