package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
	"github.com/unquietwiki/changerawr-sub003/internal/testutil"
)

// mockJobSource records execution order and can inject failures.
type mockJobSource struct {
	mu       sync.Mutex
	due      []domain.ScheduledJob
	dueErr   error
	execErr  map[uuid.UUID]error
	executed []uuid.UUID
	ticks    int
}

func (s *mockJobSource) GetDueJobs(ctx context.Context, now time.Time) ([]domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	return s.due, nil
}

func (s *mockJobSource) ExecuteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.execErr[id]; err != nil {
		return false, err
	}
	s.executed = append(s.executed, id)
	return true, nil
}

func (s *mockJobSource) executedIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.executed))
	copy(out, s.executed)
	return out
}

func (s *mockJobSource) tickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func TestRunner_ProcessTick_ExecutesInOrder(t *testing.T) {
	first := domain.ScheduledJob{ID: uuid.New(), Type: domain.JobTypePublishChangelogEntry}
	second := domain.ScheduledJob{ID: uuid.New(), Type: domain.JobTypeTelemetrySend}
	source := &mockJobSource{due: []domain.ScheduledJob{first, second}}

	runner := NewRunner(RunnerConfig{Interval: time.Minute}, source, testutil.Logger())
	runner.processTick(context.Background(), context.Background())

	got := source.executedIDs()
	if len(got) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(got))
	}
	if got[0] != first.ID || got[1] != second.ID {
		t.Errorf("expected executions in due order, got %v", got)
	}
}

func TestRunner_ProcessTick_QueryFailureAbortsTick(t *testing.T) {
	source := &mockJobSource{dueErr: errors.New("db down")}

	runner := NewRunner(RunnerConfig{Interval: time.Minute}, source, testutil.Logger())
	runner.processTick(context.Background(), context.Background())

	if n := len(source.executedIDs()); n != 0 {
		t.Errorf("expected no executions after query failure, got %d", n)
	}
}

func TestRunner_ProcessTick_ExecutionErrorDoesNotStopTick(t *testing.T) {
	broken := domain.ScheduledJob{ID: uuid.New(), Type: domain.JobTypePublishChangelogEntry}
	healthy := domain.ScheduledJob{ID: uuid.New(), Type: domain.JobTypeTelemetrySend}
	source := &mockJobSource{
		due:     []domain.ScheduledJob{broken, healthy},
		execErr: map[uuid.UUID]error{broken.ID: errors.New("claim timeout")},
	}

	runner := NewRunner(RunnerConfig{Interval: time.Minute}, source, testutil.Logger())
	runner.processTick(context.Background(), context.Background())

	got := source.executedIDs()
	if len(got) != 1 || got[0] != healthy.ID {
		t.Errorf("expected the healthy job to still run, got %v", got)
	}
}

func TestRunner_ProcessTick_StopsOnContextCancel(t *testing.T) {
	jobs := []domain.ScheduledJob{
		{ID: uuid.New()},
		{ID: uuid.New()},
	}
	source := &mockJobSource{due: jobs}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(RunnerConfig{Interval: time.Minute}, source, testutil.Logger())
	runner.processTick(ctx, context.Background())

	if n := len(source.executedIDs()); n != 0 {
		t.Errorf("expected no executions with cancelled context, got %d", n)
	}
}

// blockingJobSource offers one job, then blocks its execution until release
// is closed. It records the state of the execution context at release time.
type blockingJobSource struct {
	started chan struct{}
	release chan struct{}

	mu       sync.Mutex
	offered  bool
	ctxErr   error
	finished bool
}

func newBlockingJobSource() *blockingJobSource {
	return &blockingJobSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingJobSource) GetDueJobs(ctx context.Context, now time.Time) ([]domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offered {
		return nil, nil
	}
	s.offered = true
	return []domain.ScheduledJob{{ID: uuid.New(), Type: domain.JobTypeTelemetrySend}}, nil
}

func (s *blockingJobSource) ExecuteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	close(s.started)
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErr = ctx.Err()
	s.finished = true
	return true, nil
}

func TestRunner_StopDoesNotAbortInFlightJob(t *testing.T) {
	source := newBlockingJobSource()

	runner := NewRunner(RunnerConfig{Interval: 5 * time.Millisecond}, source, testutil.Logger())
	runner.Start()

	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("execution never started")
	}

	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()

	// Let Stop's cancellation land while the job is still in flight, then
	// release the executor.
	time.Sleep(20 * time.Millisecond)
	close(source.release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if !source.finished {
		t.Fatal("in-flight job did not run to completion")
	}
	if source.ctxErr != nil {
		t.Errorf("execution context was cancelled by Stop: %v", source.ctxErr)
	}
}

func TestRunner_StartStop(t *testing.T) {
	source := &mockJobSource{}

	runner := NewRunner(RunnerConfig{Interval: 10 * time.Millisecond}, source, testutil.Logger())
	runner.Start()
	runner.Start() // second start is a no-op

	deadline := time.After(2 * time.Second)
	for source.tickCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("runner never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	runner.Stop()
	runner.Stop() // second stop is a no-op

	settled := source.tickCount()
	time.Sleep(50 * time.Millisecond)
	if source.tickCount() != settled {
		t.Error("runner kept ticking after Stop")
	}
}

func TestRunner_DefaultInterval(t *testing.T) {
	runner := NewRunner(RunnerConfig{}, &mockJobSource{}, testutil.Logger())
	if runner.config.Interval != DefaultPollInterval {
		t.Errorf("expected default interval %v, got %v", DefaultPollInterval, runner.config.Interval)
	}
}
