package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/service"
)

type MockTask struct {
	mock.Mock
}

func (m *MockTask) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type panickingTask struct {
	mu    sync.Mutex
	calls int
}

func (p *panickingTask) Run(context.Context) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	panic("boom")
}

func (p *panickingTask) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type MockSessionEvictor struct {
	mock.Mock
}

func (m *MockSessionEvictor) Sweep() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockSessionEvictor) Len() int {
	args := m.Called()
	return args.Int(0)
}

func TestWorker_StartStop(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything).Return(nil)

	worker := NewWorker("test", task, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	worker.Stop()
	worker.Stop()
	wg.Wait()

	task.AssertCalled(t, "Run", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything).Return(nil)

	worker := NewWorker("test", task, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	task.AssertCalled(t, "Run", mock.Anything)
}

func TestWorker_SurvivesPanics(t *testing.T) {
	task := &panickingTask{}
	worker := NewWorker("test", task, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	assert.Eventually(t, func() bool { return task.Calls() >= 2 }, 2*time.Second, 10*time.Millisecond)
	worker.Stop()
}

func TestWorker_NonPositiveIntervalDisables(t *testing.T) {
	task := new(MockTask)
	worker := NewWorker("test", task, 0)

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker did not return")
	}
	worker.Stop()
	task.AssertNotCalled(t, "Run", mock.Anything)
}

func TestSessionSweeper_Run(t *testing.T) {
	evictor := new(MockSessionEvictor)
	evictor.On("Sweep").Return(2)
	evictor.On("Len").Return(1)

	err := NewSessionSweeper(evictor).Run(context.Background())
	assert.NoError(t, err)
	evictor.AssertExpectations(t)
}

func TestSessionSweeper_NothingToEvict(t *testing.T) {
	evictor := new(MockSessionEvictor)
	evictor.On("Sweep").Return(0)

	err := NewSessionSweeper(evictor).Run(context.Background())
	assert.NoError(t, err)
	evictor.AssertNotCalled(t, "Len")
}

func TestSessionSweeper_CancelledContext(t *testing.T) {
	evictor := new(MockSessionEvictor)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSessionSweeper(evictor).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	evictor.AssertNotCalled(t, "Sweep")
}

func TestSessionSweeper_WithRegistry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	registry := service.NewSessionRegistry(time.Minute)
	registry.SetClock(func() time.Time { return now })
	registry.GetOrCreate("")
	registry.GetOrCreate("")

	now = now.Add(2 * time.Minute)
	require.NoError(t, NewSessionSweeper(registry).Run(context.Background()))
	assert.Equal(t, 0, registry.Len())
}
