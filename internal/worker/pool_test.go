package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countJob struct {
	counter *atomic.Int64
}

type countResult struct {
	err error
}

func (r *countResult) GetError() error { return r.err }

func (j *countJob) Execute(_ context.Context) Result {
	j.counter.Add(1)
	return &countResult{}
}

func TestPool_ExecutesAllJobs(t *testing.T) {
	pool := NewPool(4)
	pool.Start()

	var counter atomic.Int64
	const jobs = 50
	for i := 0; i < jobs; i++ {
		pool.Submit(&countJob{counter: &counter})
	}

	results := pool.Wait()
	if len(results) != jobs {
		t.Errorf("Expected %d results, got %d", jobs, len(results))
	}
	if counter.Load() != jobs {
		t.Errorf("Expected %d executions, got %d", jobs, counter.Load())
	}
}

func TestPool_WaitIsJoinBarrier(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	var counter atomic.Int64
	slow := func() Job {
		return jobFunc(func(ctx context.Context) Result {
			time.Sleep(10 * time.Millisecond)
			counter.Add(1)
			return &countResult{}
		})
	}
	for i := 0; i < 6; i++ {
		pool.Submit(slow())
	}

	_ = pool.Wait()
	if counter.Load() != 6 {
		t.Errorf("Wait returned before all jobs finished: %d/6", counter.Load())
	}
}

func TestPool_ZeroWorkersClamped(t *testing.T) {
	pool := NewPool(0)
	pool.Start()

	var counter atomic.Int64
	pool.Submit(&countJob{counter: &counter})
	results := pool.Wait()
	if len(results) != 1 {
		t.Errorf("Expected 1 result with clamped worker count, got %d", len(results))
	}
}

// jobFunc adapts a function to the Job interface
type jobFunc func(ctx context.Context) Result

func (f jobFunc) Execute(ctx context.Context) Result { return f(ctx) }

func TestLimiter_AllowWithinBurst(t *testing.T) {
	limiter := NewLimiter(1, 2)

	if !limiter.Allow("https://example.com/a") {
		t.Error("Expected first request allowed")
	}
	if !limiter.Allow("https://example.com/b") {
		t.Error("Expected second request within burst allowed")
	}
	if limiter.Allow("https://example.com/c") {
		t.Error("Expected third request over burst denied")
	}

	// Separate domains hold separate budgets
	if !limiter.Allow("https://other.example.net/a") {
		t.Error("Expected other domain unaffected")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	// Drain the burst token
	_ = limiter.Allow("https://example.com/")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "https://example.com/"); err == nil {
		t.Error("Expected context deadline to interrupt the wait")
	}
}

func TestLimiter_SetDomainRate(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	limiter.SetDomainRate("fast.example.com", 1000, 10)

	for i := 0; i < 5; i++ {
		if !limiter.Allow("https://fast.example.com/x") {
			t.Fatalf("Expected raised domain rate to allow request %d", i)
		}
	}
}
