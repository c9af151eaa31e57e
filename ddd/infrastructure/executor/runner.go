package executor

import (
	"context"
	"errors"
	"sync"

	"media-service/ddd/domain/port"
	"media-service/pkg/logger"
)

// ErrRunnerStopped is returned for jobs submitted to a pool that is not running.
var ErrRunnerStopped = errors.New("encoder pool is not running")

// InlineRunner runs each job on the submitting goroutine.
type InlineRunner struct {
	encoder port.Encoder
}

func NewInlineRunner(encoder port.Encoder) *InlineRunner {
	return &InlineRunner{encoder: encoder}
}

func (r *InlineRunner) Submit(ctx context.Context, job port.EncodeJob) port.EncodeFuture {
	return completed(r.encoder.Encode(ctx, job))
}

type poolItem struct {
	ctx context.Context
	job port.EncodeJob
	f   *future
}

// PoolRunner bounds the number of concurrent encoder processes.
// It is a background task: jobs are accepted between Start and Stop.
type PoolRunner struct {
	encoder port.Encoder
	workers int
	queue   chan poolItem

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewPoolRunner(encoder port.Encoder, workers, queueCapacity int) *PoolRunner {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}
	return &PoolRunner{
		encoder: encoder,
		workers: workers,
		queue:   make(chan poolItem, queueCapacity),
	}
}

func (p *PoolRunner) Name() string { return "encoder-pool" }

func (p *PoolRunner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx)
	}
	logger.Infof("encoder pool started workers=%d queue=%d", p.workers, cap(p.queue))
	return nil
}

// Stop rejects new jobs, fails queued ones and waits for running encodes to return.
func (p *PoolRunner) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	for {
		select {
		case item := <-p.queue:
			item.f.complete(nil, ErrRunnerStopped)
		default:
			logger.Infof("encoder pool stopped")
			return nil
		}
	}
}

func (p *PoolRunner) Submit(ctx context.Context, job port.EncodeJob) port.EncodeFuture {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return completed(nil, ErrRunnerStopped)
	}
	item := poolItem{ctx: ctx, job: job, f: newFuture()}
	select {
	case p.queue <- item:
		return item.f
	case <-ctx.Done():
		return completed(nil, ctx.Err())
	}
}

func (p *PoolRunner) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			if err := item.ctx.Err(); err != nil {
				item.f.complete(nil, err)
				continue
			}
			item.f.complete(p.encoder.Encode(item.ctx, item.job))
		}
	}
}
