package core

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

const (
	// DefaultWorkers 同时执行的任务数
	DefaultWorkers = 5

	// DefaultQueueSize 等待空闲worker的任务上限
	DefaultQueueSize = 100
)

// job 池中的一个工作单元, 一个任务的完整执行
type job func(ctx context.Context)

// WorkerPool 固定数量的worker从队列中取任务执行
// 每个worker一次只执行一个任务, 直到任务结束才取下一个
// 执行中加排队的任务数不超过 size+queueSize
type WorkerPool struct {
	wg    sync.WaitGroup
	ctx   context.Context
	size  int
	queue chan job

	// slots 每个已接受且未结束的任务占一个
	slots chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool 创建协程池, ctx传给每个任务
func NewWorkerPool(ctx context.Context, size, queueSize int) *WorkerPool {
	if size < 1 {
		size = DefaultWorkers
	}
	if queueSize < 0 {
		queueSize = 0
	}
	capacity := size + queueSize
	return &WorkerPool{
		ctx:   ctx,
		size:  size,
		queue: make(chan job, capacity),
		slots: make(chan struct{}, capacity),
	}
}

// Start 启动worker
func (p *WorkerPool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.work(id)
		}(i)
	}
	utils.Debugf("任务协程池已启动: %d个worker", p.size)
}

// work 执行队列中的任务直到队列关闭
// ctx取消后剩余任务仍会被取出, 由任务自己在检查点结束
func (p *WorkerPool) work(id int) {
	for fn := range p.queue {
		p.run(fn)
	}
	utils.Debugf("worker[%d] 已退出", id)
}

func (p *WorkerPool) run(fn job) {
	defer func() { <-p.slots }()
	fn(p.ctx)
}

// Submit 非阻塞提交, 执行中和排队的任务已达上限时返回 ErrPoolFull
func (p *WorkerPool) Submit(fn job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrRunnerClosed
	}
	select {
	case p.slots <- struct{}{}:
	default:
		return ErrPoolFull
	}
	// queue 与 slots 容量相同, 拿到名额后发送不会阻塞
	p.queue <- fn
	return nil
}

// Pending 等待执行的任务数
func (p *WorkerPool) Pending() int {
	return len(p.queue)
}

// Active 已接受且未结束的任务数, 包括排队中的
func (p *WorkerPool) Active() int {
	return len(p.slots)
}

// Stop 不再接受新任务, 等待队列中的任务全部结束
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
