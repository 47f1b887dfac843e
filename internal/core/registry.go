package core

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// runEntry 一个正在执行的任务
type runEntry struct {
	runID   string
	stop    atomic.Bool
	crawler atomic.Pointer[Crawler]
	done    chan struct{}
}

// Registry 正在执行的任务及其停止标记
// 多个worker并发访问, 保证同一任务同时只有一次执行
type Registry struct {
	mu   sync.Mutex
	runs map[int64]*runEntry
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{runs: make(map[int64]*runEntry)}
}

// TryAcquire 登记任务开始执行, 任务已在执行时返回 ErrAlreadyRunning
func (r *Registry) TryAcquire(taskID int64, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[taskID]; ok {
		return ErrAlreadyRunning
	}
	r.runs[taskID] = &runEntry{runID: runID, done: make(chan struct{})}
	return nil
}

// RunID 正在执行的任务的执行ID
func (r *Registry) RunID(taskID int64) (string, bool) {
	if entry := r.get(taskID); entry != nil {
		return entry.runID, true
	}
	return "", false
}

// Release 清除任务的执行状态和停止标记
func (r *Registry) Release(taskID int64) {
	r.mu.Lock()
	entry, ok := r.runs[taskID]
	delete(r.runs, taskID)
	r.mu.Unlock()

	if ok {
		close(entry.done)
	}
}

// Done 任务结束时关闭的通道, 任务未在执行时返回nil
func (r *Registry) Done(taskID int64) <-chan struct{} {
	if entry := r.get(taskID); entry != nil {
		return entry.done
	}
	return nil
}

// RequestStop 设置停止标记, 任务未在执行时返回 ErrNotRunning
func (r *Registry) RequestStop(taskID int64) error {
	entry := r.get(taskID)
	if entry == nil {
		return ErrNotRunning
	}
	entry.stop.Store(true)
	return nil
}

// StopRequested 任务是否已被要求停止
func (r *Registry) StopRequested(taskID int64) bool {
	entry := r.get(taskID)
	return entry != nil && entry.stop.Load()
}

// IsRunning 任务是否正在执行
func (r *Registry) IsRunning(taskID int64) bool {
	return r.get(taskID) != nil
}

// Running 正在执行的任务ID, 升序
func (r *Registry) Running() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// attach 关联任务当前的爬取器, 用于读取进度
func (r *Registry) attach(taskID int64, c *Crawler) {
	if entry := r.get(taskID); entry != nil {
		entry.crawler.Store(c)
	}
}

// Progress 正在执行的任务进度
func (r *Registry) Progress(taskID int64) (models.ProgressSnapshot, bool) {
	entry := r.get(taskID)
	if entry == nil {
		return models.ProgressSnapshot{}, false
	}
	if c := entry.crawler.Load(); c != nil {
		return c.Progress(), true
	}
	return models.ProgressSnapshot{RunID: entry.runID, State: string(StateIdle)}, true
}

func (r *Registry) get(taskID int64) *runEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[taskID]
}
