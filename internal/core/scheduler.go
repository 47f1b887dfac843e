package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// Starter 提交任务执行, 由 TaskRunner 实现
type Starter interface {
	Start(taskID int64, executeType models.ExecuteType) (string, error)
}

type schedule struct {
	interval time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
}

// Scheduler 按任务的爬取间隔定时触发执行
// 每个周期任务一个ticker, 间隔 = CrawlInterval * unit
type Scheduler struct {
	runner Starter
	tasks  TaskStore
	unit   time.Duration

	mu        sync.Mutex
	schedules map[int64]*schedule
	ctx       context.Context
	wg        sync.WaitGroup
}

// NewScheduler 创建调度器, unit 为间隔单位, 正常为1小时
func NewScheduler(runner Starter, tasks TaskStore, unit time.Duration) *Scheduler {
	if unit <= 0 {
		unit = time.Hour
	}
	return &Scheduler{
		runner:    runner,
		tasks:     tasks,
		unit:      unit,
		schedules: make(map[int64]*schedule),
	}
}

// Start 加载所有周期任务并开始调度
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	return s.Reload(ctx)
}

// Reload 按当前任务定义同步ticker
// 新增的周期任务开始调度, 停用或间隔被清零的任务停止调度, 间隔变化的任务重新计时
func (s *Scheduler) Reload(ctx context.Context) error {
	tasks, err := s.tasks.ListTasks(ctx, true)
	if err != nil {
		return err
	}

	wanted := make(map[int64]time.Duration)
	for _, task := range tasks {
		if task.Recurring() {
			wanted[task.ID] = time.Duration(task.CrawlInterval) * s.unit
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		s.ctx = ctx
	}

	for id, sch := range s.schedules {
		interval, ok := wanted[id]
		if !ok || interval != sch.interval {
			s.remove(id, sch)
		}
	}

	for id, interval := range wanted {
		if _, ok := s.schedules[id]; ok {
			continue
		}
		s.add(id, interval)
	}

	utils.Infof("调度器已加载%d个周期任务", len(s.schedules))
	return nil
}

// add 调用方持有锁
func (s *Scheduler) add(taskID int64, interval time.Duration) {
	sch := &schedule{
		interval: interval,
		ticker:   time.NewTicker(interval),
		stop:     make(chan struct{}),
	}
	s.schedules[taskID] = sch

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sch.stop:
				return
			case <-sch.ticker.C:
				s.fire(taskID)
			}
		}
	}()

	utils.Debugf("任务[%d]已加入调度, 间隔 %v", taskID, interval)
}

// remove 调用方持有锁
func (s *Scheduler) remove(taskID int64, sch *schedule) {
	sch.ticker.Stop()
	close(sch.stop)
	delete(s.schedules, taskID)
	utils.Debugf("任务[%d]已移出调度", taskID)
}

func (s *Scheduler) fire(taskID int64) {
	runID, err := s.runner.Start(taskID, models.ExecuteScheduled)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		utils.Infof("任务[%d]上一次执行尚未结束, 跳过本次定时触发", taskID)
	case err != nil:
		utils.Logger.Error().Err(err).Int64("task_id", taskID).Msg("定时触发任务失败")
	default:
		utils.Logger.Info().Int64("task_id", taskID).Str("run_id", runID).Msg("定时触发任务")
	}
}

// TriggerNow 立即执行一次, 不影响定时节奏
func (s *Scheduler) TriggerNow(taskID int64) (string, error) {
	return s.runner.Start(taskID, models.ExecuteManual)
}

// Scheduled 正在调度的任务ID, 升序
func (s *Scheduler) Scheduled() []int64 {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.schedules))
	for id := range s.schedules {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stop 停止所有ticker并等待调度协程退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, sch := range s.schedules {
		s.remove(id, sch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
