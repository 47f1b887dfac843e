package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// RunnerDeps 执行器依赖
type RunnerDeps struct {
	Tasks      TaskStore
	Logs       LogSink
	Resources  ResourceSink
	Images     ImagePipeline
	Categories CategoryProvider
	Robots     RobotsChecker
	Fetcher    crawlers.Fetcher
	UploaderID int64
}

// TaskRunner 任务执行器
// 提交后立即返回, 任务在协程池中执行到结束; 同一任务同时只有一次执行
type TaskRunner struct {
	config RunnerConfig
	crawl  models.CrawlConfig
	deps   RunnerDeps

	registry *Registry
	pool     *WorkerPool

	ctx    context.Context
	cancel context.CancelFunc

	// now 可替换的时钟
	now func() time.Time

	mu       sync.Mutex
	lastLogs map[int64]models.CrawlLog
	closed   bool
}

// NewTaskRunner 创建并启动执行器
func NewTaskRunner(ctx context.Context, config RunnerConfig, crawl models.CrawlConfig, deps RunnerDeps) *TaskRunner {
	if config.Workers < 1 {
		config.Workers = DefaultWorkers
	}
	if config.IntervalUnit <= 0 {
		config.IntervalUnit = time.Hour
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &TaskRunner{
		config:   config,
		crawl:    crawl,
		deps:     deps,
		registry: NewRegistry(),
		pool:     NewWorkerPool(runCtx, config.Workers, config.QueueSize),
		ctx:      runCtx,
		cancel:   cancel,
		now:      time.Now,
		lastLogs: make(map[int64]models.CrawlLog),
	}
	r.pool.Start()
	return r
}

// Start 提交任务, 返回本次执行的ID
// 任务正在执行时返回 ErrAlreadyRunning, 不会排队
func (r *TaskRunner) Start(taskID int64, executeType models.ExecuteType) (string, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return "", ErrRunnerClosed
	}

	runID := models.NewRunID()
	if err := r.registry.TryAcquire(taskID, runID); err != nil {
		return "", err
	}

	err := r.pool.Submit(func(ctx context.Context) {
		r.execute(ctx, taskID, runID, executeType)
	})
	if err != nil {
		r.registry.Release(taskID)
		return "", err
	}

	logger := utils.TaskLogger(taskID, runID)
	logger.Info().Str("execute_type", string(executeType)).Msg("任务已提交执行")
	return runID, nil
}

// Stop 请求停止任务, 任务会在下一个检查点结束
func (r *TaskRunner) Stop(taskID int64) error {
	if err := r.registry.RequestStop(taskID); err != nil {
		return err
	}
	logger := utils.TaskLogger(taskID, "")
	logger.Info().Msg("已请求停止任务")
	return nil
}

// IsRunning 任务是否正在执行
func (r *TaskRunner) IsRunning(taskID int64) bool {
	return r.registry.IsRunning(taskID)
}

// RunningTasks 正在执行的任务ID
func (r *TaskRunner) RunningTasks() []int64 {
	return r.registry.Running()
}

// Progress 正在执行的任务进度
func (r *TaskRunner) Progress(taskID int64) (models.ProgressSnapshot, bool) {
	return r.registry.Progress(taskID)
}

// LastLog 任务最近一次结束的执行日志
func (r *TaskRunner) LastLog(taskID int64) (models.CrawlLog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lastLogs[taskID]
	return l, ok
}

// Wait 等待任务本次执行结束, 任务未在执行时立即返回
func (r *TaskRunner) Wait(ctx context.Context, taskID int64) error {
	done := r.registry.Done(taskID)
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 取消所有执行并等待结束
// 正在执行的任务在下一个检查点以停止状态结束
func (r *TaskRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.pool.Stop()
	utils.Info("任务执行器已关闭")
}

// execute 一次完整执行, 在worker中运行
func (r *TaskRunner) execute(ctx context.Context, taskID int64, runID string, executeType models.ExecuteType) {
	defer r.registry.Release(taskID)

	// 日志与统计在执行被取消后仍需写入
	persistCtx := context.WithoutCancel(ctx)

	runLog := &models.CrawlLog{
		RunID:       runID,
		TaskID:      taskID,
		ExecuteType: executeType,
		Status:      models.LogStatusRunning,
		StartTime:   r.now(),
	}

	task, err := r.deps.Tasks.GetTask(ctx, taskID)
	if err == nil && task == nil {
		err = ErrTaskNotFound
	}
	if task != nil {
		runLog.TaskName = task.Name
	}
	r.createLog(persistCtx, runLog)

	if err != nil {
		r.finalize(persistCtx, nil, runLog, RunResult{State: StateFailed, Err: fmt.Errorf("加载任务[%d]失败: %w", taskID, err)})
		return
	}

	result := r.runTask(ctx, task, runID)
	r.finalize(persistCtx, task, runLog, result)
}

// runTask 执行爬取, panic被转换为失败结果
func (r *TaskRunner) runTask(ctx context.Context, task *models.CrawlerTask, runID string) (result RunResult) {
	var crawler *Crawler
	defer func() {
		if p := recover(); p != nil {
			result = RunResult{State: StateFailed, Err: fmt.Errorf("执行过程中发生异常: %v", p)}
			if crawler != nil {
				progress := crawler.Progress()
				result.Crawled, result.Success, result.Failed = progress.Crawled, progress.Success, progress.Failed
			}
			logger := utils.TaskLogger(task.ID, runID)
			logger.Error().Msgf("任务执行异常: %v", p)
		}
	}()

	crawler = NewCrawler(task, r.crawl, CrawlerDeps{
		Fetcher:    r.deps.Fetcher,
		Robots:     r.deps.Robots,
		Resources:  r.deps.Resources,
		Images:     r.deps.Images,
		Categories: r.deps.Categories,
		UploaderID: r.deps.UploaderID,
	}, runID, func() bool { return r.registry.StopRequested(task.ID) })
	r.registry.attach(task.ID, crawler)

	return crawler.Run(ctx)
}

// finalize 补全执行日志并回写任务统计
// 这里的存储错误只记录日志
func (r *TaskRunner) finalize(ctx context.Context, task *models.CrawlerTask, runLog *models.CrawlLog, result RunResult) {
	end := r.now()
	runLog.Finish(end)
	runLog.CrawledCount = result.Crawled
	runLog.SuccessCount = result.Success
	runLog.FailedCount = result.Failed

	switch result.State {
	case StateCompleted:
		runLog.Status = models.LogStatusSuccess
	case StateStopped:
		runLog.Status = models.LogStatusFailed
		runLog.ErrorMessage = models.StopMessage
	default:
		runLog.Status = models.LogStatusFailed
		runLog.ErrorMessage = crawlers.Format(result.Err)
		runLog.ErrorType = crawlers.Classify(result.Err).Code()
	}

	r.updateLog(ctx, runLog)
	// 失败的执行只记录在日志中, 不计入任务统计
	if task != nil && result.State != StateFailed {
		r.updateTask(ctx, task, result, end)
	}

	r.mu.Lock()
	r.lastLogs[runLog.TaskID] = *runLog
	r.mu.Unlock()

	logger := utils.TaskLogger(runLog.TaskID, runLog.RunID)
	logger.Info().
		Int("status", int(runLog.Status)).
		Int64("duration", runLog.Duration).
		Msg("任务执行完成")
}

func (r *TaskRunner) updateTask(ctx context.Context, task *models.CrawlerTask, result RunResult, end time.Time) {
	// 执行期间任务定义可能被修改, 以最新数据为准
	current, err := r.deps.Tasks.GetTask(ctx, task.ID)
	if err != nil || current == nil {
		current = task
	}

	current.TotalCrawled += result.Crawled
	current.TotalSuccess += result.Success
	current.TotalFailed += result.Failed
	current.LastExecuteTime = &end
	if result.State == StateCompleted && current.Recurring() {
		next := end.Add(time.Duration(current.CrawlInterval) * r.config.IntervalUnit)
		current.NextExecuteTime = &next
	}

	if err := r.deps.Tasks.UpdateTask(ctx, current); err != nil {
		logger := utils.TaskLogger(task.ID, "")
		logger.Error().Err(err).Msg("更新任务统计失败")
	}
}

func (r *TaskRunner) createLog(ctx context.Context, runLog *models.CrawlLog) {
	if r.deps.Logs == nil {
		return
	}
	if err := r.deps.Logs.CreateLog(ctx, runLog); err != nil {
		logger := utils.TaskLogger(runLog.TaskID, runLog.RunID)
		logger.Error().Err(err).Msg("创建执行日志失败")
	}
}

func (r *TaskRunner) updateLog(ctx context.Context, runLog *models.CrawlLog) {
	if r.deps.Logs == nil {
		return
	}
	if err := r.deps.Logs.UpdateLog(ctx, runLog); err != nil {
		logger := utils.TaskLogger(runLog.TaskID, runLog.RunID)
		logger.Error().Err(err).Msg("更新执行日志失败")
	}
}
