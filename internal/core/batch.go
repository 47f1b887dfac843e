package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// BatchResult 批量执行中单个任务的结果
type BatchResult struct {
	TaskID   int64
	RunID    string
	Log      models.CrawlLog
	Error    error // 提交失败时非空
	Duration float64
}

// Success 执行是否成功结束
func (r BatchResult) Success() bool {
	return r.Error == nil && r.Log.Status == models.LogStatusSuccess
}

// BatchSummary 批量执行摘要
type BatchSummary struct {
	TotalTasks    int
	SuccessCount  int
	FailCount     int
	TotalCrawled  int
	TotalCreated  int
	TotalDuration float64
	Results       []BatchResult
}

// BatchRunner 依次执行多个任务并汇总结果
// 任务之间串行, 每个任务内部仍按正常流程执行
type BatchRunner struct {
	runner        *TaskRunner
	batchDelay    time.Duration
	continueOnErr bool
}

// NewBatchRunner 创建批量执行器
func NewBatchRunner(runner *TaskRunner, batchDelay time.Duration, continueOnErr bool) *BatchRunner {
	return &BatchRunner{
		runner:        runner,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
	}
}

// RunBatch 依次执行任务列表
func (b *BatchRunner) RunBatch(ctx context.Context, taskIDs []int64) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量执行: %d个任务", len(taskIDs))

	summary := &BatchSummary{
		TotalTasks: len(taskIDs),
		Results:    make([]BatchResult, 0, len(taskIDs)),
	}
	startTime := time.Now()

	for i, taskID := range taskIDs {
		utils.Infof("==================== [%d/%d] 任务 %d ====================", i+1, len(taskIDs), taskID)

		result := b.runSingle(ctx, taskID)
		summary.Results = append(summary.Results, result)
		summary.TotalCrawled += result.Log.CrawledCount
		summary.TotalCreated += result.Log.SuccessCount

		if result.Success() {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 任务执行失败: %s", result.failure())
			if !b.continueOnErr {
				utils.Warn("批量执行中止 (--continue-on-error=false)")
				break
			}
		}

		if ctx.Err() != nil {
			break
		}
		if i < len(taskIDs)-1 && b.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(b.batchDelay):
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	b.printSummary(summary)

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	return summary, nil
}

func (b *BatchRunner) runSingle(ctx context.Context, taskID int64) BatchResult {
	result := BatchResult{TaskID: taskID}
	startTime := time.Now()

	runID, err := b.runner.Start(taskID, models.ExecuteManual)
	if err != nil {
		result.Error = fmt.Errorf("提交任务失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}
	result.RunID = runID

	if err := b.runner.Wait(ctx, taskID); err != nil {
		result.Error = err
		result.Duration = time.Since(startTime).Seconds()
		return result
	}
	if l, ok := b.runner.LastLog(taskID); ok && l.RunID == runID {
		result.Log = l
	}
	result.Duration = time.Since(startTime).Seconds()
	return result
}

func (r BatchResult) failure() string {
	if r.Error != nil {
		return r.Error.Error()
	}
	return r.Log.ErrorMessage
}

// printSummary 打印批量执行摘要
func (b *BatchRunner) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量执行摘要")
	utils.Info("==================================================")
	utils.Infof("总任务数: %d", summary.TotalTasks)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📦 爬取资源: %d, 新建资源: %d", summary.TotalCrawled, summary.TotalCreated)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的任务:")
		for _, result := range summary.Results {
			if !result.Success() {
				utils.Warnf("  - 任务%d: %s", result.TaskID, result.failure())
			}
		}
	}
}
