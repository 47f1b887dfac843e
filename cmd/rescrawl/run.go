package main

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	reportDir     string
	batchDelay    time.Duration
	continueOnErr bool
	noProgress    bool
)

var runCmd = &cobra.Command{
	Use:   "run <任务ID>...",
	Short: "立即执行任务",
	Long: `依次手动执行一个或多个任务, 结束后打印汇总。

示例:
  rescrawl run 1
  rescrawl run 1 2 3 --batch-delay 10s --continue-on-error --report reports`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseTaskIDs(args)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		runner, err := a.taskRunner(ctx)
		if err != nil {
			return err
		}

		stopProgress := func() {}
		if !noProgress {
			stopProgress = showProgress(ctx, runner)
		}

		startTime := time.Now()
		summary, err := core.NewBatchRunner(runner, batchDelay, continueOnErr).RunBatch(ctx, ids)
		stopProgress()
		if err != nil {
			return err
		}

		printBatchSummary(summary)

		if reportDir != "" {
			logs := make([]models.CrawlLog, 0, len(summary.Results))
			for _, result := range summary.Results {
				if result.RunID != "" {
					logs = append(logs, result.Log)
				}
			}
			path, err := utils.NewReporter(reportDir).WriteRunReport(logs, time.Since(startTime))
			if err != nil {
				return fmt.Errorf("生成执行报告失败: %w", err)
			}
			fmt.Printf("📄 执行报告: %s\n", path)
		}

		if summary.FailCount > 0 {
			return fmt.Errorf("%d个任务执行失败", summary.FailCount)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&reportDir, "report", "", "执行报告输出目录, 为空时不生成")
	runCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "任务之间的等待时间")
	runCmd.Flags().BoolVar(&continueOnErr, "continue-on-error", false, "任务失败后继续执行后续任务")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度")
}

// showProgress 定时刷新运行中任务的进度, 返回的函数用于停止刷新
func showProgress(ctx context.Context, runner *core.TaskRunner) func() {
	bar := utils.NewSpinner("等待任务启动")
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, id := range runner.RunningTasks() {
				if p, ok := runner.Progress(id); ok {
					bar.Describe(fmt.Sprintf("任务%d %s: 已爬取%d 新建%d 失败%d 待访问%d",
						id, p.State, p.Crawled, p.Success, p.Failed, p.Frontier))
				}
			}
			_ = bar.Add(1)
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}

// resultStatus 提交失败时显示错误, 否则显示执行日志状态
func resultStatus(result core.BatchResult) string {
	if result.Error != nil {
		return result.Error.Error()
	}
	status := result.Log.Status.String()
	if result.Log.ErrorMessage != "" {
		status += ": " + result.Log.ErrorMessage
	}
	return status
}

// printBatchSummary 在标准输出打印每个任务的结果
func printBatchSummary(summary *core.BatchSummary) {
	fmt.Println("\n📊 执行结果:")
	for _, result := range summary.Results {
		icon := "✅"
		if !result.Success() {
			icon = "❌"
		}
		fmt.Printf("  %s 任务%d [%s] 爬取%d 新建%d 失败%d 耗时%.1f秒\n",
			icon, result.TaskID, resultStatus(result),
			result.Log.CrawledCount, result.Log.SuccessCount, result.Log.FailedCount,
			result.Duration)
	}
	fmt.Printf("\n总计: %d个任务, 成功%d, 失败%d, 新建资源%d\n",
		summary.TotalTasks, summary.SuccessCount, summary.FailCount, summary.TotalCreated)
}
