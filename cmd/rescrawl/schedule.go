package main

import (
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/spf13/cobra"
)

var reloadInterval time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "按任务间隔定时执行",
	Long: `为所有启用且设置了爬取间隔的任务安排周期执行, 直到收到中断信号。
任务表的变化每隔 --reload 重新加载一次。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		scheduler := core.NewScheduler(runner, a.store, a.config.Runner.IntervalUnit)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()

		utils.Infof("⏰ 调度已启动: %d个周期任务", len(scheduler.Scheduled()))

		ticker := time.NewTicker(reloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				utils.Info("调度已停止")
				return nil
			case <-ticker.C:
				if err := scheduler.Reload(ctx); err != nil {
					utils.Warnf("重新加载任务失败: %v", err)
					continue
				}
				utils.Debugf("已重新加载任务, 周期任务: %v", scheduler.Scheduled())
			}
		}
	},
}

func init() {
	scheduleCmd.Flags().DurationVar(&reloadInterval, "reload", time.Minute, "重新加载任务表的间隔")
}
