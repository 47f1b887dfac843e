package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	newTask     taskFlags
	importDepth int
	listAll     bool
	logLimit    int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "管理爬虫任务",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "添加任务",
	Long: `添加一个爬虫任务。

示例:
  rescrawl task add --name 示例站 --url https://example.com/list --depth 3 --interval 24
  rescrawl task add --name 规则站 --url https://example.com/list --intelligent=false \
    --rules '{"resourceLinkSelector":".item a","titleSelector":"h1"}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		normalized, err := NormalizeURL(newTask.url)
		if err != nil {
			return err
		}
		newTask.url = normalized
		if err := ValidateTaskFlags(newTask); err != nil {
			return err
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		task := &models.CrawlerTask{
			Name:            strings.TrimSpace(newTask.name),
			TargetURL:       newTask.url,
			Status:          models.TaskStatusEnabled,
			CrawlInterval:   newTask.interval,
			MaxDepth:        newTask.depth,
			IntelligentMode: newTask.intelligent,
			CustomRules:     newTask.customRules,
			CategoryMapping: newTask.categoryMapping,
		}
		if newTask.disabled {
			task.Status = models.TaskStatusDisabled
		}
		if err := a.store.AddTask(context.Background(), task); err != nil {
			return err
		}
		fmt.Printf("✅ 已添加任务 %d: %s\n", task.ID, task.Name)
		return nil
	},
}

var taskImportCmd = &cobra.Command{
	Use:   "import <文件>",
	Short: "从文件批量导入任务",
	Long:  "文件每行一个 \"地址 [名称]\", # 开头的行为注释。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := utils.ReadTaskFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		added := 0
		for _, line := range lines {
			task := &models.CrawlerTask{
				Name:            line.Name,
				TargetURL:       line.URL,
				Status:          models.TaskStatusEnabled,
				MaxDepth:        importDepth,
				IntelligentMode: true,
			}
			if err := a.store.AddTask(context.Background(), task); err != nil {
				utils.Warnf("导入 %s 失败: %v", line.URL, err)
				continue
			}
			added++
		}
		fmt.Printf("✅ 已导入 %d/%d 个任务\n", added, len(lines))
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出任务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		tasks, err := a.store.ListTasks(context.Background(), !listAll)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("没有任务")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t名称\t状态\t深度\t间隔(小时)\t累计爬取\t累计成功\t累计失败\t下次执行\t地址")
		for _, t := range tasks {
			status := "启用"
			if t.Status != models.TaskStatusEnabled {
				status = "停用"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
				t.ID, t.Name, status, t.MaxDepth, t.CrawlInterval,
				t.TotalCrawled, t.TotalSuccess, t.TotalFailed,
				formatTime(t.NextExecuteTime), t.TargetURL)
		}
		return w.Flush()
	},
}

var taskEnableCmd = &cobra.Command{
	Use:   "enable <任务ID>...",
	Short: "启用任务",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args, models.TaskStatusEnabled)
	},
}

var taskDisableCmd = &cobra.Command{
	Use:   "disable <任务ID>...",
	Short: "停用任务",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args, models.TaskStatusDisabled)
	},
}

var taskLogsCmd = &cobra.Command{
	Use:   "logs <任务ID>",
	Short: "查看执行日志",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseTaskIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		logs, err := a.store.ListLogs(context.Background(), ids[0], logLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("没有执行记录")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "开始时间\t类型\t状态\t爬取\t成功\t失败\t耗时(秒)\t错误")
		for _, l := range logs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				l.StartTime.Local().Format(time.DateTime), l.ExecuteType, l.Status,
				l.CrawledCount, l.SuccessCount, l.FailedCount, l.Duration, l.ErrorMessage)
		}
		return w.Flush()
	},
}

var taskResourcesCmd = &cobra.Command{
	Use:   "resources <任务ID>",
	Short: "查看任务创建的资源",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseTaskIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		resources, err := a.store.ListResources(context.Background(), ids[0])
		if err != nil {
			return err
		}
		return printJSON(resources)
	},
}

func init() {
	f := taskAddCmd.Flags()
	f.StringVar(&newTask.name, "name", "", "任务名称")
	f.StringVarP(&newTask.url, "url", "u", "", "列表页地址")
	f.IntVarP(&newTask.depth, "depth", "d", 3, "最大爬取深度 (1-10)")
	f.IntVar(&newTask.interval, "interval", 0, "爬取间隔(小时), 0表示不定时")
	f.BoolVar(&newTask.intelligent, "intelligent", true, "每次执行自动分析网站结构")
	f.StringVar(&newTask.customRules, "rules", "", "自定义选择器规则JSON")
	f.StringVar(&newTask.categoryMapping, "category-mapping", "", "分类映射JSON, 如 {\"电影\": 2}")
	f.BoolVar(&newTask.disabled, "disabled", false, "添加为停用状态")
	_ = taskAddCmd.MarkFlagRequired("name")
	_ = taskAddCmd.MarkFlagRequired("url")

	taskImportCmd.Flags().IntVarP(&importDepth, "depth", "d", 3, "导入任务的最大爬取深度")
	taskListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "包含停用的任务")
	taskLogsCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "显示的记录数")

	taskCmd.AddCommand(
		taskAddCmd,
		taskImportCmd,
		taskListCmd,
		taskEnableCmd,
		taskDisableCmd,
		taskLogsCmd,
		taskResourcesCmd,
	)
}

func setStatus(args []string, status models.TaskStatus) error {
	ids, err := parseTaskIDs(args)
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	for _, id := range ids {
		if err := a.store.SetTaskStatus(context.Background(), id, status); err != nil {
			return err
		}
	}
	fmt.Printf("✅ 已更新 %d 个任务\n", len(ids))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
