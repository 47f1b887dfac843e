package main

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 覆盖配置文件的参数
	mode     string
	workers  int
	driver   string
	dsn      string
	headless bool

	// HTTP头部参数
	headers []string

	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "rescrawl",
	Short: "资源站智能爬虫",
	Long: `rescrawl - 资源站智能爬虫

只需提供资源站列表页地址:
  • 自动识别资源链接、标题、描述、下载链接、图片和分页
  • 广度优先、限定深度的遍历, 遵守 robots.txt 和 Crawl-delay
  • 布隆过滤器去重, 同一资源只入库一次
  • 多任务并发执行, 可随时停止, 支持定时执行

示例:
  # 添加任务并立即执行
  rescrawl task add --name 示例站 --url https://example.com/list --depth 3
  rescrawl run 1

  # 预览网站结构分析结果
  rescrawl analyze https://example.com/list

  # 按任务间隔定时执行
  rescrawl schedule

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		config, err := core.LoadConfig(configFile)
		if err != nil {
			return err
		}

		flags := core.CLIFlags{
			Mode:     mode,
			Workers:  workers,
			Driver:   driver,
			DSN:      dsn,
			LogLevel: logLevel,
		}
		if cmd.Flags().Changed("headless") {
			flags.Headless = &headless
		}
		if verbose && logLevel == "" {
			flags.LogLevel = "debug"
		}
		config.MergeCLIFlags(flags)

		if err := config.Validate(); err != nil {
			return err
		}

		if err := utils.InitLogger(config.Logging.ToLogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = config
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rescrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "配置文件路径")
	pf.BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	pf.StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	pf.StringVarP(&mode, "mode", "m", "", "抓取模式 (static|dynamic)")
	pf.IntVar(&workers, "workers", 0, "同时执行的任务数")
	pf.StringVar(&driver, "driver", "", "数据库驱动 (sqlite3|postgres)")
	pf.StringVar(&dsn, "dsn", "", "数据库连接串")
	pf.BoolVar(&headless, "headless", true, "动态模式使用无头浏览器")

	pf.StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	rootCmd.AddCommand(
		versionCmd,
		runCmd,
		scheduleCmd,
		analyzeCmd,
		testSelectorCmd,
		validateURLCmd,
		configCmd,
		taskCmd,
		categoryCmd,
	)
}

func main() {
	err := rootCmd.Execute()
	utils.CloseLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
