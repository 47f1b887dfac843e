package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "验证配置并显示生效的参数",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		c := a.config
		fmt.Println("✅ 配置验证通过")
		fmt.Printf("  抓取模式: %s (页面超时 %s, 无头浏览器 %v)\n", c.Crawl.Mode, c.Crawl.PageTimeout, c.Crawl.Headless)
		fmt.Printf("  并发任务: %d, 队列上限: %d, 间隔单位: %s\n", c.Runner.Workers, c.Runner.QueueSize, c.Runner.IntervalUnit)
		fmt.Printf("  数据库: %s\n", c.Storage.Driver)
		fmt.Printf("  图片目录: %s (并发 %d, 每秒 %.1f 次)\n", c.Images.Dir, c.Images.Concurrency, c.Images.RatePerSecond)
		fmt.Printf("  robots.txt: 缓存 %s\n", c.Robots.TTL)
		fmt.Printf("  日志: %s, 目录 %s\n", c.Logging.Level, c.Logging.LogDir)

		safe := a.headers.GetSafeHeaders()
		names := make([]string, 0, len(safe))
		for name := range safe {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("  HTTP头部:")
		for _, name := range names {
			fmt.Printf("    %s: %s\n", name, safe[name])
		}
		return nil
	},
}
