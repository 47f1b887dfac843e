package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/store"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "检查运行环境",
	Long:  "检查数据库连接、浏览器、日志和图片目录是否可用。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("==============================================")
		fmt.Println("  rescrawl 环境检查")
		fmt.Println("==============================================")
		fmt.Printf("✅ Go运行时: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

		allOK := true
		c := appConfig

		// 数据库
		if s, err := store.Open(c.Storage); err != nil {
			fmt.Printf("❌ 数据库不可用 (%s): %v\n", c.Storage.Driver, err)
			allOK = false
		} else {
			fmt.Printf("✅ 数据库可用: %s\n", c.Storage.Driver)
			_ = s.Close()
		}

		status := crawlers.NewResourceMonitor(c.Resource).Status()
		icon := "✅"
		if status.MemoryPressure != "normal" {
			icon = "⚠️ "
		}
		fmt.Printf("%s 系统内存: 可用 %.1f/%.1f GB (%s), CPU %.1f%%\n", icon,
			float64(status.AvailableMemory)/(1<<30), float64(status.TotalMemory)/(1<<30),
			status.MemoryPressure, status.CPUUsage)

		// 浏览器仅动态模式必需
		if path, has := launcher.LookPath(); has {
			fmt.Printf("✅ 浏览器: %s\n", path)
		} else if c.Crawl.Mode == models.ModeDynamic {
			fmt.Println("❌ 未找到Chrome/Chromium - 动态模式不可用")
			allOK = false
		} else {
			fmt.Println("⚠️  未找到Chrome/Chromium - 动态模式首次运行时会自动下载")
		}

		for name, dir := range map[string]string{"日志目录": c.Logging.LogDir, "图片目录": c.Images.Dir} {
			if err := checkWritable(dir); err != nil {
				fmt.Printf("❌ %s不可写: %s (%v)\n", name, dir, err)
				allOK = false
			} else {
				fmt.Printf("✅ %s: %s\n", name, dir)
			}
		}

		fmt.Println("==============================================")
		if !allOK {
			return fmt.Errorf("环境检查失败, 请解决上述问题")
		}
		fmt.Println("✅ 环境检查通过")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// checkWritable 目录不存在时创建, 并尝试写入临时文件
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".rescrawl-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
