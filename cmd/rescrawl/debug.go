package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <URL>",
	Short: "分析页面结构",
	Long:  "抓取页面并输出识别到的选择器、资源链接和分页链接 (JSON), 不写入数据库。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetURL, err := NormalizeURL(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		debugger, closeFn, err := newDebugger()
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := debugger.AnalyzePreview(ctx, targetURL)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var testSelectorCmd = &cobra.Command{
	Use:   "test-selector <URL> <选择器>",
	Short: "测试CSS选择器",
	Long:  "在页面上执行CSS选择器, 输出命中数量和前10个样例。",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetURL, err := NormalizeURL(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		debugger, closeFn, err := newDebugger()
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := debugger.TestSelector(ctx, targetURL, args[1])
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var validateURLCmd = &cobra.Command{
	Use:   "validate-url <URL>",
	Short: "检查目标地址是否可访问",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetURL, err := NormalizeURL(args[0])
		if err != nil {
			return err
		}

		timeout := appConfig.Crawl.PageTimeout
		code, err := crawlers.ValidateTargetURL(context.Background(), targetURL, timeout)
		if err != nil {
			if code > 0 {
				fmt.Printf("❌ %s 返回状态码 %d\n", targetURL, code)
			}
			return err
		}
		fmt.Printf("✅ %s 可访问 (状态码 %d)\n", targetURL, code)
		return nil
	},
}

// newDebugger 调试命令不需要数据库
func newDebugger() (*core.Debugger, func(), error) {
	a, err := newApp(false)
	if err != nil {
		return nil, nil, err
	}
	fetcher, err := a.pageFetcher()
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return core.NewDebugger(fetcher, a.config.Crawl.RelaxedLinkLimit), a.close, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
