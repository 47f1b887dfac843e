package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/images"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/store"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// app 一次命令执行所需的组件
type app struct {
	config  *core.Config
	headers *core.HeaderManager
	store   *store.Store
	fetcher crawlers.Fetcher
	closers []func() error
}

func newApp(withStore bool) (*app, error) {
	a := &app{config: appConfig}

	hm, err := core.NewHeaderManager(a.config.Headers, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	a.headers = hm

	if withStore {
		s, err := store.Open(a.config.Storage)
		if err != nil {
			return nil, err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	}
	return a, nil
}

// pageFetcher 按抓取模式创建页面抓取器, 动态模式会启动浏览器
func (a *app) pageFetcher() (crawlers.Fetcher, error) {
	if a.fetcher != nil {
		return a.fetcher, nil
	}

	switch a.config.Crawl.Mode {
	case models.ModeDynamic:
		df, err := crawlers.NewDynamicFetcher(a.config.Crawl, a.config.Resource, a.headers)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, df.Close)
		a.fetcher = df
	default:
		a.fetcher = crawlers.NewStaticFetcher(a.config.Crawl, a.headers)
	}
	utils.Debugf("抓取模式: %s", a.config.Crawl.Mode)
	return a.fetcher, nil
}

// taskRunner 组装执行器的全部依赖
func (a *app) taskRunner(ctx context.Context) (*core.TaskRunner, error) {
	fetcher, err := a.pageFetcher()
	if err != nil {
		return nil, err
	}

	runner := core.NewTaskRunner(ctx, a.config.Runner, a.config.Crawl, core.RunnerDeps{
		Tasks:      a.store,
		Logs:       a.store,
		Resources:  a.store,
		Images:     images.NewDownloader(a.config.Images, a.store),
		Categories: a.store,
		Robots:     crawlers.NewRobotsPolicy(a.config.Robots),
		Fetcher:    fetcher,
		UploaderID: a.config.Images.UploaderID,
	})
	a.closers = append(a.closers, func() error {
		runner.Close()
		return nil
	})
	return runner, nil
}

// close 按创建的逆序关闭
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			utils.Warnf("关闭组件失败: %v", err)
		}
	}
}

// signalContext 收到中断信号时取消
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			utils.Warnf("收到中断信号: %v, 正在停止...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
