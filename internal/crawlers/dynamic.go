package crawlers

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DynamicFetcher 基于go-rod的页面抓取器
// 用于依赖JavaScript渲染列表的网站, 标签页来自 PagePool
type DynamicFetcher struct {
	browser        *rod.Browser
	pool           *PagePool
	monitor        *ResourceMonitor
	config         models.CrawlConfig
	headerProvider models.HeaderProvider
}

// NewDynamicFetcher 启动浏览器并创建标签页池
func NewDynamicFetcher(config models.CrawlConfig, monitorConfig ResourceMonitorConfig, headerProvider models.HeaderProvider) (*DynamicFetcher, error) {
	browser, err := launchBrowser(config.Headless)
	if err != nil {
		return nil, err
	}

	monitor := NewResourceMonitor(monitorConfig)
	monitor.Start(time.Second)

	return &DynamicFetcher{
		browser:        browser,
		pool:           NewPagePool(browser, monitor),
		monitor:        monitor,
		config:         config,
		headerProvider: headerProvider,
	}, nil
}

// launchBrowser 启动浏览器
func launchBrowser(headless bool) (*rod.Browser, error) {
	l := launcher.New().Headless(headless)

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return browser, nil
}

// Fetch 在浏览器中打开页面, 等待加载完成后返回渲染后的HTML
func (df *DynamicFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	tab, err := df.pool.AcquirePage(ctx)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}
	defer df.pool.ReleasePage(tab)

	page := tab.Context(ctx).Timeout(df.config.PageTimeout)

	if df.headerProvider != nil {
		headers, err := df.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			if ua := headers.Get("User-Agent"); ua != "" {
				if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
					utils.Warnf("设置User-Agent失败: %v", err)
				}
			}
			var dict []string
			for name, values := range headers {
				if name == "User-Agent" || name == "Accept-Encoding" || len(values) == 0 {
					continue
				}
				dict = append(dict, name, values[0])
			}
			if len(dict) > 0 {
				cleanup, err := page.SetExtraHeaders(dict)
				if err != nil {
					utils.Warnf("设置HTTP头部失败: %v", err)
				} else {
					defer cleanup()
				}
			}
		}
	}

	if err := page.Navigate(targetURL); err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}

	// 额外等待动态内容加载
	if df.config.WaitSeconds > 0 {
		select {
		case <-ctx.Done():
			return nil, &FetchError{URL: targetURL, Err: ctx.Err()}
		case <-time.After(time.Duration(df.config.WaitSeconds) * time.Second):
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("读取渲染结果失败 [%s]: %w", targetURL, err)
	}

	finalURL := targetURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	parsed, err := ParseHTML(html, finalURL)
	if err != nil {
		return nil, err
	}
	parsed.RequestURL = targetURL
	return parsed, nil
}

// Close 关闭标签页池和浏览器
func (df *DynamicFetcher) Close() error {
	if err := df.pool.Close(); err != nil {
		utils.Warnf("关闭标签页池失败: %v", err)
	}
	df.monitor.Stop()
	if err := df.browser.Close(); err != nil {
		return fmt.Errorf("关闭浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已关闭")
	return nil
}
