package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// maxCleanFailures 连续重置失败达到该次数的标签页被销毁
	maxCleanFailures = 3

	// maxTabUses 标签页复用次数上限, 长时间调度时避免单个页面占用的内存不断增长
	maxTabUses = 200
)

var errPoolClosed = errors.New("标签页池已关闭")

// pooledTab 标签页及其使用记录, 只由持有者访问
type pooledTab struct {
	page     *rod.Page
	uses     int
	failures int
}

// PagePool 多个任务共享的浏览器标签页
// 数量上限由 ResourceMonitor 按系统可用内存和CPU动态给出
type PagePool struct {
	browser *rod.Browser
	monitor *ResourceMonitor

	mu     sync.Mutex
	tabs   map[*rod.Page]*pooledTab
	idle   chan *pooledTab
	closed bool
}

// NewPagePool 创建标签页池
func NewPagePool(browser *rod.Browser, monitor *ResourceMonitor) *PagePool {
	return &PagePool{
		browser: browser,
		monitor: monitor,
		tabs:    make(map[*rod.Page]*pooledTab),
		idle:    make(chan *pooledTab, monitor.config.MaxTabsLimit),
	}
}

// AcquirePage 优先复用空闲标签页; 未达上限且资源允许时新建; 否则等待归还
// 池中没有任何标签页时总会新建一个
func (pp *PagePool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, errPoolClosed
	}
	select {
	case t := <-pp.idle:
		pp.mu.Unlock()
		return t.page, nil
	default:
	}
	count := len(pp.tabs)
	pp.mu.Unlock()

	create := count == 0
	if !create && count < pp.monitor.MaxTabs() {
		ok, reason := pp.monitor.CanCreateTab()
		if !ok {
			utils.Warnf("资源不足,等待空闲标签页: %s", reason)
		}
		create = ok
	}
	if create {
		return pp.newTab()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case t, ok := <-pp.idle:
		if !ok {
			return nil, errPoolClosed
		}
		return t.page, nil
	}
}

func (pp *PagePool) newTab() (*rod.Page, error) {
	page, err := pp.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		_ = page.Close()
		return nil, errPoolClosed
	}
	pp.tabs[page] = &pooledTab{page: page}
	count := len(pp.tabs)
	pp.mu.Unlock()

	utils.Debugf("新建标签页, 当前 %d 个", count)
	return page, nil
}

// ReleasePage 重置标签页后放回空闲队列
func (pp *PagePool) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}
	pp.mu.Lock()
	t := pp.tabs[page]
	pp.mu.Unlock()
	if t == nil {
		_ = page.Close()
		return
	}

	t.uses++
	if t.uses >= maxTabUses {
		pp.destroy(t, "达到复用上限")
		return
	}
	if err := resetPage(page); err != nil {
		t.failures++
		utils.Warnf("重置标签页失败 (连续第%d次): %v", t.failures, err)
		if t.failures >= maxCleanFailures {
			pp.destroy(t, "重置连续失败")
			return
		}
	} else {
		t.failures = 0
	}

	// 在锁内发送, 避免与 Close 关闭通道竞争
	pp.mu.Lock()
	if !pp.closed {
		select {
		case pp.idle <- t:
			pp.mu.Unlock()
			return
		default:
		}
	}
	pp.mu.Unlock()
	pp.destroy(t, "空闲队列已满")
}

// resetPage 清除存储和cookie并离开当前站点, 不同任务之间互不影响
func resetPage(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try { localStorage.clear(); } catch (e) {}
			try { sessionStorage.clear(); } catch (e) {}
			try {
				for (const c of document.cookie.split(";")) {
					const name = c.split("=")[0].trim();
					if (name) document.cookie = name + "=;expires=Thu, 01 Jan 1970 00:00:00 UTC;path=/";
				}
			} catch (e) {}
			return true;
		}`,
	})
	if err != nil {
		return err
	}
	return page.Navigate("about:blank")
}

func (pp *PagePool) destroy(t *pooledTab, reason string) {
	pp.mu.Lock()
	delete(pp.tabs, t.page)
	remaining := len(pp.tabs)
	pp.mu.Unlock()

	if err := t.page.Close(); err != nil {
		utils.Warnf("关闭标签页失败: %v", err)
	}
	utils.Debugf("销毁标签页(%s), 剩余 %d 个", reason, remaining)
}

// CurrentSize 当前标签页数量
func (pp *PagePool) CurrentSize() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.tabs)
}

// Close 关闭全部标签页, 之后的 AcquirePage 返回错误
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil
	}
	pp.closed = true
	close(pp.idle)
	tabs := pp.tabs
	pp.tabs = make(map[*rod.Page]*pooledTab)
	pp.mu.Unlock()

	var errs []error
	for page := range tabs {
		if err := page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	utils.Debugf("标签页池已关闭")
	return errors.Join(errs...)
}
