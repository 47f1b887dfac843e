package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/rs/zerolog"
)

// CrawlState 单次执行的状态
type CrawlState string

const (
	StateIdle       CrawlState = "idle"
	StateAnalyzing  CrawlState = "analyzing"
	StateTraversing CrawlState = "traversing"
	StateCompleted  CrawlState = "completed"
	StateFailed     CrawlState = "failed"
	StateStopped    CrawlState = "stopped"
)

// Terminal 是否为结束状态
func (s CrawlState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateStopped
}

// CrawlerDeps 爬取器依赖
type CrawlerDeps struct {
	Fetcher    crawlers.Fetcher
	Robots     RobotsChecker
	Resources  ResourceSink
	Images     ImagePipeline // 可为nil, 此时不处理图片
	Categories CategoryProvider
	UploaderID int64
}

// RunResult 单次执行结果
type RunResult struct {
	State   CrawlState
	Crawled int
	Success int
	Failed  int
	Err     error
}

// Crawler 单个任务的一次执行
// 先分析网站结构, 再按广度优先遍历列表页并处理其中的资源详情页
type Crawler struct {
	task   *models.CrawlerTask
	config models.CrawlConfig
	deps   CrawlerDeps
	runID  string

	// stopRequested 在每个列表页和每个详情链接之前检查
	stopRequested func() bool

	analyzer   *crawlers.StructureAnalyzer
	categories *CategoryResolver
	logger     zerolog.Logger

	mu        sync.RWMutex
	state     CrawlState
	crawled   int
	success   int
	failed    int
	frontier  int
	pagesDone int
}

// NewCrawler 创建爬取器
func NewCrawler(task *models.CrawlerTask, config models.CrawlConfig, deps CrawlerDeps, runID string, stopRequested func() bool) *Crawler {
	if stopRequested == nil {
		stopRequested = func() bool { return false }
	}
	return &Crawler{
		task:          task,
		config:        config,
		deps:          deps,
		runID:         runID,
		stopRequested: stopRequested,
		analyzer:      crawlers.NewStructureAnalyzer(deps.Fetcher),
		categories:    NewCategoryResolver(task, deps.Categories),
		logger:        utils.TaskLogger(task.ID, runID),
		state:         StateIdle,
	}
}

// Run 执行到结束状态
// 单个详情页的失败只计数不中断; 只有遍历开始前的错误会让执行失败
func (c *Crawler) Run(ctx context.Context) RunResult {
	c.logger.Info().Str("target_url", utils.NewHeaderRedactor().RedactURL(c.task.TargetURL)).Int("max_depth", c.task.MaxDepth).Msg("开始执行爬虫任务")

	c.setState(StateAnalyzing)
	structure := c.resolveStructure(ctx)

	frontier := crawlers.NewFrontier(c.task.MaxDepth)
	visited := crawlers.NewVisitedSet(c.config.BloomCapacity, c.config.BloomFalseRate)
	if err := frontier.Push(c.task.TargetURL, 0); err != nil {
		return c.finish(StateFailed, fmt.Errorf("入口地址无效: %w", err))
	}
	visited.Mark(c.task.TargetURL)

	c.setState(StateTraversing)
	for frontier.Len() > 0 {
		if c.shouldStop(ctx) {
			return c.finish(StateStopped, nil)
		}

		entry, _ := frontier.Pop()
		c.setFrontier(frontier.Len())

		if !frontier.WithinDepth(entry.Depth) {
			c.logger.Debug().Str("url", entry.URL).Int("depth", entry.Depth).Msg("达到最大深度限制，跳过")
			continue
		}

		if !c.processListPage(ctx, structure, frontier, visited, entry) {
			return c.finish(StateStopped, nil)
		}
		c.setFrontier(frontier.Len())
	}

	return c.finish(StateCompleted, nil)
}

// resolveStructure 非智能模式且自定义规则有效时直接使用自定义规则, 否则分析入口页面
func (c *Crawler) resolveStructure(ctx context.Context) models.SiteStructure {
	if !c.task.IntelligentMode {
		if structure, ok := c.customStructure(); ok {
			c.logger.Info().Str("link_selector", structure.ResourceLinkSelector).Msg("使用自定义规则")
			return structure
		}
	}

	if c.deps.Robots != nil && !c.deps.Robots.IsAllowed(ctx, c.task.TargetURL) {
		c.logger.Info().Str("url", c.task.TargetURL).Msg("robots.txt禁止访问入口页面，跳过结构分析")
		return models.SiteStructure{}
	}
	return c.analyzer.Analyze(ctx, c.task.TargetURL)
}

func (c *Crawler) customStructure() (models.SiteStructure, bool) {
	rules, err := c.task.ParseCustomRules()
	if err != nil {
		c.logger.Warn().Msg(crawlers.Format(err))
		return models.SiteStructure{}, false
	}
	if rules == nil {
		return models.SiteStructure{}, false
	}

	structure := rules.ToStructure()
	for _, selector := range []string{
		structure.ResourceLinkSelector, structure.TitleSelector, structure.DescriptionSelector,
		structure.DownloadLinkSelector, structure.ImageSelector, structure.PaginationSelector,
	} {
		if selector == "" {
			continue
		}
		if err := crawlers.CompileSelector(selector); err != nil {
			c.logger.Warn().Msg(crawlers.Format(err))
			return models.SiteStructure{}, false
		}
	}
	return structure, structure.ResourceLinkSelector != ""
}

// processListPage 处理一个列表页, 观察到停止标记时返回false
func (c *Crawler) processListPage(ctx context.Context, structure models.SiteStructure, frontier *crawlers.Frontier, visited *crawlers.VisitedSet, entry models.FrontierEntry) bool {
	if !c.allowed(ctx, entry.URL) {
		c.logger.Info().Str("url", entry.URL).Msg("robots.txt禁止访问")
		return true
	}
	if !c.crawlDelay(ctx, entry.URL) {
		return false
	}

	c.logger.Debug().Str("url", entry.URL).Int("depth", entry.Depth).Msg("爬取列表页")
	page, err := c.deps.Fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		c.logger.Error().Str("url", entry.URL).Int("depth", entry.Depth).Msgf("爬取页面失败: %s", crawlers.Format(err))
		return c.pause(ctx, c.config.PagePause)
	}

	links := crawlers.ExtractResourceLinks(page, structure, c.config.RelaxedLinkLimit)
	c.logger.Info().Str("url", entry.URL).Int("links", len(links)).Msg("提取资源链接")

	for _, link := range links {
		if c.shouldStop(ctx) {
			return false
		}
		if !visited.MarkIfNew(link) {
			c.logger.Debug().Str("url", link).Msg("URL可能已访问，跳过")
			continue
		}
		if !c.processDetail(ctx, structure, link) {
			return false
		}
	}

	if frontier.Expandable(entry.Depth) {
		for _, next := range crawlers.ExtractPaginationLinks(page, structure) {
			if visited.MarkIfNew(next) {
				if err := frontier.Push(next, entry.Depth+1); err != nil {
					c.logger.Debug().Str("url", next).Msgf("分页链接入队失败: %v", err)
				}
			}
		}
	}

	c.mu.Lock()
	c.pagesDone++
	c.mu.Unlock()

	return c.pause(ctx, c.config.PagePause)
}

// processDetail 处理一个资源详情页, 上下文取消时返回false
func (c *Crawler) processDetail(ctx context.Context, structure models.SiteStructure, link string) bool {
	if !c.allowed(ctx, link) {
		c.logger.Info().Str("url", link).Msg("robots.txt禁止访问资源详情")
		return true
	}

	if err := c.crawlResource(ctx, structure, link); err != nil {
		c.logger.Error().Str("url", link).Msgf("爬取资源详情失败: %s", crawlers.Format(err))
		c.mu.Lock()
		c.failed++
		c.mu.Unlock()
	}

	return c.pause(ctx, c.config.DetailPause)
}

// crawlResource 抓取详情页并交给资源服务
// 来源地址已存在时跳过, 不算失败
func (c *Crawler) crawlResource(ctx context.Context, structure models.SiteStructure, link string) error {
	page, err := c.deps.Fetcher.Fetch(ctx, link)
	if err != nil {
		return err
	}

	record := crawlers.ExtractResourceDetail(page, structure)
	record.SourceURL = link

	c.mu.Lock()
	c.crawled++
	c.mu.Unlock()

	exists, err := c.deps.Resources.ExistsBySourceURL(ctx, link)
	if err != nil {
		return fmt.Errorf("检查重复资源失败: %w", err)
	}
	if exists {
		c.logger.Info().Str("url", link).Msg("跳过重复资源")
		return nil
	}

	resource := c.buildResource(ctx, record)
	if _, err := c.deps.Resources.CreateCrawledResource(ctx, resource); err != nil {
		return fmt.Errorf("创建资源失败: %w", err)
	}

	c.mu.Lock()
	c.success++
	c.mu.Unlock()
	c.logger.Info().Str("url", link).Str("title", record.Title).Msg("成功创建资源")
	return nil
}

func (c *Crawler) buildResource(ctx context.Context, record models.ResourceRecord) *models.CrawledResource {
	resource := &models.CrawledResource{
		Title:       record.Title,
		Description: record.Description,
		CategoryID:  c.categories.Resolve(ctx, record.CategoryHint),
		TaskID:      c.task.ID,
		SourceURL:   record.SourceURL,
		Links:       BuildDownloadLinks(record.DownloadLinks),
	}

	if c.deps.Images != nil && len(record.ImageURLs) > 0 {
		for _, img := range c.deps.Images.DownloadAndUpload(ctx, record.ImageURLs, c.deps.UploaderID) {
			resource.ImageIDs = append(resource.ImageIDs, img.ID)
		}
		if len(resource.ImageIDs) > 0 {
			resource.CoverImageID = resource.ImageIDs[0]
		}
	}
	return resource
}

func (c *Crawler) allowed(ctx context.Context, rawURL string) bool {
	return c.deps.Robots == nil || c.deps.Robots.IsAllowed(ctx, rawURL)
}

// crawlDelay 遵守robots.txt声明的抓取间隔
func (c *Crawler) crawlDelay(ctx context.Context, rawURL string) bool {
	if c.deps.Robots == nil {
		return true
	}
	delay := c.deps.Robots.CrawlDelay(ctx, rawURL)
	if delay <= 0 {
		return true
	}
	c.logger.Debug().Int("seconds", delay).Msg("遵守crawl-delay")
	return c.pause(ctx, time.Duration(delay)*time.Second)
}

// pause 固定停顿, 上下文取消时提前返回false
// 停止标记不会打断停顿
func (c *Crawler) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// shouldStop 停止标记或上下文取消
func (c *Crawler) shouldStop(ctx context.Context) bool {
	return c.stopRequested() || ctx.Err() != nil
}

func (c *Crawler) finish(state CrawlState, err error) RunResult {
	c.mu.Lock()
	c.state = state
	result := RunResult{State: state, Crawled: c.crawled, Success: c.success, Failed: c.failed, Err: err}
	c.mu.Unlock()

	event := c.logger.Info()
	if state == StateFailed {
		event = c.logger.Error().Err(err)
	}
	event.Str("state", string(state)).
		Int("crawled", result.Crawled).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Msg("爬虫任务执行结束")
	return result
}

func (c *Crawler) setState(state CrawlState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Crawler) setFrontier(n int) {
	c.mu.Lock()
	c.frontier = n
	c.mu.Unlock()
}

// Progress 当前进度, 可在执行期间并发读取
func (c *Crawler) Progress() models.ProgressSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.ProgressSnapshot{
		RunID:     c.runID,
		State:     string(c.state),
		Crawled:   c.crawled,
		Success:   c.success,
		Failed:    c.failed,
		Frontier:  c.frontier,
		PagesDone: c.pagesDone,
	}
}
