package core

import (
	"context"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// AnalyzeReport 结构分析预览
type AnalyzeReport struct {
	URL             string               `json:"url"`
	Title           string               `json:"title"`
	Structure       models.SiteStructure `json:"structure"`
	ResourceLinks   []string             `json:"resource_links"`
	PaginationLinks []string             `json:"pagination_links"`
	SampleLinks     []string             `json:"sample_links"`
}

// Debugger 调试工具: 在单个页面上预览分析和选择器效果, 不写入任何数据
type Debugger struct {
	fetcher      crawlers.Fetcher
	relaxedLimit int
}

// NewDebugger 创建调试工具
func NewDebugger(fetcher crawlers.Fetcher, relaxedLimit int) *Debugger {
	return &Debugger{fetcher: fetcher, relaxedLimit: relaxedLimit}
}

// AnalyzePreview 分析页面结构并列出会被提取的链接
func (d *Debugger) AnalyzePreview(ctx context.Context, targetURL string) (*AnalyzeReport, error) {
	page, err := d.fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	structure := crawlers.AnalyzePage(page)
	return &AnalyzeReport{
		URL:             page.URL,
		Title:           page.Title(),
		Structure:       structure,
		ResourceLinks:   crawlers.ExtractResourceLinks(page, structure, d.relaxedLimit),
		PaginationLinks: crawlers.ExtractPaginationLinks(page, structure),
		SampleLinks:     crawlers.PreviewLinks(page),
	}, nil
}

// TestSelector 在页面上执行选择器
func (d *Debugger) TestSelector(ctx context.Context, targetURL, selector string) (crawlers.SelectorResult, error) {
	if err := crawlers.CompileSelector(selector); err != nil {
		return crawlers.SelectorResult{}, err
	}
	page, err := d.fetch(ctx, targetURL)
	if err != nil {
		return crawlers.SelectorResult{}, err
	}
	return crawlers.TestSelector(page, selector)
}

func (d *Debugger) fetch(ctx context.Context, targetURL string) (*crawlers.Page, error) {
	if err := models.ValidateURL(targetURL); err != nil {
		return nil, &models.ValidationError{Field: "url", Reason: err.Error()}
	}
	return d.fetcher.Fetch(ctx, targetURL)
}
