package crawlers

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// StructureAnalyzer 网站结构分析器
// 抓取一次入口页面,按候选列表推断各类内容的选择器
type StructureAnalyzer struct {
	fetcher Fetcher
}

// NewStructureAnalyzer 创建结构分析器
func NewStructureAnalyzer(fetcher Fetcher) *StructureAnalyzer {
	return &StructureAnalyzer{fetcher: fetcher}
}

// Analyze 分析网站结构
// 抓取或解析失败时返回未识别的空结构,不视为错误
func (a *StructureAnalyzer) Analyze(ctx context.Context, targetURL string) models.SiteStructure {
	utils.Infof("开始分析网站结构: %s", targetURL)

	page, err := a.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		utils.Warnf("网站结构分析失败 [%s]: %s", targetURL, Format(err))
		return models.SiteStructure{}
	}

	structure := AnalyzePage(page)
	utils.Infof("网站结构分析完成: %s, 识别状态: %v, 链接选择器: %q, 标题选择器: %q",
		targetURL, structure.Identified, structure.ResourceLinkSelector, structure.TitleSelector)
	return structure
}

// AnalyzePage 在已解析的页面上推断结构
func AnalyzePage(page *Page) models.SiteStructure {
	var s models.SiteStructure

	base, err := models.BaseURL(page.URL)
	if err != nil {
		return s
	}

	s.ResourceLinkSelector = inferLinkSelector(page, base)
	s.TitleSelector = firstMatching(page, TitleCandidates)
	s.DescriptionSelector = firstMatching(page, DescriptionCandidates)
	s.DownloadLinkSelector = firstMatching(page, DownloadLinkCandidates)
	s.ImageSelector = firstMatching(page, ImageCandidates)
	s.PaginationSelector = firstMatching(page, PaginationCandidates)

	s.Identified = s.ResourceLinkSelector != "" && s.TitleSelector != ""
	return s
}

// inferLinkSelector 依次尝试候选选择器,取第一个至少命中一个有效站内链接的
// 全部落空时用宽松规则扫描所有链接,命中则返回通用选择器
func inferLinkSelector(page *Page, base string) string {
	for _, candidate := range ResourceLinkCandidates {
		count := 0
		page.Select(candidate).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if qualifies(page, page.AbsoluteURL(el, "href"), base, strictPathFloor) {
				count++
				return false
			}
			return true
		})
		if count > 0 {
			utils.Debugf("选择资源链接选择器: %s", candidate)
			return candidate
		}
	}

	utils.Debugf("候选选择器均未命中,使用宽松策略分析所有链接: %s", page.URL)
	found := false
	page.Select(GenericLinkSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		href := page.AbsoluteURL(el, "href")
		if !qualifies(page, href, base, relaxedPathFloor) {
			return true
		}
		text := Text(el)
		if digitHTMLRe.MatchString(href) || hasResourcePath(href) ||
			(runeLen(text) > 5 && !analyzeStopRe.MatchString(text)) {
			found = true
			return false
		}
		return true
	})
	if found {
		return GenericLinkSelector
	}

	utils.Warnf("未找到任何有效的资源链接: %s", page.URL)
	return ""
}

// firstMatching 返回第一个有匹配元素的选择器
func firstMatching(page *Page, candidates []string) string {
	for _, candidate := range candidates {
		if page.Select(candidate).Length() > 0 {
			return candidate
		}
	}
	return ""
}

// qualifies 判断链接是否为有效的站内链接
// 要求: 属于同一站点, 不是页面自身, 不含片段/javascript/mailto, 长度超过站点根地址 floor 个字符
func qualifies(page *Page, href, base string, floor int) bool {
	if !isCandidateLink(page, href, base) {
		return false
	}
	return runeLen(href) > runeLen(base)+floor
}

// isCandidateLink 不含长度门槛的基础过滤
func isCandidateLink(page *Page, href, base string) bool {
	if href == "" || !sameSite(href, base) {
		return false
	}
	if href == page.URL || href == page.RequestURL {
		return false
	}
	return !strings.Contains(href, "#") &&
		!strings.Contains(href, "javascript:") &&
		!strings.Contains(href, "mailto:")
}

// sameSite href 是否以站点根地址开头且紧跟路径或查询
func sameSite(href, base string) bool {
	if !strings.HasPrefix(href, base) {
		return false
	}
	if len(href) == len(base) {
		return true
	}
	switch href[len(base)] {
	case '/', '?', '#':
		return true
	}
	return false
}

func hasResourcePath(href string) bool {
	for _, kw := range resourcePathKeywords {
		if strings.Contains(href, kw) {
			return true
		}
	}
	return false
}
