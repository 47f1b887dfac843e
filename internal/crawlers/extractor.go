package crawlers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

const (
	// DefaultRelaxedLimit 宽松规则补充链接的上限
	DefaultRelaxedLimit = 20

	// minLinksBeforeRelaxed 结构选择器提取到的链接少于该值时启用宽松规则补充
	minLinksBeforeRelaxed = 3

	maxTitleLength       = 200
	maxDescriptionLength = 1000

	// UnknownTitle 无法提取标题时的占位
	UnknownTitle = "未知标题"
)

// linkSet 保持插入顺序的去重集合
type linkSet struct {
	seen  map[string]struct{}
	items []string
}

func newLinkSet() *linkSet {
	return &linkSet{seen: make(map[string]struct{})}
}

func (s *linkSet) add(link string) bool {
	if _, ok := s.seen[link]; ok {
		return false
	}
	s.seen[link] = struct{}{}
	s.items = append(s.items, link)
	return true
}

func (s *linkSet) len() int { return len(s.items) }

// ExtractResourceLinks 按结构中的链接选择器提取资源详情链接
// 选择器为通用选择器时额外过滤导航类链接; 结果少于3个时合并宽松规则的结果
func ExtractResourceLinks(page *Page, structure models.SiteStructure, relaxedLimit int) []string {
	selector := structure.ResourceLinkSelector
	if selector == "" {
		utils.Debugf("没有有效的链接选择器: %s", page.URL)
		return nil
	}
	if relaxedLimit <= 0 {
		relaxedLimit = DefaultRelaxedLimit
	}

	base, err := models.BaseURL(page.URL)
	if err != nil {
		return nil
	}

	links := newLinkSet()
	generic := selector == GenericLinkSelector

	page.Select(selector).Each(func(_ int, el *goquery.Selection) {
		href := page.AbsoluteURL(el, "href")
		if !isCandidateLink(page, href, base) {
			return
		}
		if generic {
			looksLikeDetail := digitHTMLRe.MatchString(href) || hasResourcePath(href) || strings.HasSuffix(href, ".html")
			if !looksLikeDetail || extractStopRe.MatchString(Text(el)) {
				return
			}
		}
		links.add(href)
	})

	if links.len() < minLinksBeforeRelaxed {
		before := links.len()
		for _, link := range relaxedLinks(page, base, relaxedLimit) {
			links.add(link)
		}
		utils.Debugf("链接数量较少,宽松策略补充了 %d 个链接: %s", links.len()-before, page.URL)
	}

	utils.Debugf("从 %s 提取到 %d 个资源链接", page.URL, links.len())
	return links.items
}

// relaxedLinks 宽松规则: 路径中含数字的 .html 页面, 或锚文本较长且不是导航词的 .html 页面
func relaxedLinks(page *Page, base string, limit int) []string {
	links := newLinkSet()
	page.Select(GenericLinkSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		href := page.AbsoluteURL(el, "href")
		if !qualifies(page, href, base, relaxedPathFloor) {
			return true
		}
		text := Text(el)
		if digitAnyHTMLRe.MatchString(href) ||
			(runeLen(text) > 5 && !relaxedStopRe.MatchString(text) && strings.HasSuffix(href, ".html")) {
			links.add(href)
		}
		return links.len() < limit
	})
	return links.items
}

// ExtractPaginationLinks 按分页选择器提取同站分页链接
// 没有分页选择器或没有匹配时返回空, 调用方不应视为错误
func ExtractPaginationLinks(page *Page, structure models.SiteStructure) []string {
	if structure.PaginationSelector == "" {
		return nil
	}
	base, err := models.BaseURL(page.URL)
	if err != nil {
		return nil
	}

	links := newLinkSet()
	page.Select(structure.PaginationSelector).Each(func(_ int, el *goquery.Selection) {
		href := page.AbsoluteURL(el, "href")
		if isCandidateLink(page, href, base) {
			links.add(href)
		}
	})
	return links.items
}

// PreviewLinks 页面上前 previewLinkLimit 个站内链接,供结构探测预览
func PreviewLinks(page *Page) []string {
	base, err := models.BaseURL(page.URL)
	if err != nil {
		return nil
	}
	links := newLinkSet()
	page.Select(GenericLinkSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		href := page.AbsoluteURL(el, "href")
		if isCandidateLink(page, href, base) {
			links.add(href)
		}
		return links.len() < previewLinkLimit
	})
	return links.items
}

// ExtractResourceDetail 从详情页提取资源数据
func ExtractResourceDetail(page *Page, structure models.SiteStructure) models.ResourceRecord {
	record := models.ResourceRecord{
		Title:         extractTitle(page, structure),
		Description:   extractDescription(page, structure),
		CategoryHint:  extractCategoryHint(page),
		DownloadLinks: ExtractDownloadLinks(page, structure),
		ImageURLs:     ExtractImageURLs(page, structure),
		SourceURL:     page.URL,
	}

	utils.Debugf("资源详情提取完成: 标题=%s, 下载链接数=%d, 图片数=%d",
		record.Title, len(record.DownloadLinks), len(record.ImageURLs))
	return record
}

// elementValue meta元素取content属性, 其它元素取文本
func elementValue(el *goquery.Selection) (value string, isMeta bool) {
	if goquery.NodeName(el) == "meta" {
		content, _ := el.Attr("content")
		return strings.TrimSpace(content), true
	}
	return Text(el), false
}

// extractTitle 标题: 结构选择器 → 候选列表 → 页面title → 最长段落 → 未知标题
func extractTitle(page *Page, structure models.SiteStructure) string {
	if structure.TitleSelector != "" {
		if el := page.Select(structure.TitleSelector).First(); el.Length() > 0 {
			if value, _ := elementValue(el); value != "" {
				return cleanTitle(value)
			}
		}
	}

	for _, candidate := range TitleCandidates {
		el := page.Select(candidate).First()
		if el.Length() == 0 {
			continue
		}
		value, isMeta := elementValue(el)
		if value == "" {
			continue
		}
		if isMeta || runeLen(value) > 3 {
			return cleanTitle(value)
		}
	}

	if pageTitle := page.Title(); pageTitle != "" {
		cleaned := strings.TrimSpace(pageTitleSuffixRe.ReplaceAllString(pageTitle, ""))
		if runeLen(cleaned) > 3 {
			return cleanTitle(cleaned)
		}
		return cleanTitle(pageTitle)
	}

	if paragraph := longestParagraph(page, 3, maxTitleLength); paragraph != "" {
		return cleanTitle(paragraph)
	}

	return UnknownTitle
}

// longestParagraph 长度在 (lo, hi] 之间的最长段落
func longestParagraph(page *Page, lo, hi int) string {
	best := ""
	page.Select("p").Each(func(_ int, el *goquery.Selection) {
		text := Text(el)
		n := runeLen(text)
		if n > lo && n <= hi && n > runeLen(best) {
			best = text
		}
	})
	return best
}

// cleanTitle 合并空白, 去掉 "- 下载/资源/官网..." 之类的站点后缀, 最长200字符
func cleanTitle(title string) string {
	title = NormalizeText(title)
	title = titleSiteSuffixRe.ReplaceAllString(title, "")
	return truncateRunes(title, maxTitleLength)
}

// extractDescription 描述: 结构选择器 → 候选列表 → 第一个长度在50到1000之间的段落
func extractDescription(page *Page, structure models.SiteStructure) string {
	if structure.DescriptionSelector != "" {
		if el := page.Select(structure.DescriptionSelector).First(); el.Length() > 0 {
			if value, _ := elementValue(el); value != "" {
				return cleanDescription(value)
			}
		}
	}

	for _, candidate := range DescriptionCandidates {
		el := page.Select(candidate).First()
		if el.Length() == 0 {
			continue
		}
		value, isMeta := elementValue(el)
		if (isMeta && runeLen(value) > 10) || (!isMeta && runeLen(value) > 20) {
			return cleanDescription(value)
		}
	}

	description := ""
	page.Select("p").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := Text(el)
		if n := runeLen(text); n > 50 && n < maxDescriptionLength {
			description = text
			return false
		}
		return true
	})
	return cleanDescription(description)
}

func cleanDescription(description string) string {
	return truncateRunes(NormalizeText(description), maxDescriptionLength)
}

// extractCategoryHint 来源网站上的分类名称
func extractCategoryHint(page *Page) string {
	for _, candidate := range CategoryCandidates {
		el := page.Select(candidate).First()
		if el.Length() == 0 {
			continue
		}
		if value, _ := elementValue(el); value != "" {
			return value
		}
	}
	return ""
}

// ExtractDownloadLinks 提取下载链接
// 结构中没有下载选择器或选择器在本页无结果时, 使用全部下载候选的并集
func ExtractDownloadLinks(page *Page, structure models.SiteStructure) []string {
	links := newLinkSet()
	collect := func(selector string) {
		page.Select(selector).Each(func(_ int, el *goquery.Selection) {
			href := page.AbsoluteURL(el, "href")
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				links.add(href)
			}
		})
	}

	if structure.DownloadLinkSelector != "" {
		collect(structure.DownloadLinkSelector)
	}
	if links.len() == 0 {
		for _, candidate := range DownloadLinkCandidates {
			collect(candidate)
		}
	}
	return links.items
}

// ExtractImageURLs 提取资源图片地址, 只保留常见图片格式
func ExtractImageURLs(page *Page, structure models.SiteStructure) []string {
	selector := structure.ImageSelector
	if selector == "" {
		selector = "img"
	}

	images := newLinkSet()
	page.Select(selector).Each(func(_ int, el *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-original"} {
			src := page.AbsoluteURL(el, attr)
			if src != "" && isImageURL(src) {
				images.add(src)
				return
			}
		}
	})
	return images.items
}

func isImageURL(src string) bool {
	lower := strings.ToLower(src)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	for _, mark := range imageQueryMarks {
		if strings.Contains(lower, mark) {
			return true
		}
	}
	return false
}

// SelectorMatch 选择器测试的单个命中
type SelectorMatch struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
	Src  string `json:"src,omitempty"`
}

// SelectorResult 选择器测试结果
type SelectorResult struct {
	Selector string          `json:"selector"`
	Count    int             `json:"count"`
	Samples  []SelectorMatch `json:"samples"`
}

// maxSelectorSamples 选择器测试返回的样例上限
const maxSelectorSamples = 10

// TestSelector 在页面上执行选择器,返回命中数量和前10个样例
func TestSelector(page *Page, selector string) (SelectorResult, error) {
	if err := CompileSelector(selector); err != nil {
		return SelectorResult{}, err
	}

	sel := page.Select(selector)
	result := SelectorResult{Selector: selector, Count: sel.Length()}
	sel.EachWithBreak(func(i int, el *goquery.Selection) bool {
		result.Samples = append(result.Samples, SelectorMatch{
			Tag:  goquery.NodeName(el),
			Text: truncateRunes(Text(el), 100),
			Href: page.AbsoluteURL(el, "href"),
			Src:  page.AbsoluteURL(el, "src"),
		})
		return len(result.Samples) < maxSelectorSamples
	})
	return result, nil
}
