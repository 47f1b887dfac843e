package crawlers

import "regexp"

// 结构推断使用的候选选择器,按优先级从高到低排列
// 对每一类目标,取第一个满足条件的候选

// ResourceLinkCandidates 资源详情链接候选,从具体路径到通用 .html 链接
var ResourceLinkCandidates = []string{
	"a[href*='/detail/']",
	"a[href*='/resource/']",
	"a[href*='/download/']",
	"a[href*='/item/']",
	"a[href*='/post/']",

	".content a[href$='.html']",
	".post-content a[href$='.html']",
	".entry-content a[href$='.html']",
	"article a[href$='.html']",
	".main a[href$='.html']",

	"h1 a[href$='.html']",
	"h2 a[href$='.html']",
	"h3 a[href$='.html']",
	"h4 a[href$='.html']",
	"h5 a[href$='.html']",
	".title a[href$='.html']",
	".post-title a[href$='.html']",
	".entry-title a[href$='.html']",
	".resource-title a[href$='.html']",

	"li a[href$='.html']",
	".list a[href$='.html']",
	".item a[href$='.html']",
	".resource-item a[href$='.html']",

	"a[href$='.html']",
	"a[title][href$='.html']",
	"a[href*='.html']",
}

// GenericLinkSelector 宽松策略命中时记录的选择器
const GenericLinkSelector = "a[href]"

// TitleCandidates 标题候选
var TitleCandidates = []string{
	"h1",
	".title",
	".post-title",
	".resource-title",
	".article-title",
	"meta[property='og:title']",
}

// DescriptionCandidates 描述候选
var DescriptionCandidates = []string{
	".description",
	".content",
	".post-content",
	".article-content",
	".resource-description",
	"meta[name='description']",
	"meta[property='og:description']",
}

// DownloadLinkCandidates 下载链接候选,网盘域名优先
var DownloadLinkCandidates = []string{
	"a[href*='pan.baidu.com']",
	"a[href*='aliyundrive.com']",
	"a[href*='lanzou']",
	"a[href*='quark.cn']",
	"a[href*='xunlei.com']",
	"a.download-link",
	".download-btn a",
	"a[href*='download']",
}

// ImageCandidates 资源图片候选
var ImageCandidates = []string{
	".resource-image img",
	".post-image img",
	".content img",
	".gallery img",
	"article img",
}

// PaginationCandidates 分页链接候选
var PaginationCandidates = []string{
	".pagination a",
	".pager a",
	"a[rel=next]",
	".next-page",
}

// CategoryCandidates 来源分类候选,用于分类映射
var CategoryCandidates = []string{
	"meta[property='article:section']",
	"a[rel~='category']",
	".category a",
	".post-category a",
	".resource-category a",
}

// 链接门槛: 推断阶段要求比站点根地址长5个字符以上, 宽松策略要求长3个字符以上
const (
	strictPathFloor  = 5
	relaxedPathFloor = 3
)

// 结构探测预览返回的站内链接上限
const previewLinkLimit = 20

var (
	digitHTMLRe    = regexp.MustCompile(`\d+\.html$`)
	digitAnyHTMLRe = regexp.MustCompile(`\d+.*\.html$`)

	// 推断阶段的导航词
	analyzeStopRe = regexp.MustCompile(`^(首页|关于|联系|帮助|更多)`)
	// 通用选择器提取阶段的导航词
	extractStopRe = regexp.MustCompile(`(?i)^(首页|关于|联系|帮助|更多|上一页|下一页|返回|back|home|about|contact)`)
	// 宽松补充阶段的导航词
	relaxedStopRe = regexp.MustCompile(`(?i)^(首页|关于|联系|帮助|更多|上一页|下一页|返回|back|home|about|contact|登录|注册|搜索)`)

	pageTitleSuffixRe = regexp.MustCompile(`\s*[-_|]\s*[^-_|]*$`)
	titleSiteSuffixRe = regexp.MustCompile(`\s*[-_|]\s*(下载|资源|分享|网站|官网|首页).*$`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
)

// resourcePathKeywords 资源详情页常见的路径片段
var resourcePathKeywords = []string{"/detail/", "/resource/", "/download/", "/item/", "/post/"}

// imageSuffixes 视为资源图片的地址后缀
var imageSuffixes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// imageQueryMarks 带查询串的图片地址标记
var imageQueryMarks = []string{".jpg?", ".png?"}
