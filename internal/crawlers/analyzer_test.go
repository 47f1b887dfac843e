package crawlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

func mustParse(t *testing.T, html, pageURL string) *Page {
	t.Helper()
	page, err := ParseHTML(html, pageURL)
	if err != nil {
		t.Fatalf("解析HTML失败: %v", err)
	}
	return page
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const listPage = `<html><head><title>资源列表 - 示例站</title></head><body>
<h1>最新资源</h1>
<div class="list">
  <a href="/detail/1.html">资源一</a>
  <a href="/detail/2.html">资源二</a>
  <a href="/detail/3.html">资源三</a>
  <a href="/detail/3.html">资源三重复</a>
  <a href="https://other.com/detail/9.html">外站</a>
  <a href="/detail/4.html#comments">评论</a>
  <a href="javascript:void(0)">脚本</a>
</div>
<div class="pagination"><a href="/list?page=2">2</a><a href="/list?page=3">3</a></div>
</body></html>`

func TestAnalyzePage_SpecificCandidate(t *testing.T) {
	page := mustParse(t, listPage, "https://example.com/list")
	s := AnalyzePage(page)

	if s.ResourceLinkSelector != "a[href*='/detail/']" {
		t.Errorf("链接选择器 = %q", s.ResourceLinkSelector)
	}
	if s.TitleSelector != "h1" {
		t.Errorf("标题选择器 = %q", s.TitleSelector)
	}
	if s.PaginationSelector != ".pagination a" {
		t.Errorf("分页选择器 = %q", s.PaginationSelector)
	}
	if !s.Identified {
		t.Error("应识别成功")
	}

	links := ExtractResourceLinks(page, s, DefaultRelaxedLimit)
	want := []string{
		"https://example.com/detail/1.html",
		"https://example.com/detail/2.html",
		"https://example.com/detail/3.html",
	}
	if len(links) != len(want) {
		t.Fatalf("链接 = %v, 期望 %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("第%d个链接 = %s, 期望 %s", i, links[i], want[i])
		}
	}

	pages := ExtractPaginationLinks(page, s)
	if len(pages) != 2 || pages[0] != "https://example.com/list?page=2" {
		t.Errorf("分页链接 = %v", pages)
	}
}

func TestAnalyzePage_DetailLinkWithLongAnchor(t *testing.T) {
	html := `<html><head><title>Home</title></head><body>
<h1>Welcome</h1>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<a href="/detail/42.html">Great Resource Pack</a>
</body></html>`
	page := mustParse(t, html, "https://example.com/")
	s := AnalyzePage(page)

	if !s.Identified {
		t.Fatalf("应识别成功: %+v", s)
	}
	links := ExtractResourceLinks(page, s, DefaultRelaxedLimit)
	if !contains(links, "https://example.com/detail/42.html") {
		t.Errorf("提取结果应包含详情链接: %v", links)
	}
}

func TestAnalyzePage_RelaxedFallback(t *testing.T) {
	// 没有任何候选选择器能命中, 只能靠宽松策略
	html := `<html><body>
<h1>资源站</h1>
<a href="/">首页</a>
<a href="/about">关于我们</a>
<a href="/view?id=42">Great Resource Pack</a>
</body></html>`
	page := mustParse(t, html, "https://example.com/")
	s := AnalyzePage(page)

	if s.ResourceLinkSelector != GenericLinkSelector {
		t.Fatalf("应退化为通用选择器, 得到 %q", s.ResourceLinkSelector)
	}
	if !s.Identified {
		t.Error("通用选择器加标题选择器应视为识别成功")
	}
}

func TestAnalyzePage_NothingFound(t *testing.T) {
	html := `<html><body><p>empty</p><a href="/">首页</a></body></html>`
	page := mustParse(t, html, "https://example.com/")
	s := AnalyzePage(page)
	if s.ResourceLinkSelector != "" || s.Identified {
		t.Errorf("不应识别: %+v", s)
	}
	if links := ExtractResourceLinks(page, s, DefaultRelaxedLimit); len(links) != 0 {
		t.Errorf("空选择器不应提取链接: %v", links)
	}
}

func TestStructureAnalyzer_FetchFailure(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, targetURL string) (*Page, error) {
		return nil, &FetchError{URL: targetURL, Err: errors.New("connection refused")}
	})
	s := NewStructureAnalyzer(fetcher).Analyze(context.Background(), "https://example.com/")
	if s.Identified || s.ResourceLinkSelector != "" {
		t.Errorf("抓取失败应返回空结构: %+v", s)
	}
}

func TestExtractResourceLinks_GenericFilter(t *testing.T) {
	html := `<html><body>
<a href="/news/100.html">新闻一</a>
<a href="/post/abc">文章</a>
<a href="/page.html">首页推荐</a>
<a href="/tags">标签</a>
</body></html>`
	page := mustParse(t, html, "https://example.com/")
	links := ExtractResourceLinks(page, models.SiteStructure{ResourceLinkSelector: GenericLinkSelector}, DefaultRelaxedLimit)

	if !contains(links, "https://example.com/news/100.html") {
		t.Errorf("数字结尾的.html应保留: %v", links)
	}
	if !contains(links, "https://example.com/post/abc") {
		t.Errorf("资源路径应保留: %v", links)
	}
	if contains(links, "https://example.com/page.html") {
		t.Errorf("导航词开头的锚文本应过滤: %v", links)
	}
	if contains(links, "https://example.com/tags") {
		t.Errorf("非资源链接应过滤: %v", links)
	}
}

func TestExtractResourceLinks_RelaxedMerge(t *testing.T) {
	html := `<html><body>
<div class="item"><a href="/detail/1.html">一</a></div>
<a href="/soft/2024/abc.html">短</a>
<a href="/topic/summer.html">夏季精选资源合集</a>
<a href="/login.html">登录网站获取更多</a>
</body></html>`
	page := mustParse(t, html, "https://example.com/")
	s := models.SiteStructure{ResourceLinkSelector: "a[href*='/detail/']"}
	links := ExtractResourceLinks(page, s, DefaultRelaxedLimit)

	for _, want := range []string{
		"https://example.com/detail/1.html",
		"https://example.com/soft/2024/abc.html",
		"https://example.com/topic/summer.html",
	} {
		if !contains(links, want) {
			t.Errorf("缺少 %s: %v", want, links)
		}
	}
	if contains(links, "https://example.com/login.html") {
		t.Errorf("登录链接应被过滤: %v", links)
	}
	if len(links) != 3 {
		t.Errorf("结果应去重, 得到 %v", links)
	}
}

func TestExtractResourceLinks_RelaxedLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		b.WriteString(`<a href="/a/` + strings.Repeat("x", i+1) + `1.html">link</a>`)
	}
	b.WriteString("</body></html>")
	page := mustParse(t, b.String(), "https://example.com/")

	links := ExtractResourceLinks(page, models.SiteStructure{ResourceLinkSelector: ".none a"}, 5)
	if len(links) != 5 {
		t.Errorf("宽松补充应受上限约束, 得到 %d 个", len(links))
	}
}

const detailPage = `<html><head>
<title>超级工具包 - 资源分享站</title>
<meta name="description" content="这是一个非常好用的工具包描述">
<meta property="article:section" content="软件">
</head><body>
<h1>  超级工具包   v2.0 - 下载 </h1>
<div class="content">
  <p>短段落</p>
  <img src="/img/cover.jpg">
  <img data-src="/img/lazy.png?w=100">
  <img src="/img/icon.svg">
</div>
<a href="https://pan.baidu.com/s/abc">百度网盘</a>
<a href="https://pan.baidu.com/s/abc">重复</a>
<a href="ftp://files.example.com/x.zip">ftp</a>
</body></html>`

func TestExtractResourceDetail(t *testing.T) {
	page := mustParse(t, detailPage, "https://example.com/detail/1.html")
	s := AnalyzePage(page)
	record := ExtractResourceDetail(page, s)

	if record.Title != "超级工具包 v2.0" {
		t.Errorf("标题 = %q", record.Title)
	}
	if record.CategoryHint != "软件" {
		t.Errorf("分类 = %q", record.CategoryHint)
	}
	if record.SourceURL != "https://example.com/detail/1.html" {
		t.Errorf("来源 = %q", record.SourceURL)
	}
	if len(record.DownloadLinks) != 1 || record.DownloadLinks[0] != "https://pan.baidu.com/s/abc" {
		t.Errorf("下载链接 = %v", record.DownloadLinks)
	}
	wantImages := []string{"https://example.com/img/cover.jpg", "https://example.com/img/lazy.png?w=100"}
	if len(record.ImageURLs) != 2 || record.ImageURLs[0] != wantImages[0] || record.ImageURLs[1] != wantImages[1] {
		t.Errorf("图片 = %v, 期望 %v", record.ImageURLs, wantImages)
	}
}

func TestExtractTitle_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"页面标题去掉站点后缀",
			`<html><head><title>Great Resource Pack | MySite</title></head><body></body></html>`,
			"Great Resource Pack",
		},
		{
			"og标题",
			`<html><head><meta property="og:title" content="OG Title"></head><body></body></html>`,
			"OG Title",
		},
		{
			"最长段落",
			`<html><body><p>ab</p><p>这是最长的一个段落内容</p><p>短一点的段落</p></body></html>`,
			"这是最长的一个段落内容",
		},
		{
			"未知标题",
			`<html><body></body></html>`,
			UnknownTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mustParse(t, tt.html, "https://example.com/d/1.html")
			if got := extractTitle(page, models.SiteStructure{}); got != tt.want {
				t.Errorf("标题 = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestExtractDescription_Limits(t *testing.T) {
	long := strings.Repeat("描", 1200)
	html := `<html><body><div class="description">` + long + `</div></body></html>`
	page := mustParse(t, html, "https://example.com/d/1.html")
	desc := extractDescription(page, models.SiteStructure{})

	if runeLen(desc) != maxDescriptionLength+3 || !strings.HasSuffix(desc, "...") {
		t.Errorf("描述应截断到1000字符并追加省略号, 长度 %d", runeLen(desc))
	}

	paragraph := strings.Repeat("段", 60)
	html = `<html><body><p>太短</p><p>` + paragraph + `</p></body></html>`
	page = mustParse(t, html, "https://example.com/d/1.html")
	if got := extractDescription(page, models.SiteStructure{}); got != paragraph {
		t.Errorf("应使用第一个50到1000字符的段落, 得到 %q", got)
	}
}

func TestExtractDownloadLinks_UnionWhenSelectorMisses(t *testing.T) {
	html := `<html><body>
<a href="https://www.aliyundrive.com/s/1">阿里</a>
<a class="download-link" href="https://cdn.example.com/file.zip">直链</a>
</body></html>`
	page := mustParse(t, html, "https://example.com/d/1.html")
	links := ExtractDownloadLinks(page, models.SiteStructure{DownloadLinkSelector: ".btn-none a"})
	if len(links) != 2 {
		t.Errorf("选择器无结果时应使用全部候选, 得到 %v", links)
	}
}

func TestTestSelector(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 15; i++ {
		b.WriteString(`<a class="r" href="/detail/x.html">item</a>`)
	}
	b.WriteString("</body></html>")
	page := mustParse(t, b.String(), "https://example.com/")

	result, err := TestSelector(page, "a.r")
	if err != nil {
		t.Fatalf("测试选择器失败: %v", err)
	}
	if result.Count != 15 || len(result.Samples) != maxSelectorSamples {
		t.Errorf("Count=%d, Samples=%d", result.Count, len(result.Samples))
	}
	if result.Samples[0].Href != "https://example.com/detail/x.html" || result.Samples[0].Tag != "a" {
		t.Errorf("样例 = %+v", result.Samples[0])
	}

	_, err = TestSelector(page, "a[[")
	if Classify(err) != KindParse {
		t.Errorf("非法选择器应归类为解析错误: %v", err)
	}
}

func TestPreviewLinks(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		b.WriteString(`<a href="/p/` + strings.Repeat("a", i+1) + `">x</a>`)
	}
	b.WriteString(`</body></html>`)
	page := mustParse(t, b.String(), "https://example.com/")
	if got := PreviewLinks(page); len(got) != previewLinkLimit {
		t.Errorf("预览链接数 = %d", len(got))
	}
}

func TestParsePage_Charset(t *testing.T) {
	// "资源" 的GBK编码
	gbk := []byte{0xd7, 0xca, 0xd4, 0xb4}
	body := append([]byte(`<html><head><meta charset="gbk"><title>`), gbk...)
	body = append(body, []byte(`</title></head><body></body></html>`)...)

	page, err := ParsePage(body, "text/html", "https://example.com/")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if page.Title() != "资源" {
		t.Errorf("GBK页面标题 = %q", page.Title())
	}
}
