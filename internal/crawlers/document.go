package crawlers

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html/charset"
)

// Page 已解析的页面
// 对外只暴露选择器查询、文本读取和相对地址解析
type Page struct {
	// Doc goquery文档
	Doc *goquery.Document

	// URL 页面最终地址(重定向之后)
	URL string

	// RequestURL 请求时使用的地址
	RequestURL string

	base *url.URL
}

// ParsePage 解析HTML为页面
// contentType 用于判断字符集,为空时根据 <meta charset> 嗅探,GBK等编码统一转为UTF-8
func ParsePage(body []byte, contentType, pageURL string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("解析页面地址失败: %w", err)
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// 无法识别的字符集按原始字节解析
		reader = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败 [%s]: %w", pageURL, err)
	}
	doc.Url = base

	return &Page{Doc: doc, URL: base.String(), RequestURL: base.String(), base: base}, nil
}

// ParseHTML 解析HTML字符串,测试和动态渲染结果使用
func ParseHTML(html, pageURL string) (*Page, error) {
	return ParsePage([]byte(html), "text/html; charset=utf-8", pageURL)
}

// Select 执行CSS选择器查询
// 非法选择器返回空结果,需要报错时先调用 CompileSelector
func (p *Page) Select(selector string) *goquery.Selection {
	return p.Doc.Find(selector)
}

// Title 页面 <title> 文本
func (p *Page) Title() string {
	return NormalizeText(p.Doc.Find("title").First().Text())
}

// AbsoluteURL 将元素属性解析为绝对地址,属性为空或无法解析时返回空串
func (p *Page) AbsoluteURL(sel *goquery.Selection, attr string) string {
	raw, ok := sel.Attr(attr)
	if !ok {
		return ""
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}

// Text 元素的规范化文本
func Text(sel *goquery.Selection) string {
	return NormalizeText(sel.Text())
}

// NormalizeText 合并连续空白并去掉首尾空白
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// runeLen 按字符计数
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateRunes 超过上限时截断并追加省略号
func truncateRunes(s string, limit int) string {
	if runeLen(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// CompileSelector 检查CSS选择器是否合法
func CompileSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return &SelectorError{Selector: selector, Err: fmt.Errorf("选择器为空")}
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return &SelectorError{Selector: selector, Err: err}
	}
	return nil
}
