package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// Fetcher 抓取并解析页面
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}

// FetcherFunc 函数形式的 Fetcher
type FetcherFunc func(ctx context.Context, targetURL string) (*Page, error)

// Fetch 实现 Fetcher 接口
func (f FetcherFunc) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	return f(ctx, targetURL)
}

// StaticFetcher 基于Colly的页面抓取器
// 持有一个配置好的基础collector, 每次抓取克隆一份并注册一次性回调, 可被多个任务并发使用
type StaticFetcher struct {
	base           *colly.Collector
	headerProvider models.HeaderProvider
}

// NewTransport 创建带建连超时的HTTP传输层
func NewTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // 允许访问自签名、过期或主机名不匹配的HTTPS站点
		},
		MaxIdleConnsPerHost: 4,
	}
}

// NewStaticFetcher 创建静态抓取器
func NewStaticFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) *StaticFetcher {
	c := colly.NewCollector(
		// 去重由调用方的布隆过滤器负责, 入口页会被分析和遍历各请求一次
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)

	c.SetRequestTimeout(config.PageTimeout)
	c.WithTransport(&decodingTransport{base: NewTransport(config.ConnectTimeout)})

	utils.Debugf("静态抓取器: 建连超时=%v, 请求超时=%v", config.ConnectTimeout, config.PageTimeout)

	return &StaticFetcher{base: c, headerProvider: headerProvider}
}

// Fetch 抓取页面并解析为 Page
// 非2xx响应和网络失败都返回 *FetchError
func (sf *StaticFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	c := sf.base.Clone()
	c.Context = ctx

	var (
		page     *Page
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if sf.headerProvider == nil {
			return
		}
		headers, err := sf.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		parsed, err := ParsePage(r.Body, responseContentType(r.Headers.Get("Content-Type")), r.Request.URL.String())
		if err != nil {
			fetchErr = err
			return
		}
		parsed.RequestURL = targetURL
		page = parsed
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = &FetchError{URL: targetURL, StatusCode: r.StatusCode, Err: err}
	})

	utils.Debugf("抓取: %s", targetURL)
	visitErr := c.Visit(targetURL)

	switch {
	case fetchErr != nil:
		return nil, fetchErr
	case visitErr != nil:
		return nil, &FetchError{URL: targetURL, Err: visitErr}
	case page == nil:
		return nil, &FetchError{URL: targetURL, Err: fmt.Errorf("响应为空")}
	}
	return page, nil
}

// ValidateTargetURL 用HEAD请求检查目标地址是否可访问
// 200/301/302 视为有效
func ValidateTargetURL(ctx context.Context, targetURL string, timeout time.Duration) (int, error) {
	if err := models.ValidateURL(targetURL); err != nil {
		return 0, &models.ValidationError{Field: "target_url", Reason: err.Error()}
	}

	client := &http.Client{
		Transport: NewTransport(timeout),
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", DefaultRobotsUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, &FetchError{URL: targetURL, Err: err}
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound:
		return resp.StatusCode, nil
	}
	return resp.StatusCode, &FetchError{URL: targetURL, StatusCode: resp.StatusCode}
}

// responseContentType 返回交给 ParsePage 的内容类型
// 响应头声明了字符集时colly已转为UTF-8, 否则由 ParsePage 根据 <meta charset> 嗅探
func responseContentType(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "charset") {
		return "text/html; charset=utf-8"
	}
	return contentType
}

// decodingTransport 在colly读取响应体之前解压 br/deflate/gzip
// 标准库只在自己添加 Accept-Encoding 时自动解压gzip, 显式设置该头部后需要自行处理
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := resp.Header.Get("Content-Encoding")
	if encoding == "" || resp.Uncompressed {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	decompressed, err := decompressResponse(encoding, body)
	if err != nil {
		utils.Warnf("解压响应失败 [%s] (编码=%s): %v", req.URL, encoding, err)
		decompressed = body
	} else {
		resp.Header.Del("Content-Encoding")
	}

	resp.Body = io.NopCloser(bytes.NewReader(decompressed))
	resp.ContentLength = int64(len(decompressed))
	resp.Header.Del("Content-Length")
	resp.Uncompressed = true
	return resp, nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		// HTTP层可能已经解压过, 只处理带gzip魔数的内容
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
