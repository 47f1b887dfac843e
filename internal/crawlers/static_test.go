package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/andybalholm/brotli"
)

func testCrawlConfig() models.CrawlConfig {
	cfg := models.DefaultCrawlConfig()
	cfg.PageTimeout = 5 * time.Second
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Plain</title></head><body><h1>` + r.Header.Get("User-Agent") + `</h1></body></html>`))
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(`<html><head><title>Brotli</title></head></html>`))
		bw.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		gw.Write([]byte(`<html><head><title>Gzip</title></head></html>`))
		gw.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/gbk", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		body := append([]byte("<html><head><title>"), 0xd7, 0xca, 0xd4, 0xb4)
		w.Write(append(body, []byte("</title></head></html>")...))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/plain", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("<html></html>"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStaticFetcher_Fetch(t *testing.T) {
	server := newSiteServer(t)
	headers := models.StaticHeaders{
		"User-Agent":      {"rescrawl-test"},
		"Accept-Encoding": {"gzip, deflate, br"},
	}
	fetcher := NewStaticFetcher(testCrawlConfig(), headers)

	tests := []struct {
		name  string
		path  string
		title string
	}{
		{"普通页面", "/plain", "Plain"},
		{"brotli压缩", "/br", "Brotli"},
		{"gzip压缩", "/gzip", "Gzip"},
		{"GBK编码", "/gbk", "资源"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := fetcher.Fetch(context.Background(), server.URL+tt.path)
			if err != nil {
				t.Fatalf("抓取失败: %v", err)
			}
			if page.Title() != tt.title {
				t.Errorf("标题 = %q, 期望 %q", page.Title(), tt.title)
			}
		})
	}

	t.Run("请求头生效", func(t *testing.T) {
		page, err := fetcher.Fetch(context.Background(), server.URL+"/plain")
		if err != nil {
			t.Fatal(err)
		}
		if got := Text(page.Select("h1")); got != "rescrawl-test" {
			t.Errorf("User-Agent = %q", got)
		}
	})

	t.Run("跟随重定向", func(t *testing.T) {
		page, err := fetcher.Fetch(context.Background(), server.URL+"/moved")
		if err != nil {
			t.Fatal(err)
		}
		if page.Title() != "Plain" || page.RequestURL != server.URL+"/moved" {
			t.Errorf("Title=%s RequestURL=%s", page.Title(), page.RequestURL)
		}
	})
}

func TestStaticFetcher_Errors(t *testing.T) {
	server := newSiteServer(t)

	t.Run("404返回FetchError", func(t *testing.T) {
		fetcher := NewStaticFetcher(testCrawlConfig(), nil)
		_, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("期望 *FetchError, 得到 %T: %v", err, err)
		}
		if fetchErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d", fetchErr.StatusCode)
		}
		if Classify(err) != KindNetwork {
			t.Error("HTTP错误应归类为网络错误")
		}
	})

	t.Run("超时归类为网络错误", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.PageTimeout = 50 * time.Millisecond
		fetcher := NewStaticFetcher(cfg, nil)
		_, err := fetcher.Fetch(context.Background(), server.URL+"/slow")
		if err == nil {
			t.Fatal("应超时")
		}
		if Classify(err) != KindNetwork {
			t.Errorf("超时应归类为网络错误: %v", err)
		}
	})
}

func TestValidateTargetURL(t *testing.T) {
	server := newSiteServer(t)
	ctx := context.Background()

	if code, err := ValidateTargetURL(ctx, server.URL+"/plain", 2*time.Second); err != nil || code != 200 {
		t.Errorf("200应有效: code=%d err=%v", code, err)
	}
	if code, err := ValidateTargetURL(ctx, server.URL+"/moved", 2*time.Second); err != nil || code != 302 {
		t.Errorf("302应有效且不跟随跳转: code=%d err=%v", code, err)
	}
	if code, err := ValidateTargetURL(ctx, server.URL+"/missing", 2*time.Second); err == nil || code != 404 {
		t.Errorf("404应无效: code=%d err=%v", code, err)
	}

	_, err := ValidateTargetURL(ctx, "not-a-url", time.Second)
	if Classify(err) != KindValidation {
		t.Errorf("格式错误应归类为验证错误: %v", err)
	}
}

func TestDecompressResponse(t *testing.T) {
	body := []byte("hello")
	out, err := decompressResponse("identity", body)
	if err != nil || string(out) != "hello" {
		t.Errorf("identity: %q %v", out, err)
	}
	out, err = decompressResponse("gzip", body)
	if err != nil || string(out) != "hello" {
		t.Errorf("已解压的gzip内容应原样返回: %q %v", out, err)
	}
	out, _ = decompressResponse("zstd", body)
	if string(out) != "hello" {
		t.Errorf("未知编码应原样返回: %q", out)
	}
}
