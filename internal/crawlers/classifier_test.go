package crawlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"抓取错误", &FetchError{URL: "http://a", StatusCode: 503}, KindNetwork},
		{"包装的抓取错误", fmt.Errorf("详情页: %w", &FetchError{URL: "http://a", Err: io.EOF}), KindNetwork},
		{"DNS错误", &net.DNSError{Err: "no such host", Name: "x.invalid"}, KindNetwork},
		{"连接拒绝", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, KindNetwork},
		{"超时", context.DeadlineExceeded, KindNetwork},
		{"意外EOF", io.ErrUnexpectedEOF, KindNetwork},
		{"取消不是网络错误", context.Canceled, KindUnknown},
		{"选择器错误", CompileSelector("div[[["), KindParse},
		{"消息包含parse", errors.New("failed to parse document"), KindParse},
		{"消息包含解析", errors.New("页面解析异常"), KindParse},
		{"验证错误类型", &models.ValidationError{Field: "category_mapping", Reason: "bad json"}, KindValidation},
		{"消息包含validation", errors.New("Validation failed for field"), KindValidation},
		{"非法参数", errors.New("illegal argument: depth"), KindValidation},
		{"其它", errors.New("something odd"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, 期望 %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(KindNetwork) {
		t.Error("网络错误应可重试")
	}
	for _, kind := range []ErrorKind{KindParse, KindValidation, KindUnknown} {
		if IsRetryable(kind) {
			t.Errorf("%v 不应可重试", kind)
		}
	}
}

func TestFormat(t *testing.T) {
	got := Format(&FetchError{URL: "http://example.com", StatusCode: 500})
	if !strings.HasPrefix(got, "[网络错误] ") {
		t.Errorf("缺少分类标签: %s", got)
	}
	if !strings.HasSuffix(got, "建议: 检查网络连接或目标网站是否可访问") {
		t.Errorf("缺少处理建议: %s", got)
	}

	got = Format(errors.New(""))
	if got != "[未知错误] 未知错误 - 建议: 查看详细日志以获取更多信息" {
		t.Errorf("空消息格式化结果: %s", got)
	}
}

func TestErrorKindCode(t *testing.T) {
	codes := map[ErrorKind]string{
		KindNetwork:    "NETWORK_ERROR",
		KindParse:      "PARSE_ERROR",
		KindValidation: "VALIDATION_ERROR",
		KindUnknown:    "UNKNOWN_ERROR",
	}
	for kind, code := range codes {
		if kind.Code() != code {
			t.Errorf("%v.Code() = %s, 期望 %s", kind, kind.Code(), code)
		}
	}
}
