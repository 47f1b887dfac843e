package crawlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// ErrorKind 错误分类
type ErrorKind int

const (
	KindUnknown    ErrorKind = iota // 未知错误
	KindNetwork                     // 网络错误: 超时、DNS、连接拒绝、一般IO
	KindParse                       // 解析错误: 选择器或页面解析失败
	KindValidation                  // 验证错误: 配置或数据格式不合法
)

var kindLabels = map[ErrorKind]string{
	KindNetwork:    "网络错误",
	KindParse:      "解析错误",
	KindValidation: "验证错误",
	KindUnknown:    "未知错误",
}

var kindHints = map[ErrorKind]string{
	KindNetwork:    "检查网络连接或目标网站是否可访问",
	KindParse:      "检查网站结构是否变化，或调整解析规则",
	KindValidation: "检查数据格式是否符合要求",
	KindUnknown:    "查看详细日志以获取更多信息",
}

// String 返回分类的中文标签
func (k ErrorKind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return kindLabels[KindUnknown]
}

// Code 返回写入执行日志的分类代码
func (k ErrorKind) Code() string {
	switch k {
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindParse:
		return "PARSE_ERROR"
	case KindValidation:
		return "VALIDATION_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// FetchError 页面请求返回了非预期的HTTP状态
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("请求失败 [%s]: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("请求失败 [%s]: HTTP %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SelectorError CSS选择器无法编译或执行
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("选择器解析失败 [%s]: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error {
	return e.Err
}

// Classify 对错误进行分类
// 先按错误类型判断(网络 → 解析 → 验证),再按消息内容判断(解析 → 验证),其余为未知
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if isNetworkError(err) {
		return KindNetwork
	}

	var selErr *SelectorError
	if errors.As(err, &selErr) {
		return KindParse
	}

	var valErr *models.ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse") || strings.Contains(msg, "解析") {
		return KindParse
	}
	if strings.Contains(msg, "validation") || strings.Contains(msg, "验证") ||
		strings.Contains(msg, "illegal argument") || strings.Contains(msg, "invalid argument") {
		return KindValidation
	}

	return KindUnknown
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return true
	}

	// *url.Error、*net.OpError、*net.DNSError 都实现了 net.Error
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// IsRetryable 只有网络错误值得重试
// 分类结果只用于日志和重试判断,本身不执行重试
func IsRetryable(kind ErrorKind) bool {
	return kind == KindNetwork
}

// Format 生成带分类标签和处理建议的错误描述
// 格式: [网络错误] 原始消息 - 建议: 检查网络连接或目标网站是否可访问
func Format(err error) string {
	kind := Classify(err)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "未知错误"
	}
	return fmt.Sprintf("[%s] %s - 建议: %s", kind, msg, kindHints[kind])
}
