package models

import (
	"fmt"
	"net/http"
	"strings"
)

// CliHeaders 命令行 --header 参数, 每项 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header, 同名头部后出现的生效
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header, len(ch))
	for i, item := range ch {
		name, value, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: 缺少冒号分隔符,应为 'Name: Value'", i+1)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: 头部名称不能为空", i+1)
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

// HeaderProvider 抓取器每次请求前调用
// 返回的头部已按 默认 < 配置 < 命令行 合并
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// StaticHeaders 固定头部
type StaticHeaders http.Header

func (h StaticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h).Clone(), nil
}
