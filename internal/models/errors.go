package models

import "fmt"

// ValidationError 输入校验失败: HTTP头部、任务定义、分类映射、配置项
type ValidationError struct {
	Field      string
	Subject    string // 出错的对象, 如头部名称; 为空时显示 Field
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	target := e.Subject
	if target == "" {
		target = e.Field
	}
	if e.Suggestion == "" {
		return fmt.Sprintf("验证失败 [%s]: %s", target, e.Reason)
	}
	return fmt.Sprintf("验证失败 [%s]: %s (建议: %s)", target, e.Reason, e.Suggestion)
}

// ConfigError 配置文件无法读取或解析
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
