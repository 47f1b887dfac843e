package images

import (
	"fmt"
	"strings"
	"time"
)

// Config 图片下载配置
type Config struct {
	Dir            string        `mapstructure:"dir"`             // 本地保存目录
	Concurrency    int           `mapstructure:"concurrency"`     // 单个资源内并发下载数
	RatePerSecond  float64       `mapstructure:"rate_per_second"` // 每秒最多发起的下载请求
	MaxBytes       int64         `mapstructure:"max_bytes"`       // 单张图片大小上限
	Attempts       int           `mapstructure:"attempts"`        // 每张图片最多尝试次数
	RetryDelay     time.Duration `mapstructure:"retry_delay"`     // 两次尝试之间的间隔
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // 建连超时
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`    // 读取超时
	UploaderID     int64         `mapstructure:"uploader_id"`     // 调用方未指定时记录的上传者
}

// DefaultConfig 默认图片下载配置
func DefaultConfig() Config {
	return Config{
		Dir:            "images",
		Concurrency:    4,
		RatePerSecond:  5,
		MaxBytes:       5 * 1024 * 1024,
		Attempts:       3,
		RetryDelay:     2 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		UploaderID:     1,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("图片保存目录不能为空")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("图片下载并发数必须大于0, 当前值: %d", c.Concurrency)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("图片下载速率必须大于0")
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("图片大小上限必须大于0")
	}
	if c.Attempts < 1 {
		return fmt.Errorf("尝试次数必须大于0")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("重试间隔不能为负数")
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("超时时间必须大于0")
	}
	return nil
}
