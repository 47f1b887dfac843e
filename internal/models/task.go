package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus 任务启用状态
type TaskStatus int

const (
	TaskStatusDisabled TaskStatus = 0 // 已停用
	TaskStatusEnabled  TaskStatus = 1 // 已启用
)

// ExecuteType 执行类型
type ExecuteType string

const (
	ExecuteManual    ExecuteType = "manual"    // 手动触发
	ExecuteScheduled ExecuteType = "scheduled" // 定时触发
)

// CrawlMode 页面抓取模式
type CrawlMode string

const (
	ModeStatic  CrawlMode = "static"  // HTTP直接抓取(Colly)
	ModeDynamic CrawlMode = "dynamic" // 浏览器渲染(go-rod)
)

// CrawlerTask 爬虫任务定义
// 由任务存储提供,一次执行期间只读,执行结束后回写累计统计
type CrawlerTask struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	TargetURL     string     `json:"target_url"`
	Status        TaskStatus `json:"status"`
	CrawlInterval int        `json:"crawl_interval"` // 爬取间隔(小时),0表示不定时
	MaxDepth      int        `json:"max_depth"`

	// CategoryMapping 分类映射JSON: {"来源分类名": 平台分类ID}
	CategoryMapping string `json:"category_mapping,omitempty"`

	// IntelligentMode 为true时每次执行都自动分析网站结构
	IntelligentMode bool `json:"intelligent_mode"`

	// CustomRules 自定义选择器规则JSON,结构见 CustomRules
	CustomRules string `json:"custom_rules,omitempty"`

	// 累计统计
	TotalCrawled int `json:"total_crawled"`
	TotalSuccess int `json:"total_success"`
	TotalFailed  int `json:"total_failed"`

	LastExecuteTime *time.Time `json:"last_execute_time,omitempty"`
	NextExecuteTime *time.Time `json:"next_execute_time,omitempty"`
}

// Validate 验证任务定义
func (t *CrawlerTask) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "任务名称不能为空"}
	}
	if err := ValidateURL(t.TargetURL); err != nil {
		return &ValidationError{Field: "target_url", Reason: err.Error(), Suggestion: "使用 http:// 或 https:// 开头的完整地址"}
	}
	if t.MaxDepth < 1 || t.MaxDepth > 10 {
		return &ValidationError{Field: "max_depth", Reason: fmt.Sprintf("深度必须在1-10之间,当前值: %d", t.MaxDepth)}
	}
	if t.CrawlInterval < 0 {
		return &ValidationError{Field: "crawl_interval", Reason: "爬取间隔不能为负数"}
	}
	return nil
}

// Recurring 是否为启用中的周期任务
func (t *CrawlerTask) Recurring() bool {
	return t.Status == TaskStatusEnabled && t.CrawlInterval > 0
}

// CustomRules 用户自定义的选择器规则
type CustomRules struct {
	ResourceLinkSelector string `json:"resourceLinkSelector"`
	TitleSelector        string `json:"titleSelector"`
	DescriptionSelector  string `json:"descriptionSelector"`
	DownloadLinkSelector string `json:"downloadLinkSelector"`
	ImageSelector        string `json:"imageSelector"`
	PaginationSelector   string `json:"paginationSelector"`
}

// ParseCustomRules 解析任务中的自定义规则
// 未配置时返回 nil, nil
func (t *CrawlerTask) ParseCustomRules() (*CustomRules, error) {
	if strings.TrimSpace(t.CustomRules) == "" {
		return nil, nil
	}
	var rules CustomRules
	if err := json.Unmarshal([]byte(t.CustomRules), &rules); err != nil {
		return nil, &ValidationError{Field: "custom_rules", Reason: "自定义规则JSON解析失败: " + err.Error()}
	}
	return &rules, nil
}

// ToStructure 将自定义规则转换为网站结构
func (r *CustomRules) ToStructure() SiteStructure {
	s := SiteStructure{
		ResourceLinkSelector: r.ResourceLinkSelector,
		TitleSelector:        r.TitleSelector,
		DescriptionSelector:  r.DescriptionSelector,
		DownloadLinkSelector: r.DownloadLinkSelector,
		ImageSelector:        r.ImageSelector,
		PaginationSelector:   r.PaginationSelector,
	}
	s.Identified = s.ResourceLinkSelector != "" && s.TitleSelector != ""
	return s
}

// CrawlConfig 单次执行的抓取参数
type CrawlConfig struct {
	Mode             CrawlMode     `mapstructure:"mode" json:"mode"`
	PageTimeout      time.Duration `mapstructure:"page_timeout" json:"page_timeout"`             // 页面请求超时
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"`       // 建连超时
	DetailPause      time.Duration `mapstructure:"detail_pause" json:"detail_pause"`             // 每个详情页之后的固定停顿
	PagePause        time.Duration `mapstructure:"page_pause" json:"page_pause"`                 // 每个列表页之后的固定停顿
	BloomCapacity    uint          `mapstructure:"bloom_capacity" json:"bloom_capacity"`         // 布隆过滤器预期容量
	BloomFalseRate   float64       `mapstructure:"bloom_false_rate" json:"bloom_false_rate"`     // 布隆过滤器误判率
	RelaxedLinkLimit int           `mapstructure:"relaxed_link_limit" json:"relaxed_link_limit"` // 宽松规则补充链接上限
	Headless         bool          `mapstructure:"headless" json:"headless"`
	WaitSeconds      int           `mapstructure:"wait_seconds" json:"wait_seconds"` // 动态模式页面加载后额外等待
}

// DefaultCrawlConfig 默认抓取参数
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Mode:             ModeStatic,
		PageTimeout:      30 * time.Second,
		ConnectTimeout:   10 * time.Second,
		DetailPause:      time.Second,
		PagePause:        time.Second,
		BloomCapacity:    10000,
		BloomFalseRate:   0.01,
		RelaxedLinkLimit: 20,
		Headless:         true,
		WaitSeconds:      2,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Mode != ModeStatic && c.Mode != ModeDynamic {
		return fmt.Errorf("无效的抓取模式: %s (有效值: static, dynamic)", c.Mode)
	}
	if c.PageTimeout <= 0 || c.ConnectTimeout <= 0 {
		return fmt.Errorf("超时时间必须大于0")
	}
	if c.DetailPause < 0 || c.PagePause < 0 {
		return fmt.Errorf("停顿时间不能为负数")
	}
	if c.BloomCapacity == 0 {
		return fmt.Errorf("布隆过滤器容量必须大于0")
	}
	if c.BloomFalseRate <= 0 || c.BloomFalseRate >= 1 {
		return fmt.Errorf("布隆过滤器误判率必须在0-1之间")
	}
	if c.RelaxedLinkLimit < 1 {
		return fmt.Errorf("宽松规则链接上限必须大于0")
	}
	if c.WaitSeconds < 0 || c.WaitSeconds > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间")
	}
	return nil
}
