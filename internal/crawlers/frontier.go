package crawlers

import (
	"fmt"
	"net/url"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/bits-and-blooms/bloom/v3"
)

// VisitedSet 单次执行内已入队或已访问的URL集合
// 基于布隆过滤器: 误判时会把未访问的URL当作已访问而跳过, 但不会重复访问同一URL
type VisitedSet struct {
	filter *bloom.BloomFilter
	added  int
}

// NewVisitedSet 按预期容量和误判率创建集合
func NewVisitedSet(capacity uint, falsePositiveRate float64) *VisitedSet {
	if capacity == 0 {
		capacity = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	return &VisitedSet{filter: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

// MightContain 是否可能已访问
func (v *VisitedSet) MightContain(rawURL string) bool {
	return v.filter.TestString(rawURL)
}

// Mark 标记为已访问
func (v *VisitedSet) Mark(rawURL string) {
	v.filter.AddString(rawURL)
	v.added++
}

// MarkIfNew 未访问时标记并返回true, 可能已访问时返回false
func (v *VisitedSet) MarkIfNew(rawURL string) bool {
	if v.filter.TestAndAddString(rawURL) {
		return false
	}
	v.added++
	return true
}

// Added 累计标记次数
func (v *VisitedSet) Added() int {
	return v.added
}

// Frontier 广度优先遍历队列
// 只由所属任务的执行goroutine使用
type Frontier struct {
	entries  []models.FrontierEntry
	maxDepth int
}

// NewFrontier 创建队列
func NewFrontier(maxDepth int) *Frontier {
	return &Frontier{maxDepth: maxDepth}
}

// Push 入队, 只接受 http/https 地址
// 深度超过上限的条目仍会入队, 由出队方统一丢弃
func (f *Frontier) Push(rawURL string, depth int) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("不支持的协议: %s", parsed.Scheme)
	}
	f.entries = append(f.entries, models.FrontierEntry{URL: rawURL, Depth: depth})
	return nil
}

// Pop 按先进先出取出下一个条目
func (f *Frontier) Pop() (models.FrontierEntry, bool) {
	if len(f.entries) == 0 {
		return models.FrontierEntry{}, false
	}
	entry := f.entries[0]
	f.entries[0] = models.FrontierEntry{}
	f.entries = f.entries[1:]
	return entry, true
}

// Len 待处理数量
func (f *Frontier) Len() int {
	return len(f.entries)
}

// Expandable 该深度的页面是否还允许产生下一层条目
func (f *Frontier) Expandable(depth int) bool {
	return depth+1 < f.maxDepth
}

// WithinDepth 该深度的条目是否允许处理
func (f *Frontier) WithinDepth(depth int) bool {
	return depth < f.maxDepth
}
