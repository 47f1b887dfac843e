package core

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// FallbackCategoryID 平台没有任何分类时使用的分类ID
const FallbackCategoryID int64 = 1

// ParseCategoryMapping 解析任务的分类映射JSON {"来源分类": 平台分类ID}
// 未配置时返回空映射
func ParseCategoryMapping(raw string) (map[string]int64, error) {
	mapping := make(map[string]int64)
	if strings.TrimSpace(raw) == "" {
		return mapping, nil
	}
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return map[string]int64{}, &models.ValidationError{
			Field:      "category_mapping",
			Reason:     "分类映射JSON解析失败: " + err.Error(),
			Suggestion: `格式应为 {"来源分类": 分类ID}`,
		}
	}
	return mapping, nil
}

// CategoryResolver 把来源网站的分类映射为平台分类
// 每次执行创建一个, 映射只解析一次, 默认分类只查询一次
type CategoryResolver struct {
	mapping  map[string]int64
	provider CategoryProvider

	once      sync.Once
	defaultID int64
}

// NewCategoryResolver 创建分类解析器
// 映射JSON无效时记录验证错误并只使用默认分类
func NewCategoryResolver(task *models.CrawlerTask, provider CategoryProvider) *CategoryResolver {
	mapping, err := ParseCategoryMapping(task.CategoryMapping)
	if err != nil {
		utils.Warnf("任务[%d] %s", task.ID, crawlers.Format(err))
	}
	return &CategoryResolver{mapping: mapping, provider: provider}
}

// Resolve 返回分类ID, 结果总是大于0
func (r *CategoryResolver) Resolve(ctx context.Context, hint string) int64 {
	hint = strings.TrimSpace(hint)
	if hint != "" {
		if id, ok := r.mapping[hint]; ok && id > 0 {
			return id
		}
		utils.Debugf("未找到分类映射: %s, 使用默认分类", hint)
	}
	return r.fallback(ctx)
}

func (r *CategoryResolver) fallback(ctx context.Context) int64 {
	r.once.Do(func() {
		r.defaultID = FallbackCategoryID
		if r.provider == nil {
			return
		}
		id, err := r.provider.DefaultCategoryID(ctx)
		if err != nil {
			utils.Warnf("查询默认分类失败: %v", err)
			return
		}
		if id > 0 {
			r.defaultID = id
		}
	})
	return r.defaultID
}
