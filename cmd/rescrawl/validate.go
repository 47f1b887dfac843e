package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// taskFlags task add 的参数
type taskFlags struct {
	name            string
	url             string
	depth           int
	interval        int
	intelligent     bool
	customRules     string
	categoryMapping string
	disabled        bool
}

// ValidateTaskFlags 验证新建任务的命令行参数
func ValidateTaskFlags(f taskFlags) error {
	if strings.TrimSpace(f.name) == "" {
		return fmt.Errorf("任务名称不能为空")
	}
	if err := models.ValidateURL(f.url); err != nil {
		return fmt.Errorf("无效的目标URL: %w", err)
	}

	// 验证深度
	if f.depth < 1 || f.depth > 10 {
		return fmt.Errorf("爬取深度必须在1-10之间,当前值: %d", f.depth)
	}

	if f.interval < 0 {
		return fmt.Errorf("爬取间隔不能为负数,当前值: %d", f.interval)
	}

	if f.categoryMapping != "" {
		var mapping map[string]int64
		if err := json.Unmarshal([]byte(f.categoryMapping), &mapping); err != nil {
			return fmt.Errorf("分类映射必须是 {\"分类名\": ID} 格式的JSON: %w", err)
		}
	}

	if f.customRules != "" {
		return validateCustomRules(f.customRules)
	}
	return nil
}

// validateCustomRules 检查规则JSON和其中每个选择器
func validateCustomRules(raw string) error {
	task := models.CrawlerTask{CustomRules: raw}
	rules, err := task.ParseCustomRules()
	if err != nil {
		return err
	}
	selectors := map[string]string{
		"resourceLinkSelector": rules.ResourceLinkSelector,
		"titleSelector":        rules.TitleSelector,
		"descriptionSelector":  rules.DescriptionSelector,
		"downloadLinkSelector": rules.DownloadLinkSelector,
		"imageSelector":        rules.ImageSelector,
		"paginationSelector":   rules.PaginationSelector,
	}
	for name, selector := range selectors {
		if selector == "" {
			continue
		}
		if err := crawlers.CompileSelector(selector); err != nil {
			return fmt.Errorf("自定义规则 %s 无效: %w", name, err)
		}
	}
	return nil
}

// NormalizeURL 规范化URL
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	// 如果没有协议,默认使用https
	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}

// parseTaskIDs 解析任务ID参数
func parseTaskIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("无效的任务ID: %s", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
