package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://example.com", false},
		{"带路径的URL", "https://example.com/path/to/resource", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"带路径", "https://example.com/a/b?c=1", "https://example.com", false},
		{"带端口", "http://127.0.0.1:8080/x", "http://127.0.0.1:8080", false},
		{"相对地址", "/a/b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BaseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCrawlConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *CrawlConfig)
		wantErr bool
	}{
		{"默认配置", func(c *CrawlConfig) {}, false},
		{"动态模式", func(c *CrawlConfig) { c.Mode = ModeDynamic }, false},
		{"无效模式", func(c *CrawlConfig) { c.Mode = "browser" }, true},
		{"超时为0", func(c *CrawlConfig) { c.PageTimeout = 0 }, true},
		{"停顿为负数", func(c *CrawlConfig) { c.DetailPause = -time.Second }, true},
		{"停顿为0", func(c *CrawlConfig) { c.DetailPause, c.PagePause = 0, 0 }, false},
		{"误判率过大", func(c *CrawlConfig) { c.BloomFalseRate = 1.5 }, true},
		{"布隆容量为0", func(c *CrawlConfig) { c.BloomCapacity = 0 }, true},
		{"等待时间过长", func(c *CrawlConfig) { c.WaitSeconds = 61 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultCrawlConfig()
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCrawlerTask_Validate(t *testing.T) {
	valid := func() CrawlerTask {
		return CrawlerTask{Name: "示例站", TargetURL: "https://example.com/list", MaxDepth: 3}
	}

	tests := []struct {
		name    string
		modify  func(task *CrawlerTask)
		field   string
		wantErr bool
	}{
		{"有效任务", func(task *CrawlerTask) {}, "", false},
		{"名称为空", func(task *CrawlerTask) { task.Name = "  " }, "name", true},
		{"地址无效", func(task *CrawlerTask) { task.TargetURL = "ftp://example.com" }, "target_url", true},
		{"深度为0", func(task *CrawlerTask) { task.MaxDepth = 0 }, "max_depth", true},
		{"深度过大", func(task *CrawlerTask) { task.MaxDepth = 11 }, "max_depth", true},
		{"间隔为负数", func(task *CrawlerTask) { task.CrawlInterval = -1 }, "crawl_interval", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid()
			tt.modify(&task)
			err := task.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("期望 *ValidationError, 实际 %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestCrawlerTask_Recurring(t *testing.T) {
	task := CrawlerTask{Status: TaskStatusEnabled, CrawlInterval: 6}
	if !task.Recurring() {
		t.Error("启用且间隔大于0的任务应为周期任务")
	}
	task.Status = TaskStatusDisabled
	if task.Recurring() {
		t.Error("停用的任务不应为周期任务")
	}
	task = CrawlerTask{Status: TaskStatusEnabled}
	if task.Recurring() {
		t.Error("间隔为0的任务不应为周期任务")
	}
}

func TestCrawlerTask_ParseCustomRules(t *testing.T) {
	t.Run("未配置", func(t *testing.T) {
		task := CrawlerTask{}
		rules, err := task.ParseCustomRules()
		if err != nil || rules != nil {
			t.Errorf("期望 nil, nil, 实际 %v, %v", rules, err)
		}
	})

	t.Run("有效规则", func(t *testing.T) {
		task := CrawlerTask{CustomRules: `{"resourceLinkSelector":".post a","titleSelector":"h1","paginationSelector":".next"}`}
		rules, err := task.ParseCustomRules()
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		structure := rules.ToStructure()
		if structure.ResourceLinkSelector != ".post a" || structure.PaginationSelector != ".next" {
			t.Errorf("选择器不正确: %+v", structure)
		}
		if !structure.Identified {
			t.Error("链接和标题选择器都存在时应为已识别")
		}
	})

	t.Run("缺少标题选择器", func(t *testing.T) {
		rules := CustomRules{ResourceLinkSelector: "a"}
		if rules.ToStructure().Identified {
			t.Error("缺少标题选择器时不应为已识别")
		}
	})

	t.Run("无效JSON", func(t *testing.T) {
		task := CrawlerTask{CustomRules: `{"resourceLinkSelector":`}
		_, err := task.ParseCustomRules()
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "custom_rules" {
			t.Errorf("期望 custom_rules 验证错误, 实际 %v", err)
		}
	})
}

func TestCrawlLog_Finish(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	log := CrawlLog{StartTime: start}
	log.Finish(start.Add(90*time.Second + 400*time.Millisecond))

	if log.EndTime == nil || !log.EndTime.Equal(start.Add(90*time.Second+400*time.Millisecond)) {
		t.Errorf("EndTime = %v", log.EndTime)
	}
	if log.Duration != 90 {
		t.Errorf("Duration = %d, want 90", log.Duration)
	}
}

func TestLogStatus_String(t *testing.T) {
	tests := []struct {
		status LogStatus
		want   string
	}{
		{LogStatusRunning, "执行中"},
		{LogStatusSuccess, "成功"},
		{LogStatusFailed, "失败"},
		{LogStatus(9), "未知(9)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("LogStatus(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}

	// 表格输出中按名称显示
	if got := fmt.Sprintf("%s", LogStatusSuccess); got != "成功" {
		t.Errorf("%%s 格式化 = %q", got)
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	t.Run("空列表", func(t *testing.T) {
		headers, err := CliHeaders(nil).Parse()
		if err != nil || len(headers) != 0 {
			t.Errorf("期望空结果, 实际 %v, %v", headers, err)
		}
	})

	t.Run("去除空白", func(t *testing.T) {
		headers, err := CliHeaders{"  User-Agent  : Mozilla/5.0 "}.Parse()
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		if headers.Get("User-Agent") != "Mozilla/5.0" {
			t.Errorf("User-Agent = %q", headers.Get("User-Agent"))
		}
	})

	t.Run("值中包含冒号", func(t *testing.T) {
		headers, err := CliHeaders{"Referer: https://example.com:8080/a"}.Parse()
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		if headers.Get("Referer") != "https://example.com:8080/a" {
			t.Errorf("Referer = %q", headers.Get("Referer"))
		}
	})

	t.Run("缺少冒号", func(t *testing.T) {
		_, err := CliHeaders{"X-A: 1", "InvalidFormat"}.Parse()
		if err == nil || !strings.Contains(err.Error(), "第2项") {
			t.Errorf("期望指出第2项格式错误, 实际 %v", err)
		}
	})
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "name", Subject: "X-Bad", Reason: "非法字符", Suggestion: "只用字母"}
	want := "验证失败 [X-Bad]: 非法字符 (建议: 只用字母)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Errorf("执行ID应唯一且非空: %q %q", a, b)
	}
}
