package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

// RunReport 一批任务执行的汇总报告
type RunReport struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	TotalTasks   int               `json:"total_tasks"`
	SuccessCount int               `json:"success_count"`
	FailCount    int               `json:"fail_count"`
	TotalCrawled int               `json:"total_crawled"`
	TotalCreated int               `json:"total_created"`
	TotalFailed  int               `json:"total_failed"`
	Duration     float64           `json:"duration_seconds"`
	Runs         []models.CrawlLog `json:"runs"`
}

// Reporter 报告生成器
type Reporter struct {
	outputDir string
	now       func() time.Time
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir, now: time.Now}
}

// BuildRunReport 根据执行日志汇总
func BuildRunReport(logs []models.CrawlLog, duration time.Duration, generatedAt time.Time) RunReport {
	report := RunReport{
		GeneratedAt: generatedAt,
		TotalTasks:  len(logs),
		Duration:    duration.Seconds(),
		Runs:        logs,
	}
	for _, log := range logs {
		if log.Status == models.LogStatusSuccess {
			report.SuccessCount++
		} else {
			report.FailCount++
		}
		report.TotalCrawled += log.CrawledCount
		report.TotalCreated += log.SuccessCount
		report.TotalFailed += log.FailedCount
	}
	return report
}

// WriteRunReport 写入 <outputDir>/run_report_<时间>.json, 返回文件路径
func (r *Reporter) WriteRunReport(logs []models.CrawlLog, duration time.Duration) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	now := r.now()
	report := BuildRunReport(logs, duration, now)
	path := filepath.Join(r.outputDir, fmt.Sprintf("run_report_%s.json", now.Format("20060102_150405")))
	if err := r.saveJSONReport(path, report); err != nil {
		return "", err
	}

	Infof("✅ 报告已生成: %s", path)
	return path, nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner 总量未知时使用, 通过 Describe 刷新计数
func NewSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}
