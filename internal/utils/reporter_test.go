package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

func TestReporter_WriteRunReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewReporter(dir)
	r.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }

	logs := []models.CrawlLog{
		{TaskID: 1, Status: models.LogStatusSuccess, CrawledCount: 8, SuccessCount: 7, FailedCount: 1},
		{TaskID: 2, Status: models.LogStatusFailed, CrawledCount: 2, SuccessCount: 2, ErrorMessage: models.StopMessage},
	}

	path, err := r.WriteRunReport(logs, 90*time.Second)
	if err != nil {
		t.Fatalf("生成报告失败: %v", err)
	}
	if filepath.Base(path) != "run_report_20240601_083000.json" {
		t.Errorf("报告文件名 = %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("报告不是合法JSON: %v", err)
	}

	if report.TotalTasks != 2 || report.SuccessCount != 1 || report.FailCount != 1 {
		t.Errorf("任务统计错误: %+v", report)
	}
	if report.TotalCrawled != 10 || report.TotalCreated != 9 || report.TotalFailed != 1 {
		t.Errorf("数量统计错误: %+v", report)
	}
	if report.Duration != 90 {
		t.Errorf("Duration = %v", report.Duration)
	}
	if len(report.Runs) != 2 || report.Runs[1].ErrorMessage != models.StopMessage {
		t.Errorf("执行明细错误: %+v", report.Runs)
	}
}
