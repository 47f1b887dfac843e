package models

import (
	"fmt"
	"time"
)

// LogStatus 执行日志状态
type LogStatus int

const (
	LogStatusRunning LogStatus = 1 // 执行中
	LogStatusSuccess LogStatus = 2 // 成功
	LogStatusFailed  LogStatus = 3 // 失败或被停止
)

// String 状态的中文名称
func (s LogStatus) String() string {
	switch s {
	case LogStatusRunning:
		return "执行中"
	case LogStatusSuccess:
		return "成功"
	case LogStatusFailed:
		return "失败"
	default:
		return fmt.Sprintf("未知(%d)", int(s))
	}
}

// StopMessage 手动停止时记录的错误信息
const StopMessage = "任务被手动停止"

// CrawlLog 单次执行日志
// 执行开始时创建(状态为执行中),结束时由收尾逻辑统一补全
type CrawlLog struct {
	ID           int64       `json:"id"`
	RunID        string      `json:"run_id"`
	TaskID       int64       `json:"task_id"`
	TaskName     string      `json:"task_name"`
	ExecuteType  ExecuteType `json:"execute_type"`
	Status       LogStatus   `json:"status"`
	CrawledCount int         `json:"crawled_count"`
	SuccessCount int         `json:"success_count"`
	FailedCount  int         `json:"failed_count"`
	Duration     int64       `json:"duration"` // 耗时(秒)
	ErrorMessage string      `json:"error_message,omitempty"`
	ErrorType    string      `json:"error_type,omitempty"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      *time.Time  `json:"end_time,omitempty"`
}

// Finish 补全结束时间与耗时
func (l *CrawlLog) Finish(end time.Time) {
	l.EndTime = &end
	l.Duration = int64(end.Sub(l.StartTime) / time.Second)
}
