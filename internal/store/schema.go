// 数据库表, 一对多的下载链接和图片关联各用一张表
package store

import (
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

type Task struct {
	ID              int64     `xorm:"bigint pk autoincr 'id'"`
	Name            string    `xorm:"varchar(128) notnull 'name'"`
	TargetURL       string    `xorm:"varchar(2048) notnull 'target_url'"`
	Status          int       `xorm:"int notnull 'status'"`
	CrawlInterval   int       `xorm:"int 'crawl_interval'"`
	MaxDepth        int       `xorm:"int 'max_depth'"`
	CategoryMapping string    `xorm:"text 'category_mapping'"`
	IntelligentMode bool      `xorm:"bool 'intelligent_mode'"`
	CustomRules     string    `xorm:"text 'custom_rules'"`
	TotalCrawled    int       `xorm:"int 'total_crawled'"`
	TotalSuccess    int       `xorm:"int 'total_success'"`
	TotalFailed     int       `xorm:"int 'total_failed'"`
	LastExecuteTime time.Time `xorm:"datetime 'last_execute_time'"`
	NextExecuteTime time.Time `xorm:"datetime 'next_execute_time'"`
	CreatedAt       time.Time `xorm:"created notnull 'created_at'"`
	UpdatedAt       time.Time `xorm:"updated notnull 'updated_at'"`
}

func (t *Task) TableName() string {
	return "crawler_tasks"
}

type CrawlLog struct {
	ID           int64     `xorm:"bigint pk autoincr 'id'"`
	RunID        string    `xorm:"varchar(64) notnull index 'run_id'"`
	TaskID       int64     `xorm:"bigint notnull index 'task_id'"`
	TaskName     string    `xorm:"varchar(128) 'task_name'"`
	ExecuteType  string    `xorm:"varchar(16) 'execute_type'"`
	Status       int       `xorm:"int 'status'"`
	CrawledCount int       `xorm:"int 'crawled_count'"`
	SuccessCount int       `xorm:"int 'success_count'"`
	FailedCount  int       `xorm:"int 'failed_count'"`
	Duration     int64     `xorm:"bigint 'duration'"`
	ErrorMessage string    `xorm:"text 'error_message'"`
	ErrorType    string    `xorm:"varchar(32) 'error_type'"`
	StartTime    time.Time `xorm:"datetime 'start_time'"`
	EndTime      time.Time `xorm:"datetime 'end_time'"`
}

func (l *CrawlLog) TableName() string {
	return "crawler_logs"
}

type Resource struct {
	ID           int64     `xorm:"bigint pk autoincr 'id'"`
	Title        string    `xorm:"varchar(255) notnull 'title'"`
	Description  string    `xorm:"text 'description'"`
	CategoryID   int64     `xorm:"bigint 'category_id'"`
	TaskID       int64     `xorm:"bigint index 'task_id'"`
	SourceURL    string    `xorm:"varchar(2048) notnull unique(uk_source_url) 'source_url'"`
	CoverImageID int64     `xorm:"bigint 'cover_image_id'"`
	Status       int       `xorm:"int 'status'"`
	CreatedAt    time.Time `xorm:"created notnull 'created_at'"`
}

func (r *Resource) TableName() string {
	return "resources"
}

type ResourceLink struct {
	ID         int64  `xorm:"bigint pk autoincr 'id'"`
	ResourceID int64  `xorm:"bigint notnull index 'resource_id'"`
	URL        string `xorm:"varchar(2048) notnull 'url'"`
	Name       string `xorm:"varchar(64) 'name'"`
	Type       string `xorm:"varchar(32) 'type'"`
	Sort       int    `xorm:"int 'sort'"`
}

func (l *ResourceLink) TableName() string {
	return "resource_links"
}

type ResourceImage struct {
	ID         int64 `xorm:"bigint pk autoincr 'id'"`
	ResourceID int64 `xorm:"bigint notnull index 'resource_id'"`
	ImageID    int64 `xorm:"bigint notnull 'image_id'"`
	Sort       int   `xorm:"int 'sort'"`
}

func (i *ResourceImage) TableName() string {
	return "resource_images"
}

type Image struct {
	ID           int64     `xorm:"bigint pk autoincr 'id'"`
	SourceURL    string    `xorm:"varchar(2048) 'source_url'"`
	Path         string    `xorm:"varchar(1024) notnull 'path'"`
	OriginalName string    `xorm:"varchar(255) 'original_name'"`
	Format       string    `xorm:"varchar(16) 'format'"`
	Size         int64     `xorm:"bigint 'size'"`
	UploaderID   int64     `xorm:"bigint 'uploader_id'"`
	CreatedAt    time.Time `xorm:"datetime 'created_at'"`
}

func (i *Image) TableName() string {
	return "images"
}

type Category struct {
	ID        int64     `xorm:"bigint pk autoincr 'id'"`
	Name      string    `xorm:"varchar(64) notnull unique(uk_category_name) 'name'"`
	Sort      int       `xorm:"int 'sort'"`
	Status    int       `xorm:"int 'status'"` // 1 可用
	CreatedAt time.Time `xorm:"created notnull 'created_at'"`
}

func (c *Category) TableName() string {
	return "categories"
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func taskFromModel(t *models.CrawlerTask) *Task {
	return &Task{
		ID:              t.ID,
		Name:            t.Name,
		TargetURL:       t.TargetURL,
		Status:          int(t.Status),
		CrawlInterval:   t.CrawlInterval,
		MaxDepth:        t.MaxDepth,
		CategoryMapping: t.CategoryMapping,
		IntelligentMode: t.IntelligentMode,
		CustomRules:     t.CustomRules,
		TotalCrawled:    t.TotalCrawled,
		TotalSuccess:    t.TotalSuccess,
		TotalFailed:     t.TotalFailed,
		LastExecuteTime: timeValue(t.LastExecuteTime),
		NextExecuteTime: timeValue(t.NextExecuteTime),
	}
}

func (t *Task) toModel() *models.CrawlerTask {
	return &models.CrawlerTask{
		ID:              t.ID,
		Name:            t.Name,
		TargetURL:       t.TargetURL,
		Status:          models.TaskStatus(t.Status),
		CrawlInterval:   t.CrawlInterval,
		MaxDepth:        t.MaxDepth,
		CategoryMapping: t.CategoryMapping,
		IntelligentMode: t.IntelligentMode,
		CustomRules:     t.CustomRules,
		TotalCrawled:    t.TotalCrawled,
		TotalSuccess:    t.TotalSuccess,
		TotalFailed:     t.TotalFailed,
		LastExecuteTime: timePtr(t.LastExecuteTime),
		NextExecuteTime: timePtr(t.NextExecuteTime),
	}
}

func logFromModel(l *models.CrawlLog) *CrawlLog {
	return &CrawlLog{
		ID:           l.ID,
		RunID:        l.RunID,
		TaskID:       l.TaskID,
		TaskName:     l.TaskName,
		ExecuteType:  string(l.ExecuteType),
		Status:       int(l.Status),
		CrawledCount: l.CrawledCount,
		SuccessCount: l.SuccessCount,
		FailedCount:  l.FailedCount,
		Duration:     l.Duration,
		ErrorMessage: l.ErrorMessage,
		ErrorType:    l.ErrorType,
		StartTime:    l.StartTime,
		EndTime:      timeValue(l.EndTime),
	}
}

func (l *CrawlLog) toModel() models.CrawlLog {
	return models.CrawlLog{
		ID:           l.ID,
		RunID:        l.RunID,
		TaskID:       l.TaskID,
		TaskName:     l.TaskName,
		ExecuteType:  models.ExecuteType(l.ExecuteType),
		Status:       models.LogStatus(l.Status),
		CrawledCount: l.CrawledCount,
		SuccessCount: l.SuccessCount,
		FailedCount:  l.FailedCount,
		Duration:     l.Duration,
		ErrorMessage: l.ErrorMessage,
		ErrorType:    l.ErrorType,
		StartTime:    l.StartTime,
		EndTime:      timePtr(l.EndTime),
	}
}
