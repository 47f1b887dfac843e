package core

import (
	"context"
	"errors"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

var (
	// ErrAlreadyRunning 重复触发正在执行的任务
	ErrAlreadyRunning = errors.New("任务正在执行中，请勿重复触发")

	// ErrNotRunning 停止未在执行的任务
	ErrNotRunning = errors.New("任务未在执行中")

	// ErrPoolFull 执行队列已满
	ErrPoolFull = errors.New("执行队列已满，请稍后再试")

	// ErrRunnerClosed 执行器已关闭
	ErrRunnerClosed = errors.New("任务执行器已关闭")

	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("任务不存在")
)

// ResourceSink 资源服务
// 来源地址去重是全平台范围的, 不区分任务
type ResourceSink interface {
	CreateCrawledResource(ctx context.Context, resource *models.CrawledResource) (int64, error)
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)
}

// ImagePipeline 图片下载与保存
// 尽力而为: 单张图片失败只影响返回结果, 不返回错误
type ImagePipeline interface {
	DownloadAndUpload(ctx context.Context, urls []string, uploaderID int64) []models.ImageRef
}

// LogSink 执行日志存储
type LogSink interface {
	CreateLog(ctx context.Context, log *models.CrawlLog) error
	UpdateLog(ctx context.Context, log *models.CrawlLog) error
}

// TaskStore 任务存储
type TaskStore interface {
	GetTask(ctx context.Context, id int64) (*models.CrawlerTask, error)
	UpdateTask(ctx context.Context, task *models.CrawlerTask) error
	ListTasks(ctx context.Context, enabledOnly bool) ([]*models.CrawlerTask, error)
}

// CategoryProvider 平台分类查询
type CategoryProvider interface {
	// DefaultCategoryID 第一个可用分类, 没有分类时返回0
	DefaultCategoryID(ctx context.Context) (int64, error)
}

// RobotsChecker robots.txt 策略
type RobotsChecker interface {
	IsAllowed(ctx context.Context, rawURL string) bool
	CrawlDelay(ctx context.Context, rawURL string) int
}
