package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/images"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(core.StorageConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTask() *models.CrawlerTask {
	return &models.CrawlerTask{
		Name:            "资源站",
		TargetURL:       "https://example.com/list",
		Status:          models.TaskStatusEnabled,
		CrawlInterval:   6,
		MaxDepth:        3,
		CategoryMapping: `{"游戏": 2}`,
		IntelligentMode: true,
	}
}

func TestStore_Tasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := sampleTask()
	require.NoError(t, s.AddTask(ctx, task))
	require.NotZero(t, task.ID)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "资源站", got.Name)
	assert.Equal(t, `{"游戏": 2}`, got.CategoryMapping)
	assert.True(t, got.IntelligentMode)
	assert.Nil(t, got.LastExecuteTime)
	assert.Nil(t, got.NextExecuteTime)

	executed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)
	next := executed.Add(6 * time.Hour)
	got.TotalCrawled = 10
	got.TotalSuccess = 8
	got.TotalFailed = 2
	got.LastExecuteTime = &executed
	got.NextExecuteTime = &next
	require.NoError(t, s.UpdateTask(ctx, got))

	updated, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.TotalCrawled)
	assert.Equal(t, 8, updated.TotalSuccess)
	assert.Equal(t, 2, updated.TotalFailed)
	require.NotNil(t, updated.LastExecuteTime)
	require.NotNil(t, updated.NextExecuteTime)
	assert.WithinDuration(t, executed, *updated.LastExecuteTime, time.Second)
	assert.WithinDuration(t, next, *updated.NextExecuteTime, time.Second)

	_, err = s.GetTask(ctx, 999)
	assert.True(t, errors.Is(err, core.ErrTaskNotFound))
	assert.ErrorIs(t, s.UpdateTask(ctx, &models.CrawlerTask{ID: 999, Name: "x"}), core.ErrTaskNotFound)
}

func TestStore_AddTaskValidates(t *testing.T) {
	s := openTestStore(t)
	task := sampleTask()
	task.TargetURL = "ftp://example.com"

	err := s.AddTask(context.Background(), task)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "target_url", ve.Field)
}

func TestStore_ListTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, second := sampleTask(), sampleTask()
	second.Name = "停用的站"
	require.NoError(t, s.AddTask(ctx, first))
	require.NoError(t, s.AddTask(ctx, second))
	require.NoError(t, s.SetTaskStatus(ctx, second.ID, models.TaskStatusDisabled))

	all, err := s.ListTasks(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, models.TaskStatusDisabled, all[1].Status)

	enabled, err := s.ListTasks(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, first.ID, enabled[0].ID)

	assert.ErrorIs(t, s.SetTaskStatus(ctx, 999, models.TaskStatusEnabled), core.ErrTaskNotFound)
}

func TestStore_Logs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Minute)
	log := &models.CrawlLog{
		RunID:       models.NewRunID(),
		TaskID:      1,
		TaskName:    "资源站",
		ExecuteType: models.ExecuteScheduled,
		Status:      models.LogStatusRunning,
		StartTime:   start,
	}
	require.NoError(t, s.CreateLog(ctx, log))
	require.NotZero(t, log.ID)

	log.Status = models.LogStatusFailed
	log.CrawledCount = 4
	log.SuccessCount = 3
	log.FailedCount = 1
	log.ErrorMessage = models.StopMessage
	log.Finish(start.Add(30 * time.Second))
	require.NoError(t, s.UpdateLog(ctx, log))

	logs, err := s.ListLogs(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	got := logs[0]
	assert.Equal(t, log.RunID, got.RunID)
	assert.Equal(t, models.LogStatusFailed, got.Status)
	assert.Equal(t, models.ExecuteScheduled, got.ExecuteType)
	assert.Equal(t, 3, got.SuccessCount)
	assert.Equal(t, models.StopMessage, got.ErrorMessage)
	assert.Equal(t, int64(30), got.Duration)
	require.NotNil(t, got.EndTime)

	other, err := s.ListLogs(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_Resources(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cover, err := s.SaveImage(ctx, &images.StoredImage{
		ImageRef:     models.ImageRef{SourceURL: "https://example.com/a.png", Path: "images/2024/06/a.png", Format: "png", Size: 10},
		OriginalName: "a.png",
		UploaderID:   1,
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	require.NotZero(t, cover)

	resource := &models.CrawledResource{
		Title:       "资源1",
		Description: "介绍",
		CategoryID:  2,
		TaskID:      7,
		SourceURL:   "https://example.com/detail/1.html",
		Links: []models.DownloadLink{
			{URL: "https://pan.baidu.com/s/1", Name: "百度网盘", Type: "baidu"},
			{URL: "https://example.com/a.zip", Name: "直链下载", Type: "direct"},
		},
		ImageIDs:     []int64{cover},
		CoverImageID: cover,
	}

	exists, err := s.ExistsBySourceURL(ctx, resource.SourceURL)
	require.NoError(t, err)
	assert.False(t, exists)

	id, err := s.CreateCrawledResource(ctx, resource)
	require.NoError(t, err)
	assert.NotZero(t, id)

	exists, err = s.ExistsBySourceURL(ctx, resource.SourceURL)
	require.NoError(t, err)
	assert.True(t, exists)

	// 来源地址唯一, 重复创建整体回滚
	_, err = s.CreateCrawledResource(ctx, resource)
	assert.Error(t, err)

	resources, err := s.ListResources(ctx, 7)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	got := resources[0]
	assert.Equal(t, "资源1", got.Title)
	assert.Equal(t, resource.Links, got.Links)
	assert.Equal(t, []int64{cover}, got.ImageIDs)
	assert.Equal(t, cover, got.CoverImageID)
}

func TestStore_Categories(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.DefaultCategoryID(ctx)
	require.NoError(t, err)
	assert.Zero(t, id, "没有分类时返回0")

	games, err := s.AddCategory(ctx, "游戏", 2)
	require.NoError(t, err)
	software, err := s.AddCategory(ctx, "软件", 1)
	require.NoError(t, err)

	again, err := s.AddCategory(ctx, " 游戏 ", 5)
	require.NoError(t, err)
	assert.Equal(t, games, again, "同名分类返回已有ID")

	id, err = s.DefaultCategoryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, software, id, "按排序取第一个")

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	_, err = s.AddCategory(ctx, "", 0)
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(core.StorageConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}
