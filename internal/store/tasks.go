package store

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/rescrawl/internal/core"
	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// AddTask 验证并保存新任务, 回填ID
func (s *Store) AddTask(ctx context.Context, task *models.CrawlerTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	row := taskFromModel(task)
	row.ID = 0
	if _, err := s.engine.Context(ctx).Insert(row); err != nil {
		return fmt.Errorf("保存任务失败: %w", err)
	}
	task.ID = row.ID
	return nil
}

// GetTask 不存在时返回 core.ErrTaskNotFound
func (s *Store) GetTask(ctx context.Context, id int64) (*models.CrawlerTask, error) {
	var row Task
	has, err := s.engine.Context(ctx).ID(id).Get(&row)
	if err != nil {
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	if !has {
		return nil, fmt.Errorf("%w: id=%d", core.ErrTaskNotFound, id)
	}
	return row.toModel(), nil
}

// UpdateTask 覆盖任务的全部字段
func (s *Store) UpdateTask(ctx context.Context, task *models.CrawlerTask) error {
	affected, err := s.engine.Context(ctx).ID(task.ID).AllCols().Omit("created_at").Update(taskFromModel(task))
	if err != nil {
		return fmt.Errorf("更新任务失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id=%d", core.ErrTaskNotFound, task.ID)
	}
	return nil
}

// ListTasks 按ID升序列出任务
func (s *Store) ListTasks(ctx context.Context, enabledOnly bool) ([]*models.CrawlerTask, error) {
	sess := s.engine.Context(ctx).Asc("id")
	if enabledOnly {
		sess = sess.Where("status = ?", int(models.TaskStatusEnabled))
	}

	var rows []*Task
	if err := sess.Find(&rows); err != nil {
		return nil, fmt.Errorf("查询任务列表失败: %w", err)
	}

	tasks := make([]*models.CrawlerTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toModel())
	}
	return tasks, nil
}

// SetTaskStatus 启用或停用任务
func (s *Store) SetTaskStatus(ctx context.Context, id int64, status models.TaskStatus) error {
	affected, err := s.engine.Context(ctx).ID(id).Cols("status").Update(&Task{Status: int(status)})
	if err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id=%d", core.ErrTaskNotFound, id)
	}
	return nil
}
