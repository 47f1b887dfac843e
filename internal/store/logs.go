package store

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

func (s *Store) CreateLog(ctx context.Context, log *models.CrawlLog) error {
	row := logFromModel(log)
	row.ID = 0
	if _, err := s.engine.Context(ctx).Insert(row); err != nil {
		return fmt.Errorf("保存执行日志失败: %w", err)
	}
	log.ID = row.ID
	return nil
}

func (s *Store) UpdateLog(ctx context.Context, log *models.CrawlLog) error {
	row := logFromModel(log)
	sess := s.engine.Context(ctx).AllCols().Omit("id")
	if log.ID != 0 {
		sess = sess.ID(log.ID)
	} else {
		sess = sess.Where("run_id = ?", log.RunID)
	}
	if _, err := sess.Update(row); err != nil {
		return fmt.Errorf("更新执行日志失败: %w", err)
	}
	return nil
}

// ListLogs 任务最近的执行日志, taskID为0时不限任务
func (s *Store) ListLogs(ctx context.Context, taskID int64, limit int) ([]models.CrawlLog, error) {
	sess := s.engine.Context(ctx).Desc("id")
	if taskID != 0 {
		sess = sess.Where("task_id = ?", taskID)
	}
	if limit > 0 {
		sess = sess.Limit(limit)
	}

	var rows []*CrawlLog
	if err := sess.Find(&rows); err != nil {
		return nil, fmt.Errorf("查询执行日志失败: %w", err)
	}

	logs := make([]models.CrawlLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toModel())
	}
	return logs, nil
}
