package store

import (
	"context"
	"fmt"
	"strings"
)

const categoryEnabled = 1

// DefaultCategoryID 排序最靠前的可用分类, 没有分类时返回0
func (s *Store) DefaultCategoryID(ctx context.Context) (int64, error) {
	var rows []*Category
	err := s.engine.Context(ctx).
		Where("status = ?", categoryEnabled).
		Asc("sort", "id").
		Limit(1).
		Find(&rows)
	if err != nil {
		return 0, fmt.Errorf("查询分类失败: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].ID, nil
}

// AddCategory 新增可用分类, 同名分类已存在时返回已有ID
func (s *Store) AddCategory(ctx context.Context, name string, sort int) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("分类名称不能为空")
	}

	var existing Category
	has, err := s.engine.Context(ctx).Where("name = ?", name).Get(&existing)
	if err != nil {
		return 0, fmt.Errorf("查询分类失败: %w", err)
	}
	if has {
		return existing.ID, nil
	}

	row := &Category{Name: name, Sort: sort, Status: categoryEnabled}
	if _, err := s.engine.Context(ctx).Insert(row); err != nil {
		return 0, fmt.Errorf("保存分类失败: %w", err)
	}
	return row.ID, nil
}

// ListCategories 按排序列出全部分类
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var rows []Category
	if err := s.engine.Context(ctx).Asc("sort", "id").Find(&rows); err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	return rows, nil
}
