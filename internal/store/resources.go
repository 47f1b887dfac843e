package store

import (
	"context"
	"fmt"

	"github.com/go-xorm/xorm"

	"github.com/RecoveryAshes/rescrawl/internal/images"
	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// CreateCrawledResource 在一个事务中保存资源, 下载链接和图片关联
func (s *Store) CreateCrawledResource(ctx context.Context, resource *models.CrawledResource) (int64, error) {
	row := &Resource{
		Title:        resource.Title,
		Description:  resource.Description,
		CategoryID:   resource.CategoryID,
		TaskID:       resource.TaskID,
		SourceURL:    resource.SourceURL,
		CoverImageID: resource.CoverImageID,
		Status:       resource.Status,
	}

	err := s.tx(ctx, func(sess *xorm.Session) error {
		if _, err := sess.Insert(row); err != nil {
			return err
		}

		for i, link := range resource.Links {
			if _, err := sess.Insert(&ResourceLink{
				ResourceID: row.ID,
				URL:        link.URL,
				Name:       link.Name,
				Type:       link.Type,
				Sort:       i,
			}); err != nil {
				return err
			}
		}

		for i, imageID := range resource.ImageIDs {
			if _, err := sess.Insert(&ResourceImage{ResourceID: row.ID, ImageID: imageID, Sort: i}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("保存资源失败: %w", err)
	}
	return row.ID, nil
}

// ExistsBySourceURL 来源地址是否已有资源, 不区分任务
func (s *Store) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	return s.engine.Context(ctx).Where("source_url = ?", sourceURL).Exist(&Resource{})
}

// ListResources 任务产生的资源, 按ID升序
func (s *Store) ListResources(ctx context.Context, taskID int64) ([]models.CrawledResource, error) {
	var rows []*Resource
	if err := s.engine.Context(ctx).Where("task_id = ?", taskID).Asc("id").Find(&rows); err != nil {
		return nil, fmt.Errorf("查询资源失败: %w", err)
	}

	resources := make([]models.CrawledResource, 0, len(rows))
	for _, row := range rows {
		resource := models.CrawledResource{
			Title:        row.Title,
			Description:  row.Description,
			CategoryID:   row.CategoryID,
			TaskID:       row.TaskID,
			SourceURL:    row.SourceURL,
			CoverImageID: row.CoverImageID,
			Status:       row.Status,
		}

		var links []*ResourceLink
		if err := s.engine.Context(ctx).Where("resource_id = ?", row.ID).Asc("sort").Find(&links); err != nil {
			return nil, fmt.Errorf("查询下载链接失败: %w", err)
		}
		for _, link := range links {
			resource.Links = append(resource.Links, models.DownloadLink{URL: link.URL, Name: link.Name, Type: link.Type})
		}

		var refs []*ResourceImage
		if err := s.engine.Context(ctx).Where("resource_id = ?", row.ID).Asc("sort").Find(&refs); err != nil {
			return nil, fmt.Errorf("查询资源图片失败: %w", err)
		}
		for _, ref := range refs {
			resource.ImageIDs = append(resource.ImageIDs, ref.ImageID)
		}

		resources = append(resources, resource)
	}
	return resources, nil
}

// SaveImage 保存图片元数据
func (s *Store) SaveImage(ctx context.Context, image *images.StoredImage) (int64, error) {
	row := &Image{
		SourceURL:    image.SourceURL,
		Path:         image.Path,
		OriginalName: image.OriginalName,
		Format:       image.Format,
		Size:         image.Size,
		UploaderID:   image.UploaderID,
		CreatedAt:    image.CreatedAt,
	}
	if _, err := s.engine.Context(ctx).Insert(row); err != nil {
		return 0, err
	}
	return row.ID, nil
}
