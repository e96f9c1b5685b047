package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"proptools/internal/models"
)

// orderClause 排序规则，内存实现 sortTools 与之保持一致
func orderClause(sort ToolSort) string {
	switch sort {
	case SortNewest:
		return "created_at DESC, id DESC"
	case SortFeatured:
		return "featured DESC, upvotes DESC, id ASC"
	default:
		return "upvotes DESC, id ASC"
	}
}

// escapeLike escapes LIKE wildcards so user input only matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *GormStore) CreateTool(ctx context.Context, t *models.Tool) error {
	return translateError(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormStore) UpdateTool(ctx context.Context, id uint, changes ToolChanges) (models.Tool, error) {
	var tool models.Tool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tool, id).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if changes.Name != nil {
			updates["name"] = *changes.Name
		}
		if changes.Description != nil {
			updates["description"] = *changes.Description
		}
		if changes.Website != nil {
			updates["website"] = *changes.Website
		}
		if changes.Category != nil {
			updates["category"] = *changes.Category
		}
		if changes.Logo != nil {
			updates["logo"] = *changes.Logo
		}
		if changes.Featured != nil {
			updates["featured"] = *changes.Featured
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&tool).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&tool, id).Error
	})
	return tool, translateError(err)
}

func (s *GormStore) GetTool(ctx context.Context, id uint) (models.Tool, error) {
	var tool models.Tool
	err := s.db.WithContext(ctx).First(&tool, id).Error
	return tool, translateError(err)
}

func (s *GormStore) GetToolsByIDs(ctx context.Context, ids []uint) ([]models.Tool, error) {
	var tools []models.Tool
	if len(ids) == 0 {
		return tools, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tools).Error
	return tools, err
}

func (s *GormStore) ListTools(ctx context.Context, q ToolQuery) ([]models.Tool, error) {
	tx := s.db.WithContext(ctx).Model(&models.Tool{})
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		tx = tx.Where(s.db.Where("name ILIKE ?", like).Or("description ILIKE ?", like))
	}

	tools := make([]models.Tool, 0)
	err := tx.Order(orderClause(q.Sort)).Find(&tools).Error
	return tools, err
}

func (s *GormStore) ListCategories(ctx context.Context) ([]models.CategoryCount, error) {
	categories := make([]models.CategoryCount, 0)
	err := s.db.WithContext(ctx).Model(&models.Tool{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category ASC").
		Scan(&categories).Error
	return categories, err
}

func (s *GormStore) ToolReviewStats(ctx context.Context, toolID uint) (int, float64, error) {
	var stats struct {
		Count   int
		Average float64
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS average").
		Where("tool_id = ?", toolID).
		Scan(&stats).Error
	return stats.Count, stats.Average, err
}

func (s *GormStore) CountTools(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Tool{}).Count(&n).Error
	return n, err
}
