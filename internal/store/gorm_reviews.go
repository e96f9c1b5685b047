package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"proptools/internal/models"
)

func (s *GormStore) CreateReview(ctx context.Context, r *models.Review) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error; err != nil {
		return translateError(err)
	}
	return translateError(s.db.WithContext(ctx).Preload("User").First(r, r.ID).Error)
}

func (s *GormStore) GetReview(ctx context.Context, id uint) (models.Review, error) {
	var review models.Review
	err := s.db.WithContext(ctx).Preload("User").First(&review, id).Error
	return review, translateError(err)
}

func (s *GormStore) UpdateReview(ctx context.Context, id uint, changes ReviewChanges) (models.Review, error) {
	var review models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if changes.Rating != nil {
			updates["rating"] = *changes.Rating
		}
		if changes.Content != nil {
			updates["content"] = *changes.Content
		}
		if changes.Pros != nil {
			updates["pros"] = *changes.Pros
		}
		if changes.Cons != nil {
			updates["cons"] = *changes.Cons
		}
		if len(updates) > 0 {
			if err := tx.Model(&review).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Preload("User").First(&review, id).Error
	})
	return review, translateError(err)
}

// DeleteReview 删除评论及其“有帮助”记录
func (s *GormStore) DeleteReview(ctx context.Context, id uint) error {
	return translateError(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", id).Delete(&models.HelpfulVote{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Review{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}

func (s *GormStore) ListReviewsByTool(ctx context.Context, toolID uint) ([]models.Review, error) {
	reviews := make([]models.Review, 0)
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("tool_id = ?", toolID).
		Order("helpful_count DESC, created_at DESC, id DESC").
		Find(&reviews).Error
	return reviews, err
}
