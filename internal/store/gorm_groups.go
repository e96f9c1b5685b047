package store

import (
	"context"

	"gorm.io/gorm/clause"

	"proptools/internal/models"
)

func (s *GormStore) CreateGroup(ctx context.Context, g *models.Group) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(g).Error)
}

func (s *GormStore) GetGroup(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).First(&group, id).Error
	return group, translateError(err)
}

func (s *GormStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups := make([]models.Group, 0)
	err := s.db.WithContext(ctx).Order("member_count DESC, id ASC").Find(&groups).Error
	return groups, err
}
