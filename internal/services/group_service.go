package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"proptools/internal/models"
	"proptools/internal/store"
)

type CreateGroupInput struct {
	Name        string `json:"name" validate:"notblank,min=3,max=80"`
	Description string `json:"description" validate:"max=500"`
}

type GroupService struct {
	store      store.Store
	reconciler *Reconciler
}

func NewGroupService(st store.Store, reconciler *Reconciler) *GroupService {
	return &GroupService{store: st, reconciler: reconciler}
}

// Create 创建小组，创建者自动加入
func (s *GroupService) Create(ctx context.Context, actor *models.Actor, in CreateGroupInput) (models.Group, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return models.Group{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return models.Group{}, err
	}
	group := models.Group{
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   actor.UserID,
	}
	if err := s.store.CreateGroup(ctx, &group); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Group{}, ErrGroupNameTaken
		}
		return models.Group{}, mapStoreErr(err, ErrUserNotFound)
	}
	n, err := s.store.CastVote(ctx, store.GroupMembers, actor.UserID, group.ID)
	if err != nil {
		return models.Group{}, fmt.Errorf("join created group: %w", err)
	}
	group.MemberCount = n
	return group, nil
}

func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	return s.store.ListGroups(ctx)
}

func (s *GroupService) Get(ctx context.Context, id uint) (models.Group, error) {
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return models.Group{}, mapStoreErr(err, ErrGroupNotFound)
	}
	return g, nil
}

// Join 加入小组，返回最新成员数
func (s *GroupService) Join(ctx context.Context, actor *models.Actor, groupID uint) (int, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return 0, err
	}
	n, err := s.store.CastVote(ctx, store.GroupMembers, actor.UserID, groupID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, ErrAlreadyMember
		}
		return 0, mapStoreErr(err, ErrGroupNotFound)
	}
	if s.reconciler != nil {
		s.reconciler.Schedule(store.GroupMembers, groupID)
	}
	return n, nil
}
