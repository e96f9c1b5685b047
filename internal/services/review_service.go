package services

import (
	"context"
	"errors"
	"strings"

	"proptools/internal/models"
	"proptools/internal/store"
	"proptools/internal/utils"
)

type CreateReviewInput struct {
	ToolID  uint   `json:"tool_id" validate:"required"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Content string `json:"content" validate:"notblank,min=10,max=5000"`
	Pros    string `json:"pros" validate:"max=1000"`
	Cons    string `json:"cons" validate:"max=1000"`
}

type UpdateReviewInput struct {
	Rating  *int    `json:"rating" validate:"omitnil,min=1,max=5"`
	Content *string `json:"content" validate:"omitnil,notblank,min=10,max=5000"`
	Pros    *string `json:"pros" validate:"omitnil,max=1000"`
	Cons    *string `json:"cons" validate:"omitnil,max=1000"`
}

type ReviewService struct {
	store      store.Store
	reconciler *Reconciler
}

func NewReviewService(st store.Store, reconciler *Reconciler) *ReviewService {
	return &ReviewService{store: st, reconciler: reconciler}
}

func (s *ReviewService) Create(ctx context.Context, actor *models.Actor, in CreateReviewInput) (models.Review, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return models.Review{}, err
	}
	// 先去掉首尾空白再校验长度
	in.Content = strings.TrimSpace(in.Content)
	in.Pros = strings.TrimSpace(in.Pros)
	in.Cons = strings.TrimSpace(in.Cons)
	if err := validateStruct(in); err != nil {
		return models.Review{}, err
	}
	review := models.Review{
		UserID:  actor.UserID,
		ToolID:  in.ToolID,
		Rating:  in.Rating,
		Content: strings.TrimSpace(in.Content),
		Pros:    strings.TrimSpace(in.Pros),
		Cons:    strings.TrimSpace(in.Cons),
	}
	if err := s.store.CreateReview(ctx, &review); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Review{}, ErrReviewExists
		}
		return models.Review{}, mapStoreErr(err, ErrToolNotFound)
	}
	return present(review), nil
}

// Update 先确认评论存在，再检查作者或管理员权限，最后校验输入
func (s *ReviewService) Update(ctx context.Context, actor *models.Actor, id uint, in UpdateReviewInput) (models.Review, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return models.Review{}, err
	}
	existing, err := s.store.GetReview(ctx, id)
	if err != nil {
		return models.Review{}, mapStoreErr(err, ErrReviewNotFound)
	}
	if err := Authorize(actor, OwnerOrAdmin, existing.UserID); err != nil {
		return models.Review{}, err
	}
	in.Content, in.Pros, in.Cons = trimmed(in.Content), trimmed(in.Pros), trimmed(in.Cons)
	if err := validateStruct(in); err != nil {
		return models.Review{}, err
	}
	updated, err := s.store.UpdateReview(ctx, id, store.ReviewChanges{
		Rating:  in.Rating,
		Content: in.Content,
		Pros:    in.Pros,
		Cons:    in.Cons,
	})
	if err != nil {
		return models.Review{}, mapStoreErr(err, ErrReviewNotFound)
	}
	return present(updated), nil
}

// Delete 删除评论和它的“有帮助”记录
func (s *ReviewService) Delete(ctx context.Context, actor *models.Actor, id uint) error {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return err
	}
	existing, err := s.store.GetReview(ctx, id)
	if err != nil {
		return mapStoreErr(err, ErrReviewNotFound)
	}
	if err := Authorize(actor, OwnerOrAdmin, existing.UserID); err != nil {
		return err
	}
	return mapStoreErr(s.store.DeleteReview(ctx, id), ErrReviewNotFound)
}

func (s *ReviewService) ListByTool(ctx context.Context, toolID uint) ([]models.Review, error) {
	if _, err := s.store.GetTool(ctx, toolID); err != nil {
		return nil, mapStoreErr(err, ErrToolNotFound)
	}
	reviews, err := s.store.ListReviewsByTool(ctx, toolID)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i] = present(reviews[i])
	}
	return reviews, nil
}

// MarkHelpful 每个用户对每条评论只能标记一次，返回最新计数
func (s *ReviewService) MarkHelpful(ctx context.Context, actor *models.Actor, reviewID uint) (int, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return 0, err
	}
	n, err := s.store.CastVote(ctx, store.ReviewHelpful, actor.UserID, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, ErrDuplicateVote
		}
		return 0, mapStoreErr(err, ErrReviewNotFound)
	}
	if s.reconciler != nil {
		s.reconciler.Schedule(store.ReviewHelpful, reviewID)
	}
	return n, nil
}

// present 填充作者信息和渲染后的内容
func present(r models.Review) models.Review {
	if r.User.ID != 0 {
		r.Author = r.User.Author()
	}
	r.ContentHTML = string(utils.RenderMarkdown(r.Content))
	return r
}
