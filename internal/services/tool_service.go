package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"proptools/internal/models"
	"proptools/internal/store"
	"proptools/internal/utils"
)

const maxCompareTools = 10

// ToolInput 创建/更新工具的输入。更新时 nil 字段保持不变
type ToolInput struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=100"`
	Description *string `json:"description" validate:"omitnil,min=10"`
	Website     *string `json:"website" validate:"omitnil,http_url"`
	Category    *string `json:"category" validate:"omitnil,notblank,max=60"`
	Logo        *string `json:"logo" validate:"omitnil,omitempty,http_url"`
	Featured    *bool   `json:"featured"`
}

type ToolService struct {
	store      store.Store
	cache      *utils.Cache
	reconciler *Reconciler
}

// NewToolService cache 和 reconciler 都可以为 nil
func NewToolService(st store.Store, cache *utils.Cache, reconciler *Reconciler) *ToolService {
	return &ToolService{store: st, cache: cache, reconciler: reconciler}
}

func parseSort(sort string) (store.ToolSort, error) {
	switch store.ToolSort(strings.ToLower(strings.TrimSpace(sort))) {
	case "", store.SortUpvotes:
		return store.SortUpvotes, nil
	case store.SortNewest:
		return store.SortNewest, nil
	case store.SortFeatured:
		return store.SortFeatured, nil
	}
	return "", invalid("sort", "must be one of: upvotes newest featured")
}

// ListAll 返回全部工具，默认按点赞数降序
func (s *ToolService) ListAll(ctx context.Context, sort string) ([]models.Tool, error) {
	by, err := parseSort(sort)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, store.ToolQuery{Sort: by})
}

func (s *ToolService) ListByCategory(ctx context.Context, category, sort string) ([]models.Tool, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, invalid("category", "is required")
	}
	by, err := parseSort(sort)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, store.ToolQuery{Category: category, Sort: by})
}

func (s *ToolService) list(ctx context.Context, q store.ToolQuery) ([]models.Tool, error) {
	if s.cache == nil {
		return s.store.ListTools(ctx, q)
	}
	key := fmt.Sprintf("tools:%s:%s", q.Sort, q.Category)
	v, err := s.cache.GetOrLoad(key, func() (any, error) {
		return s.store.ListTools(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	// 返回副本，调用方修改不影响缓存
	cached := v.([]models.Tool)
	out := make([]models.Tool, len(cached))
	copy(out, cached)
	return out, nil
}

// Search 名称或简介的大小写不敏感子串匹配。空查询不匹配任何工具
func (s *ToolService) Search(ctx context.Context, query string) ([]models.Tool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Tool{}, nil
	}
	return s.store.ListTools(ctx, store.ToolQuery{Search: query, Sort: store.SortUpvotes})
}

func (s *ToolService) GetByID(ctx context.Context, id uint) (models.Tool, error) {
	tool, err := s.store.GetTool(ctx, id)
	if err != nil {
		return models.Tool{}, mapStoreErr(err, ErrToolNotFound)
	}
	count, avg, err := s.store.ToolReviewStats(ctx, id)
	if err != nil {
		return models.Tool{}, fmt.Errorf("review stats: %w", err)
	}
	tool.ReviewCount = count
	tool.AverageRating = avg
	return tool, nil
}

// Compare 返回请求顺序的工具列表，任意一个不存在则整体失败
func (s *ToolService) Compare(ctx context.Context, ids []uint) ([]models.Tool, error) {
	seen := make(map[uint]bool, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return nil, invalid("ids", "at least one tool id is required")
	}
	if len(unique) > maxCompareTools {
		return nil, invalid("ids", fmt.Sprintf("at most %d tools can be compared", maxCompareTools))
	}

	found, err := s.store.GetToolsByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Tool, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	result := make([]models.Tool, 0, len(unique))
	var missing []string
	for _, id := range unique {
		t, ok := byID[id]
		if !ok {
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		result = append(result, t)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, strings.Join(missing, ", "))
	}
	return result, nil
}

func (s *ToolService) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	return s.store.ListCategories(ctx)
}

func (s *ToolService) Create(ctx context.Context, actor *models.Actor, in ToolInput) (models.Tool, error) {
	if err := Authorize(actor, AdminOnly, 0); err != nil {
		return models.Tool{}, err
	}
	fields := map[string]string{}
	if in.Name == nil {
		fields["name"] = "is required"
	}
	if in.Description == nil {
		fields["description"] = "is required"
	}
	if in.Website == nil {
		fields["website"] = "is required"
	}
	if in.Category == nil {
		fields["category"] = "is required"
	}
	if err := mergeValidation(fields, validateStruct(in)); err != nil {
		return models.Tool{}, err
	}

	tool := models.Tool{
		Name:        strings.TrimSpace(*in.Name),
		Description: utils.StripHTML(strings.TrimSpace(*in.Description)),
		Website:     strings.TrimSpace(*in.Website),
		Category:    strings.TrimSpace(*in.Category),
	}
	if in.Logo != nil {
		tool.Logo = strings.TrimSpace(*in.Logo)
	}
	if in.Featured != nil {
		tool.Featured = *in.Featured
	}
	if err := s.store.CreateTool(ctx, &tool); err != nil {
		return models.Tool{}, err
	}
	s.invalidate()
	return tool, nil
}

// Update 部分更新，永远不修改 upvotes
func (s *ToolService) Update(ctx context.Context, actor *models.Actor, id uint, in ToolInput) (models.Tool, error) {
	if err := Authorize(actor, AdminOnly, 0); err != nil {
		return models.Tool{}, err
	}
	if err := validateStruct(in); err != nil {
		return models.Tool{}, err
	}
	changes := store.ToolChanges{
		Name:     trimmed(in.Name),
		Website:  trimmed(in.Website),
		Category: trimmed(in.Category),
		Logo:     trimmed(in.Logo),
		Featured: in.Featured,
	}
	if in.Description != nil {
		d := utils.StripHTML(strings.TrimSpace(*in.Description))
		changes.Description = &d
	}
	tool, err := s.store.UpdateTool(ctx, id, changes)
	if err != nil {
		return models.Tool{}, mapStoreErr(err, ErrToolNotFound)
	}
	s.invalidate()
	return tool, nil
}

// Upvote 每个用户对每个工具只能点赞一次，返回最新点赞数
func (s *ToolService) Upvote(ctx context.Context, actor *models.Actor, toolID uint) (int, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return 0, err
	}
	n, err := s.store.CastVote(ctx, store.ToolUpvotes, actor.UserID, toolID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, ErrDuplicateVote
		}
		return 0, mapStoreErr(err, ErrToolNotFound)
	}
	s.invalidate()
	if s.reconciler != nil {
		s.reconciler.Schedule(store.ToolUpvotes, toolID)
	}
	return n, nil
}

func (s *ToolService) invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// mapStoreErr 把 store 层的哨兵错误转换成业务错误，其余原样返回
func mapStoreErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// mergeValidation 合并手写的字段错误和 validator 的结果
func mergeValidation(fields map[string]string, err error) error {
	var verr *ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	if verr != nil {
		for k, v := range verr.Fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
