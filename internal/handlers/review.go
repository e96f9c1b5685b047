package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"proptools/internal/middleware"
	"proptools/internal/services"
)

type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) ListByTool(c *gin.Context) {
	toolID, ok := pathID(c, "toolId")
	if !ok {
		return
	}
	reviews, err := h.reviews.ListByTool(c.Request.Context(), toolID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) Create(c *gin.Context) {
	var in services.CreateReviewInput
	if !bindJSON(c, &in) {
		return
	}
	review, err := h.reviews.Create(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateReviewInput
	if !bindJSON(c, &in) {
		return
	}
	review, err := h.reviews.Update(c.Request.Context(), middleware.CurrentActor(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}

// MarkHelpful POST /api/reviews/:id/helpful
func (h *ReviewHandler) MarkHelpful(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	count, err := h.reviews.MarkHelpful(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked as helpful", "helpful_count": count})
}
