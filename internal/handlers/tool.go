package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"proptools/internal/middleware"
	"proptools/internal/services"
	"proptools/internal/utils"
)

type ToolHandler struct {
	tools *services.ToolService
}

func NewToolHandler(tools *services.ToolService) *ToolHandler {
	return &ToolHandler{tools: tools}
}

// List GET /api/tools?sort=upvotes|newest|featured
func (h *ToolHandler) List(c *gin.Context) {
	tools, err := h.tools.ListAll(c.Request.Context(), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

func (h *ToolHandler) ListByCategory(c *gin.Context) {
	tools, err := h.tools.ListByCategory(c.Request.Context(), c.Param("category"), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

func (h *ToolHandler) Search(c *gin.Context) {
	tools, err := h.tools.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

// Compare GET /api/tools/compare?ids=1,2,3
func (h *ToolHandler) Compare(c *gin.Context) {
	ids, err := utils.ParseIDs(c.Query("ids"))
	if err != nil {
		respondError(c, &services.ValidationError{Fields: map[string]string{"ids": "must be a comma separated list of positive integers"}})
		return
	}
	tools, err := h.tools.Compare(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

func (h *ToolHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tool, err := h.tools.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

func (h *ToolHandler) Categories(c *gin.Context) {
	categories, err := h.tools.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *ToolHandler) Create(c *gin.Context) {
	var in services.ToolInput
	if !bindJSON(c, &in) {
		return
	}
	tool, err := h.tools.Create(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tool)
}

func (h *ToolHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ToolInput
	if !bindJSON(c, &in) {
		return
	}
	tool, err := h.tools.Update(c.Request.Context(), middleware.CurrentActor(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// Upvote POST /api/tools/:id/upvote
func (h *ToolHandler) Upvote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	upvotes, err := h.tools.Upvote(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Upvote successful", "upvotes": upvotes})
}
