package handler

import (
	"net/http"

	"aitale-server/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listPages(c *gin.Context) {
	storyID, ok := parseIDParam(c, "story_id")
	if !ok {
		return
	}
	pages, err := h.pageService.ListByStory(c.Request.Context(), currentUser(c), storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

func (h *Handler) createPage(c *gin.Context) {
	var req models.PageCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	page, err := h.pageService.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, page)
}

func (h *Handler) getPage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	page, err := h.pageService.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) updatePage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.PageUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	page, err := h.pageService.Update(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) deletePage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.pageService.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) generatePageImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.ImageGenerationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}

	page, err := h.pageService.GenerateImage(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	generationRequestsTotal.WithLabelValues("image").Inc()
	c.JSON(http.StatusOK, page)
}
