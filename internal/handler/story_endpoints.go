package handler

import (
	"errors"
	"io"
	"net/http"

	"aitale-server/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createStory(c *gin.Context) {
	var req models.StoryCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}

	story, err := h.storyService.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *Handler) listStories(c *gin.Context) {
	offset, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	stories, err := h.storyService.List(c.Request.Context(), currentUser(c), offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *Handler) getStory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	story, err := h.storyService.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) updateStory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.StoryUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}

	story, err := h.storyService.Update(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) deleteStory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.storyService.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// generateStory принимает параметры генерации; пустое тело = значения по умолчанию.
func (h *Handler) generateStory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.GenerationParameters
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}

	story, err := h.storyService.GenerateStory(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	generationRequestsTotal.WithLabelValues("story").Inc()
	c.JSON(http.StatusOK, story)
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
