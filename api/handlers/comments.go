package handlers

import (
	"net/http"

	"marketplace/models"
	"marketplace/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListComments(c *gin.Context) {
	p := requestPage(c)
	res, err := h.Comments.List(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, p, res, models.Comment.View)
}

func (h *Handler) CreateComment(c *gin.Context) {
	var in services.CommentInput
	if !bindJSON(c, &in) {
		return
	}
	comment, err := h.Comments.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment.View())
}

func (h *Handler) GetComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	comment, err := h.Comments.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment.View())
}

func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Comments.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UserComments lists the comments left about user :id.
func (h *Handler) UserComments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	comments, err := h.Comments.ForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]models.CommentView, 0, len(comments))
	for _, comment := range comments {
		views = append(views, comment.View())
	}
	c.JSON(http.StatusOK, views)
}
