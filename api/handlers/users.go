package handlers

import (
	"net/http"

	"marketplace/models"
	"marketplace/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var in services.SignUpInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.Users.SignUp(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.Profile())
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, user, err := h.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: user.Profile()})
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}

// UpdateProfile changes first and last name. Other fields are read-only
// and ignored.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var in services.ProfileUpdate
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.Users.UpdateProfile(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var in services.PasswordChange
	if !bindJSON(c, &in) {
		return
	}
	if err := h.Users.ChangePassword(c.Request.Context(), currentUser(c), in); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *Handler) ListAuthors(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	authors := make([]models.UserShort, 0, len(users))
	for _, u := range users {
		authors = append(authors, u.Short())
	}
	c.JSON(http.StatusOK, authors)
}

func (h *Handler) GetAuthor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Short())
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.Categories.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}
