package handlers

import (
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"marketplace/models"
	"marketplace/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListOrders(c *gin.Context) {
	p := requestPage(c)
	filter := services.ParseOrderFilter(c.Request.URL.Query(), services.OrderOrdering)
	res, err := h.Orders.List(c.Request.Context(), filter, p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, p, res, models.Order.ListItem)
}

// ListOwnOrders lists the caller's orders, inactive ones included.
func (h *Handler) ListOwnOrders(c *gin.Context) {
	p := requestPage(c)
	filter := services.ParseOrderFilter(c.Request.URL.Query(), services.OwnOrderOrdering)
	res, err := h.Orders.ListByAuthor(c.Request.Context(), currentUser(c), filter, p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, p, res, models.Order.ListItem)
}

// readOrderForm splits a multipart (or urlencoded) body into scalar fields
// and uploaded files. Files of every field name are taken, ordered by field
// name.
func (h *Handler) readOrderForm(c *gin.Context) (services.OrderForm, []*multipart.FileHeader, error) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	var values url.Values
	var files []*multipart.FileHeader
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			return services.OrderForm{}, nil, err
		}
		values = form.Value
		names := make([]string, 0, len(form.File))
		for name := range form.File {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			files = append(files, form.File[name]...)
		}
	} else {
		if err := c.Request.ParseForm(); err != nil {
			return services.OrderForm{}, nil, err
		}
		values = c.Request.PostForm
	}

	field := func(key string) *string {
		if vs, ok := values[key]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	return services.OrderForm{
		Title:       field("title"),
		Description: field("description"),
		Price:       field("price"),
		Category:    field("category"),
		Images:      field("images"),
	}, files, nil
}

func (h *Handler) CreateOrder(c *gin.Context) {
	form, files, err := h.readOrderForm(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.Orders.Create(c.Request.Context(), currentUser(c), form, files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order.Detail(nil))
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, chatID, err := h.Orders.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order.Detail(chatID))
}

// UpdateOrder serves PUT (every scalar field required) and PATCH.
func (h *Handler) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	form, files, err := h.readOrderForm(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	userID := currentUser(c)
	partial := c.Request.Method == http.MethodPatch
	if _, err := h.Orders.Update(c.Request.Context(), userID, id, form, files, partial); err != nil {
		respondError(c, err)
		return
	}
	order, chatID, err := h.Orders.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order.Detail(chatID))
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Orders.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SwitchOrder flips the active flag of one of the caller's orders.
func (h *Handler) SwitchOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	active, err := h.Orders.Switch(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": active})
}
