package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"marketplace/api/middleware"
	"marketplace/realtime"
	"marketplace/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		services.UseJSONNames(v)
	}
}

// Handler serves the marketplace REST api and the chat socket.
type Handler struct {
	Users      *services.UserService
	Categories *services.CategoryService
	Orders     *services.OrderService
	Comments   *services.CommentService
	Chats      *services.ChatService
	Messages   *services.MessageService
	Gateway    *realtime.Gateway
	// MaxUploadBytes caps the body of order create and update requests.
	MaxUploadBytes int64
}

func respondError(c *gin.Context, err error) {
	err = services.FromValidator(err)
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
}

// bindJSON decodes the body into obj and checks its binding tags. Rule
// failures are answered with per-field messages.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var failed validator.ValidationErrors
	if errors.As(err, &failed) {
		respondError(c, err)
	} else {
		badRequest(c, err)
	}
	return false
}

// pathID reads a positive integer path parameter. Anything else is a 404
// since no such resource can exist.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

type pageResponse struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

func requestPage(c *gin.Context) services.Page {
	return services.ParsePage(c.Query("page"), c.Query("page_size"))
}

func pageLink(c *gin.Context, page int) *string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	q := c.Request.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: q.Encode()}
	link := u.String()
	return &link
}

func respondPage[T any, V any](c *gin.Context, p services.Page, res services.PageResult[T], view func(T) V) {
	results := make([]V, 0, len(res.Results))
	for _, item := range res.Results {
		results = append(results, view(item))
	}
	body := pageResponse{Count: res.Count, Results: results}
	if res.HasNext(p) {
		body.Next = pageLink(c, p.Number+1)
	}
	if p.Number > 1 {
		body.Previous = pageLink(c, p.Number-1)
	}
	c.JSON(http.StatusOK, body)
}

func currentUser(c *gin.Context) int64 {
	return middleware.UserID(c)
}
