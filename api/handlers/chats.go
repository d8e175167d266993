package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"marketplace/models"
	"marketplace/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var chatToken = regexp.MustCompile(`^\w+$`)

func (h *Handler) ListChats(c *gin.Context) {
	p := requestPage(c)
	res, err := h.Chats.List(c.Request.Context(), currentUser(c), p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, p, res, models.Chat.View)
}

// OpenChat returns the chat of the posted triple, 201 when it was created.
func (h *Handler) OpenChat(c *gin.Context) {
	var in services.ChatInput
	if !bindJSON(c, &in) {
		return
	}
	chat, created, err := h.Chats.Open(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, chat.View())
}

func (h *Handler) GetChat(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	chat, err := h.Chats.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat.View())
}

func (h *Handler) ChatMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p := requestPage(c)
	res, err := h.Chats.Messages(c.Request.Context(), currentUser(c), id, p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, p, res, models.Message.View)
}

// ChatSocket upgrades to the chat websocket of :chat_id. The chat must exist
// and the caller must take part in it.
func (h *Handler) ChatSocket(c *gin.Context) {
	token := c.Param("chat_id")
	if !chatToken.MatchString(token) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	chatID, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	userID := currentUser(c)
	if _, err := h.Messages.Participant(c.Request.Context(), chatID, userID); err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			err = services.ErrNotFound
		}
		respondError(c, err)
		return
	}
	if err := h.Gateway.Serve(c.Writer, c.Request, userID, chatID); err != nil {
		zap.L().Warn("chat socket failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
