package handler

import (
	"net/http"

	"pratojusto/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

type sendMessageBody struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Content     string `json:"content"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, apperr.InvalidArgument("recipient_id and content are required"))
		return
	}

	msg, err := h.Chat.Send(c.Request.Context(), currentUser(c), body.RecipientID, body.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) GetConversation(c *gin.Context) {
	other, ok := idParam(c, "userId")
	if !ok {
		return
	}
	msgs, err := h.Chat.Conversation(c.Request.Context(), currentUser(c), other)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkConversationRead(c *gin.Context) {
	other, ok := idParam(c, "userId")
	if !ok {
		return
	}
	n, err := h.Chat.MarkRead(c.Request.Context(), currentUser(c), other)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) ListContacts(c *gin.Context) {
	contacts, err := h.Chat.Contacts(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *Handler) ListThreads(c *gin.Context) {
	threads, err := h.Chat.Threads(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, threads)
}

func (h *Handler) GetThread(c *gin.Context) {
	thread, err := h.Threads.GetByToken(c.Request.Context(), c.Param("token"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}
