package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) StartConversation(c *gin.Context) {
	var req struct {
		CreatorID string `json:"creator_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.messagingSvc.StartConversation(c.Request.Context(), strings.TrimSpace(req.CreatorID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListConversations(c *gin.Context) {
	resp, err := s.messagingSvc.ListConversations(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SendMessage(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.messagingSvc.SendMessage(c.Request.Context(), id, strings.TrimSpace(req.Body))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListMessages(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit, err := limitQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.messagingSvc.ListMessages(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkConversationRead(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.messagingSvc.MarkRead(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetUnreadCount(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count, err := s.messagingSvc.UnreadCount(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"unread": count}})
}
