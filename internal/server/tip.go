package server

import (
	"context"
	"net/http"
	"strings"

	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateTip(c *gin.Context) {
	var req tipdomain.CreateTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tipSvc.Create(c.Request.Context(), tipdomain.CreateTipRequest{
		CreatorID: strings.TrimSpace(req.CreatorID),
		Amount:    req.Amount,
		Message:   strings.TrimSpace(req.Message),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetTipByID(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.tipSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreatorTips(c *gin.Context) {
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

	resp, err := s.tipSvc.ListByCreator(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type tipWebhookRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

func (s *Server) HandleTipCompleted(c *gin.Context) {
	s.handleTipEvent(c, s.tipSvc.Complete)
}

func (s *Server) HandleTipFailed(c *gin.Context) {
	s.handleTipEvent(c, s.tipSvc.Fail)
}

func (s *Server) HandleTipRefunded(c *gin.Context) {
	s.handleTipEvent(c, s.tipSvc.Refund)
}

func (s *Server) handleTipEvent(c *gin.Context, apply func(ctx context.Context, providerRef string) error) {
	var req tipWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ref := strings.TrimSpace(req.PaymentIntentID)
	if ref == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := apply(c.Request.Context(), ref); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
