package server

import (
	"net/http"
	"strings"
	"time"

	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		CreatorID:          strings.TrimSpace(req.CreatorID),
		PaymentMethodToken: strings.TrimSpace(req.PaymentMethodToken),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	resp, err := s.subscriptionSvc.ListBySubscriber(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReactivateSubscription(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Reactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriptionHistory(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type renewalWebhookRequest struct {
	SubscriptionID string    `json:"subscription_id"`
	InvoiceID      string    `json:"invoice_id"`
	Amount         int64     `json:"amount"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
}

func (s *Server) HandleSubscriptionRenewed(c *gin.Context) {
	var req renewalWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.SubscriptionID) == "" || strings.TrimSpace(req.InvoiceID) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.subscriptionSvc.MarkRenewed(c.Request.Context(), subscriptiondomain.RenewalEvent{
		ProviderSubscriptionID: strings.TrimSpace(req.SubscriptionID),
		InvoiceID:              strings.TrimSpace(req.InvoiceID),
		Amount:                 req.Amount,
		PeriodStart:            req.PeriodStart,
		PeriodEnd:              req.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) HandleSubscriptionPaymentFailed(c *gin.Context) {
	var req struct {
		SubscriptionID string `json:"subscription_id"`
		InvoiceID      string `json:"invoice_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.SubscriptionID) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.subscriptionSvc.MarkPaymentFailed(c.Request.Context(), subscriptiondomain.PaymentFailureEvent{
		ProviderSubscriptionID: strings.TrimSpace(req.SubscriptionID),
		InvoiceID:              strings.TrimSpace(req.InvoiceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ExpireDueSubscriptions(c *gin.Context) {
	expired, err := s.subscriptionSvc.ExpireDue(c.Request.Context(), time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"expired": expired}})
}
