package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterAccount(c *gin.Context) {
	var req accountdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountSvc.Register(c.Request.Context(), accountdomain.RegisterRequest{
		Email:       strings.TrimSpace(req.Email),
		UserName:    strings.TrimSpace(req.UserName),
		DisplayName: strings.TrimSpace(req.DisplayName),
		AccountType: strings.TrimSpace(req.AccountType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetAccountByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.accountSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
