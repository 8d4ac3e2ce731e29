package server

import (
	"net/http"
	"strings"

	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	"github.com/fanstack/fanstack/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateCreatorProfile(c *gin.Context) {
	var req creatordomain.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.creatorSvc.CreateProfile(c.Request.Context(), creatordomain.CreateProfileRequest{
		DisplayName:       strings.TrimSpace(req.DisplayName),
		Category:          strings.TrimSpace(req.Category),
		Description:       strings.TrimSpace(req.Description),
		SubscriptionPrice: req.SubscriptionPrice,
		AcceptsTips:       req.AcceptsTips,
		AllowsMessages:    req.AllowsMessages,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateCreatorProfile(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req creatordomain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CreatorID = id

	resp, err := s.creatorSvc.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCreatorByID(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.creatorSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreators(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Category   string `form:"category"`
		ActiveOnly bool   `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.creatorSvc.List(c.Request.Context(), creatordomain.ListRequest{
		Category:   strings.TrimSpace(query.Category),
		ActiveOnly: query.ActiveOnly,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Creators, "page_info": resp.PageInfo})
}

func (s *Server) GetCreatorEarningsSummary(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.SummaryByCreator(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreatorEarnings(c *gin.Context) {
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

	resp, err := s.ledgerSvc.ListByCreator(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
