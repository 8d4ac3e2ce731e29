package server

import (
	"net/http"
	"strings"

	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreatePost(c *gin.Context) {
	var req contentdomain.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contentSvc.CreatePost(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdatePost(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req contentdomain.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contentSvc.UpdatePost(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePost(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.contentSvc.DeletePost(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetPost(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contentSvc.GetPost(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreatorPosts(c *gin.Context) {
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

	resp, err := s.contentSvc.ListByCreator(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) LikePost(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.contentSvc.Like(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) UnlikePost(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.contentSvc.Unlike(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AddComment(c *gin.Context) {
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

	resp, err := s.contentSvc.AddComment(c.Request.Context(), id, strings.TrimSpace(req.Body))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListComments(c *gin.Context) {
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

	resp, err := s.contentSvc.ListComments(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
