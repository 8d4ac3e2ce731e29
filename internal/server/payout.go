package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetPayoutByID(c *gin.Context) {
	id, err := snowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreatorPayouts(c *gin.Context) {
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

	resp, err := s.payoutSvc.ListByCreator(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RunPayoutBatch(c *gin.Context) {
	result, err := s.payoutSvc.RunBatch(c.Request.Context(), time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ProcessPendingPayouts(c *gin.Context) {
	processed, err := s.payoutSvc.ProcessPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"processed": processed}})
}
