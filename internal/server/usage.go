package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type usageRequest struct {
	Count int64 `json:"count"`
}

// AssertUsage answers whether the organization may process count documents
// right now. It never mutates the counter.
func (s *Server) AssertUsage(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.quotaSvc.AssertCanProcess(c.Request.Context(), orgID, req.Count); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"allowed": true}})
}

// RecordUsage adds count to the period counter after the guarded work
// succeeded.
func (s *Server) RecordUsage(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.quotaSvc.RecordUsage(c.Request.Context(), orgID, req.Count); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"recorded": req.Count}})
}
