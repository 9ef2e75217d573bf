package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) BlockSummary(c *gin.Context) {
	accountID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	summary, err := s.blocks.Summary(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}
