package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetAccount(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	account, err := s.accounts.FindWithAddress(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}
