package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
)

func (s *Server) ListLineItems(c *gin.Context) {
	kind := lineitemdomain.OwnerKind(strings.TrimSpace(c.Query("owner_kind")))
	ownerID, err := parseIDQuery(c, "owner_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if ownerID == 0 {
		AbortWithError(c, newValidationError("owner_id", "required", "owner_id is required"))
		return
	}

	items, err := s.lineItems.ListForOwner(c.Request.Context(), lineitemdomain.OwnerRef{
		Kind: kind,
		ID:   ownerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
