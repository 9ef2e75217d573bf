package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
)

func (s *Server) ListInvoices(c *gin.Context) {
	accountID, err := parseIDQuery(c, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	invoices, err := s.invoices.List(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	invoice, err := s.invoices.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoiceView(invoice)})
}

type closeInvoiceRequest struct {
	Note string `json:"note"`
}

func (s *Server) CloseInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req closeInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoices.ForceClose(c.Request.Context(), id, strings.TrimSpace(req.Note))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoiceView(invoice)})
}

// invoiceView augments the invoice with its computed money fields, which do
// not serialize from the entity itself.
func invoiceView(inv *invoicedomain.Invoice) gin.H {
	return gin.H{
		"invoice":    inv,
		"subtotal":   inv.Subtotal(),
		"total":      inv.Total(),
		"amount_due": inv.AmountDue(),
	}
}
