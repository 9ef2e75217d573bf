package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentservice "github.com/smallbiznis/blockbill/internal/payment/service"
)

type chargeRequest struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
	Source   string `json:"source"`
	Note     string `json:"note"`
}

func (s *Server) PayInvoiceByCharge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !s.chargeLimiter.Allow(id.String()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{"code": "too_many_attempts"},
		})
		return
	}

	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, payment, err := s.cashier.PayByCharge(c.Request.Context(), paymentservice.ChargeInput{
		InvoiceID: id,
		Currency:  strings.TrimSpace(req.Currency),
		Amount:    req.Amount,
		Source:    strings.TrimSpace(req.Source),
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice": invoiceView(invoice),
		"payment": payment,
	}})
}

type blockPaymentRequest struct {
	BlockIDs []string `json:"block_ids"`
	Note     string   `json:"note"`
}

func (s *Server) PayInvoiceByBlocks(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req blockPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	blockIDs := make([]snowflake.ID, 0, len(req.BlockIDs))
	for _, raw := range req.BlockIDs {
		blockID, err := parseRequestID(raw, "block_ids")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		blockIDs = append(blockIDs, blockID)
	}

	invoice, payment, err := s.cashier.PayByBlock(c.Request.Context(), paymentservice.BlockInput{
		InvoiceID: id,
		BlockIDs:  blockIDs,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice": invoiceView(invoice),
		"payment": payment,
	}})
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) RefundPayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	refund, err := s.cashier.RefundByBlock(c.Request.Context(), paymentservice.RefundInput{
		PaymentID: id,
		Amount:    req.Amount,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if refund == nil {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": refund})
}
