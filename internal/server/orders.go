package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/blockbill/internal/order/domain"
)

type orderItemRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Quantity    string `json:"quantity"`
	Description string `json:"description"`
}

type createOrderRequest struct {
	AccountID string             `json:"account_id"`
	Note      string             `json:"note"`
	Items     []orderItemRequest `json:"items"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseRequestID(req.AccountID, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]orderdomain.NewOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderdomain.NewOrderItem{
			Amount:      item.Amount,
			Currency:    strings.TrimSpace(item.Currency),
			Quantity:    strings.TrimSpace(item.Quantity),
			Description: strings.TrimSpace(item.Description),
		})
	}

	order, err := s.orders.Create(c.Request.Context(), accountID, strings.TrimSpace(req.Note), items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	order, err := s.orders.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) SubmitOrder(c *gin.Context) {
	s.transitionOrder(c, s.orders.Submit)
}

func (s *Server) RejectOrder(c *gin.Context) {
	s.transitionOrder(c, s.orders.Reject)
}

func (s *Server) ApproveOrder(c *gin.Context) {
	s.transitionOrder(c, s.orders.Approve)
}

func (s *Server) InvoiceOrder(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	order, invoice, items, err := s.orders.Invoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	invoice.Items = items
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"order":   order,
		"invoice": invoice,
	}})
}

func (s *Server) transitionOrder(c *gin.Context, apply func(context.Context, snowflake.ID) (*orderdomain.Order, error)) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	order, err := apply(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
