package server

import (
	"net/http"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	gatewayservice "github.com/ecclesiahq/ecclesia/internal/gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type checkoutRequest struct {
	ChurchID        string `json:"churchId" binding:"required"`
	Plan            string `json:"plan" binding:"required"`
	CustomerName    string `json:"customerName" binding:"required"`
	CustomerEmail   string `json:"customerEmail" binding:"required,email"`
	CustomerCpfCnpj string `json:"customerCpfCnpj" binding:"required,cpfcnpj"`
	CustomerPhone   string `json:"customerPhone"`
	SuccessURL      string `json:"successUrl" binding:"required"`
	// Asaas payment links only take a success callback; cancelUrl stays
	// required so existing clients keep the same contract.
	CancelURL string `json:"cancelUrl" binding:"required"`
}

// Checkout
// POST /checkout
func (s *Server) Checkout(c *gin.Context) {
	var req checkoutRequest
	if !bindJSON(c, &req) {
		return
	}

	churchID, err := uuid.Parse(req.ChurchID)
	if err != nil {
		AbortWithError(c, churchdomain.ErrInvalidChurch)
		return
	}

	res, err := s.billing.Checkout(c.Request.Context(), gatewayservice.CheckoutRequest{
		ChurchID: churchID,
		Plan:     req.Plan,
		Customer: gatewayservice.CreateCustomerRequest{
			Name:    req.CustomerName,
			Email:   req.CustomerEmail,
			CpfCnpj: req.CustomerCpfCnpj,
			Phone:   req.CustomerPhone,
			UserID:  userIDFromContext(c),
		},
		SuccessURL: req.SuccessURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentLink":   res.PaymentLink,
		"paymentLinkId": res.PaymentLinkID,
	})
}

type createCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	CpfCnpj string `json:"cpfCnpj" binding:"required,cpfcnpj"`
	Phone   string `json:"phone"`
}

// CreateCustomer
// POST /create-customer
func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := s.billing.CreateCustomer(c.Request.Context(), gatewayservice.CreateCustomerRequest{
		Name:    req.Name,
		Email:   req.Email,
		CpfCnpj: req.CpfCnpj,
		Phone:   req.Phone,
		UserID:  userIDFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"customer": customer})
}
