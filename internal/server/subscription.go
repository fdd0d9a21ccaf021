package server

import (
	"net/http"
	"strings"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	gatewaydomain "github.com/ecclesiahq/ecclesia/internal/gateway/domain"
	gatewayservice "github.com/ecclesiahq/ecclesia/internal/gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createSubscriptionRequest struct {
	CustomerID  string                              `json:"customerId" binding:"required"`
	ChurchID    string                              `json:"churchId" binding:"required"`
	Plan        string                              `json:"plan" binding:"required"`
	BillingType string                              `json:"billingType" binding:"required"`
	CreditCard  *gatewaydomain.CreditCard           `json:"creditCard"`
	HolderInfo  *gatewaydomain.CreditCardHolderInfo `json:"creditCardHolderInfo"`
}

// CreateSubscription
// POST /create-subscription
func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	churchID, err := uuid.Parse(req.ChurchID)
	if err != nil {
		AbortWithError(c, churchdomain.ErrInvalidChurch)
		return
	}

	sub, err := s.billing.CreateSubscription(c.Request.Context(), gatewayservice.CreateSubscriptionRequest{
		CustomerID:  req.CustomerID,
		ChurchID:    churchID,
		Plan:        req.Plan,
		BillingType: gatewaydomain.BillingType(strings.ToUpper(strings.TrimSpace(req.BillingType))),
		CreditCard:  req.CreditCard,
		HolderInfo:  req.HolderInfo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}
