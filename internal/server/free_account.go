package server

import (
	"net/http"
	"strings"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	grantdomain "github.com/ecclesiahq/ecclesia/internal/grant/domain"
	grantservice "github.com/ecclesiahq/ecclesia/internal/grant/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type checkFreeAccountRequest struct {
	Email      string `json:"email" binding:"required"`
	ChurchID   string `json:"churchId"`
	ChurchName string `json:"churchName"`
}

// CheckFreeAccount reports whether the email holds a granted free account.
// When churchId is present an available grant is activated on that church.
// POST /check-free-account
func (s *Server) CheckFreeAccount(c *gin.Context) {
	var req checkFreeAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	var churchID uuid.UUID
	if raw := strings.TrimSpace(req.ChurchID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			AbortWithError(c, churchdomain.ErrInvalidChurch)
			return
		}
		churchID = id
	}

	ctx := c.Request.Context()
	check, err := s.grants.CheckGrant(ctx, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	switch check.Status {
	case grantdomain.StatusNone:
		c.JSON(http.StatusOK, gin.H{"hasGrantedAccount": false})
		return
	case grantdomain.StatusExpired:
		c.JSON(http.StatusOK, gin.H{
			"hasGrantedAccount": false,
			"expired":           true,
			"plan":              check.Grant.Plan,
			"expiresAt":         check.Grant.ExpiresAt,
		})
		return
	}

	if churchID == uuid.Nil {
		c.JSON(http.StatusOK, gin.H{
			"hasGrantedAccount": true,
			"status":            check.Status,
			"plan":              check.Grant.Plan,
			"expiresAt":         check.Grant.ExpiresAt,
		})
		return
	}

	res, err := s.grants.ActivateGrant(ctx, grantservice.ActivateRequest{
		Email:      req.Email,
		ChurchID:   churchID,
		ChurchName: req.ChurchName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hasGrantedAccount": true,
		"activated":         true,
		"plan":              res.Plan,
		"churchId":          res.ChurchID,
		"activatedAt":       res.ActivatedAt,
	})
}
