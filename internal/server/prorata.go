package server

import (
	"net/http"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	prorataservice "github.com/ecclesiahq/ecclesia/internal/prorata/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type calculateProRataRequest struct {
	ChurchID    string `json:"churchId" binding:"required"`
	CurrentPlan string `json:"currentPlan" binding:"required"`
	NewPlan     string `json:"newPlan" binding:"required"`
}

// CalculateProRata computes and stores the credit for a downgrade.
// POST /calculate-prorata
func (s *Server) CalculateProRata(c *gin.Context) {
	var req calculateProRataRequest
	if !bindJSON(c, &req) {
		return
	}

	churchID, err := uuid.Parse(req.ChurchID)
	if err != nil {
		AbortWithError(c, churchdomain.ErrInvalidChurch)
		return
	}

	res, err := s.prorata.Calculate(c.Request.Context(), prorataservice.Request{
		ChurchID:    churchID,
		CurrentPlan: req.CurrentPlan,
		NewPlan:     req.NewPlan,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"proRataCredit":        res.Credit,
		"daysRemaining":        res.DaysRemaining,
		"totalDays":            res.TotalDays,
		"unusedValue":          res.UnusedValue,
		"newPlanCostRemaining": res.NewPlanCostRemaining,
		"periodStart":          res.PeriodStart,
		"periodEnd":            res.PeriodEnd,
	})
}
