package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckOverduePayments runs the overdue sweep. Per-church failures are part
// of the summary; only a failed candidate fetch yields a 500.
// POST /check-overdue-payments
func (s *Server) CheckOverduePayments(c *gin.Context) {
	summary, err := s.sweeper.RunOverdue(c.Request.Context())
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": summary.Processed,
		"suspended": summary.Suspended,
		"reminded":  summary.Reminded,
		"errors":    summary.Errors,
	})
}

// InvoiceReminders sends the 3-day and 1-day due date reminders.
// POST /invoice-reminders
func (s *Server) InvoiceReminders(c *gin.Context) {
	summary, err := s.sweeper.RunReminders(c.Request.Context())
	if err != nil {
		s.log.Error("invoice reminder sweep failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"threeDayReminders": summary.ThreeDay,
		"oneDayReminders":   summary.OneDay,
		"sent":              summary.Sent,
		"skipped":           summary.Skipped,
		"errors":            summary.Errors,
	})
}
