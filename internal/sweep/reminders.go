package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/ecclesiahq/ecclesia/internal/clock"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReminderOffsets are the days-before-due at which invoices are reminded.
var ReminderOffsets = []int{3, 1}

type ReminderSummary struct {
	ThreeDay int         `json:"threeDayReminders"`
	OneDay   int         `json:"oneDayReminders"`
	Sent     int         `json:"sent"`
	Skipped  int         `json:"skipped"`
	Errors   []ItemError `json:"errors"`
}

type reminderJob struct {
	payment paymentdomain.Payment
	days    int
}

type reminderResult struct {
	job     reminderJob
	sent    bool
	skipped bool
	err     error
}

// RunReminders notifies owners of pending invoices due exactly three days
// and exactly one day after today (UTC). A missing owner contact skips the
// invoice without reporting an error.
func (s *Service) RunReminders(ctx context.Context) (*ReminderSummary, error) {
	ctx, span := observability.Tracer().Start(ctx, "sweep.reminders")
	defer span.End()

	today := clock.StartOfDay(s.clock.Now(ctx))
	summary := &ReminderSummary{Errors: []ItemError{}}

	var jobs []reminderJob
	for _, days := range ReminderOffsets {
		payments, err := s.paymentRepo.ListPendingDueOn(ctx, s.db, today.AddDate(0, 0, days))
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list invoices due in %d days: %w", days, err)
		}
		switch days {
		case 3:
			summary.ThreeDay = len(payments)
		case 1:
			summary.OneDay = len(payments)
		}
		for _, p := range payments {
			jobs = append(jobs, reminderJob{payment: p, days: days})
		}
	}

	results := fanOut(ctx, s.concurrency, len(jobs), func(ctx context.Context, i int) reminderResult {
		return s.processReminder(ctx, jobs[i])
	})

	for _, r := range results {
		switch {
		case r.err != nil:
			summary.Errors = append(summary.Errors, ItemError{
				ID:    r.job.payment.ID.String(),
				Error: r.err.Error(),
			})
		case r.sent:
			summary.Sent++
		case r.skipped:
			summary.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.sent", summary.Sent),
		attribute.Int("sweep.errors", len(summary.Errors)),
	)
	s.log.Info("invoice reminder sweep finished",
		zap.Int("three_day", summary.ThreeDay),
		zap.Int("one_day", summary.OneDay),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Service) processReminder(ctx context.Context, job reminderJob) (res reminderResult) {
	res.job = job
	p := job.payment
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic: %v", r)
		}
		switch {
		case res.err != nil:
			s.count("reminders", outcomeFailed)
			s.log.Warn("invoice reminder failed", zap.String("payment_id", p.ID.String()), zap.Error(res.err))
		case res.sent:
			s.count("reminders", outcomeSent)
		default:
			s.count("reminders", outcomeSkipped)
		}
	}()

	church, err := s.churchRepo.FindByID(ctx, s.db, p.ChurchID)
	if err != nil {
		res.err = fmt.Errorf("load church: %w", err)
		return res
	}
	if church == nil {
		res.skipped = true
		return res
	}

	owner, err := s.owners.OwnerOf(ctx, *church)
	if err != nil {
		res.err = fmt.Errorf("resolve owner: %w", err)
		return res
	}
	if owner == nil {
		res.skipped = true
		return res
	}

	msg := notificationdomain.NewMessage(notificationdomain.TypeInvoiceReminder, owner.Email, church.Name, owner.Name, map[string]any{
		"daysUntilDue": job.days,
		"reminderType": fmt.Sprintf("%d_day", job.days),
		"amount":       p.Amount,
		"dueDate":      p.DueDate.UTC().Format(time.DateOnly),
		"plan":         p.Plan,
		"invoiceUrl":   p.InvoiceURL,
		"paymentId":    p.ID.String(),
	})
	if err := s.notifier.Notify(ctx, msg); err != nil {
		res.err = fmt.Errorf("notify: %w", err)
		return res
	}
	res.sent = true
	return res
}
