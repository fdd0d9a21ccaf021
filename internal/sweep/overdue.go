package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OverdueSummary struct {
	Processed int         `json:"processed"`
	Suspended int         `json:"suspended"`
	Reminded  int         `json:"reminded"`
	Errors    []ItemError `json:"errors"`
}

type overdueResult struct {
	church    churchdomain.Church
	suspended bool
	reminded  bool
	err       error
}

// RunOverdue suspends churches whose payment has been overdue for the grace
// period and reminds the rest. Only the candidate query can fail the run.
func (s *Service) RunOverdue(ctx context.Context) (*OverdueSummary, error) {
	ctx, span := observability.Tracer().Start(ctx, "sweep.overdue")
	defer span.End()

	churches, err := s.churchRepo.ListOverdue(ctx, s.db, plandomain.PlanFree)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list overdue churches: %w", err)
	}

	now := s.clock.Now(ctx)
	results := fanOut(ctx, s.concurrency, len(churches), func(ctx context.Context, i int) overdueResult {
		return s.processOverdue(ctx, churches[i], now)
	})

	summary := &OverdueSummary{Errors: []ItemError{}}
	for _, r := range results {
		summary.Processed++
		if r.suspended {
			summary.Suspended++
		}
		if r.reminded {
			summary.Reminded++
		}
		if r.err != nil {
			summary.Errors = append(summary.Errors, ItemError{
				ID:    r.church.ID.String(),
				Name:  r.church.Name,
				Error: r.err.Error(),
			})
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.processed", summary.Processed),
		attribute.Int("sweep.suspended", summary.Suspended),
		attribute.Int("sweep.errors", len(summary.Errors)),
	)
	s.log.Info("overdue sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("suspended", summary.Suspended),
		zap.Int("reminded", summary.Reminded),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// DaysOverdue is the number of whole days elapsed since overdueAt.
func DaysOverdue(now, overdueAt time.Time) int {
	return int(math.Floor(now.Sub(overdueAt).Hours() / 24))
}

func (s *Service) processOverdue(ctx context.Context, church churchdomain.Church, now time.Time) (res overdueResult) {
	res.church = church
	defer func() {
		if p := recover(); p != nil {
			res.err = fmt.Errorf("panic: %v", p)
		}
		switch {
		case res.err != nil:
			s.count("overdue", outcomeFailed)
			s.log.Warn("overdue church failed", zap.String("church_id", church.ID.String()), zap.Error(res.err))
		case res.suspended:
			s.count("overdue", outcomeSuspended)
		case res.reminded:
			s.count("overdue", outcomeReminded)
		default:
			s.count("overdue", outcomeSkipped)
		}
	}()

	if church.PaymentOverdueAt == nil {
		return res
	}
	days := DaysOverdue(now, *church.PaymentOverdueAt)

	if days >= s.gracePeriodDays {
		changed, err := s.churchRepo.Suspend(ctx, s.db, church.ID, now)
		if err != nil {
			res.err = fmt.Errorf("suspend: %w", err)
			return res
		}
		if !changed {
			return res
		}
		res.suspended = true
		s.log.Info("church suspended",
			zap.String("church_id", church.ID.String()),
			zap.Int("days_overdue", days),
		)
		// The suspension stays committed even when the notice fails.
		res.err = s.notifyOwner(ctx, church, notificationdomain.TypeAccountSuspended, map[string]any{
			"daysOverdue": days,
		})
		return res
	}

	err := s.notifyOwner(ctx, church, notificationdomain.TypePaymentOverdue, map[string]any{
		"daysOverdue":   days,
		"daysRemaining": s.gracePeriodDays - days,
	})
	if err != nil {
		res.err = err
		return res
	}
	res.reminded = true
	return res
}

func (s *Service) notifyOwner(ctx context.Context, church churchdomain.Church, typ notificationdomain.Type, data map[string]any) error {
	owner, err := s.owners.OwnerOf(ctx, church)
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}
	if owner == nil {
		return ErrNoContact
	}
	msg := notificationdomain.NewMessage(typ, owner.Email, church.Name, owner.Name, data)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: %w", typ, err)
	}
	return nil
}
