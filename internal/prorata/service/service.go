package service

import (
	"context"
	"errors"
	"math"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotADowngrade = errors.New("not_a_downgrade")

const (
	// Prices are monthly; the daily rate always divides by 30 regardless of
	// the real period length.
	daysPerBillingMonth = 30
	fallbackPeriod      = 30 * 24 * time.Hour
	day                 = 24 * time.Hour
)

type Request struct {
	ChurchID    uuid.UUID
	CurrentPlan string
	NewPlan     string
}

type Result struct {
	Credit               float64
	DaysRemaining        int
	TotalDays            int
	UnusedValue          float64
	NewPlanCostRemaining float64
	PeriodStart          time.Time
	PeriodEnd            time.Time
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock       clock.Clock
	catalog     *plandomain.Catalog
	churchRepo  churchdomain.Repository
	paymentRepo paymentdomain.Repository
	metrics     *observability.Metrics
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Catalog     *plandomain.Catalog
	ChurchRepo  churchdomain.Repository
	PaymentRepo paymentdomain.Repository
	Metrics     *observability.Metrics `optional:"true"`
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("prorata.service"),

		clock:       p.Clock,
		catalog:     p.Catalog,
		churchRepo:  p.ChurchRepo,
		paymentRepo: p.PaymentRepo,
		metrics:     p.Metrics,
	}
}

// Calculate computes the credit owed for the unused part of the current
// period and records it on the church together with the pending downgrade.
// Upgrades and same-price moves are rejected without touching state.
func (s *Service) Calculate(ctx context.Context, req Request) (*Result, error) {
	currentPrice, err := s.catalog.PriceOf(req.CurrentPlan)
	if err != nil {
		return nil, err
	}
	newPlan, err := s.catalog.Lookup(req.NewPlan)
	if err != nil {
		return nil, err
	}
	if newPlan.Price >= currentPrice {
		return nil, ErrNotADowngrade
	}

	now := s.clock.Now(ctx)
	var result *Result
	err = s.churchRepo.Mutate(ctx, s.db, req.ChurchID, func(tx *gorm.DB, church *churchdomain.Church) error {
		start, end, err := s.period(ctx, tx, church, now)
		if err != nil {
			return err
		}
		result = compute(currentPrice, newPlan.Price, start, end, now)

		settings := church.Settings.Data()
		settings.PendingDowngrade = &churchdomain.PendingDowngrade{
			NewPlan:       newPlan.ID,
			Credit:        result.Credit,
			CalculatedAt:  now,
			DaysRemaining: result.DaysRemaining,
		}
		return s.churchRepo.AddProRataCredit(ctx, tx, church.ID, result.Credit, settings)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProRataCredit.Add(result.Credit)
	}
	s.log.Info("pro-rata credit recorded",
		zap.String("church_id", req.ChurchID.String()),
		zap.String("new_plan", newPlan.ID),
		zap.Float64("credit", result.Credit),
		zap.Int("days_remaining", result.DaysRemaining),
	)
	return result, nil
}

// period resolves the billing window: the church's stored current period,
// then one calendar month from the last paid invoice, then thirty days from
// now.
func (s *Service) period(ctx context.Context, tx *gorm.DB, church *churchdomain.Church, now time.Time) (time.Time, time.Time, error) {
	if church.CurrentPeriodStart != nil && church.CurrentPeriodEnd != nil {
		return church.CurrentPeriodStart.UTC(), church.CurrentPeriodEnd.UTC(), nil
	}
	last, err := s.paymentRepo.LatestPaid(ctx, tx, church.ID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if last != nil && last.PaidAt != nil {
		start := last.PaidAt.UTC()
		return start, start.AddDate(0, 1, 0), nil
	}
	return now, now.Add(fallbackPeriod), nil
}

func compute(currentPrice, newPrice float64, start, end, now time.Time) *Result {
	totalDays := ceilDays(end.Sub(start))
	if totalDays < 0 {
		totalDays = 0
	}
	daysUsed := ceilDays(now.Sub(start))
	if daysUsed < 0 {
		daysUsed = 0
	}
	daysRemaining := totalDays - daysUsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	unused := currentPrice / daysPerBillingMonth * float64(daysRemaining)
	newCost := newPrice / daysPerBillingMonth * float64(daysRemaining)
	credit := math.Max(0, unused-newCost)

	return &Result{
		Credit:               roundCents(credit),
		DaysRemaining:        daysRemaining,
		TotalDays:            totalDays,
		UnusedValue:          roundCents(unused),
		NewPlanCostRemaining: roundCents(newCost),
		PeriodStart:          start,
		PeriodEnd:            end,
	}
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
