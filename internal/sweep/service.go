package sweep

import (
	"context"
	"errors"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	"github.com/ecclesiahq/ecclesia/internal/config"
	"github.com/ecclesiahq/ecclesia/internal/contact"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var Module = fx.Module("sweep",
	fx.Provide(NewService),
)

var ErrNoContact = errors.New("owner_contact_not_found")

const (
	defaultGracePeriodDays = 7
	defaultConcurrency     = 4
)

type Owners interface {
	OwnerOf(ctx context.Context, church churchdomain.Church) (*contact.Contact, error)
}

// Service runs the daily billing sweeps.
type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock       clock.Clock
	churchRepo  churchdomain.Repository
	paymentRepo paymentdomain.Repository
	owners      Owners
	notifier    notificationdomain.Notifier
	metrics     *observability.Metrics

	gracePeriodDays int
	concurrency     int
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	Clock       clock.Clock
	ChurchRepo  churchdomain.Repository
	PaymentRepo paymentdomain.Repository
	Owners      *contact.Resolver
	Notifier    notificationdomain.Notifier
	Metrics     *observability.Metrics `optional:"true"`
}

func NewService(p Params) *Service {
	s := &Service{
		db:  p.DB,
		log: p.Log.Named("sweep.service"),

		clock:       p.Clock,
		churchRepo:  p.ChurchRepo,
		paymentRepo: p.PaymentRepo,
		owners:      p.Owners,
		notifier:    p.Notifier,
		metrics:     p.Metrics,

		gracePeriodDays: p.Config.Sweep.GracePeriodDays,
		concurrency:     p.Config.Sweep.Concurrency,
	}
	if s.gracePeriodDays <= 0 {
		s.gracePeriodDays = defaultGracePeriodDays
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	return s
}

// ItemError is one per-item failure reported in a sweep summary.
type ItemError struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// fanOut runs fn for every index with at most limit in flight and returns
// the results in input order. fn must not fail the group; per-item errors
// belong in T.
func fanOut[T any](ctx context.Context, limit, n int, fn func(ctx context.Context, i int) T) []T {
	results := make([]T, n)
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			results[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) count(sweep, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepChurches.WithLabelValues(sweep, outcome).Inc()
	if outcome == outcomeFailed {
		s.metrics.SweepErrors.WithLabelValues(sweep).Inc()
	}
}

const (
	outcomeSuspended = "suspended"
	outcomeReminded  = "reminded"
	outcomeSent      = "sent"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)
