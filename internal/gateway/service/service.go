package service

import (
	"context"
	"fmt"
	"strings"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	gatewaydomain "github.com/ecclesiahq/ecclesia/internal/gateway/domain"
	historydomain "github.com/ecclesiahq/ecclesia/internal/history/domain"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"github.com/ecclesiahq/ecclesia/internal/taxid"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock       clock.Clock
	gateway     gatewaydomain.Gateway
	catalog     *plandomain.Catalog
	churchRepo  churchdomain.Repository
	historyRepo historydomain.Repository
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Gateway     gatewaydomain.Gateway
	Catalog     *plandomain.Catalog
	ChurchRepo  churchdomain.Repository
	HistoryRepo historydomain.Repository
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("gateway.service"),

		clock:       p.Clock,
		gateway:     p.Gateway,
		catalog:     p.Catalog,
		churchRepo:  p.ChurchRepo,
		historyRepo: p.HistoryRepo,
	}
}

type CreateCustomerRequest struct {
	Name    string
	Email   string
	CpfCnpj string
	Phone   string
	// UserID is the authenticated user and becomes the external reference.
	UserID string
}

func (s *Service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*gatewaydomain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return nil, gatewaydomain.ErrInvalidCustomer
	}
	doc, _, err := taxid.Normalize(req.CpfCnpj)
	if err != nil {
		return nil, err
	}

	return s.gateway.CreateCustomer(ctx, gatewaydomain.CustomerInput{
		Name:              name,
		Email:             email,
		TaxID:             doc,
		Phone:             taxid.Digits(req.Phone),
		ExternalReference: req.UserID,
	})
}

type CheckoutRequest struct {
	ChurchID   uuid.UUID
	Plan       string
	Customer   CreateCustomerRequest
	SuccessURL string
}

type CheckoutResult struct {
	PaymentLink   string
	PaymentLinkID string
	CustomerID    string
}

// Checkout creates a recurring payment link for plan. The church keeps its
// current plan until the gateway confirms payment; only the link id and the
// requested plan are recorded.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	plan, err := s.catalog.Lookup(req.Plan)
	if err != nil {
		return nil, err
	}
	if plan.Price <= 0 {
		return nil, gatewaydomain.ErrPlanNotBillable
	}

	church, err := s.churchRepo.FindByID(ctx, s.db, req.ChurchID)
	if err != nil {
		return nil, err
	}
	if church == nil {
		return nil, churchdomain.ErrChurchNotFound
	}

	customer, err := s.CreateCustomer(ctx, req.Customer)
	if err != nil {
		return nil, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, gatewaydomain.PaymentLinkInput{
		Name:              fmt.Sprintf("Plano %s - %s", plan.DisplayName, church.Name),
		Description:       fmt.Sprintf("Assinatura mensal do plano %s", plan.DisplayName),
		Value:             plan.Price,
		SuccessURL:        req.SuccessURL,
		ExternalReference: church.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	err = s.churchRepo.Mutate(ctx, s.db, church.ID, func(tx *gorm.DB, locked *churchdomain.Church) error {
		settings := locked.Settings.Data()
		settings.AsaasCustomerID = customer.ID
		settings.AsaasPaymentLinkID = link.ID
		settings.PendingPlan = plan.ID
		return s.churchRepo.SaveSettings(ctx, tx, locked.ID, settings)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment link created",
		zap.String("church_id", church.ID.String()),
		zap.String("plan", plan.ID),
		zap.String("payment_link_id", link.ID),
	)
	return &CheckoutResult{PaymentLink: link.URL, PaymentLinkID: link.ID, CustomerID: customer.ID}, nil
}

type CreateSubscriptionRequest struct {
	CustomerID  string
	ChurchID    uuid.UUID
	Plan        string
	BillingType gatewaydomain.BillingType
	CreditCard  *gatewaydomain.CreditCard
	HolderInfo  *gatewaydomain.CreditCardHolderInfo
}

// CreateSubscription subscribes the customer with the first charge due
// tomorrow and activates the plan on the church.
func (s *Service) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*gatewaydomain.Subscription, error) {
	plan, err := s.catalog.Lookup(req.Plan)
	if err != nil {
		return nil, err
	}
	if plan.Price <= 0 {
		return nil, gatewaydomain.ErrPlanNotBillable
	}
	if !req.BillingType.Valid() {
		return nil, gatewaydomain.ErrInvalidBillingType
	}
	if req.BillingType == gatewaydomain.BillingTypeCreditCard && (req.CreditCard == nil || req.HolderInfo == nil) {
		return nil, gatewaydomain.ErrCreditCardRequired
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, gatewaydomain.ErrInvalidCustomer
	}

	church, err := s.churchRepo.FindByID(ctx, s.db, req.ChurchID)
	if err != nil {
		return nil, err
	}
	if church == nil {
		return nil, churchdomain.ErrChurchNotFound
	}

	nextDue := clock.StartOfDay(s.clock.Now(ctx)).AddDate(0, 0, 1)
	sub, err := s.gateway.CreateSubscription(ctx, gatewaydomain.SubscriptionInput{
		CustomerID:        req.CustomerID,
		BillingType:       req.BillingType,
		Value:             plan.Price,
		NextDueDate:       nextDue.Format("2006-01-02"),
		Description:       fmt.Sprintf("Plano %s", plan.DisplayName),
		ExternalReference: church.ID.String(),
		CreditCard:        req.CreditCard,
		HolderInfo:        req.HolderInfo,
	})
	if err != nil {
		return nil, err
	}

	err = s.churchRepo.Mutate(ctx, s.db, church.ID, func(tx *gorm.DB, locked *churchdomain.Church) error {
		settings := locked.Settings.Data()
		settings.AsaasCustomerID = req.CustomerID
		settings.AsaasSubscriptionID = sub.ID
		settings.PendingPlan = ""
		if err := s.churchRepo.ActivatePlan(ctx, tx, locked.ID, plan.ID, &settings); err != nil {
			return err
		}
		if locked.Plan == plan.ID {
			return nil
		}
		return s.historyRepo.Append(ctx, tx, s.transition(locked.ID, locked.Plan, plan))
	})
	if err != nil {
		// The provider already holds the subscription; log enough to reconcile.
		s.log.Error("subscription created but church update failed",
			zap.String("church_id", church.ID.String()),
			zap.String("subscription_id", sub.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("church_id", church.ID.String()),
		zap.String("plan", plan.ID),
		zap.String("subscription_id", sub.ID),
	)
	return sub, nil
}

func (s *Service) transition(churchID uuid.UUID, oldPlan string, next plandomain.Plan) *historydomain.Entry {
	oldPrice, err := s.catalog.PriceOf(oldPlan)
	if err != nil {
		oldPrice = 0
	}
	change := historydomain.ChangeUpgrade
	if next.Price < oldPrice {
		change = historydomain.ChangeDowngrade
	}
	return &historydomain.Entry{
		ChurchID:   churchID,
		OldPlan:    oldPlan,
		NewPlan:    next.ID,
		ChangeType: change,
		MRRDelta:   next.Price - oldPrice,
	}
}
