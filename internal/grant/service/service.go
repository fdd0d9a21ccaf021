package service

import (
	"context"
	"strings"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	"github.com/ecclesiahq/ecclesia/internal/contact"
	grantdomain "github.com/ecclesiahq/ecclesia/internal/grant/domain"
	historydomain "github.com/ecclesiahq/ecclesia/internal/history/domain"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Contacts interface {
	PlatformAdmins(ctx context.Context) ([]contact.Contact, error)
	UserContact(ctx context.Context, userID uuid.UUID) (*contact.Contact, error)
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock       clock.Clock
	catalog     *plandomain.Catalog
	repo        grantdomain.Repository
	churchRepo  churchdomain.Repository
	historyRepo historydomain.Repository
	contacts    Contacts
	notifier    notificationdomain.Notifier
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Catalog     *plandomain.Catalog
	Repo        grantdomain.Repository
	ChurchRepo  churchdomain.Repository
	HistoryRepo historydomain.Repository
	Contacts    *contact.Resolver
	Notifier    notificationdomain.Notifier
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("grant.service"),

		clock:       p.Clock,
		catalog:     p.Catalog,
		repo:        p.Repo,
		churchRepo:  p.ChurchRepo,
		historyRepo: p.HistoryRepo,
		contacts:    p.Contacts,
		notifier:    p.Notifier,
	}
}

type CheckResult struct {
	Status grantdomain.Status
	Grant  *grantdomain.GrantedFreeAccount
}

// CheckGrant reports whether email has an unused grant. An unexpired grant
// wins over an expired one when both exist.
func (s *Service) CheckGrant(ctx context.Context, email string) (*CheckResult, error) {
	email = grantdomain.NormalizeEmail(email)
	if email == "" {
		return nil, grantdomain.ErrInvalidEmail
	}

	grants, err := s.repo.ListUnusedByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return &CheckResult{Status: grantdomain.StatusNone}, nil
	}

	now := s.clock.Now(ctx)
	for i := range grants {
		if !grants[i].Expired(now) {
			return &CheckResult{Status: grantdomain.StatusAvailable, Grant: &grants[i]}, nil
		}
	}
	return &CheckResult{Status: grantdomain.StatusExpired, Grant: &grants[0]}, nil
}

type ActivateRequest struct {
	Email      string
	ChurchID   uuid.UUID
	ChurchName string
}

type ActivationResult struct {
	GrantID     uuid.UUID
	ChurchID    uuid.UUID
	Plan        string
	ActivatedAt time.Time
	Notified    int
}

// ActivateGrant consumes the grant and moves the church onto the granted
// plan in one transaction, then notifies administrators and the granter.
func (s *Service) ActivateGrant(ctx context.Context, req ActivateRequest) (*ActivationResult, error) {
	check, err := s.CheckGrant(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	switch check.Status {
	case grantdomain.StatusNone:
		return nil, grantdomain.ErrGrantNotFound
	case grantdomain.StatusExpired:
		return nil, grantdomain.ErrGrantExpired
	}

	grant := check.Grant
	plan, err := s.catalog.Lookup(grant.Plan)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	churchName := strings.TrimSpace(req.ChurchName)
	err = s.churchRepo.Mutate(ctx, s.db, req.ChurchID, func(tx *gorm.DB, church *churchdomain.Church) error {
		if err := s.repo.MarkUsed(ctx, tx, grant.ID, church.ID, now); err != nil {
			return err
		}
		if err := s.churchRepo.ActivatePlan(ctx, tx, church.ID, plan.ID, nil); err != nil {
			return err
		}
		if churchName == "" {
			churchName = church.Name
		}
		return s.historyRepo.Append(ctx, tx, &historydomain.Entry{
			ChurchID:   church.ID,
			OldPlan:    church.Plan,
			NewPlan:    plan.ID,
			ChangeType: historydomain.ChangeGranted,
			MRRDelta:   0,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("free account activated",
		zap.String("grant_id", grant.ID.String()),
		zap.String("church_id", req.ChurchID.String()),
		zap.String("plan", plan.ID),
	)

	result := &ActivationResult{
		GrantID:     grant.ID,
		ChurchID:    req.ChurchID,
		Plan:        plan.ID,
		ActivatedAt: now,
	}
	result.Notified = s.notifyActivation(ctx, grant, plan, churchName)
	return result, nil
}

// notifyActivation is best effort; the activation is already committed.
func (s *Service) notifyActivation(ctx context.Context, grant *grantdomain.GrantedFreeAccount, plan plandomain.Plan, churchName string) int {
	recipients, err := s.contacts.PlatformAdmins(ctx)
	if err != nil {
		s.log.Warn("list platform admins failed", zap.Error(err))
	}
	if grant.GrantedBy != nil {
		granter, err := s.contacts.UserContact(ctx, *grant.GrantedBy)
		if err != nil {
			s.log.Warn("resolve granter failed", zap.Error(err))
		} else if granter != nil {
			recipients = append(recipients, *granter)
		}
	}

	seen := make(map[string]struct{}, len(recipients))
	sent := 0
	for _, rcpt := range recipients {
		key := strings.ToLower(strings.TrimSpace(rcpt.Email))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		msg := notificationdomain.NewMessage(notificationdomain.TypeFreeAccountActivated, rcpt.Email, churchName, rcpt.Name, map[string]any{
			"grantedEmail": grantdomain.NormalizeEmail(grant.Email),
			"plan":         plan.ID,
			"planName":     plan.DisplayName,
		})
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.Warn("activation notification failed", zap.String("to", rcpt.Email), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
