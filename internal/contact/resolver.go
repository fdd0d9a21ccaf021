package contact

import (
	"context"
	"errors"
	"strings"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("contact",
	fx.Provide(NewResolver),
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	ChurchRepo churchdomain.Repository
}

// Resolver finds who to address billing notices to.
type Resolver struct {
	db         *gorm.DB
	log        *zap.Logger
	churchRepo churchdomain.Repository
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		db:         p.DB,
		log:        p.Log.Named("contact.resolver"),
		churchRepo: p.ChurchRepo,
	}
}

// OwnerOf prefers the church's own email and falls back to the owning
// member's profile. It returns nil when no email can be found.
func (r *Resolver) OwnerOf(ctx context.Context, church churchdomain.Church) (*Contact, error) {
	if email := strings.TrimSpace(church.ContactEmail()); email != "" {
		c := &Contact{Name: church.Name, Email: email}
		owner, err := r.churchRepo.FindOwner(ctx, r.db, church.ID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			return c, nil
		}
		profile, err := r.profile(ctx, owner.UserID)
		if err != nil {
			return nil, err
		}
		if profile != nil && profile.FullName != "" {
			c.Name = profile.FullName
		}
		return c, nil
	}

	owner, err := r.churchRepo.FindOwner(ctx, r.db, church.ID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, nil
	}
	c, err := r.UserContact(ctx, owner.UserID)
	if err != nil || c == nil {
		return c, err
	}
	if c.Name == "" {
		c.Name = church.Name
	}
	return c, nil
}

// UserContact returns the profile name and auth email of a user, or nil when
// the user has no email.
func (r *Resolver) UserContact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	var user AuthUser
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	email := strings.TrimSpace(user.Email)
	if email == "" {
		return nil, nil
	}
	c := &Contact{Email: email}
	profile, err := r.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		c.Name = profile.FullName
	}
	return c, nil
}

// PlatformAdmins lists every platform administrator that has an email.
func (r *Resolver) PlatformAdmins(ctx context.Context) ([]Contact, error) {
	var rows []struct {
		Email    string
		FullName *string
	}
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Select("auth_users.email AS email, profiles.full_name AS full_name").
		Joins("JOIN auth_users ON auth_users.id = user_roles.user_id").
		Joins("LEFT JOIN profiles ON profiles.id = user_roles.user_id").
		Where("user_roles.role = ?", RolePlatformAdmin).
		Order("auth_users.email ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Contact, 0, len(rows))
	for _, row := range rows {
		email := strings.TrimSpace(row.Email)
		if email == "" {
			continue
		}
		c := Contact{Email: email}
		if row.FullName != nil {
			c.Name = *row.FullName
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Resolver) profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
