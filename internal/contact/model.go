package contact

import "github.com/google/uuid"

// Profile mirrors the identity provider's public profile table.
type Profile struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName string    `gorm:"type:text"`
}

func (Profile) TableName() string { return "profiles" }

// AuthUser mirrors the identity provider's user table.
type AuthUser struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email string    `gorm:"type:text"`
}

func (AuthUser) TableName() string { return "auth_users" }

type UserRole struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role   string    `gorm:"type:text;primaryKey"`
}

func (UserRole) TableName() string { return "user_roles" }

const RolePlatformAdmin = "platform_admin"

// Contact is who a notification is addressed to.
type Contact struct {
	Name  string
	Email string
}
