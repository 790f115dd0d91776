package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents an identity record. Every user carries at least one
// authentication method: a password hash, a social profile, or both.
// Email is nullable because some OAuth providers supply none; MySQL permits
// multiple NULLs under a unique index, so uniqueness still holds for real
// addresses.
type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Username     string         `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Email        *string        `json:"email,omitempty" gorm:"uniqueIndex;size:255"`
	PasswordHash *string        `json:"-" gorm:"size:255"` // Never expose in JSON
	Role         string         `json:"role" gorm:"size:50;default:'user';index"`
	IsVerified   bool           `json:"is_verified" gorm:"default:false"`
	Profile      datatypes.JSON `json:"profile,omitempty"`  // opaque document, not interpreted by auth logic
	Settings     datatypes.JSON `json:"settings,omitempty"` // opaque document, not interpreted by auth logic
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	SocialProfiles []SocialProfile `json:"social_profiles,omitempty" gorm:"foreignKey:UserID"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasAuthMethod reports whether the user can authenticate at all.
func (u *User) HasAuthMethod() bool {
	return (u.PasswordHash != nil && *u.PasswordHash != "") || len(u.SocialProfiles) > 0
}

// SocialProfileFor returns the linked profile for a provider, if any.
func (u *User) SocialProfileFor(provider string) (*SocialProfile, bool) {
	for i := range u.SocialProfiles {
		if u.SocialProfiles[i].Provider == provider {
			return &u.SocialProfiles[i], true
		}
	}
	return nil, false
}
