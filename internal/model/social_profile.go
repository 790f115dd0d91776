package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SocialProfile stores an external OAuth provider identity linked to a user.
// The (provider, provider_user_id) pair is unique across all users; the
// composite index is what makes concurrent find-or-create safe.
type SocialProfile struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:char(36);not null;index"`
	Provider       string         `json:"provider" gorm:"size:50;not null;uniqueIndex:idx_provider_subject"`
	ProviderUserID string         `json:"provider_user_id" gorm:"size:191;not null;uniqueIndex:idx_provider_subject"`
	Raw            datatypes.JSON `json:"-"` // provider metadata as received, never served
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
