package model

import "time"

// PublicUser is the externally visible projection of a User. The type has no
// password-hash field at all, so the sanitization invariant holds
// structurally, not by convention.
type PublicUser struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	Email       string         `json:"email,omitempty"`
	Role        string         `json:"role"`
	IsVerified  bool           `json:"is_verified"`
	Providers   []string       `json:"providers,omitempty"`
	Profile     map[string]any `json:"profile,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Sanitize produces the public projection of a store-backed user record.
func Sanitize(u *User) PublicUser {
	pub := PublicUser{
		ID:          u.ID.String(),
		Username:    u.Username,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	if u.Email != nil {
		pub.Email = *u.Email
	}
	for _, sp := range u.SocialProfiles {
		pub.Providers = append(pub.Providers, sp.Provider)
	}
	pub.Profile = decodeDoc(u.Profile)
	pub.Settings = decodeDoc(u.Settings)
	return pub
}

// SanitizeMap strips credential fields from a plain decoded user document.
// The contract is field-based: any input shape that carries a password-like
// key loses it, whether the record came from the store or elsewhere.
func SanitizeMap(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case "password", "password_hash", "passwordHash":
			continue
		}
		out[k] = v
	}
	return out
}
