package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"idgate/internal/auth"
	"idgate/internal/cache"
	errs "idgate/internal/errors"
	"idgate/internal/model"
	"idgate/internal/repository"
)

// oauthResolveAttempts bounds the retry loop around creation races.
const oauthResolveAttempts = 3

// TokenPair is the response payload for every successful authentication.
// Tokens are never persisted server-side; expiry is by clock.
type TokenPair struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	User         model.PublicUser `json:"user"`
}

// OAuthProfile is the normalized post-callback identity from a provider.
// ID is the provider's stable subject id; everything else is optional.
type OAuthProfile struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Username string         `json:"username,omitempty"`
	Name     string         `json:"name,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}

// Client carries request metadata recorded against the user's session.
type Client struct {
	IP        string
	UserAgent string
}

// AuthService orchestrates password login, token refresh, and OAuth
// account resolution.
type AuthService interface {
	Register(ctx context.Context, username, email, password string, client Client) (*TokenPair, error)
	Authenticate(ctx context.Context, identifier, password string, client Client) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, client Client) (*TokenPair, error)
	ValidateAccess(ctx context.Context, token string) (*auth.Claims, error)
	HandleOAuthCallback(ctx context.Context, provider string, profile OAuthProfile, client Client) (*TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type authService struct {
	users    repository.UserRepository
	jwt      *auth.JWTService
	sessions auth.SessionStoreInterface
	cache    *cache.Client
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, jwt *auth.JWTService, sessions auth.SessionStoreInterface, cache *cache.Client) AuthService {
	return &authService{
		users:    users,
		jwt:      jwt,
		sessions: sessions,
		cache:    cache,
	}
}

// Register creates a new user with a hashed password and issues tokens.
// Username and email are each checked explicitly so the caller learns which
// field collided; the unique indexes remain the second line of defense
// against registration races.
func (s *authService) Register(ctx context.Context, username, email, password string, client Client) (*TokenPair, error) {
	if strings.Contains(username, "@") {
		return nil, fmt.Errorf("%w: username must not contain @", errs.ErrInvalidInput)
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, errs.Conflict("username")
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, errs.Conflict("email")
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        &email,
		PasswordHash: &hashed,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Lost a race after both checks passed; re-resolve the field.
			if _, findErr := s.users.FindByUsername(ctx, username); findErr == nil {
				return nil, errs.Conflict("username")
			}
			return nil, errs.Conflict("email")
		}
		return nil, err
	}

	return s.issuePair(ctx, user, client)
}

// Authenticate verifies an identifier/password pair. Unknown identifier,
// wrong password, and passwordless (pure-OAuth) accounts all fail with the
// same generic error so accounts cannot be enumerated.
func (s *authService) Authenticate(ctx context.Context, identifier, password string, client Client) (*TokenPair, error) {
	user, err := s.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrInvalidCredentials
		}
		return nil, err
	}

	hash := ""
	if user.PasswordHash != nil {
		hash = *user.PasswordHash
	}
	if !auth.CheckPassword(password, hash) {
		return nil, errs.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err == nil {
		user.LastLoginAt = &now
	}

	return s.issuePair(ctx, user, client)
}

// Refresh rotates a token pair. Validation happens before any store access:
// a tampered or expired token never triggers a user lookup. The old refresh
// token is revoked for the remainder of its lifetime.
func (s *authService) Refresh(ctx context.Context, refreshToken string, client Client) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	if revoked, _ := s.sessions.IsTokenBlacklisted(ctx, claims.ID); revoked {
		return nil, errs.ErrInvalidToken
	}

	userID, err := claims.SubjectID()
	if err != nil {
		return nil, errs.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err // ErrNotFound: deleted since issuance
	}

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}

	// Rotation: the superseded refresh token must not remain usable.
	_ = s.sessions.BlacklistToken(ctx, claims.ID, claims.Remaining())

	return pair, nil
}

// ValidateAccess verifies an access token for request authorization.
func (s *authService) ValidateAccess(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwt.ValidateAccess(token)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	if revoked, _ := s.sessions.IsTokenBlacklisted(ctx, claims.ID); revoked {
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}

// HandleOAuthCallback resolves a provider identity to a user: an existing
// link wins, then a match on the provider-supplied email gains the link,
// otherwise a fresh user is created. Uniqueness violations during creation
// are evidence a concurrent caller won the same race and are retried as a
// fresh lookup, never surfaced to the caller.
func (s *authService) HandleOAuthCallback(ctx context.Context, provider string, profile OAuthProfile, client Client) (*TokenPair, error) {
	if provider == "" || profile.ID == "" {
		return nil, fmt.Errorf("%w: provider and profile id are required", errs.ErrInvalidInput)
	}

	for attempt := 0; attempt < oauthResolveAttempts; attempt++ {
		user, err := s.users.FindBySocialID(ctx, provider, profile.ID)
		if err == nil {
			return s.issuePair(ctx, user, client)
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}

		if profile.Email != "" {
			user, err = s.users.FindByEmail(ctx, profile.Email)
			if err == nil {
				link := socialProfileFrom(provider, profile)
				if linkErr := s.users.UpdateSocialProfile(ctx, user.ID, link); linkErr != nil {
					if errors.Is(linkErr, errs.ErrConflict) {
						continue // identity got linked elsewhere concurrently
					}
					return nil, linkErr
				}
				_ = s.cache.Delete(ctx, userCacheKey(user.ID))
				user.SocialProfiles = append(user.SocialProfiles, *link)
				return s.issuePair(ctx, user, client)
			}
			if !errors.Is(err, errs.ErrNotFound) {
				return nil, err
			}
		}

		draft := s.draftFromProfile(provider, profile, attempt)
		user, _, err = s.users.FindOrCreateBySocialProfile(ctx, draft)
		if err == nil {
			return s.issuePair(ctx, user, client)
		}
		if errors.Is(err, errs.ErrConflict) {
			continue // username or email collision; re-derive and re-resolve
		}
		return nil, err
	}

	return nil, errs.Infra(fmt.Errorf("oauth resolution for %s did not converge", provider))
}

// Logout revokes the presented tokens for the remainder of their lifetimes.
func (s *authService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.jwt.ValidateRefresh(refreshToken)
	if err != nil {
		return errs.ErrInvalidToken
	}
	if err := s.sessions.BlacklistToken(ctx, claims.ID, claims.Remaining()); err != nil {
		return err
	}

	// Access token revocation is best effort; it expires shortly anyway.
	if accessToken != "" {
		if ac, err := s.jwt.ValidateAccess(accessToken); err == nil {
			_ = s.sessions.BlacklistToken(ctx, ac.ID, ac.Remaining())
		}
	}
	return nil
}

// issuePair mints both tokens, records session activity, and embeds the
// sanitized user.
func (s *authService) issuePair(ctx context.Context, user *model.User, client Client) (*TokenPair, error) {
	accessToken, _, err := s.jwt.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, _, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	_ = s.sessions.TouchSession(ctx, user.ID.String(), auth.SessionInfo{
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
		LastActiveAt: time.Now(),
	})

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTTL().Seconds()),
		User:         model.Sanitize(user),
	}, nil
}

// draftFromProfile builds the new-user draft for OAuth outcome three.
// The username is derived deterministically from the profile; retry attempts
// append a numeric suffix to step around collisions.
func (s *authService) draftFromProfile(provider string, profile OAuthProfile, attempt int) *model.User {
	username := profile.Username
	if username == "" {
		username = provider + "_" + profile.ID
	}
	username = strings.ReplaceAll(username, "@", "_")
	if attempt > 0 {
		username = fmt.Sprintf("%s-%d", username, attempt+1)
	}

	draft := &model.User{
		Username:       username,
		SocialProfiles: []model.SocialProfile{*socialProfileFrom(provider, profile)},
	}
	if profile.Email != "" {
		email := profile.Email
		draft.Email = &email
	}
	// No password hash: the social profile is the account's auth method.
	return draft
}

func socialProfileFrom(provider string, profile OAuthProfile) *model.SocialProfile {
	return &model.SocialProfile{
		Provider:       provider,
		ProviderUserID: profile.ID,
		Raw:            model.EncodeDoc(profile.Raw),
	}
}
