package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	errs "idgate/internal/errors"
)

const (
	// PurposeAccess marks tokens authorizing individual API calls.
	PurposeAccess = "access"
	// PurposeRefresh marks tokens used solely to obtain a new pair.
	PurposeRefresh = "refresh"
)

// Claims represents JWT claims. Purpose keeps the two token kinds from ever
// being interchangeable, even if both secrets were configured identically.
type Claims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService mints and validates signed tokens carrying a subject user id.
// Access and refresh tokens are signed with distinct secrets.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewJWTService creates a JWT service from read-only configuration.
func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

// GenerateAccessToken mints a short-lived access token for the user.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, username, role string) (token string, jti string, err error) {
	return s.generate(s.accessSecret, s.accessTTL, &Claims{
		Username: username,
		Role:     role,
		Purpose:  PurposeAccess,
	}, userID)
}

// GenerateRefreshToken mints a longer-lived refresh token for the user.
func (s *JWTService) GenerateRefreshToken(userID uuid.UUID) (token string, jti string, err error) {
	return s.generate(s.refreshSecret, s.refreshTTL, &Claims{
		Purpose: PurposeRefresh,
	}, userID)
}

func (s *JWTService) generate(secret []byte, ttl time.Duration, claims *Claims, userID uuid.UUID) (string, string, error) {
	now := time.Now()
	jti := uuid.New().String()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	return signed, jti, err
}

// ValidateAccess verifies an access token's signature, expiry, and purpose.
// Every failure collapses into errs.ErrInvalidToken; the distinction between
// expired and forged never leaves this package.
func (s *JWTService) ValidateAccess(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.accessSecret, PurposeAccess)
}

// ValidateRefresh verifies a refresh token. The caller is responsible for
// confirming the subject user still exists before re-issuing.
func (s *JWTService) ValidateRefresh(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.refreshSecret, PurposeRefresh)
}

func (s *JWTService) validate(tokenString string, secret []byte, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, errs.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose {
		return nil, errs.ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errs.ErrInvalidToken
	}

	return claims, nil
}

// SubjectID parses the subject claim into a user id.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrInvalidToken
	}
	return id, nil
}

// Remaining returns the time left until the token expires, zero if already
// expired or the claim is missing.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := time.Until(c.ExpiresAt.Time); d > 0 {
		return d
	}
	return 0
}
