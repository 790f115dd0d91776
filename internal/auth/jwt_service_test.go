package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "idgate/internal/errors"
)

func newTestService() *JWTService {
	return NewJWTService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestJWTService_AccessRoundtrip(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	token, jti, err := svc.GenerateAccessToken(userID, "alice", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := svc.ValidateAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, PurposeAccess, claims.Purpose)
	assert.Equal(t, jti, claims.ID)

	parsed, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestJWTService_RefreshRoundtrip(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	token, _, err := svc.GenerateRefreshToken(userID)
	require.NoError(t, err)

	claims, err := svc.ValidateRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, PurposeRefresh, claims.Purpose)
}

func TestJWTService_PurposesNotInterchangeable(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	accessToken, _, err := svc.GenerateAccessToken(userID, "alice", "user")
	require.NoError(t, err)
	refreshToken, _, err := svc.GenerateRefreshToken(userID)
	require.NoError(t, err)

	_, err = svc.ValidateAccess(refreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	_, err = svc.ValidateRefresh(accessToken)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestJWTService_PurposeCheckedEvenWithSharedSecret(t *testing.T) {
	// Even if both secrets were configured identically, the purpose claim
	// keeps the two code paths apart.
	svc := NewJWTService("same", "same", 15*time.Minute, 7*24*time.Hour)

	refreshToken, _, err := svc.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateAccess(refreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestJWTService_TamperedSignature(t *testing.T) {
	svc := newTestService()

	token, _, err := svc.GenerateAccessToken(uuid.New(), "alice", "user")
	require.NoError(t, err)

	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = svc.ValidateAccess(string(tampered))
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	svc := newTestService()
	other := NewJWTService("different", "different", 15*time.Minute, 7*24*time.Hour)

	token, _, err := svc.GenerateAccessToken(uuid.New(), "alice", "user")
	require.NoError(t, err)

	_, err = other.ValidateAccess(token)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	// Negative TTLs mint tokens that are already expired by clock.
	expired := NewJWTService("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	svc := newTestService()

	accessToken, _, err := expired.GenerateAccessToken(uuid.New(), "alice", "user")
	require.NoError(t, err)
	refreshToken, _, err := expired.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateAccess(accessToken)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	_, err = svc.ValidateRefresh(refreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestJWTService_Malformed(t *testing.T) {
	svc := newTestService()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.ValidateAccess(token)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	}
}

func TestClaims_Remaining(t *testing.T) {
	svc := newTestService()
	token, _, err := svc.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	claims, err := svc.ValidateRefresh(token)
	require.NoError(t, err)
	assert.Greater(t, claims.Remaining(), 6*24*time.Hour)

	var empty Claims
	assert.Equal(t, time.Duration(0), empty.Remaining())
}
