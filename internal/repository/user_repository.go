package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	errs "idgate/internal/errors"
	"idgate/internal/model"
)

// UserRepository defines user persistence operations. Absent records surface
// as errs.ErrNotFound, never as a raw gorm error, so callers can tell
// "absent" from "infrastructure failure".
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error)
	FindBySocialID(ctx context.Context, provider, providerUserID string) (*model.User, error)
	UpdateSocialProfile(ctx context.Context, userID uuid.UUID, profile *model.SocialProfile) error
	// FindOrCreateBySocialProfile atomically persists the draft user together
	// with its social profile. If a concurrent caller already created a user
	// for the same provider identity, the winner's record is returned with
	// created=false instead of an error.
	FindOrCreateBySocialProfile(ctx context.Context, draft *model.User) (user *model.User, created bool, err error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewUserRepository creates a new user repository. Every store operation is
// bounded by the given timeout.
func NewUserRepository(db *gorm.DB, timeout time.Duration) UserRepository {
	return &userRepository{db: db, timeout: timeout}
}

func (r *userRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// translate maps gorm errors into the domain taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errs.ErrConflict
	default:
		return errs.Infra(err)
	}
}

// findOne runs a read query, retrying once on infrastructure failure.
// Reads are idempotent so a single transparent retry is safe.
func (r *userRepository) findOne(ctx context.Context, query func(db *gorm.DB) *gorm.DB) (*model.User, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		opCtx, cancel := r.bound(ctx)
		var user model.User
		err := query(r.db.WithContext(opCtx)).Preload("SocialProfiles").First(&user).Error
		cancel()
		if err == nil {
			return &user, nil
		}
		lastErr = translate(err)
		if !errors.Is(lastErr, errs.ErrInfrastructure) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// Create persists a new user. The at-least-one-auth-method invariant is
// enforced here as a last line of defense.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if !user.HasAuthMethod() {
		return errs.Infra(errors.New("user has no authentication method"))
	}
	opCtx, cancel := r.bound(ctx)
	defer cancel()
	return translate(r.db.WithContext(opCtx).Create(user).Error)
}

// Update saves an existing user.
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	opCtx, cancel := r.bound(ctx)
	defer cancel()
	return translate(r.db.WithContext(opCtx).Save(user).Error)
}

// FindByID finds a user by id.
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	})
}

// FindByUsername finds a user by username.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("username = ?", username)
	})
}

// FindByEmail finds a user by email.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ?", email)
	})
}

// FindByUsernameOrEmail resolves an identifier deterministically: anything
// containing "@" is an email, everything else a username. Usernames are
// rejected at registration if they contain "@", so the routing is
// unambiguous by construction.
func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	if strings.Contains(identifier, "@") {
		return r.FindByEmail(ctx, identifier)
	}
	return r.FindByUsername(ctx, identifier)
}

// FindBySocialID finds the user linked to a provider identity.
func (r *userRepository) FindBySocialID(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	return r.findOne(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN social_profiles ON social_profiles.user_id = users.id").
			Where("social_profiles.provider = ? AND social_profiles.provider_user_id = ?", provider, providerUserID)
	})
}

// UpdateSocialProfile attaches a provider link to a user. If the provider
// identity is already linked (a concurrent caller claimed it first), the
// insert fails on the composite unique index and surfaces as
// errs.ErrConflict; a link must never move between users silently.
func (r *userRepository) UpdateSocialProfile(ctx context.Context, userID uuid.UUID, profile *model.SocialProfile) error {
	opCtx, cancel := r.bound(ctx)
	defer cancel()
	profile.UserID = userID
	return translate(r.db.WithContext(opCtx).Create(profile).Error)
}

// FindOrCreateBySocialProfile inserts the draft user and its social profile
// in one transaction. A duplicate-key error means a concurrent caller won a
// race on one of the unique indexes: if the provider identity now resolves,
// that winner is returned; a username or email collision surfaces as
// errs.ErrConflict for the caller's retry loop.
func (r *userRepository) FindOrCreateBySocialProfile(ctx context.Context, draft *model.User) (*model.User, bool, error) {
	if len(draft.SocialProfiles) == 0 {
		return nil, false, errs.Infra(errors.New("draft user has no social profile"))
	}
	provider := draft.SocialProfiles[0].Provider
	providerUserID := draft.SocialProfiles[0].ProviderUserID

	opCtx, cancel := r.bound(ctx)
	err := r.db.WithContext(opCtx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(draft).Error
	})
	cancel()
	if err == nil {
		return draft, true, nil
	}

	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, translate(err)
	}

	// Lost a race or collided on username/email. If the provider identity now
	// exists, the concurrent creator won and their record is authoritative.
	existing, findErr := r.FindBySocialID(ctx, provider, providerUserID)
	if findErr == nil {
		return existing, false, nil
	}
	if !errors.Is(findErr, errs.ErrNotFound) {
		return nil, false, findErr
	}
	return nil, false, errs.ErrConflict
}

// TouchLastLogin updates the last-login timestamp without loading the row.
func (r *userRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	opCtx, cancel := r.bound(ctx)
	defer cancel()
	err := r.db.WithContext(opCtx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
	return translate(err)
}
