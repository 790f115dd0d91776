package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"idgate/internal/cache"
	"idgate/internal/model"
	"idgate/internal/repository"
)

const userCacheTTL = 5 * time.Minute

func userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// UserService exposes read-side user operations.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetPublicUser(ctx context.Context, id uuid.UUID) (model.PublicUser, error)
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, userCacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, userCacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) GetPublicUser(ctx context.Context, id uuid.UUID) (model.PublicUser, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return model.PublicUser{}, err
	}
	return model.Sanitize(user), nil
}

func (s *userService) Invalidate(ctx context.Context, id uuid.UUID) error {
	return s.cache.Delete(ctx, userCacheKey(id))
}
