package service

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/identity"
	"github.com/fjod/go_storefront/internal/repository"
	"go.uber.org/zap"
)

type UserService struct {
	users  repository.UserRepository
	carts  repository.CartRepository
	cache  cache.CartCache
	logger *zap.Logger
}

func NewUserService(users repository.UserRepository, carts repository.CartRepository, cartCache cache.CartCache, logger *zap.Logger) *UserService {
	return &UserService{users: users, carts: carts, cache: cartCache, logger: logger}
}

// HandleClerkEvent mirrors identity provider user events. Unknown event types
// are ignored and reported as not handled.
func (s *UserService) HandleClerkEvent(ctx context.Context, event *identity.Event) (bool, error) {
	switch event.Type {
	case identity.EventUserCreated, identity.EventUserUpdated:
		data, err := event.User()
		if err != nil {
			return false, errors.Join(ErrInvalidRequest, err)
		}
		if err := s.users.Upsert(ctx, data.ToUser()); err != nil {
			return false, err
		}
		s.logger.Info("user synced", zap.String("user_id", data.ID), zap.String("event", event.Type))
		return true, nil

	case identity.EventUserDeleted:
		data, err := event.User()
		if err != nil {
			return false, errors.Join(ErrInvalidRequest, err)
		}
		if err := s.users.Delete(ctx, data.ID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return false, err
		}
		if err := s.carts.DeleteCart(ctx, data.ID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
			return false, err
		}
		if err := s.cache.Delete(ctx, data.ID); err != nil {
			s.logger.Warn("cache invalidate error", zap.String("user_id", data.ID), zap.Error(err))
		}
		s.logger.Info("user deleted", zap.String("user_id", data.ID))
		return true, nil
	}
	return false, nil
}
