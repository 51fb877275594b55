package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/google/uuid"
)

type PromotionService struct {
	repo repository.PromotionRepository
}

func NewPromotionService(repo repository.PromotionRepository) *PromotionService {
	return &PromotionService{repo: repo}
}

func (s *PromotionService) List(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.List(ctx)
}

func (s *PromotionService) Create(ctx context.Context, p *domain.Promotion) (*domain.Promotion, error) {
	if err := validatePromotion(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UsageCount = 0
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func validatePromotion(p *domain.Promotion) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case !p.Type.Valid():
		return fmt.Errorf("%w: unknown promotion type %q", ErrInvalidRequest, p.Type)
	case p.Type == domain.PromotionTypePercentage && (p.Value <= 0 || p.Value > 100):
		return fmt.Errorf("%w: percentage must be in (0, 100]", ErrInvalidRequest)
	case p.Type == domain.PromotionTypeFixedAmount && p.Value <= 0:
		return fmt.Errorf("%w: fixed amount must be positive", ErrInvalidRequest)
	case p.Type == domain.PromotionTypeBuyXGetY && (p.BuyQuantity < 1 || p.GetQuantity < 1):
		return fmt.Errorf("%w: buy and get quantities must be positive", ErrInvalidRequest)
	case p.StartsAt != nil && p.EndsAt != nil && !p.EndsAt.After(*p.StartsAt):
		return fmt.Errorf("%w: promotion ends before it starts", ErrInvalidRequest)
	case p.UsageLimit < 0 || p.MinOrderAmount < 0 || p.MaxDiscount < 0:
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidRequest)
	}
	return nil
}
