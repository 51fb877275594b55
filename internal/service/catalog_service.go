package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"go.uber.org/zap"
)

type CatalogService struct {
	catalog     repository.CatalogRepository
	memberships repository.MembershipRepository
	promotions  repository.PromotionRepository
	logger      *zap.Logger
}

func NewCatalogService(catalog repository.CatalogRepository, memberships repository.MembershipRepository,
	promotions repository.PromotionRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		catalog:     catalog,
		memberships: memberships,
		promotions:  promotions,
		logger:      logger,
	}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.catalog.ListCategories(ctx, true)
}

func (s *CatalogService) ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	return s.catalog.ListProducts(ctx, categoryID, true)
}

// Catalog is a full storefront definition, as loaded by the seed command.
type Catalog struct {
	Categories  []domain.Category   `yaml:"categories"`
	Products    []domain.Product    `yaml:"products"`
	Memberships []domain.Membership `yaml:"memberships"`
	Promotions  []domain.Promotion  `yaml:"promotions"`
}

type ImportSummary struct {
	Categories  int
	Products    int
	Memberships int
	Promotions  int
}

// Import upserts every record of c. Products must reference a category that
// is part of c.
func (s *CatalogService) Import(ctx context.Context, c *Catalog) (*ImportSummary, error) {
	known := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("%w: category without id", ErrInvalidRequest)
		}
		known[cat.ID] = true
	}
	for _, p := range c.Products {
		if !known[p.CategoryID] {
			return nil, fmt.Errorf("%w: product %s references unknown category %q", ErrInvalidRequest, p.ID, p.CategoryID)
		}
	}
	for _, p := range c.Promotions {
		if !p.Type.Valid() {
			return nil, fmt.Errorf("%w: promotion %s has unknown type %q", ErrInvalidRequest, p.ID, p.Type)
		}
	}

	sum := &ImportSummary{}
	for i := range c.Categories {
		if err := s.catalog.UpsertCategory(ctx, &c.Categories[i]); err != nil {
			return sum, err
		}
		sum.Categories++
	}
	for i := range c.Products {
		if err := s.catalog.UpsertProduct(ctx, &c.Products[i]); err != nil {
			return sum, err
		}
		sum.Products++
	}
	for i := range c.Memberships {
		if err := s.memberships.UpsertPlan(ctx, &c.Memberships[i]); err != nil {
			return sum, err
		}
		sum.Memberships++
	}
	for i := range c.Promotions {
		if err := s.promotions.Upsert(ctx, &c.Promotions[i]); err != nil {
			return sum, err
		}
		sum.Promotions++
	}

	s.logger.Info("catalog imported",
		zap.Int("categories", sum.Categories),
		zap.Int("products", sum.Products),
		zap.Int("memberships", sum.Memberships),
		zap.Int("promotions", sum.Promotions))
	return sum, nil
}
