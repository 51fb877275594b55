package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// CartView is a cart together with its freshly computed pricing.
type CartView struct {
	UserID        string                 `json:"userId"`
	Items         []domain.CartItem      `json:"items"`
	PromotionCode string                 `json:"promotionCode,omitempty"`
	Pricing       domain.CartPricing     `json:"pricing"`
	Allocations   []pricing.Allocation   `json:"allocations,omitempty"`
	Membership    *domain.UserMembership `json:"-"`
}

type CartService struct {
	carts       repository.CartRepository
	cache       cache.CartCache
	catalog     repository.CatalogRepository
	memberships repository.MembershipRepository
	promotions  repository.PromotionRepository
	engine      *pricing.Engine
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	now         func() time.Time
	sfg         singleflight.Group // Prevents cache stampede
}

func NewCartService(
	carts repository.CartRepository,
	cartCache cache.CartCache,
	catalog repository.CatalogRepository,
	memberships repository.MembershipRepository,
	promotions repository.PromotionRepository,
	engine *pricing.Engine,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *CartService {
	return &CartService{
		carts:       carts,
		cache:       cartCache,
		catalog:     catalog,
		memberships: memberships,
		promotions:  promotions,
		engine:      engine,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// GetCart loads and reprices the user's cart. Concurrent reads for the same
// user share one load.
func (s *CartService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		return s.refresh(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CartView), nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*CartView, error) {
	if quantity < 1 || quantity > domain.MaxItemQuantity {
		return nil, ErrInvalidQuantity
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductUnavailable
	}

	if err := s.carts.AddItem(ctx, userID, domain.CartItem{ProductID: productID, Quantity: quantity}); err != nil {
		s.logger.Error("repo add item error", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.invalidateCache(userID)
	return s.refresh(ctx, userID)
}

// UpdateQuantity sets a line's quantity. Zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*CartView, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	if quantity < 0 || quantity > domain.MaxItemQuantity {
		return nil, ErrInvalidQuantity
	}

	if err := s.carts.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		s.logger.Error("repo update item quantity error", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.invalidateCache(userID)
	return s.refresh(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*CartView, error) {
	if err := s.carts.RemoveItem(ctx, userID, productID); err != nil {
		s.logger.Error("repo remove item error", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.invalidateCache(userID)
	return s.refresh(ctx, userID)
}

func (s *CartService) ClearCart(ctx context.Context, userID string) (*CartView, error) {
	if err := s.clear(ctx, userID); err != nil {
		return nil, err
	}
	return s.refresh(ctx, userID)
}

// ApplyPromotion stores code on the cart when it yields a discount. A rejected
// code is not stored; the current pricing is returned with a *PromotionError.
func (s *CartService) ApplyPromotion(ctx context.Context, userID, code string) (*CartView, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidRequest
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	in, err := s.inputs(ctx, cart, code)
	if err != nil {
		return nil, err
	}
	result := s.engine.CheckCode(in, code)
	if !result.IsValid {
		view, err := s.price(ctx, cart, false)
		if err != nil {
			return nil, err
		}
		return view, &PromotionError{Reason: result.Reason, Message: result.Message}
	}

	if err := s.carts.SetPromotionCode(ctx, userID, code); err != nil {
		return nil, err
	}
	s.invalidateCache(userID)
	return s.refresh(ctx, userID)
}

func (s *CartService) RemovePromotion(ctx context.Context, userID string) (*CartView, error) {
	if err := s.carts.SetPromotionCode(ctx, userID, ""); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}
	s.invalidateCache(userID)
	return s.refresh(ctx, userID)
}

// Quote prices the cart for checkout without touching the stored snapshot.
func (s *CartService) Quote(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart, false)
}

// ClearAfterCheckout empties the cart once an order has taken its contents.
func (s *CartService) ClearAfterCheckout(ctx context.Context, userID string) {
	if err := s.clear(ctx, userID); err != nil {
		s.logger.Warn("failed to clear cart after checkout", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) clear(ctx context.Context, userID string) error {
	if err := s.carts.DeleteCart(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.logger.Error("repo delete cart error", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *CartService) refresh(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart, true)
}

// loadCart reads the raw cart from cache, falling back to the repository.
// A user without a cart gets an empty one.
func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
	}

	cart, err = s.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := s.now().UTC()
		return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.logger.Warn("cache set error", zap.String("user_id", userID), zap.Error(err))
	}
	return cart, nil
}

// inputs loads the membership, products and promotions a cart is priced
// against.
func (s *CartService) inputs(ctx context.Context, cart *domain.Cart, code string) (pricing.Input, error) {
	in := pricing.Input{Cart: cart, Now: s.now().UTC()}
	if cart.IsEmpty() {
		return in, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.memberships.GetUserMembership(gctx, cart.UserID)
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return nil
		}
		in.Membership = m
		return err
	})
	g.Go(func() error {
		products, err := s.catalog.GetProductsByIDs(gctx, cart.ProductIDs())
		in.Products = products
		return err
	})
	g.Go(func() error {
		promotions, err := s.promotions.ListApplicable(gctx, code)
		in.Promotions = promotions
		return err
	})
	if err := g.Wait(); err != nil {
		return pricing.Input{}, err
	}
	return in, nil
}

func (s *CartService) price(ctx context.Context, cart *domain.Cart, persist bool) (*CartView, error) {
	start := time.Now()
	in, err := s.inputs(ctx, cart, cart.PromotionCode)
	if err != nil {
		return nil, err
	}
	p := s.engine.Price(in)
	s.metrics.ObserveCartPricing(start)

	if persist && cart.ID != "" {
		if err := s.carts.SavePricing(ctx, cart.UserID, &p); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
			s.logger.Warn("failed to save cart pricing", zap.String("user_id", cart.UserID), zap.Error(err))
		}
	}

	view := &CartView{
		UserID:        cart.UserID,
		Items:         cart.Items,
		PromotionCode: cart.PromotionCode,
		Pricing:       p,
		Membership:    in.Membership,
	}
	if view.Items == nil {
		view.Items = []domain.CartItem{}
	}
	if in.Membership.IsActive(in.Now) {
		view.Allocations = pricing.Report(in.Membership, in.Now)
	}
	return view, nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}
