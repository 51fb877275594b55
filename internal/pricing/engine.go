package pricing

import (
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

// Input is everything needed to price a cart at one point in time.
type Input struct {
	Cart       *domain.Cart
	Products   map[string]*domain.Product
	Membership *domain.UserMembership
	Promotions []domain.Promotion
	Now        time.Time
}

type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) Rules() Rules {
	return e.rules
}

// Price is a pure function of its input. Lines whose product is missing or
// inactive are left out of the totals and reported in UnavailableItems.
func (e *Engine) Price(in Input) domain.CartPricing {
	lines, unavailable := buildLines(in.Cart, in.Products)
	code := ""
	if in.Cart != nil {
		code = in.Cart.PromotionCode
	}

	allocs := Allocate(in.Membership, lines, in.Now)
	promo := Evaluate(in.Now, lines, allocs, in.Promotions, code)
	pricing := Assemble(lines, allocs, promo, e.rules)
	pricing.UnavailableItems = unavailable
	pricing.PricedAt = in.Now
	return pricing
}

// CheckCode evaluates a code against the cart without applying it.
func (e *Engine) CheckCode(in Input, code string) PromotionResult {
	lines, _ := buildLines(in.Cart, in.Products)
	allocs := Allocate(in.Membership, lines, in.Now)
	return Evaluate(in.Now, lines, allocs, in.Promotions, code)
}

func buildLines(cart *domain.Cart, products map[string]*domain.Product) ([]Line, []string) {
	if cart == nil {
		return nil, nil
	}
	var (
		lines       []Line
		unavailable []string
	)
	for _, item := range cart.Items {
		p, ok := products[item.ProductID]
		if !ok || p == nil || !p.Active {
			unavailable = append(unavailable, item.ProductID)
			continue
		}
		lines = append(lines, Line{
			ProductID:    p.ID,
			Name:         p.Name,
			CategoryID:   p.CategoryID,
			Quantity:     item.Quantity,
			UnitPrice:    money(p.UnitPrice()),
			RegularPrice: money(p.RegularPrice),
			WeightGrams:  p.WeightGrams,
		})
	}
	return lines, unavailable
}
