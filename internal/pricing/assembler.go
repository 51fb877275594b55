package pricing

import (
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Rules are the store-wide shipping and tax settings.
type Rules struct {
	Currency              string
	FreeShippingThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
	WeightThresholdGrams  int
	WeightSurchargePerKg  float64
}

func DefaultRules() Rules {
	return Rules{
		Currency:              "usd",
		FreeShippingThreshold: 50,
		FlatShippingFee:       5.99,
		TaxRate:               0.08,
		WeightThresholdGrams:  5000,
		WeightSurchargePerKg:  1.50,
	}
}

// Assemble combines lines, their membership split and the promotion result
// into per-line price tiers and cart totals. Every amount is rounded to cents
// before it is summed, so FinalTotal equals
// Subtotal - MembershipDiscount - PromotionDiscount + ShippingAmount + TaxAmount.
func Assemble(lines []Line, allocs []LineAllocation, promo PromotionResult, rules Rules) domain.CartPricing {
	items := make([]domain.ItemPricing, 0, len(lines))
	subtotal, membershipDiscount, promotionDiscount := zero, zero, zero
	weight := 0

	for i, l := range lines {
		alloc := allocs[i]
		original := round2(l.subtotal(l.Quantity))
		membershipSavings := round2(l.subtotal(alloc.Free))
		membershipPrice := original.Sub(membershipSavings)

		promoSavings := zero
		if i < len(promo.LineDiscounts) {
			promoSavings = minDecimal(round2(promo.LineDiscounts[i]), membershipPrice)
		}
		promotionPrice := membershipPrice.Sub(promoSavings)

		items = append(items, domain.ItemPricing{
			ProductID:          l.ProductID,
			Name:               l.Name,
			CategoryID:         l.CategoryID,
			Quantity:           l.Quantity,
			UnitPrice:          toFloat(l.UnitPrice),
			RegularPrice:       toFloat(l.RegularPrice),
			OriginalPrice:      toFloat(original),
			MembershipPrice:    toFloat(membershipPrice),
			PromotionPrice:     toFloat(promotionPrice),
			FinalPrice:         toFloat(promotionPrice),
			FreeFromMembership: alloc.Free,
			PaidQuantity:       alloc.Paid,
			MembershipSavings:  toFloat(membershipSavings),
			PromotionSavings:   toFloat(promoSavings),
			WeightGrams:        l.WeightGrams * l.Quantity,
		})

		subtotal = subtotal.Add(original)
		membershipDiscount = membershipDiscount.Add(membershipSavings)
		promotionDiscount = promotionDiscount.Add(promoSavings)
		weight += l.WeightGrams * l.Quantity
	}

	after := subtotal.Sub(membershipDiscount).Sub(promotionDiscount)
	shipping := Shipping(rules, len(lines), subtotal, after, weight)
	tax := round2(after.Mul(decimal.NewFromFloat(rules.TaxRate)))
	final := after.Add(shipping).Add(tax)

	pricing := domain.CartPricing{
		Items:               items,
		Subtotal:            toFloat(subtotal),
		MembershipDiscount:  toFloat(membershipDiscount),
		PromotionDiscount:   toFloat(promotionDiscount),
		AfterDiscountsTotal: toFloat(after),
		ShippingAmount:      toFloat(shipping),
		TaxAmount:           toFloat(tax),
		FinalTotal:          toFloat(final),
		TotalWeightGrams:    weight,
		Currency:            rules.Currency,
		PromotionMessage:    promo.Message,
	}
	if promo.IsValid && promo.AppliedPromotion != nil {
		p := promo.AppliedPromotion
		pricing.AppliedPromotion = &domain.AppliedPromotion{
			ID:             p.ID,
			Name:           p.Name,
			Code:           p.Code,
			Type:           p.Type,
			DiscountAmount: toFloat(promotionDiscount),
		}
	}
	return pricing
}

// Shipping is free for an empty cart, at or above the threshold, and when
// discounts cover the whole cart. Otherwise a flat fee plus a surcharge per
// started kilogram above the weight threshold.
func Shipping(rules Rules, lineCount int, subtotal, afterDiscounts decimal.Decimal, weightGrams int) decimal.Decimal {
	if lineCount == 0 || !afterDiscounts.IsPositive() {
		return zero
	}
	if rules.FreeShippingThreshold > 0 && subtotal.GreaterThanOrEqual(money(rules.FreeShippingThreshold)) {
		return zero
	}
	fee := money(rules.FlatShippingFee)
	if rules.WeightThresholdGrams > 0 && weightGrams > rules.WeightThresholdGrams {
		over := weightGrams - rules.WeightThresholdGrams
		kgs := (over + 999) / 1000
		fee = fee.Add(round2(money(rules.WeightSurchargePerKg).Mul(decimal.NewFromInt(int64(kgs)))))
	}
	return fee
}
