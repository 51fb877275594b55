package domain

import "time"

const MaxItemQuantity = 99

type Cart struct {
	ID            string       `bson:"_id,omitempty" json:"id,omitempty"`
	UserID        string       `bson:"user_id" json:"userId"`
	Items         []CartItem   `bson:"items" json:"items"`
	PromotionCode string       `bson:"promotion_code,omitempty" json:"promotionCode,omitempty"`
	Pricing       *CartPricing `bson:"pricing,omitempty" json:"pricing,omitempty"`
	CreatedAt     time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time    `bson:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	ProductID string       `bson:"product_id" json:"productId"`
	Quantity  int          `bson:"quantity" json:"quantity"`
	AddedAt   time.Time    `bson:"added_at" json:"addedAt"`
	Pricing   *ItemPricing `bson:"pricing,omitempty" json:"pricing,omitempty"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ItemPricing holds the price tiers of one cart line. Prices are line totals.
type ItemPricing struct {
	ProductID          string  `bson:"product_id" json:"productId"`
	Name               string  `bson:"name" json:"name"`
	CategoryID         string  `bson:"category_id" json:"categoryId"`
	Quantity           int     `bson:"quantity" json:"quantity"`
	UnitPrice          float64 `bson:"unit_price" json:"unitPrice"`
	RegularPrice       float64 `bson:"regular_price" json:"regularPrice"`
	OriginalPrice      float64 `bson:"original_price" json:"originalPrice"`
	MembershipPrice    float64 `bson:"membership_price" json:"membershipPrice"`
	PromotionPrice     float64 `bson:"promotion_price" json:"promotionPrice"`
	FinalPrice         float64 `bson:"final_price" json:"finalPrice"`
	FreeFromMembership int     `bson:"free_from_membership" json:"freeFromMembership"`
	PaidQuantity       int     `bson:"paid_quantity" json:"paidQuantity"`
	MembershipSavings  float64 `bson:"membership_savings" json:"membershipSavings"`
	PromotionSavings   float64 `bson:"promotion_savings" json:"promotionSavings"`
	WeightGrams        int     `bson:"weight_grams" json:"weightGrams"`
}

type AppliedPromotion struct {
	ID             string        `bson:"id" json:"id"`
	Name           string        `bson:"name" json:"name"`
	Code           string        `bson:"code,omitempty" json:"code,omitempty"`
	Type           PromotionType `bson:"type" json:"type"`
	DiscountAmount float64       `bson:"discount_amount" json:"discountAmount"`
}

type CartPricing struct {
	Items               []ItemPricing     `bson:"items" json:"items"`
	Subtotal            float64           `bson:"subtotal" json:"subtotal"`
	MembershipDiscount  float64           `bson:"membership_discount" json:"membershipDiscount"`
	PromotionDiscount   float64           `bson:"promotion_discount" json:"promotionDiscount"`
	AfterDiscountsTotal float64           `bson:"after_discounts_total" json:"afterDiscountsTotal"`
	ShippingAmount      float64           `bson:"shipping_amount" json:"shippingAmount"`
	TaxAmount           float64           `bson:"tax_amount" json:"taxAmount"`
	FinalTotal          float64           `bson:"final_total" json:"finalTotal"`
	TotalWeightGrams    int               `bson:"total_weight_grams" json:"totalWeightGrams"`
	Currency            string            `bson:"currency" json:"currency"`
	AppliedPromotion    *AppliedPromotion `bson:"applied_promotion,omitempty" json:"appliedPromotion,omitempty"`
	PromotionMessage    string            `bson:"promotion_message,omitempty" json:"promotionMessage,omitempty"`
	UnavailableItems    []string          `bson:"unavailable_items,omitempty" json:"unavailableItems,omitempty"`
	PricedAt            time.Time         `bson:"priced_at" json:"-"`
}

// FreeUnitsByCategory sums the membership-covered units per category.
func (p *CartPricing) FreeUnitsByCategory() map[string]int {
	out := make(map[string]int)
	for _, item := range p.Items {
		if item.FreeFromMembership > 0 {
			out[item.CategoryID] += item.FreeFromMembership
		}
	}
	return out
}
