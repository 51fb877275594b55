package domain

import (
	"strings"
	"time"
)

type PromotionType string

const (
	PromotionTypePercentage  PromotionType = "percentage"
	PromotionTypeFixedAmount PromotionType = "fixed_amount"
	PromotionTypeBuyXGetY    PromotionType = "buy_x_get_y"
)

func (t PromotionType) Valid() bool {
	switch t {
	case PromotionTypePercentage, PromotionTypeFixedAmount, PromotionTypeBuyXGetY:
		return true
	}
	return false
}

// Promotion is a discount rule. An empty Code marks an automatic promotion.
type Promotion struct {
	ID             string        `bson:"_id" json:"id" yaml:"id"`
	Name           string        `bson:"name" json:"name" yaml:"name"`
	Code           string        `bson:"code,omitempty" json:"code,omitempty" yaml:"code"`
	Type           PromotionType `bson:"type" json:"type" yaml:"type"`
	Value          float64       `bson:"value" json:"value" yaml:"value"`
	BuyQuantity    int           `bson:"buy_quantity,omitempty" json:"buyQuantity,omitempty" yaml:"buy_quantity"`
	GetQuantity    int           `bson:"get_quantity,omitempty" json:"getQuantity,omitempty" yaml:"get_quantity"`
	MinOrderAmount float64       `bson:"min_order_amount,omitempty" json:"minOrderAmount,omitempty" yaml:"min_order_amount"`
	MaxDiscount    float64       `bson:"max_discount,omitempty" json:"maxDiscount,omitempty" yaml:"max_discount"`
	CategoryIDs    []string      `bson:"category_ids,omitempty" json:"categoryIds,omitempty" yaml:"category_ids"`
	StartsAt       *time.Time    `bson:"starts_at,omitempty" json:"startsAt,omitempty" yaml:"starts_at"`
	EndsAt         *time.Time    `bson:"ends_at,omitempty" json:"endsAt,omitempty" yaml:"ends_at"`
	UsageLimit     int           `bson:"usage_limit" json:"usageLimit" yaml:"usage_limit"`
	UsageCount     int           `bson:"usage_count" json:"usageCount" yaml:"-"`
	Active         bool          `bson:"active" json:"active" yaml:"active"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt" yaml:"-"`
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p *Promotion) IsAutomatic() bool {
	return p.Code == ""
}

func (p *Promotion) NotStarted(now time.Time) bool {
	return p.StartsAt != nil && now.Before(*p.StartsAt)
}

func (p *Promotion) Expired(now time.Time) bool {
	return p.EndsAt != nil && !now.Before(*p.EndsAt)
}

func (p *Promotion) UsageExhausted() bool {
	return p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit
}

// AppliesToCategory reports whether units of the category are eligible.
func (p *Promotion) AppliesToCategory(categoryID string) bool {
	if len(p.CategoryIDs) == 0 {
		return true
	}
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}
