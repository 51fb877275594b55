package domain

import "time"

type MembershipStatus string

const (
	MembershipStatusTrial     MembershipStatus = "trial"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusPaused    MembershipStatus = "paused"
	MembershipStatusCancelled MembershipStatus = "cancelled"
	MembershipStatusExpired   MembershipStatus = "expired"
)

func (s MembershipStatus) String() string {
	return string(s)
}

type CategoryAllocation struct {
	CategoryID   string `bson:"category_id" json:"categoryId" yaml:"category_id"`
	CategoryName string `bson:"category_name" json:"categoryName" yaml:"category_name"`
	Quantity     int    `bson:"quantity" json:"quantity" yaml:"quantity"`
}

// Membership is a subscription plan granting monthly per-category allocations.
type Membership struct {
	ID              string               `bson:"_id" json:"id" yaml:"id"`
	Name            string               `bson:"name" json:"name" yaml:"name"`
	Description     string               `bson:"description" json:"description" yaml:"description"`
	Price           float64              `bson:"price" json:"price" yaml:"price"`
	BillingInterval string               `bson:"billing_interval" json:"billingInterval" yaml:"billing_interval"`
	StripePriceID   string               `bson:"stripe_price_id" json:"stripePriceId" yaml:"stripe_price_id"`
	Allocations     []CategoryAllocation `bson:"allocations" json:"allocations" yaml:"allocations"`
	Active          bool                 `bson:"active" json:"active" yaml:"active"`
}

type ProductUsage struct {
	CategoryID   string `bson:"category_id" json:"categoryId"`
	CategoryName string `bson:"category_name" json:"categoryName"`
	Allocated    int    `bson:"allocated" json:"allocated"`
	Used         int    `bson:"used" json:"used"`
}

func (u ProductUsage) Remaining() int {
	if u.Used >= u.Allocated {
		return 0
	}
	return u.Allocated - u.Used
}

type UserMembership struct {
	ID                   string           `bson:"_id" json:"id"`
	UserID               string           `bson:"user_id" json:"userId"`
	MembershipID         string           `bson:"membership_id" json:"membershipId"`
	Status               MembershipStatus `bson:"status" json:"status"`
	StripeSubscriptionID string           `bson:"stripe_subscription_id" json:"stripeSubscriptionId"`
	StripeCustomerID     string           `bson:"stripe_customer_id" json:"stripeCustomerId"`
	CurrentPeriodStart   time.Time        `bson:"current_period_start" json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time        `bson:"current_period_end,omitempty" json:"currentPeriodEnd"`
	ProductUsage         []ProductUsage   `bson:"product_usage" json:"productUsage"`
	CreatedAt            time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `bson:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the membership grants allocations at the given time.
func (m *UserMembership) IsActive(now time.Time) bool {
	if m == nil {
		return false
	}
	if m.Status != MembershipStatusActive && m.Status != MembershipStatusTrial {
		return false
	}
	if !m.CurrentPeriodEnd.IsZero() && !now.Before(m.CurrentPeriodEnd) {
		return false
	}
	return true
}

func (m *UserMembership) Usage(categoryID string) (ProductUsage, bool) {
	if m == nil {
		return ProductUsage{}, false
	}
	for _, u := range m.ProductUsage {
		if u.CategoryID == categoryID {
			return u, true
		}
	}
	return ProductUsage{}, false
}

// UsageFromPlan builds a fresh, unused allocation set for a billing period.
func UsageFromPlan(plan *Membership) []ProductUsage {
	usage := make([]ProductUsage, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		usage = append(usage, ProductUsage{
			CategoryID:   a.CategoryID,
			CategoryName: a.CategoryName,
			Allocated:    a.Quantity,
		})
	}
	return usage
}
