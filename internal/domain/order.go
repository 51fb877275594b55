package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	EventOrderConfirmed     = "order.confirmed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is an outbox entry stored on the order until it is published.
type OrderEvent struct {
	ID        string      `bson:"id" json:"eventId"`
	Type      string      `bson:"type" json:"eventType"`
	OrderID   string      `bson:"order_id" json:"orderId"`
	UserID    string      `bson:"user_id" json:"userId"`
	Email     string      `bson:"email" json:"email"`
	Status    OrderStatus `bson:"status" json:"status"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
}

type Address struct {
	Name     string `bson:"name" json:"name" validate:"required,max=100"`
	Line1    string `bson:"line1" json:"line1" validate:"required,max=200"`
	Line2    string `bson:"line2,omitempty" json:"line2,omitempty" validate:"max=200"`
	City     string `bson:"city" json:"city" validate:"required,max=100"`
	State    string `bson:"state" json:"state" validate:"required,len=2"`
	ZIP      string `bson:"zip" json:"zip" validate:"required,numeric,len=5"`
	ZIPPlus4 string `bson:"zip_plus4,omitempty" json:"zipPlus4,omitempty"`
	Country  string `bson:"country" json:"country"`
}

type OrderItem struct {
	ProductID          string  `bson:"product_id" json:"productId"`
	ProductName        string  `bson:"product_name" json:"productName"`
	CategoryID         string  `bson:"category_id" json:"categoryId"`
	Quantity           int     `bson:"quantity" json:"quantity"`
	UnitPrice          float64 `bson:"unit_price" json:"unitPrice"`
	FreeFromMembership int     `bson:"free_from_membership" json:"freeFromMembership"`
	FinalPrice         float64 `bson:"final_price" json:"finalPrice"`
}

type ConsumedAllocation struct {
	CategoryID string `bson:"category_id" json:"categoryId"`
	Quantity   int    `bson:"quantity" json:"quantity"`
}

type StatusChange struct {
	From      OrderStatus `bson:"from" json:"from"`
	To        OrderStatus `bson:"to" json:"to"`
	Actor     string      `bson:"actor" json:"actor"`
	ChangedAt time.Time   `bson:"changed_at" json:"changedAt"`
}

type Order struct {
	ID                  string               `bson:"_id" json:"id"`
	UserID              string               `bson:"user_id" json:"userId"`
	Email               string               `bson:"email" json:"email"`
	Items               []OrderItem          `bson:"items" json:"items"`
	Pricing             CartPricing          `bson:"pricing" json:"pricing"`
	ShippingAddress     Address              `bson:"shipping_address" json:"shippingAddress"`
	Status              OrderStatus          `bson:"status" json:"status"`
	PaymentIntentID     string               `bson:"payment_intent_id,omitempty" json:"paymentIntentId,omitempty"`
	StripeCustomerID    string               `bson:"stripe_customer_id,omitempty" json:"-"`
	MembershipID        string               `bson:"membership_id,omitempty" json:"membershipId,omitempty"`
	PromotionID         string               `bson:"promotion_id,omitempty" json:"promotionId,omitempty"`
	ConsumedAllocations []ConsumedAllocation `bson:"consumed_allocations,omitempty" json:"consumedAllocations,omitempty"`
	PendingEvents       []OrderEvent         `bson:"pending_events,omitempty" json:"-"`
	StatusHistory       []StatusChange       `bson:"status_history,omitempty" json:"statusHistory,omitempty"`
	CreatedAt           time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time            `bson:"updated_at" json:"updatedAt"`
}

// IsFree reports whether the order was fully covered without a payment.
func (o *Order) IsFree() bool {
	return o.PaymentIntentID == "" && o.Pricing.FinalTotal == 0
}

// ItemsFromPricing snapshots priced cart lines into immutable order lines.
func ItemsFromPricing(p *CartPricing) []OrderItem {
	items := make([]OrderItem, 0, len(p.Items))
	for _, line := range p.Items {
		items = append(items, OrderItem{
			ProductID:          line.ProductID,
			ProductName:        line.Name,
			CategoryID:         line.CategoryID,
			Quantity:           line.Quantity,
			UnitPrice:          line.UnitPrice,
			FreeFromMembership: line.FreeFromMembership,
			FinalPrice:         line.FinalPrice,
		})
	}
	return items
}
