package pricing

import (
	"sort"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Line is one priceable cart line.
type Line struct {
	ProductID    string
	Name         string
	CategoryID   string
	Quantity     int
	UnitPrice    decimal.Decimal
	RegularPrice decimal.Decimal
	WeightGrams  int
}

func (l Line) subtotal(units int) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(units)))
}

type Allocation struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Allocated    int    `json:"allocated"`
	Used         int    `json:"used"`
	Remaining    int    `json:"remaining"`
	Eligible     bool   `json:"eligible"`
}

// LineAllocation is the free/paid split of one line.
type LineAllocation struct {
	Free int
	Paid int
}

// Usage reports the allocation state of a category. Inactive memberships and
// categories outside the plan are reported as not eligible.
func Usage(m *domain.UserMembership, categoryID string, now time.Time) Allocation {
	u, ok := m.Usage(categoryID)
	if !ok || !m.IsActive(now) {
		return Allocation{CategoryID: categoryID, CategoryName: u.CategoryName, Allocated: u.Allocated, Used: u.Used}
	}
	return Allocation{
		CategoryID:   categoryID,
		CategoryName: u.CategoryName,
		Allocated:    u.Allocated,
		Used:         u.Used,
		Remaining:    u.Remaining(),
		Eligible:     true,
	}
}

func Report(m *domain.UserMembership, now time.Time) []Allocation {
	if m == nil {
		return []Allocation{}
	}
	out := make([]Allocation, 0, len(m.ProductUsage))
	for _, u := range m.ProductUsage {
		out = append(out, Usage(m, u.CategoryID, now))
	}
	return out
}

// Split returns how many of the requested units can be drawn for free.
func Split(remaining, requested int) LineAllocation {
	if remaining <= 0 || requested <= 0 {
		return LineAllocation{Paid: max(requested, 0)}
	}
	free := min(remaining, requested)
	return LineAllocation{Free: free, Paid: requested - free}
}

// Allocate splits every line into free and paid units. Lines of the same
// category share one remaining quota; the most expensive lines draw first and
// ties keep cart order.
func Allocate(m *domain.UserMembership, lines []Line, now time.Time) []LineAllocation {
	result := make([]LineAllocation, len(lines))
	for i, l := range lines {
		result[i] = LineAllocation{Paid: l.Quantity}
	}
	if !m.IsActive(now) {
		return result
	}

	remaining := make(map[string]int, len(m.ProductUsage))
	for _, u := range m.ProductUsage {
		remaining[u.CategoryID] = u.Remaining()
	}

	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].UnitPrice.GreaterThan(lines[order[b]].UnitPrice)
	})

	for _, i := range order {
		l := lines[i]
		left, ok := remaining[l.CategoryID]
		if !ok || left <= 0 {
			continue
		}
		split := Split(left, l.Quantity)
		result[i] = split
		remaining[l.CategoryID] = left - split.Free
	}
	return result
}

// ConsumeUsage returns the new used value after consuming n units and the
// number of units actually consumed. Used never exceeds allocated.
func ConsumeUsage(u domain.ProductUsage, n int) (newUsed, consumed int) {
	if n <= 0 {
		return u.Used, 0
	}
	newUsed = min(u.Allocated, u.Used+n)
	if newUsed < u.Used {
		return u.Used, 0
	}
	return newUsed, newUsed - u.Used
}
