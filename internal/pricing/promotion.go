package pricing

import (
	"sort"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonNotStarted        Reason = "not_started"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
	ReasonMinOrderNotMet    Reason = "min_order_not_met"
	ReasonNoEligibleItems   Reason = "no_eligible_items"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:          "promotion code not found",
	ReasonInactive:          "promotion is not active",
	ReasonNotStarted:        "promotion has not started yet",
	ReasonExpired:           "promotion has expired",
	ReasonUsageLimitReached: "promotion usage limit reached",
	ReasonMinOrderNotMet:    "order does not meet the promotion minimum",
	ReasonNoEligibleItems:   "no items in the cart are eligible for this promotion",
}

func (r Reason) Message() string {
	return reasonMessages[r]
}

// PromotionResult is the outcome of evaluating promotions against a cart.
// LineDiscounts is indexed like the evaluated lines.
type PromotionResult struct {
	IsValid          bool
	DiscountAmount   decimal.Decimal
	AppliedPromotion *domain.Promotion
	LineDiscounts    []decimal.Decimal
	Reason           Reason
	Message          string
}

func invalid(n int, reason Reason) PromotionResult {
	return PromotionResult{
		DiscountAmount: zero,
		LineDiscounts:  zeros(n),
		Reason:         reason,
		Message:        reason.Message(),
	}
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = zero
	}
	return out
}

// Evaluate picks at most one promotion for the cart. With a code, only the
// promotion carrying that code is considered. Without one, every automatic
// promotion is tried and the largest discount wins; ties go to the earliest
// start, then the smaller ID. Only paid units are discounted.
func Evaluate(now time.Time, lines []Line, allocs []LineAllocation, promotions []domain.Promotion, code string) PromotionResult {
	code = domain.NormalizeCode(code)
	if code != "" {
		for i := range promotions {
			p := &promotions[i]
			if p.Code == "" || domain.NormalizeCode(p.Code) != code {
				continue
			}
			return evaluateOne(now, p, lines, allocs)
		}
		return invalid(len(lines), ReasonNotFound)
	}

	var best *PromotionResult
	for i := range promotions {
		p := &promotions[i]
		if !p.IsAutomatic() {
			continue
		}
		res := evaluateOne(now, p, lines, allocs)
		if !res.IsValid {
			continue
		}
		if best == nil || better(res, *best) {
			best = &res
		}
	}
	if best == nil {
		return invalid(len(lines), ReasonNone)
	}
	return *best
}

func better(a, b PromotionResult) bool {
	if c := a.DiscountAmount.Cmp(b.DiscountAmount); c != 0 {
		return c > 0
	}
	as, bs := a.AppliedPromotion.StartsAt, b.AppliedPromotion.StartsAt
	switch {
	case as != nil && bs == nil:
		return false
	case as == nil && bs != nil:
		return true
	case as != nil && bs != nil && !as.Equal(*bs):
		return as.Before(*bs)
	}
	return a.AppliedPromotion.ID < b.AppliedPromotion.ID
}

func evaluateOne(now time.Time, p *domain.Promotion, lines []Line, allocs []LineAllocation) PromotionResult {
	if reason := checkWindow(now, p); reason != ReasonNone {
		return invalid(len(lines), reason)
	}

	paidTotal := zero
	for i, l := range lines {
		paidTotal = paidTotal.Add(round2(l.subtotal(allocs[i].Paid)))
	}
	if p.MinOrderAmount > 0 && paidTotal.LessThan(money(p.MinOrderAmount)) {
		return invalid(len(lines), ReasonMinOrderNotMet)
	}

	perLine := discountLines(p, lines, allocs)
	total := zero
	for _, d := range perLine {
		total = total.Add(d)
	}
	if !total.IsPositive() {
		return invalid(len(lines), ReasonNoEligibleItems)
	}
	return PromotionResult{
		IsValid:          true,
		DiscountAmount:   total,
		AppliedPromotion: p,
		LineDiscounts:    perLine,
	}
}

func checkWindow(now time.Time, p *domain.Promotion) Reason {
	switch {
	case !p.Active:
		return ReasonInactive
	case p.NotStarted(now):
		return ReasonNotStarted
	case p.Expired(now):
		return ReasonExpired
	case p.UsageExhausted():
		return ReasonUsageLimitReached
	}
	return ReasonNone
}

func discountLines(p *domain.Promotion, lines []Line, allocs []LineAllocation) []decimal.Decimal {
	perLine := zeros(len(lines))

	var eligible []int
	eligibleTotal := zero
	for i, l := range lines {
		if allocs[i].Paid <= 0 || !p.AppliesToCategory(l.CategoryID) {
			continue
		}
		eligible = append(eligible, i)
		eligibleTotal = eligibleTotal.Add(round2(l.subtotal(allocs[i].Paid)))
	}
	if len(eligible) == 0 || !eligibleTotal.IsPositive() {
		return perLine
	}

	switch p.Type {
	case domain.PromotionTypePercentage:
		pct := decimal.Min(decimal.Max(decimal.NewFromFloat(p.Value), zero), hundred)
		d := round2(eligibleTotal.Mul(pct).Div(hundred))
		if p.MaxDiscount > 0 {
			d = minDecimal(d, money(p.MaxDiscount))
		}
		spread(perLine, minDecimal(d, eligibleTotal), eligible, lines, allocs, eligibleTotal)
	case domain.PromotionTypeFixedAmount:
		d := decimal.Max(money(p.Value), zero)
		spread(perLine, minDecimal(d, eligibleTotal), eligible, lines, allocs, eligibleTotal)
	case domain.PromotionTypeBuyXGetY:
		buyXGetY(perLine, p, eligible, lines, allocs)
	}
	return perLine
}

// spread distributes d over the eligible lines in proportion to their paid
// subtotal. Shares are truncated to cents and the leftover cents go to the
// lines with the largest truncated remainder, cart order breaking ties.
func spread(perLine []decimal.Decimal, d decimal.Decimal, eligible []int, lines []Line, allocs []LineAllocation, eligibleTotal decimal.Decimal) {
	if !d.IsPositive() {
		return
	}
	type share struct {
		idx  int
		frac decimal.Decimal
		cap  decimal.Decimal
	}
	shares := make([]share, 0, len(eligible))
	assigned := zero
	for _, i := range eligible {
		lineTotal := round2(lines[i].subtotal(allocs[i].Paid))
		exact := d.Mul(lineTotal).Div(eligibleTotal)
		cut := exact.Truncate(2)
		perLine[i] = cut
		assigned = assigned.Add(cut)
		shares = append(shares, share{idx: i, frac: exact.Sub(cut), cap: lineTotal})
	}

	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].frac.GreaterThan(shares[b].frac)
	})
	left := d.Sub(assigned)
	for left.IsPositive() {
		progressed := false
		for _, s := range shares {
			if !left.IsPositive() {
				break
			}
			if perLine[s.idx].Add(cent).GreaterThan(s.cap) {
				continue
			}
			perLine[s.idx] = perLine[s.idx].Add(cent)
			left = left.Sub(cent)
			progressed = true
		}
		if !progressed {
			break
		}
	}
}

// buyXGetY makes the Y cheapest units of every X+Y eligible paid units free.
func buyXGetY(perLine []decimal.Decimal, p *domain.Promotion, eligible []int, lines []Line, allocs []LineAllocation) {
	if p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
		return
	}
	type unit struct {
		idx   int
		price decimal.Decimal
	}
	var units []unit
	for _, i := range eligible {
		for n := 0; n < allocs[i].Paid; n++ {
			units = append(units, unit{idx: i, price: lines[i].UnitPrice})
		}
	}
	free := len(units) / (p.BuyQuantity + p.GetQuantity) * p.GetQuantity
	if free == 0 {
		return
	}
	sort.SliceStable(units, func(a, b int) bool {
		return units[a].price.LessThan(units[b].price)
	})
	for _, u := range units[:free] {
		perLine[u.idx] = perLine[u.idx].Add(round2(u.price))
	}
}
