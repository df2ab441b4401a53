package domain

import (
	"strings"
	"time"
)

// Department is one of the ten fixed store sections used to group offers.
// The special value DepartmentAll widens a query to the whole catalog.
type Department string

const (
	DepartmentAll Department = "all"

	DepartmentProduce     Department = "Produce"
	DepartmentDairy       Department = "Dairy"
	DepartmentMeatSeafood Department = "Meat & Seafood"
	DepartmentBakery      Department = "Bakery"
	DepartmentDeli        Department = "Deli"
	DepartmentPantry      Department = "Pantry"
	DepartmentFrozen      Department = "Frozen"
	DepartmentBeverages   Department = "Beverages"
	DepartmentSnacks      Department = "Snacks"
	DepartmentHousehold   Department = "Household"
)

// Departments lists every store section, in catalog order, excluding DepartmentAll.
func Departments() []Department {
	return []Department{
		DepartmentProduce,
		DepartmentDairy,
		DepartmentMeatSeafood,
		DepartmentBakery,
		DepartmentDeli,
		DepartmentPantry,
		DepartmentFrozen,
		DepartmentBeverages,
		DepartmentSnacks,
		DepartmentHousehold,
	}
}

// ValidDepartment reports whether d is DepartmentAll or a known store section.
func ValidDepartment(d Department) bool {
	if d == DepartmentAll {
		return true
	}
	for _, known := range Departments() {
		if d == known {
			return true
		}
	}
	return false
}

// expiryLayout is the calendar-date format used on the wire and in storage.
const expiryLayout = "2006-01-02"

// defaultUsageInfo is shown when an offer carries no usage restrictions of its own.
const defaultUsageInfo = "Subject to in-store availability. Limit one per customer unless otherwise stated."

// Offer is a single advertised deal. Offers are immutable once created; clipped
// state lives in the ledger, never on the offer itself.
type Offer struct {
	ID            string     `json:"id"`
	Merchant      string     `json:"merchant"`
	Category      Department `json:"category"`
	Deal          string     `json:"deal"`
	Price         string     `json:"price"`
	OriginalPrice string     `json:"originalPrice,omitempty"`
	Description   string     `json:"description"`
	Expiry        string     `json:"expiry"`
	Image         string     `json:"image"`
	UsageInfo     string     `json:"usageInfo,omitempty"`
}

// ExpiryDate parses the offer's calendar date. The zero time is returned for
// malformed dates; callers treat those offers as expired.
func (o Offer) ExpiryDate() (time.Time, bool) {
	t, err := time.Parse(expiryLayout, o.Expiry)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Active reports whether the offer's expiry is today or later, compared at day
// granularity.
func (o Offer) Active(today time.Time) bool {
	exp, ok := o.ExpiryDate()
	if !ok {
		return false
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return !exp.Before(day)
}

// Usage returns the offer's usage restrictions, falling back to the generic
// restriction string when the offer carries none.
func (o Offer) Usage() string {
	if strings.TrimSpace(o.UsageInfo) == "" {
		return defaultUsageInfo
	}
	return o.UsageInfo
}

// SpecialType classifies multi-buy pricing from the display string. It affects
// eligibility messaging only, never filtering.
type SpecialType string

const (
	SpecialNone  SpecialType = ""
	SpecialBOGO  SpecialType = "BOGO"
	SpecialMulti SpecialType = "MULTI"
)

// Special inspects the price display string for buy-one-get-one or multi-buy
// phrasing.
func (o Offer) Special() SpecialType {
	p := strings.ToLower(o.Price)
	if strings.Contains(p, "buy") || strings.Contains(p, "bogo") {
		return SpecialBOGO
	}
	if strings.Contains(p, "for $") {
		return SpecialMulti
	}
	return SpecialNone
}

// ExpiryBucket groups offers by urgency for badge text.
type ExpiryBucket string

const (
	ExpiryExpired  ExpiryBucket = "expired"
	ExpiryToday    ExpiryBucket = "today"
	ExpirySoon     ExpiryBucket = "soon"
	ExpiryThisWeek ExpiryBucket = "this_week"
	ExpiryLater    ExpiryBucket = "later"
)

// Urgency buckets the offer's expiry relative to today at day granularity.
func (o Offer) Urgency(today time.Time) ExpiryBucket {
	exp, ok := o.ExpiryDate()
	if !ok {
		return ExpiryExpired
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int(exp.Sub(day).Hours() / 24)
	switch {
	case days < 0:
		return ExpiryExpired
	case days == 0:
		return ExpiryToday
	case days <= 3:
		return ExpirySoon
	case days <= 7:
		return ExpiryThisWeek
	default:
		return ExpiryLater
	}
}

// Purchase is a historical buying record, used only to seed quick-reorder
// suggestions.
type Purchase struct {
	ID       string     `json:"id"`
	Item     string     `json:"item"`
	Merchant string     `json:"merchant"`
	Date     string     `json:"date"`
	Price    string     `json:"price"`
	Category Department `json:"category"`
}
