package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"deals-agent/internal/domain"
)

// Memory is an in-memory deal repository seeded with a generated catalog and a
// small purchase history. It backs the local server and tests; production uses
// the DynamoDB-backed Client.
type Memory struct {
	mu        sync.RWMutex
	offers    []domain.Offer
	purchases []domain.Purchase
	clips     map[string]struct{}
}

// NewMemory builds a seeded repository. Offer expiry dates are generated
// relative to today so part of the catalog expires tomorrow, part in four
// days, and part next week.
func NewMemory(today time.Time) *Memory {
	return &Memory{
		offers:    seedOffers(today),
		purchases: seedPurchases(),
		clips:     make(map[string]struct{}),
	}
}

func (m *Memory) ListOffers(_ context.Context) ([]domain.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Offer, len(m.offers))
	copy(out, m.offers)
	return out, nil
}

func (m *Memory) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Purchase, len(m.purchases))
	copy(out, m.purchases)
	return out, nil
}

func (m *Memory) Clip(_ context.Context, offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips[offerID] = struct{}{}
	return nil
}

func (m *Memory) Unclip(_ context.Context, offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clips, offerID)
	return nil
}

var seedPrices = []string{
	"$1.99", "$3.49", "$4.99", "2 for $5", "Buy 1 Get 1 Free",
	"$6.99", "$1.25", "$8.99", "3 for $10", "$5.50",
}

var seedItems = map[domain.Department][]string{
	domain.DepartmentProduce:     {"Fresh Strawberries", "Organic Baby Spinach", "Bell Peppers Trio"},
	domain.DepartmentDairy:       {"Oat Milk (Creamy)", "Shredded Cheddar Cheese", "Large Grade A Eggs"},
	domain.DepartmentMeatSeafood: {"Ribeye Steak", "Jumbo Raw Shrimp", "Pork Loin Chops"},
	domain.DepartmentBakery:      {"Blueberry Muffins", "Whole Wheat Loaf", "Glazed Donuts"},
	domain.DepartmentDeli:        {"Premium Roast Beef", "Creamy Potato Salad", "Sliced Swiss Cheese"},
	domain.DepartmentPantry:      {"Peanut Butter (Smooth)", "Jasmine Rice (5lb)", "Wildflower Honey"},
	domain.DepartmentFrozen:      {"Mixed Berry Blend", "Breaded Chicken Nuggets", "Thin Crust Pizza"},
	domain.DepartmentBeverages:   {"Almond Milk (Unsweetened)", "Cold Brew Coffee", "100% Orange Juice"},
	domain.DepartmentSnacks:      {"Tortilla Chips", "Chewy Granola Bars", "Sea Salt Popcorn"},
	domain.DepartmentHousehold:   {"Recycled Paper Plates", "Heavy Duty Trash Bags", "Streak-Free Glass Cleaner"},
}

var seedImages = map[domain.Department][]string{
	domain.DepartmentProduce:     {"1464961430262-db30fd54e258", "1540441656598-c146834d9ed3", "1523049673857-eb18f9708f42"},
	domain.DepartmentDairy:       {"1550583724-7fa0316a92ef", "1486297678162-eb50c9b463ba", "1582456780303-9646f217bb9c"},
	domain.DepartmentMeatSeafood: {"1544077960-601f28bf736c", "1559742811-a5301e4c01d2", "1602497514717-3286a6955361"},
	domain.DepartmentBakery:      {"1558961363-fa5fba4fd854", "1509440159596-0249088772ff", "1555507036-311e195762ce"},
	domain.DepartmentDeli:        {"1598103442097-8b74394b95c6", "1585822310625-5f80e9279595", "1602163013146-24b9c1d9326d"},
	domain.DepartmentPantry:      {"1568901346375-23c9450c58cd", "1586201375745-16056a076d34", "1587131745749-bbd3c0155a0b"},
	domain.DepartmentFrozen:      {"1601004869309-a447c24452aa", "1562440496-ec619b89a5ad", "1513104894672-d4e83f218aef"},
	domain.DepartmentBeverages:   {"1505503204996-852136060191", "1554867813-2956c2e33d47", "1613478223719-7835aba7d3b1"},
	domain.DepartmentSnacks:      {"1566478982333-d7fa197bf474", "1541544336-7c126bdcd041", "1585559605206-d8c8c3297a14"},
	domain.DepartmentHousehold:   {"1584622781564-1d9876a13d00", "1584622650299-b1d35504300d", "1582727307738-9cb5c18163c4"},
}

func seedOffers(today time.Time) []domain.Offer {
	// One item per department expires tomorrow, one in four days, one next week.
	expiryOffsets := []int{1, 4, 8}

	var offers []domain.Offer
	for deptIdx, dept := range domain.Departments() {
		for itemIdx, item := range seedItems[dept] {
			price := seedPrices[(deptIdx+itemIdx)%len(seedPrices)]
			expiry := today.AddDate(0, 0, expiryOffsets[itemIdx]).Format("2006-01-02")

			usage := "While supplies last. See store for details."
			if itemIdx%2 == 0 {
				usage = "Limit 3 per transaction."
			}

			offers = append(offers, domain.Offer{
				ID:            fmt.Sprintf("%d-%d", deptIdx, itemIdx),
				Merchant:      "Fresh Market",
				Category:      dept,
				Deal:          item + ".",
				Price:         price,
				OriginalPrice: regularPrice(price),
				Description: fmt.Sprintf(
					"Premium quality %s from local suppliers. Freshness guaranteed at Fresh Market. Perfect for your weekly grocery needs.",
					strings.ToLower(item),
				),
				Expiry:    expiry,
				UsageInfo: usage,
				Image:     fmt.Sprintf("https://images.unsplash.com/photo-%s?auto=format&fit=crop&q=80&w=400", seedImages[dept][itemIdx]),
			})
		}
	}
	return offers
}

// regularPrice derives a plausible pre-deal price from the deal display string.
func regularPrice(price string) string {
	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, price)
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || v == 0 {
		v = 6.49
	}
	return fmt.Sprintf("$%.2f", v)
}

func seedPurchases() []domain.Purchase {
	return []domain.Purchase{
		{ID: "p1", Item: "Fresh Strawberries", Merchant: "Fresh Market", Date: "2025-05-08", Price: "$2.50", Category: domain.DepartmentProduce},
		{ID: "p2", Item: "Almond Milk", Merchant: "Fresh Market", Date: "2025-05-12", Price: "$3.49", Category: domain.DepartmentBeverages},
		{ID: "p3", Item: "Whole Wheat Loaf", Merchant: "Fresh Market", Date: "2025-05-15", Price: "$3.99", Category: domain.DepartmentBakery},
	}
}
