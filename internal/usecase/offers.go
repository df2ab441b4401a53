package usecase

import (
	"sort"
	"strings"
	"time"

	"deals-agent/internal/domain"
)

// SortDirection is the tri-state expiry sort shared across turns. Toggling
// cycles unset -> ascending -> descending -> ascending -> ...
type SortDirection int

const (
	SortUnset SortDirection = iota
	SortAscending
	SortDescending
)

// Toggle advances the tri-state. Unset moves to ascending first; afterwards the
// direction flips between ascending and descending.
func (d SortDirection) Toggle() SortDirection {
	if d == SortAscending {
		return SortDescending
	}
	return SortAscending
}

// SelectOffers picks the offers to attach to a freshly classified turn.
//
// The catalog is first narrowed to active offers (expiry >= today at day
// granularity). When the classifier resolved a concrete department, offers
// whose headline or description contain the raw query text win over offers
// merely tagged with that department; the category subset is only used when no
// item-specific match exists.
func SelectOffers(catalog []domain.Offer, today time.Time, queryText string, category domain.Department) []domain.Offer {
	active := make([]domain.Offer, 0, len(catalog))
	for _, o := range catalog {
		if o.Active(today) {
			active = append(active, o)
		}
	}
	if category == domain.DepartmentAll {
		return active
	}

	itemSearch := strings.ToLower(queryText)
	var itemSpecific, categoryOffers []domain.Offer
	for _, o := range active {
		if strings.Contains(strings.ToLower(o.Deal), itemSearch) ||
			strings.Contains(strings.ToLower(o.Description), itemSearch) {
			itemSpecific = append(itemSpecific, o)
		}
		if o.Category == category {
			categoryOffers = append(categoryOffers, o)
		}
	}
	if len(itemSpecific) > 0 {
		return itemSpecific
	}
	return categoryOffers
}

// matchesSearch reports whether the search box term hits the offer's headline,
// category, or description, case-insensitively.
func matchesSearch(o domain.Offer, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.Deal), term) ||
		strings.Contains(strings.ToLower(string(o.Category)), term) ||
		strings.Contains(strings.ToLower(o.Description), term)
}

// filterOffers applies the per-turn department narrowing and the render-time
// search term to a turn's snapshot.
func filterOffers(offers []domain.Offer, category domain.Department, searchTerm string) []domain.Offer {
	out := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		if category != domain.DepartmentAll && o.Category != category {
			continue
		}
		if !matchesSearch(o, searchTerm) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// sortOffers orders a copy of offers by expiry date according to dir. Unset
// preserves snapshot order. Offers with malformed dates sort last.
func sortOffers(offers []domain.Offer, dir SortDirection) []domain.Offer {
	out := make([]domain.Offer, len(offers))
	copy(out, offers)
	if dir == SortUnset {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].ExpiryDate()
		b, bok := out[j].ExpiryDate()
		if aok != bok {
			return aok
		}
		if dir == SortAscending {
			return a.Before(b)
		}
		return b.Before(a)
	})
	return out
}

// offerCategories lists the departments present in a snapshot, in first-seen
// order, for the per-turn filter dropdown.
func offerCategories(offers []domain.Offer) []domain.Department {
	seen := make(map[domain.Department]struct{}, len(offers))
	var out []domain.Department
	for _, o := range offers {
		if _, ok := seen[o.Category]; ok {
			continue
		}
		seen[o.Category] = struct{}{}
		out = append(out, o.Category)
	}
	return out
}
