package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deals-agent/internal/domain"
)

var testToday = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

func offerIDs(offers []domain.Offer) []string {
	out := make([]string, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.ID)
	}
	return out
}

func TestSortDirection_Toggle(t *testing.T) {
	require.Equal(t, SortAscending, SortUnset.Toggle())
	require.Equal(t, SortDescending, SortAscending.Toggle())
	require.Equal(t, SortAscending, SortDescending.Toggle())
}

func TestSelectOffers_ExcludesExpired(t *testing.T) {
	catalog := []domain.Offer{
		{ID: "live", Category: domain.DepartmentProduce, Expiry: "2099-01-01"},
		{ID: "dead", Category: domain.DepartmentProduce, Expiry: "2000-01-01"},
		{ID: "today", Category: domain.DepartmentProduce, Expiry: "2025-06-01"},
		{ID: "garbled", Category: domain.DepartmentProduce, Expiry: "soon"},
	}

	got := SelectOffers(catalog, testToday, "produce deals", domain.DepartmentAll)
	require.Equal(t, []string{"live", "today"}, offerIDs(got))
}

func TestSelectOffers_ItemSpecificBeatsCategory(t *testing.T) {
	catalog := []domain.Offer{
		{ID: "bev-almond", Category: domain.DepartmentBeverages, Deal: "Almond Milk.", Expiry: "2099-01-01"},
		{ID: "bev-soda", Category: domain.DepartmentBeverages, Deal: "Sparkling Water.", Expiry: "2099-01-01"},
		{ID: "dairy-desc", Category: domain.DepartmentDairy, Deal: "Greek Yogurt.", Description: "Pairs well with almond milk.", Expiry: "2099-01-01"},
	}

	got := SelectOffers(catalog, testToday, "almond milk", domain.DepartmentBeverages)
	require.Equal(t, []string{"bev-almond", "dairy-desc"}, offerIDs(got))
}

func TestSelectOffers_FallsBackToCategory(t *testing.T) {
	catalog := []domain.Offer{
		{ID: "bev-soda", Category: domain.DepartmentBeverages, Deal: "Sparkling Water.", Expiry: "2099-01-01"},
		{ID: "prod-kale", Category: domain.DepartmentProduce, Deal: "Kale.", Expiry: "2099-01-01"},
	}

	got := SelectOffers(catalog, testToday, "something to drink", domain.DepartmentBeverages)
	require.Equal(t, []string{"bev-soda"}, offerIDs(got))
}

func TestSelectOffers_AllReturnsEveryActiveOffer(t *testing.T) {
	catalog := []domain.Offer{
		{ID: "a", Category: domain.DepartmentSnacks, Expiry: "2099-01-01"},
		{ID: "b", Category: domain.DepartmentFrozen, Expiry: "2099-01-01"},
	}

	got := SelectOffers(catalog, testToday, "what's on sale", domain.DepartmentAll)
	require.Equal(t, []string{"a", "b"}, offerIDs(got))
}

func TestMatchesSearch(t *testing.T) {
	offer := domain.Offer{
		Deal:        "Organic Bananas.",
		Category:    domain.DepartmentProduce,
		Description: "Sweet and ripe, sold by the bunch.",
	}

	cases := []struct {
		term string
		want bool
	}{
		{term: "", want: true},
		{term: "   ", want: true},
		{term: "BANANA", want: true},
		{term: "produce", want: true},
		{term: "bunch", want: true},
		{term: "yogurt", want: false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, matchesSearch(offer, tc.term), "term %q", tc.term)
	}
}

func TestFilterOffers(t *testing.T) {
	offers := []domain.Offer{
		{ID: "p", Category: domain.DepartmentProduce, Deal: "Kale."},
		{ID: "d", Category: domain.DepartmentDairy, Deal: "Whole Milk."},
		{ID: "d2", Category: domain.DepartmentDairy, Deal: "Butter."},
	}

	got := filterOffers(offers, domain.DepartmentDairy, "")
	require.Equal(t, []string{"d", "d2"}, offerIDs(got))

	got = filterOffers(offers, domain.DepartmentDairy, "milk")
	require.Equal(t, []string{"d"}, offerIDs(got))

	got = filterOffers(offers, domain.DepartmentAll, "kale")
	require.Equal(t, []string{"p"}, offerIDs(got))
}

func TestSortOffers(t *testing.T) {
	offers := []domain.Offer{
		{ID: "late", Expiry: "2025-06-20"},
		{ID: "early", Expiry: "2025-06-02"},
		{ID: "broken", Expiry: "whenever"},
		{ID: "mid", Expiry: "2025-06-10"},
	}

	got := sortOffers(offers, SortUnset)
	require.Equal(t, []string{"late", "early", "broken", "mid"}, offerIDs(got))

	got = sortOffers(offers, SortAscending)
	require.Equal(t, []string{"early", "mid", "late", "broken"}, offerIDs(got))

	got = sortOffers(offers, SortDescending)
	require.Equal(t, []string{"late", "mid", "early", "broken"}, offerIDs(got))

	// The input slice is never reordered in place.
	require.Equal(t, []string{"late", "early", "broken", "mid"}, offerIDs(offers))
}

func TestOfferCategories_FirstSeenOrder(t *testing.T) {
	offers := []domain.Offer{
		{ID: "1", Category: domain.DepartmentDairy},
		{ID: "2", Category: domain.DepartmentProduce},
		{ID: "3", Category: domain.DepartmentDairy},
	}

	got := offerCategories(offers)
	require.Equal(t, []domain.Department{domain.DepartmentDairy, domain.DepartmentProduce}, got)
}
