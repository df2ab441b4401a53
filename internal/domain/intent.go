package domain

// Intent is the structured classification of a free-text user query. It is the
// only thing the session needs from the hosted model: what to say, whether to
// look up offers, and which department to search.
type Intent struct {
	Reply                 string     `json:"reply"`
	ShowOffers            bool       `json:"show_offers"`
	IsOutOfScope          bool       `json:"is_out_of_scope"`
	Category              Department `json:"category"`
	SuggestedAlternatives []string   `json:"suggested_alternatives"`
}
