package domain

import "time"

// Sender identifies which side of the conversation produced a turn.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// TurnStatus tracks a user turn through classification. System turns are
// terminal and carry the status of the exchange that produced them.
type TurnStatus string

const (
	// StatusPending means classification is in flight for this user turn.
	StatusPending TurnStatus = "pending"
	// StatusResolved means the system reply has been appended.
	StatusResolved TurnStatus = "resolved"
	// StatusFailed means the classifier was unreachable or returned garbage;
	// the exchange is terminal and a new user turn is required to try again.
	StatusFailed TurnStatus = "failed"
)

// Turn is one exchange unit in the conversation. The attached offer slice is a
// snapshot taken at creation time; later sort and filter actions reorder or
// hide elements of that fixed snapshot, never fetch a new one.
type Turn struct {
	ID                    string     `json:"id"`
	Sender                Sender     `json:"sender"`
	Text                  string     `json:"text"`
	Timestamp             time.Time  `json:"timestamp"`
	Offers                []Offer    `json:"offers,omitempty"`
	SuggestedAlternatives []string   `json:"suggestedAlternatives,omitempty"`
	IsGuardrail           bool       `json:"isGuardrail,omitempty"`
	Status                TurnStatus `json:"status"`
}

// Fixed assistant strings. The refusal text must be byte-exact: the classifier
// contract forces it onto every out-of-scope reply.
const (
	WelcomeText = "Hello! I'm your Grocery Deals AI. I can help you find the best grocery deals and coupons for our store. What are you looking for today?"

	OutOfScopeReply = "I'm sorry, I specialize in finding the best grocery deals and value for you. I don't have information on the weather, but I can help you find deals in Produce, Dairy, or any other grocery department!"

	ConnectFailureText = "I'm having a bit of trouble connecting to my deal database. Please try again in a moment!"

	DefaultReply = "Here are the best deals matching your request:"
)
